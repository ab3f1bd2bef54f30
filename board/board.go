// Package board holds the client-side mirror of a user's task list and the
// pure projection that turns it into a four-column kanban view. The board is
// the counterpart of the server's task handlers: it seeds itself from a list
// response, applies mutations optimistically and reconciles against what the
// server actually accepted.
//
// A Board is not safe for concurrent use; it models a single-threaded UI loop.
package board

import (
	"context"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// SortKey selects the ordering applied to the visible task list.
type SortKey string

const (
	SortNewest    SortKey = "NEW"
	SortOldest    SortKey = "OLD"
	SortTitleAsc  SortKey = "AZ"
	SortTitleDesc SortKey = "ZA"
)

// StatusFilter narrows the visible list to one column, or FilterAll for none.
type StatusFilter string

// FilterAll disables status filtering.
const FilterAll StatusFilter = "ALL"

// Column is one rendered board column.
type Column struct {
	Status domain.Status
	Tasks  []domain.Task
}

// API is the server surface the board reconciles against.
type API interface {
	CreateTask(ctx context.Context, title, description string, priority domain.Priority) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Board mirrors the server's flat task list plus view-only state. The mirror
// is canonical on the client; View derives from it and never mutates it.
type Board struct {
	tasks  []domain.Task
	search string
	filter StatusFilter
	sort   SortKey
	logger *log.Logger
}

// New seeds a board from an initial server snapshot, expected newest-first.
func New(tasks []domain.Task, logger *log.Logger) *Board {
	if logger == nil {
		logger = log.StandardLogger()
	}
	mirror := make([]domain.Task, len(tasks))
	copy(mirror, tasks)
	return &Board{tasks: mirror, filter: FilterAll, sort: SortNewest, logger: logger}
}

// Tasks returns a copy of the canonical mirror.
func (b *Board) Tasks() []domain.Task {
	out := make([]domain.Task, len(b.tasks))
	copy(out, b.tasks)
	return out
}

func (b *Board) SetSearch(query string)   { b.search = query }
func (b *Board) SetFilter(f StatusFilter) { b.filter = f }
func (b *Board) SetSort(key SortKey)      { b.sort = key }
func (b *Board) Search() string           { return b.search }
func (b *Board) Filter() StatusFilter     { return b.filter }
func (b *Board) Sort() SortKey            { return b.sort }

// View recomputes the visible columns from the mirror and the current search,
// filter and sort settings. Search is a case-insensitive substring match over
// title and description.
func (b *Board) View() []Column {
	query := strings.ToLower(b.search)
	visible := make([]domain.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		if query != "" &&
			!strings.Contains(strings.ToLower(t.Title), query) &&
			!strings.Contains(strings.ToLower(t.Description), query) {
			continue
		}
		if b.filter != FilterAll && t.Status != domain.Status(b.filter) {
			continue
		}
		visible = append(visible, t)
	}

	switch b.sort {
	case SortOldest:
		sort.SliceStable(visible, func(i, j int) bool {
			return visible[i].CreatedAt.Before(visible[j].CreatedAt)
		})
	case SortTitleAsc:
		sort.SliceStable(visible, func(i, j int) bool {
			return strings.ToLower(visible[i].Title) < strings.ToLower(visible[j].Title)
		})
	case SortTitleDesc:
		sort.SliceStable(visible, func(i, j int) bool {
			return strings.ToLower(visible[i].Title) > strings.ToLower(visible[j].Title)
		})
	default:
		// Newest: the mirror already carries the server's
		// newest-created-first order.
	}

	columns := make([]Column, len(domain.Statuses))
	index := make(map[domain.Status]int, len(domain.Statuses))
	for i, s := range domain.Statuses {
		columns[i] = Column{Status: s, Tasks: []domain.Task{}}
		index[s] = i
	}
	for _, t := range visible {
		if i, ok := index[t.Status]; ok {
			columns[i].Tasks = append(columns[i].Tasks, t)
		}
	}
	return columns
}

// Create persists a new task and prepends it to the mirror on success. The
// mirror is untouched when the request fails.
func (b *Board) Create(ctx context.Context, api API, title, description string, priority domain.Priority) (domain.Task, error) {
	task, err := api.CreateTask(ctx, title, description, priority)
	if err != nil {
		b.logger.WithError(err).Error("board: create failed")
		return domain.Task{}, err
	}
	b.tasks = append([]domain.Task{task}, b.tasks...)
	return task, nil
}

// Edit applies a partial update and replaces the task in place on success.
func (b *Board) Edit(ctx context.Context, api API, id string, patch domain.TaskPatch) (domain.Task, error) {
	updated, err := api.UpdateTask(ctx, id, patch)
	if err != nil {
		b.logger.WithError(err).Error("board: edit failed")
		return domain.Task{}, err
	}
	b.replace(updated)
	return updated, nil
}

// Delete removes a task from the server and filters it out of the mirror on
// success. Removal is not optimistic; a failed delete leaves the board as is.
func (b *Board) Delete(ctx context.Context, api API, id string) error {
	if err := api.DeleteTask(ctx, id); err != nil {
		b.logger.WithError(err).Error("board: delete failed")
		return err
	}
	kept := b.tasks[:0]
	for _, t := range b.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	b.tasks = kept
	return nil
}

func (b *Board) replace(task domain.Task) {
	for i := range b.tasks {
		if b.tasks[i].ID == task.ID {
			b.tasks[i] = task
			return
		}
	}
}

func (b *Board) byID(id string) (domain.Task, bool) {
	for _, t := range b.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

func (b *Board) setStatus(id string, status domain.Status) {
	for i := range b.tasks {
		if b.tasks[i].ID == id {
			b.tasks[i].Status = status
			return
		}
	}
}
