package board

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// fakeAPI records calls and serves scripted responses.
type fakeAPI struct {
	createFn func(title, description string, priority domain.Priority) (domain.Task, error)
	updateFn func(id string, patch domain.TaskPatch) (domain.Task, error)
	statusFn func(id string, status domain.Status) (domain.Task, error)
	deleteFn func(id string) error

	statusCalls int
}

func (f *fakeAPI) CreateTask(_ context.Context, title, description string, priority domain.Priority) (domain.Task, error) {
	if f.createFn == nil {
		return domain.Task{}, errors.New("unexpected CreateTask call")
	}
	return f.createFn(title, description, priority)
}

func (f *fakeAPI) UpdateTask(_ context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	if f.updateFn == nil {
		return domain.Task{}, errors.New("unexpected UpdateTask call")
	}
	return f.updateFn(id, patch)
}

func (f *fakeAPI) UpdateStatus(_ context.Context, id string, status domain.Status) (domain.Task, error) {
	f.statusCalls++
	if f.statusFn == nil {
		return domain.Task{}, errors.New("unexpected UpdateStatus call")
	}
	return f.statusFn(id, status)
}

func (f *fakeAPI) DeleteTask(_ context.Context, id string) error {
	if f.deleteFn == nil {
		return errors.New("unexpected DeleteTask call")
	}
	return f.deleteFn(id)
}

func seedTasks() []domain.Task {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []domain.Task{
		{ID: "t3", Title: "Zeta", Description: "last one", Status: domain.StatusTodo, Priority: domain.PriorityLow, UserID: "u1", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "t2", Title: "Beta", Description: "middle", Status: domain.StatusReview, Priority: domain.PriorityMedium, UserID: "u1", CreatedAt: base.Add(time.Hour)},
		{ID: "t1", Title: "Alpha", Description: "first one", Status: domain.StatusTodo, Priority: domain.PriorityHigh, UserID: "u1", CreatedAt: base},
	}
}

func columnFor(t *testing.T, cols []Column, status domain.Status) Column {
	t.Helper()
	for _, c := range cols {
		if c.Status == status {
			return c
		}
	}
	t.Fatalf("no column for %q", status)
	return Column{}
}

func visibleIDs(cols []Column) []string {
	ids := []string{}
	for _, c := range cols {
		for _, task := range c.Tasks {
			ids = append(ids, task.ID)
		}
	}
	return ids
}

func TestViewPartitionsByStatus(t *testing.T) {
	b := New(seedTasks(), log.New())
	cols := b.View()
	if len(cols) != 4 {
		t.Fatalf("expected four columns, got %d", len(cols))
	}
	if got := len(columnFor(t, cols, domain.StatusTodo).Tasks); got != 2 {
		t.Fatalf("expected 2 TODO tasks, got %d", got)
	}
	if got := len(columnFor(t, cols, domain.StatusReview).Tasks); got != 1 {
		t.Fatalf("expected 1 REVIEW task, got %d", got)
	}
	if got := len(columnFor(t, cols, domain.StatusDone).Tasks); got != 0 {
		t.Fatalf("DONE column should be empty, got %d", got)
	}
}

func TestViewSearchIsCaseInsensitive(t *testing.T) {
	b := New(seedTasks(), log.New())
	b.SetSearch("alp")
	ids := visibleIDs(b.View())
	if len(ids) != 1 || ids[0] != "t1" {
		t.Fatalf(`search "alp" must match only Alpha, got %v`, ids)
	}

	// Description text matches too.
	b.SetSearch("LAST")
	ids = visibleIDs(b.View())
	if len(ids) != 1 || ids[0] != "t3" {
		t.Fatalf("search over descriptions failed, got %v", ids)
	}
}

func TestViewStatusFilter(t *testing.T) {
	b := New(seedTasks(), log.New())
	b.SetFilter(StatusFilter(domain.StatusReview))
	ids := visibleIDs(b.View())
	if len(ids) != 1 || ids[0] != "t2" {
		t.Fatalf("filter REVIEW should leave only t2, got %v", ids)
	}

	b.SetFilter(FilterAll)
	if got := len(visibleIDs(b.View())); got != 3 {
		t.Fatalf("FilterAll should restore everything, got %d", got)
	}
}

func TestViewSortOrders(t *testing.T) {
	b := New(seedTasks(), log.New())
	b.SetFilter(StatusFilter(domain.StatusTodo))

	cases := []struct {
		key  SortKey
		want []string
	}{
		{SortNewest, []string{"t3", "t1"}},
		{SortOldest, []string{"t1", "t3"}},
		{SortTitleAsc, []string{"t1", "t3"}},  // Alpha before Zeta
		{SortTitleDesc, []string{"t3", "t1"}}, // Zeta before Alpha
	}
	for _, tc := range cases {
		b.SetSort(tc.key)
		got := visibleIDs(b.View())
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.key, got, tc.want)
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: got %v, want %v", tc.key, got, tc.want)
			}
		}
	}
}

func TestViewDoesNotMutateMirror(t *testing.T) {
	tasks := seedTasks()
	b := New(tasks, log.New())
	b.SetSort(SortTitleAsc)
	b.SetSearch("e")
	_ = b.View()

	mirror := b.Tasks()
	for i := range tasks {
		if mirror[i].ID != tasks[i].ID {
			t.Fatalf("View must not reorder the mirror: %v", mirror)
		}
	}
}

func TestCreatePrependsOnSuccess(t *testing.T) {
	b := New(seedTasks(), log.New())
	api := &fakeAPI{
		createFn: func(title, description string, priority domain.Priority) (domain.Task, error) {
			return domain.Task{ID: "t4", Title: title, Description: description, Priority: priority, Status: domain.StatusTodo}, nil
		},
	}
	created, err := b.Create(context.Background(), api, "New", "Thing", domain.PriorityHigh)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	mirror := b.Tasks()
	if mirror[0].ID != created.ID {
		t.Fatalf("created task must be prepended, mirror head is %q", mirror[0].ID)
	}
	if len(mirror) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(mirror))
	}
}

func TestCreateFailureLeavesMirrorUnchanged(t *testing.T) {
	b := New(seedTasks(), log.New())
	api := &fakeAPI{
		createFn: func(string, string, domain.Priority) (domain.Task, error) {
			return domain.Task{}, errors.New("boom")
		},
	}
	if _, err := b.Create(context.Background(), api, "New", "Thing", domain.PriorityLow); err == nil {
		t.Fatal("expected error")
	}
	if len(b.Tasks()) != 3 {
		t.Fatalf("failed create must not touch the mirror, got %d tasks", len(b.Tasks()))
	}
}

func TestEditReplacesInPlace(t *testing.T) {
	b := New(seedTasks(), log.New())
	title := "Alpha v2"
	api := &fakeAPI{
		updateFn: func(id string, patch domain.TaskPatch) (domain.Task, error) {
			task, _ := b.byID(id)
			return patch.Apply(task), nil
		},
	}
	if _, err := b.Edit(context.Background(), api, "t1", domain.TaskPatch{Title: &title}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	mirror := b.Tasks()
	if mirror[2].ID != "t1" || mirror[2].Title != "Alpha v2" {
		t.Fatalf("edit must replace in place, got %+v", mirror[2])
	}
}

func TestDeleteFiltersOutOnSuccessOnly(t *testing.T) {
	b := New(seedTasks(), log.New())
	api := &fakeAPI{deleteFn: func(id string) error { return errors.New("boom") }}
	if err := b.Delete(context.Background(), api, "t2"); err == nil {
		t.Fatal("expected error")
	}
	if len(b.Tasks()) != 3 {
		t.Fatal("failed delete must keep the task")
	}

	api.deleteFn = func(id string) error { return nil }
	if err := b.Delete(context.Background(), api, "t2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, task := range b.Tasks() {
		if task.ID == "t2" {
			t.Fatal("deleted task still present")
		}
	}
}
