package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"taskboard-api/domain"
)

// Tables persists tasks and users in Azure Table storage. Tasks are
// partitioned by owner id with the task id as row key, so listing a user's
// board is a single-partition query. Users are keyed by lowercased email.
type Tables struct {
	taskTable *aztables.Client
	userTable *aztables.Client
}

// NewTables creates a Tables store from the given connection string.
func NewTables(connStr, tasksTable, usersTable string) (*Tables, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Tables{
		taskTable: svc.NewClient(tasksTable),
		userTable: svc.NewClient(usersTable),
	}, nil
}

type taskEntity struct {
	aztables.Entity
	Title         string `json:"Title"`
	Description   string `json:"Description"`
	Status        string `json:"Status"`
	Priority      string `json:"Priority"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type,omitempty"`
}

// taskUpdate carries a merge update; only non-nil fields reach the table.
type taskUpdate struct {
	aztables.Entity
	Title       *string `json:"Title,omitempty"`
	Description *string `json:"Description,omitempty"`
	Status      *string `json:"Status,omitempty"`
	Priority    *string `json:"Priority,omitempty"`
}

type userEntity struct {
	aztables.Entity
	ID           string `json:"ID"`
	Name         string `json:"Name"`
	Email        string `json:"Email"`
	PasswordHash string `json:"PasswordHash"`
}

func (e taskEntity) toTask() domain.Task {
	return domain.Task{
		ID:          e.RowKey,
		Title:       e.Title,
		Description: e.Description,
		Status:      domain.Status(e.Status),
		Priority:    domain.NormalizePriority(domain.Priority(e.Priority)),
		UserID:      e.PartitionKey,
		CreatedAt:   time.Unix(0, e.CreatedAt).UTC(),
	}
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

// odataString quotes a value as an OData string literal. Embedded single
// quotes are doubled, so client-supplied ids cannot terminate the literal and
// smuggle extra predicates into the filter.
func odataString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func ownerFilter(ownerID string) string {
	return "PartitionKey eq " + odataString(ownerID)
}

func taskFilter(id string) string {
	return "RowKey eq " + odataString(id)
}

// GetUserByEmail looks up a user record by email.
func (t *Tables) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	key := strings.ToLower(email)
	ent, err := t.userTable.GetEntity(ctx, key, key, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	var u userEntity
	if err := json.Unmarshal(ent.Value, &u); err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: u.ID, Email: u.Email, Name: u.Name, PasswordHash: u.PasswordHash}, nil
}

// CreateTask inserts a new task owned by ownerID. Status is always TODO and
// an unrecognized priority falls back to MEDIUM.
func (t *Tables) CreateTask(ctx context.Context, ownerID, title, description string, priority domain.Priority) (domain.Task, error) {
	ent := taskEntity{
		Entity:        aztables.Entity{PartitionKey: ownerID, RowKey: uuid.NewString()},
		Title:         title,
		Description:   description,
		Status:        string(domain.StatusTodo),
		Priority:      string(domain.NormalizePriority(priority)),
		CreatedAt:     time.Now().UnixNano(),
		CreatedAtType: "Edm.Int64",
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := t.taskTable.AddEntity(ctx, payload, nil); err != nil {
		return domain.Task{}, err
	}
	return ent.toTask(), nil
}

// ListByOwner returns all tasks owned by ownerID, newest first.
func (t *Tables) ListByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	filter := ownerFilter(ownerID)
	pager := t.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, ent.toTask())
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

// GetTaskByID retrieves a task by row key regardless of owner. The table is
// partitioned by owner, so this is a cross-partition query; boards are small
// enough that the scan stays within a single page in practice.
func (t *Tables) GetTaskByID(ctx context.Context, id string) (domain.Task, error) {
	filter := taskFilter(id)
	pager := t.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return domain.Task{}, err
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return domain.Task{}, err
			}
			return ent.toTask(), nil
		}
	}
	return domain.Task{}, domain.ErrTaskNotFound
}

// UpdateTask merges the supplied patch fields into the stored entity and
// returns the updated task.
func (t *Tables) UpdateTask(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (domain.Task, error) {
	upd := taskUpdate{Entity: aztables.Entity{PartitionKey: ownerID, RowKey: id}}
	upd.Title = patch.Title
	upd.Description = patch.Description
	if patch.Status != nil {
		s := string(*patch.Status)
		upd.Status = &s
	}
	if patch.Priority != nil {
		p := string(*patch.Priority)
		upd.Priority = &p
	}
	payload, err := json.Marshal(upd)
	if err != nil {
		return domain.Task{}, err
	}
	et := azcore.ETagAny
	if _, err := t.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge}); err != nil {
		if isNotFound(err) {
			return domain.Task{}, domain.ErrTaskNotFound
		}
		return domain.Task{}, err
	}
	ent, err := t.taskTable.GetEntity(ctx, ownerID, id, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Task{}, domain.ErrTaskNotFound
		}
		return domain.Task{}, err
	}
	var stored taskEntity
	if err := json.Unmarshal(ent.Value, &stored); err != nil {
		return domain.Task{}, err
	}
	return stored.toTask(), nil
}

// DeleteTask removes a task. Removal is immediate; there is no soft delete.
func (t *Tables) DeleteTask(ctx context.Context, ownerID, id string) error {
	if _, err := t.taskTable.DeleteEntity(ctx, ownerID, id, nil); err != nil {
		if isNotFound(err) {
			return domain.ErrTaskNotFound
		}
		return err
	}
	return nil
}
