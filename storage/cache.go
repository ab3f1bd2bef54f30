package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

type backend interface {
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	CreateTask(ctx context.Context, ownerID, title, description string, priority domain.Priority) (domain.Task, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Task, error)
	GetTaskByID(ctx context.Context, id string) (domain.Task, error)
	UpdateTask(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, ownerID, id string) error
}

// Cache wraps a store with Redis-backed caching of per-owner task lists.
// Every mutation evicts the owner's cached list so reads never serve a board
// the server has moved past.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return c.base.GetUserByEmail(ctx, email)
}

func (c *Cache) GetTaskByID(ctx context.Context, id string) (domain.Task, error) {
	return c.base.GetTaskByID(ctx, id)
}

func (c *Cache) ListByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	if tasks, ok := c.loadFromCache(ctx, ownerID); ok {
		return tasks, nil
	}
	tasks, err := c.base.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, ownerID, tasks)
	return tasks, nil
}

func (c *Cache) CreateTask(ctx context.Context, ownerID, title, description string, priority domain.Priority) (domain.Task, error) {
	task, err := c.base.CreateTask(ctx, ownerID, title, description, priority)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, ownerID)
	return task, nil
}

func (c *Cache) UpdateTask(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (domain.Task, error) {
	task, err := c.base.UpdateTask(ctx, ownerID, id, patch)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, ownerID)
	return task, nil
}

func (c *Cache) DeleteTask(ctx context.Context, ownerID, id string) error {
	if err := c.base.DeleteTask(ctx, ownerID, id); err != nil {
		return err
	}
	c.evict(ctx, ownerID)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, ownerID string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(ownerID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(ownerID)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(ownerID)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, ownerID string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(ownerID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, ownerID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(ownerID)).Result()
}

func tasksCacheKey(ownerID string) string {
	return "tasks:" + ownerID
}
