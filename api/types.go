package api

import (
	"context"
	"time"

	"taskboard-api/domain"
)

// Store abstracts persistence for handlers.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	CreateTask(ctx context.Context, ownerID, title, description string, priority domain.Priority) (domain.Task, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Task, error)
	GetTaskByID(ctx context.Context, id string) (domain.Task, error)
	UpdateTask(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, ownerID, id string) error
}

// Sessions is implemented by types able to issue and validate session tokens.
type Sessions interface {
	Issue(user domain.User) (string, error)
	ClaimFromToken(ctx context.Context, token []byte) (Claim, error)
	Revoke(ctx context.Context, claim Claim) error
}

// Revoker marks session tokens as dead ahead of their expiry claim.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const requestBodyMaxSize = 64 * 1024 // 64 KiB

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string         `json:"message"`
	User    domain.Profile `json:"user"`
}

type createTaskRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority"`
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type taskResponse struct {
	Task domain.Task `json:"task"`
}

type messageResponse struct {
	Message string `json:"message"`
}
