package domain

import "time"

// Status identifies the board column a task lives in.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReview     Status = "REVIEW"
	StatusDone       Status = "DONE"
)

// Statuses lists every valid status in board column order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone}

// Valid reports whether s is one of the four recognized statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// Priority is the task urgency level.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is one of the three recognized priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// NormalizePriority maps absent or unrecognized values to MEDIUM. Rows stored
// before priority existed carry an empty value and normalize the same way.
func NormalizePriority(p Priority) Priority {
	if p.Valid() {
		return p
	}
	return PriorityMedium
}

// Task represents a single board item. UserID is the owner, assigned at
// creation and never reassigned.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
}
