package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"taskboard-api/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	password_hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	priority TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
`

// SQLite is the local-development store. It implements the same operations as
// Tables over a single database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and if needed initializes) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", path+sep+"_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("verify sqlite connection: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for seeding and tests.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// GetUserByEmail looks up a user record by email, case-insensitively.
func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, name, password_hash FROM users WHERE email = ?", strings.ToLower(email))
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash); err != nil {
		if err == sql.ErrNoRows {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

// CreateTask inserts a new task owned by ownerID with status TODO.
func (s *SQLite) CreateTask(ctx context.Context, ownerID, title, description string, priority domain.Priority) (domain.Task, error) {
	t := domain.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Status:      domain.StatusTodo,
		Priority:    domain.NormalizePriority(priority),
		UserID:      ownerID,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks (id, title, description, status, priority, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.UserID, t.CreatedAt.UnixNano())
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// ListByOwner returns all tasks owned by ownerID, newest first.
func (s *SQLite) ListByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, description, status, priority, user_id, created_at FROM tasks WHERE user_id = ? ORDER BY created_at DESC",
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTaskByID retrieves a single task regardless of owner.
func (s *SQLite) GetTaskByID(ctx context.Context, id string) (domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, description, status, priority, user_id, created_at FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Task{}, domain.ErrTaskNotFound
		}
		return domain.Task{}, err
	}
	return t, nil
}

// UpdateTask applies the supplied patch fields and returns the updated task.
func (s *SQLite) UpdateTask(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (domain.Task, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*patch.Priority))
	}
	if len(sets) > 0 {
		args = append(args, id, ownerID)
		res, err := s.db.ExecContext(ctx,
			"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ? AND user_id = ?", args...)
		if err != nil {
			return domain.Task{}, err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.Task{}, domain.ErrTaskNotFound
		}
	}
	return s.GetTaskByID(ctx, id)
}

// DeleteTask removes a task. Removal is immediate; there is no soft delete.
func (s *SQLite) DeleteTask(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ? AND user_id = ?", id, ownerID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var status, priority string
	var createdAt int64
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &t.UserID, &createdAt); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.Status(status)
	t.Priority = domain.NormalizePriority(domain.Priority(priority))
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	return t, nil
}
