package domain

import "errors"

var (
	// ErrTaskNotFound is returned by stores when no task has the given id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrUserNotFound is returned by stores when no user has the given email.
	ErrUserNotFound = errors.New("user not found")
)
