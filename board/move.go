package board

import (
	"context"
	"errors"

	"taskboard-api/domain"
)

var (
	// ErrUnknownTask is returned when the dragged id is not in the mirror.
	ErrUnknownTask = errors.New("unknown task")
	// ErrUnknownTarget is returned when the drop target resolves to neither
	// a column nor a task.
	ErrUnknownTarget = errors.New("unknown drop target")
)

// MoveState tracks one pending status mutation through its round trip.
type MoveState string

const (
	// MoveNoop means the drop resolved to the task's current status.
	MoveNoop MoveState = "noop"
	// MovePending means the optimistic update is applied locally and the
	// round trip has not resolved yet.
	MovePending MoveState = "pending"
	// MoveApplied means the server accepted the new status.
	MoveApplied MoveState = "applied"
	// MoveRolledBack means the round trip failed and the pre-drag status
	// was restored.
	MoveRolledBack MoveState = "rolled_back"
)

// Move records a drag-driven status transition. From is the pre-drag snapshot
// kept until the round trip resolves.
type Move struct {
	TaskID string
	From   domain.Status
	To     domain.Status
	State  MoveState
}

// ResolveDrop maps a drop target id to a status: column ids resolve directly,
// task ids resolve transitively to the status of the task dropped onto.
func (b *Board) ResolveDrop(targetID string) (domain.Status, error) {
	if s := domain.Status(targetID); s.Valid() {
		return s, nil
	}
	if target, ok := b.byID(targetID); ok {
		return target.Status, nil
	}
	return "", ErrUnknownTarget
}

// Drop performs a drag-driven status transition: the mirror changes
// immediately, then the update request is issued. When the request fails the
// pre-drag status is restored exactly, so the board always converges back to
// the last state the server accepted. A drop onto the task's own column is a
// no-op with no request issued.
func (b *Board) Drop(ctx context.Context, api API, taskID, targetID string) (Move, error) {
	task, ok := b.byID(taskID)
	if !ok {
		return Move{}, ErrUnknownTask
	}
	to, err := b.ResolveDrop(targetID)
	if err != nil {
		return Move{}, err
	}

	move := Move{TaskID: taskID, From: task.Status, To: to}
	if task.Status == to {
		move.State = MoveNoop
		return move, nil
	}

	b.setStatus(taskID, to)
	move.State = MovePending

	updated, err := api.UpdateStatus(ctx, taskID, to)
	if err != nil {
		b.setStatus(taskID, move.From)
		move.State = MoveRolledBack
		b.logger.WithError(err).WithField("task", taskID).Error("board: status update failed, rolled back")
		return move, err
	}

	// Reconcile against the task the server returned rather than the local
	// guess, in case other fields changed server-side.
	b.replace(updated)
	move.State = MoveApplied
	return move, nil
}
