package domain

import "errors"

var (
	ErrInvalidUserID    = errors.New("invalid_user_id")
	ErrInvalidQueueType = errors.New("invalid_queue_type")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrUserNotFound     = errors.New("user_not_found")
	ErrAlreadyQueued    = errors.New("already_queued")
	ErrNotInQueue       = errors.New("not_in_queue")
	ErrPermissionDenied = errors.New("permission_denied")
	ErrEmptyQueue       = errors.New("empty_queue")
	ErrConflict         = errors.New("queue_conflict")
	ErrUnavailable      = errors.New("queue_unavailable")
)

// AlreadyQueuedError carries the ticket the user is already waiting on.
type AlreadyQueuedError struct {
	TicketNumber string
	Position     int
}

func (e *AlreadyQueuedError) Error() string {
	return ErrAlreadyQueued.Error()
}

func (e *AlreadyQueuedError) Is(target error) bool {
	return target == ErrAlreadyQueued
}
