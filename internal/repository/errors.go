package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a caller tries to mutate a record it
	// does not own (author-only edit/delete) or lacks the role for.
	ErrForbidden = errors.New("forbidden")
	// ErrChannelLocked is returned for member-authored sends into a locked
	// channel.
	ErrChannelLocked = errors.New("channel is locked")
)
