package domain

import "errors"

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrItemNotFound        = errors.New("item not found")
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrStoreUnavailable marks transient repository failures (timeouts,
	// unreachable backing store). Callers may retry the operation.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
