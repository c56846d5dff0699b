package domain

import (
	"context"

	"github.com/google/uuid"
)

// SessionRepository is the single source of truth for sessions. All
// operations are atomic at the granularity of one full session document, and
// every write refreshes the session's time-to-live.
//
// Implementations: internal/memory (single process) and internal/redis
// (networked). The gateway and notifier are written against this contract so
// the backing store can be swapped without touching the allocation logic.
type SessionRepository interface {
	// Create stores a new empty session and returns it.
	Create(ctx context.Context) (*Session, error)

	// Get returns the session with the given id, or ErrSessionNotFound.
	Get(ctx context.Context, sessionID uuid.UUID) (*Session, error)

	// Replace overwrites the stored session document with the given one and
	// refreshes its TTL. Returns ErrSessionNotFound if the session does not
	// exist (or has expired).
	Replace(ctx context.Context, session *Session) (*Session, error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID uuid.UUID) error
}
