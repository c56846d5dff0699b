package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/LuisNabil29/billSplitter/internal/domain"
)

// Key schema:
//   session:{sessionID} — JSON session document, expiring TTL after last write

func sessionKey(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}

// SessionRepo is the Redis-backed domain.SessionRepository. Expiry is
// delegated to Redis key TTLs; every Replace rewrites the document with a
// fresh TTL.
type SessionRepo struct {
	rdb   *goredis.Client
	ttl   time.Duration
	clock clockwork.Clock
}

// NewSessionRepo creates a repository whose sessions expire ttl after their
// last write.
func NewSessionRepo(rdb *goredis.Client, ttl time.Duration, clock clockwork.Clock) *SessionRepo {
	return &SessionRepo{rdb: rdb, ttl: ttl, clock: clock}
}

// Create stores a new empty session document.
func (r *SessionRepo) Create(ctx context.Context) (*domain.Session, error) {
	session := &domain.Session{
		ID:        uuid.New(),
		CreatedAt: r.clock.Now(),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.rdb.Set(ctx, sessionKey(session.ID), data, r.ttl).Err(); err != nil {
		return nil, storeErr("set", err)
	}
	return session, nil
}

// Get loads the session document, or domain.ErrSessionNotFound.
func (r *SessionRepo) Get(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	data, err := r.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, storeErr("get", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", sessionID, err)
	}
	return &session, nil
}

// Replace overwrites the document and refreshes its TTL. The XX flag makes
// the overwrite conditional on the key still existing, so a replace can never
// resurrect an expired or deleted session.
func (r *SessionRepo) Replace(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	set, err := r.rdb.SetXX(ctx, sessionKey(session.ID), data, r.ttl).Result()
	if err != nil {
		return nil, storeErr("setxx", err)
	}
	if !set {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Delete removes the session document.
func (r *SessionRepo) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if err := r.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return storeErr("del", err)
	}
	return nil
}

// storeErr wraps a Redis failure as a transient store error so callers can
// map it to a retryable outcome.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}
