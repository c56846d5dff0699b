// Package memory provides the single-process, in-memory implementation of
// domain.SessionRepository. Sessions live in a map guarded by a RWMutex and
// expire after a TTL measured from the last write; a janitor goroutine sweeps
// expired entries, and reads also check expiry lazily so a stopped janitor
// never serves stale sessions.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/LuisNabil29/billSplitter/internal/domain"
	"github.com/LuisNabil29/billSplitter/internal/metrics"
)

const janitorInterval = time.Minute

type entry struct {
	session   *domain.Session
	expiresAt time.Time
}

// SessionRepo is an in-memory domain.SessionRepository.
type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]entry
	ttl      time.Duration
	clock    clockwork.Clock

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSessionRepo creates a repository whose sessions expire ttl after their
// last write, and starts the expiry janitor.
func NewSessionRepo(ttl time.Duration, clock clockwork.Clock) *SessionRepo {
	r := &SessionRepo{
		sessions: make(map[uuid.UUID]entry),
		ttl:      ttl,
		clock:    clock,
		stopCh:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.janitor()
	return r
}

// Create stores a new empty session.
func (r *SessionRepo) Create(ctx context.Context) (*domain.Session, error) {
	now := r.clock.Now()
	session := &domain.Session{
		ID:        uuid.New(),
		CreatedAt: now,
	}

	r.mu.Lock()
	r.sessions[session.ID] = entry{session: session.Clone(), expiresAt: now.Add(r.ttl)}
	r.mu.Unlock()

	return session, nil
}

// Get returns a copy of the session, or domain.ErrSessionNotFound.
func (r *SessionRepo) Get(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	r.mu.RLock()
	e, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok || !r.clock.Now().Before(e.expiresAt) {
		return nil, domain.ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

// Replace overwrites the stored document and refreshes its TTL.
func (r *SessionRepo) Replace(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[session.ID]
	if !ok || !now.Before(e.expiresAt) {
		return nil, domain.ErrSessionNotFound
	}
	r.sessions[session.ID] = entry{session: session.Clone(), expiresAt: now.Add(r.ttl)}
	return session, nil
}

// Delete removes the session. Deleting a missing session is a no-op.
func (r *SessionRepo) Delete(ctx context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	return nil
}

// Len returns the number of live (unexpired) sessions.
func (r *SessionRepo) Len() int {
	now := r.clock.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.sessions {
		if now.Before(e.expiresAt) {
			count++
		}
	}
	return count
}

// Stop terminates the janitor goroutine.
func (r *SessionRepo) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *SessionRepo) janitor() {
	defer r.wg.Done()

	ticker := r.clock.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

func (r *SessionRepo) sweep() {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.sessions {
		if !now.Before(e.expiresAt) {
			delete(r.sessions, id)
			metrics.SessionsExpiredTotal.Inc()
			slog.Debug("Session expired", "session_id", id.String())
		}
	}
}
