// Package app is the application layer: it orchestrates the repository, the
// allocation logic, the notifier, and the external collaborators, and it owns
// the per-session serialization that makes the conservation invariant hold
// under concurrent claims.
package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/LuisNabil29/billSplitter/internal/allocation"
	"github.com/LuisNabil29/billSplitter/internal/domain"
	"github.com/LuisNabil29/billSplitter/internal/metrics"
	"github.com/LuisNabil29/billSplitter/internal/notifier"
	"github.com/LuisNabil29/billSplitter/internal/vision"
)

const publishTimeout = 2 * time.Second

// SnapshotPublisher relays post-mutation snapshots to other instances.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snapshot *domain.Snapshot) error
}

// VisionService is the boundary to the OCR/vision collaborator.
type VisionService interface {
	ExtractItems(ctx context.Context, imageBase64, mimeType string) (*vision.Extraction, error)
	VerifyItems(ctx context.Context, items []domain.Item, imageBase64, mimeType string, totalFromReceipt float64) (*vision.Verification, error)
}

// Service orchestrates all session use cases. Every mutation follows the same
// path: lock the session, read, compute, replace (which refreshes the TTL),
// broadcast the fresh snapshot, unlock.
type Service struct {
	repo        domain.SessionRepository
	hub         *notifier.Hub
	publisher   SnapshotPublisher // nil when running single-instance
	vision      VisionService     // nil when no API key is configured
	clock       clockwork.Clock
	locks       *sessionLocks
	verifyGroup singleflight.Group
}

// NewService creates the application service. publisher and visionSvc may be
// nil.
func NewService(repo domain.SessionRepository, hub *notifier.Hub, publisher SnapshotPublisher, visionSvc VisionService, clock clockwork.Clock) *Service {
	return &Service{
		repo:      repo,
		hub:       hub,
		publisher: publisher,
		vision:    visionSvc,
		clock:     clock,
		locks:     newSessionLocks(),
	}
}

// CreateSession creates a new empty session.
func (s *Service) CreateSession(ctx context.Context) (*domain.Session, error) {
	session, err := s.repo.Create(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SessionsCreatedTotal.Inc()
	slog.Info("Session created", "session_id", session.ID.String())
	return session, nil
}

// DeleteSession removes a session explicitly, ahead of its TTL.
func (s *Service) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return err
	}
	slog.Info("Session deleted", "session_id", sessionID.String())
	return nil
}

// GetSnapshot returns the session with its derived per-participant totals.
func (s *Service) GetSnapshot(ctx context.Context, sessionID uuid.UUID) (*domain.Snapshot, error) {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return allocation.SnapshotOf(session), nil
}

// AddItems appends items to a session. Called by the OCR collaborator after
// extraction, or by a participant entering items manually.
func (s *Service) AddItems(ctx context.Context, sessionID uuid.UUID, drafts []domain.ItemDraft) (*domain.Snapshot, error) {
	if len(drafts) == 0 {
		return nil, allocation.NewValidationError("at least one item is required")
	}
	for _, draft := range drafts {
		if strings.TrimSpace(draft.Name) == "" {
			return nil, allocation.NewValidationError("item name must not be empty")
		}
	}
	return s.mutate(ctx, "add_items", sessionID, func(session *domain.Session) error {
		for _, draft := range drafts {
			quantity := draft.Quantity
			if quantity < 1 {
				quantity = 1
			}
			price := draft.UnitPrice
			if price < 0 {
				price = 0
			}
			session.Items = append(session.Items, domain.Item{
				ID:            uuid.New(),
				Name:          strings.TrimSpace(draft.Name),
				UnitPrice:     price,
				TotalQuantity: quantity,
			})
		}
		return nil
	})
}

// Join adds a participant to the session and returns both the participant and
// the refreshed snapshot.
func (s *Service) Join(ctx context.Context, sessionID uuid.UUID, name string) (*domain.Participant, *domain.Snapshot, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, nil, allocation.NewValidationError("participant name must not be empty")
	}

	participant := &domain.Participant{
		ID:       uuid.New(),
		Name:     trimmed,
		JoinedAt: s.clock.Now(),
	}
	snapshot, err := s.mutate(ctx, "join", sessionID, func(session *domain.Session) error {
		session.Participants = append(session.Participants, *participant)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return participant, snapshot, nil
}

// AssignQuantity runs the allocation engine for one claim.
func (s *Service) AssignQuantity(ctx context.Context, sessionID, itemID, participantID uuid.UUID, quantity float64) (*domain.Snapshot, error) {
	return s.mutate(ctx, "assign", sessionID, func(session *domain.Session) error {
		return allocation.AssignQuantity(session, itemID, participantID, quantity)
	})
}

// UpdateItem edits an item's name, price, and/or quantity.
func (s *Service) UpdateItem(ctx context.Context, sessionID, itemID uuid.UUID, update allocation.ItemUpdate) (*domain.Snapshot, error) {
	return s.mutate(ctx, "update_item", sessionID, func(session *domain.Session) error {
		return allocation.UpdateItem(session, itemID, update)
	})
}

// ApplySuggestedFix applies a verification issue's suggested values and
// clears the issue.
func (s *Service) ApplySuggestedFix(ctx context.Context, sessionID, itemID uuid.UUID) (*domain.Snapshot, error) {
	return s.mutate(ctx, "apply_fix", sessionID, func(session *domain.Session) error {
		return allocation.ApplySuggestedFix(session, itemID)
	})
}

// DismissIssue clears a verification issue without changing values.
func (s *Service) DismissIssue(ctx context.Context, sessionID, itemID uuid.UUID) (*domain.Snapshot, error) {
	return s.mutate(ctx, "dismiss_issue", sessionID, func(session *domain.Session) error {
		return allocation.DismissIssue(session, itemID)
	})
}

// mutate is the serialized read-compute-write-notify path shared by all
// mutating operations. fn runs against a private copy of the session; any
// error from fn aborts the mutation with nothing persisted.
func (s *Service) mutate(ctx context.Context, operation string, sessionID uuid.UUID, fn func(*domain.Session) error) (*domain.Snapshot, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	session.Revision++

	stored, err := s.repo.Replace(ctx, session)
	if err != nil {
		return nil, err
	}
	metrics.MutationsTotal.WithLabelValues(operation).Inc()

	snapshot := allocation.SnapshotOf(stored)
	s.hub.Broadcast(snapshot)
	s.publish(snapshot)
	return snapshot, nil
}

// publish relays the snapshot to other instances. Failures are logged, not
// surfaced: the local mutation and broadcast already succeeded.
func (s *Service) publish(snapshot *domain.Snapshot) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, snapshot); err != nil {
		slog.Warn("Failed to relay snapshot",
			"session_id", snapshot.Session.ID.String(),
			"error", err,
		)
	}
}
