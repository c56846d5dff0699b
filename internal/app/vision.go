package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/LuisNabil29/billSplitter/internal/domain"
	"github.com/LuisNabil29/billSplitter/internal/vision"
)

// ErrVisionDisabled is returned when no vision collaborator is configured.
var ErrVisionDisabled = errors.New("vision features are not configured")

// UploadResult is the outcome of creating a session from a receipt photo.
type UploadResult struct {
	Snapshot           *domain.Snapshot
	TotalOnReceipt     float64
	TotalCalculated    float64
	ValidationAttempts int
	TotalsMatch        bool
}

// VerifyResult is the outcome of re-checking a session's items against the
// receipt image.
type VerifyResult struct {
	Snapshot        *domain.Snapshot
	IssueCount      int
	TotalExpected   float64
	TotalCalculated float64
}

// UploadReceipt reads line items off a receipt photo and creates a new
// session pre-populated with them.
func (s *Service) UploadReceipt(ctx context.Context, imageBase64, mimeType string) (*UploadResult, error) {
	if s.vision == nil {
		return nil, ErrVisionDisabled
	}

	extraction, err := s.vision.ExtractItems(ctx, imageBase64, mimeType)
	if err != nil {
		return nil, err
	}
	if len(extraction.Items) == 0 {
		return nil, vision.ErrNoItems
	}

	session, err := s.CreateSession(ctx)
	if err != nil {
		return nil, err
	}

	drafts := make([]domain.ItemDraft, len(extraction.Items))
	for idx, item := range extraction.Items {
		drafts[idx] = domain.ItemDraft{
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
		}
	}
	snapshot, err := s.AddItems(ctx, session.ID, drafts)
	if err != nil {
		return nil, err
	}

	slog.Info("Receipt extracted into session",
		"session_id", session.ID.String(),
		"items", len(extraction.Items),
		"totals_match", extraction.TotalsMatch,
		"validation_attempts", extraction.ValidationAttempts,
	)
	return &UploadResult{
		Snapshot:           snapshot,
		TotalOnReceipt:     extraction.TotalOnReceipt,
		TotalCalculated:    extraction.TotalCalculated,
		ValidationAttempts: extraction.ValidationAttempts,
		TotalsMatch:        extraction.TotalsMatch,
	}, nil
}

// VerifyReceipt re-checks the session's current items against the receipt
// image and stores a verification issue on each flagged item. Values are not
// changed here; corrections flow through ApplySuggestedFix. Concurrent
// verifications of the same session collapse into one model call.
func (s *Service) VerifyReceipt(ctx context.Context, sessionID uuid.UUID, imageBase64, mimeType string, totalFromReceipt float64) (*VerifyResult, error) {
	if s.vision == nil {
		return nil, ErrVisionDisabled
	}

	result, err, _ := s.verifyGroup.Do(sessionID.String(), func() (any, error) {
		session, err := s.repo.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if len(session.Items) == 0 {
			return nil, vision.ErrNoItems
		}

		verification, err := s.vision.VerifyItems(ctx, session.Items, imageBase64, mimeType, totalFromReceipt)
		if err != nil {
			return nil, err
		}

		// Items are matched by id, not index: the session may have
		// changed while the model call was in flight.
		itemIDs := make([]uuid.UUID, len(session.Items))
		for idx, item := range session.Items {
			itemIDs[idx] = item.ID
		}

		snapshot, err := s.mutate(ctx, "verify", sessionID, func(current *domain.Session) error {
			for idx, verified := range verification.Items {
				item := current.Item(itemIDs[idx])
				if item == nil {
					continue
				}
				item.VerificationIssue = verified.Issue
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		issueCount := verification.IssueCount()
		slog.Info("Receipt verified",
			"session_id", sessionID.String(),
			"issues", issueCount,
		)
		return &VerifyResult{
			Snapshot:        snapshot,
			IssueCount:      issueCount,
			TotalExpected:   verification.TotalExpected,
			TotalCalculated: verification.TotalCalculated,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*VerifyResult), nil
}
