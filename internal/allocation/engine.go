package allocation

import (
	"github.com/google/uuid"

	"github.com/LuisNabil29/billSplitter/internal/domain"
)

// AssignQuantity sets the caller's claimed quantity on an item.
//
// The requested quantity is clamped to [0, available], where available is the
// item's total quantity minus what all other participants already hold. The
// caller's own prior claim does not count against them: repeating a call is
// idempotent and a new value replaces the old one (last write wins per
// caller). A clamped result of zero removes the assignment entirely.
//
// Concurrent callers must be serialized per session by the caller; under that
// serialization the conservation invariant
//
//	Σ assignments.quantity ≤ totalQuantity + ε
//
// holds at all times.
func AssignQuantity(s *domain.Session, itemID, participantID uuid.UUID, requested float64) error {
	item := s.Item(itemID)
	if item == nil {
		return domain.ErrItemNotFound
	}
	if s.Participant(participantID) == nil {
		return domain.ErrParticipantNotFound
	}

	var others float64
	for _, a := range item.Assignments {
		if a.ParticipantID != participantID {
			others += a.Quantity
		}
	}
	available := item.TotalQuantity - others

	quantity := requested
	if quantity < 0 {
		quantity = 0
	}
	if quantity > available+domain.QuantityEpsilon {
		quantity = available
	}

	if quantity == 0 {
		removeAssignment(item, participantID)
		return nil
	}
	upsertAssignment(item, participantID, quantity)
	return nil
}

func removeAssignment(item *domain.Item, participantID uuid.UUID) {
	kept := item.Assignments[:0]
	for _, a := range item.Assignments {
		if a.ParticipantID != participantID {
			kept = append(kept, a)
		}
	}
	item.Assignments = kept
}

func upsertAssignment(item *domain.Item, participantID uuid.UUID, quantity float64) {
	for idx := range item.Assignments {
		if item.Assignments[idx].ParticipantID == participantID {
			item.Assignments[idx].Quantity = quantity
			return
		}
	}
	item.Assignments = append(item.Assignments, domain.Assignment{
		ParticipantID: participantID,
		Quantity:      quantity,
	})
}
