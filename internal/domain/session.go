package domain

import (
	"time"

	"github.com/google/uuid"
)

// QuantityEpsilon absorbs floating-point drift when comparing accumulated
// assignment quantities against an item's total quantity.
const QuantityEpsilon = 0.001

// IssueKind categorizes a verification issue raised by the vision collaborator.
type IssueKind string

const (
	IssueUnitPriceMismatch  IssueKind = "unit_price_mismatch"
	IssueSumMismatch        IssueKind = "sum_mismatch"
	IssueSuspiciousQuantity IssueKind = "suspicious_quantity"
)

// SuggestedFix is an optional corrected price and/or quantity attached to a
// verification issue. Nil fields mean "no change suggested".
type SuggestedFix struct {
	Price    *float64 `json:"price,omitempty"`
	Quantity *float64 `json:"quantity,omitempty"`
}

// VerificationIssue flags an item whose extracted values look wrong. It is set
// by the verification pass and cleared when the user applies the suggested fix
// or dismisses it.
type VerificationIssue struct {
	Kind         IssueKind     `json:"kind"`
	Message      string        `json:"message"`
	SuggestedFix *SuggestedFix `json:"suggestedFix,omitempty"`
}

// Assignment is one participant's claimed quantity of an item. An assignment
// with quantity zero is removed, never stored.
type Assignment struct {
	ParticipantID uuid.UUID `json:"participantId"`
	Quantity      float64   `json:"quantity"`
}

// Item is one line entry from the receipt.
type Item struct {
	ID                uuid.UUID          `json:"id"`
	Name              string             `json:"name"`
	UnitPrice         float64            `json:"unitPrice"`
	TotalQuantity     float64            `json:"totalQuantity"`
	Assignments       []Assignment       `json:"assignments"`
	VerificationIssue *VerificationIssue `json:"verificationIssue,omitempty"`
}

// AssignedQuantity returns the sum of all assignment quantities on the item.
func (i *Item) AssignedQuantity() float64 {
	var sum float64
	for _, a := range i.Assignments {
		sum += a.Quantity
	}
	return sum
}

// AssignedTo returns the quantity the given participant holds on the item.
func (i *Item) AssignedTo(participantID uuid.UUID) float64 {
	for _, a := range i.Assignments {
		if a.ParticipantID == participantID {
			return a.Quantity
		}
	}
	return 0
}

// AvailableQuantity returns how much of the item is still unclaimed.
func (i *Item) AvailableQuantity() float64 {
	return i.TotalQuantity - i.AssignedQuantity()
}

// Participant is someone who joined the session. Participants are never
// deleted while the session lives.
type Participant struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Session is one bill-splitting instance: the items extracted from a receipt,
// the people splitting it, and their claims. Sessions are owned by the
// repository and mutated only through gateway-invoked operations; Revision
// increases by one on every successful mutation.
type Session struct {
	ID           uuid.UUID     `json:"id"`
	CreatedAt    time.Time     `json:"createdAt"`
	Revision     uint64        `json:"revision"`
	Items        []Item        `json:"items"`
	Participants []Participant `json:"participants"`
}

// Item returns a pointer to the item with the given id, or nil.
func (s *Session) Item(itemID uuid.UUID) *Item {
	for idx := range s.Items {
		if s.Items[idx].ID == itemID {
			return &s.Items[idx]
		}
	}
	return nil
}

// Participant returns a pointer to the participant with the given id, or nil.
func (s *Session) Participant(participantID uuid.UUID) *Participant {
	for idx := range s.Participants {
		if s.Participants[idx].ID == participantID {
			return &s.Participants[idx]
		}
	}
	return nil
}

// Clone returns a deep copy of the session. Repositories hand out clones so
// callers can never alias stored state.
func (s *Session) Clone() *Session {
	out := &Session{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		Revision:     s.Revision,
		Items:        make([]Item, len(s.Items)),
		Participants: make([]Participant, len(s.Participants)),
	}
	copy(out.Participants, s.Participants)
	for idx, item := range s.Items {
		cloned := item
		cloned.Assignments = make([]Assignment, len(item.Assignments))
		copy(cloned.Assignments, item.Assignments)
		if item.VerificationIssue != nil {
			issue := *item.VerificationIssue
			if item.VerificationIssue.SuggestedFix != nil {
				fix := *item.VerificationIssue.SuggestedFix
				if fix.Price != nil {
					p := *fix.Price
					fix.Price = &p
				}
				if fix.Quantity != nil {
					q := *fix.Quantity
					fix.Quantity = &q
				}
				issue.SuggestedFix = &fix
			}
			cloned.VerificationIssue = &issue
		}
		out.Items[idx] = cloned
	}
	return out
}
