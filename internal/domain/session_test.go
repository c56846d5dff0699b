package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemHelpers(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	item := Item{
		ID:            uuid.New(),
		TotalQuantity: 10,
		Assignments: []Assignment{
			{ParticipantID: alice, Quantity: 3},
			{ParticipantID: bob, Quantity: 2.5},
		},
	}

	assert.Equal(t, 5.5, item.AssignedQuantity())
	assert.Equal(t, 3.0, item.AssignedTo(alice))
	assert.Equal(t, 0.0, item.AssignedTo(uuid.New()))
	assert.Equal(t, 4.5, item.AvailableQuantity())
}

func TestSessionLookups(t *testing.T) {
	itemID := uuid.New()
	participantID := uuid.New()
	session := &Session{
		ID:           uuid.New(),
		Items:        []Item{{ID: itemID, Name: "Beer"}},
		Participants: []Participant{{ID: participantID, Name: "Alice"}},
	}

	require.NotNil(t, session.Item(itemID))
	assert.Equal(t, "Beer", session.Item(itemID).Name)
	assert.Nil(t, session.Item(uuid.New()))

	require.NotNil(t, session.Participant(participantID))
	assert.Nil(t, session.Participant(uuid.New()))

	// Lookups return pointers into the session, so edits stick.
	session.Item(itemID).UnitPrice = 4.50
	assert.Equal(t, 4.50, session.Items[0].UnitPrice)
}

func TestClone_IsDeep(t *testing.T) {
	price := 2.25
	quantity := 2.0
	original := &Session{
		ID:       uuid.New(),
		Revision: 4,
		Items: []Item{{
			ID:            uuid.New(),
			Name:          "Beer",
			TotalQuantity: 10,
			Assignments:   []Assignment{{ParticipantID: uuid.New(), Quantity: 3}},
			VerificationIssue: &VerificationIssue{
				Kind:         IssueUnitPriceMismatch,
				Message:      "printed unit price is 2.25",
				SuggestedFix: &SuggestedFix{Price: &price, Quantity: &quantity},
			},
		}},
		Participants: []Participant{{ID: uuid.New(), Name: "Alice"}},
	}

	clone := original.Clone()
	require.Equal(t, original, clone)

	clone.Items[0].Assignments[0].Quantity = 99
	clone.Items[0].VerificationIssue.Message = "changed"
	*clone.Items[0].VerificationIssue.SuggestedFix.Price = 0.01
	clone.Participants[0].Name = "Mallory"

	assert.Equal(t, 3.0, original.Items[0].Assignments[0].Quantity)
	assert.Equal(t, "printed unit price is 2.25", original.Items[0].VerificationIssue.Message)
	assert.Equal(t, 2.25, *original.Items[0].VerificationIssue.SuggestedFix.Price)
	assert.Equal(t, "Alice", original.Participants[0].Name)
}

func TestClone_NilIssue(t *testing.T) {
	original := &Session{
		ID:    uuid.New(),
		Items: []Item{{ID: uuid.New(), Name: "Beer"}},
	}
	clone := original.Clone()
	assert.Nil(t, clone.Items[0].VerificationIssue)
}
