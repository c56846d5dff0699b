package allocation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuisNabil29/billSplitter/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestUpdateItem_AllFields(t *testing.T) {
	session, itemID, _ := newTestSession(t, 10, 1)

	err := UpdateItem(session, itemID, ItemUpdate{
		Name:     ptr("  Craft Beer  "),
		Price:    ptr(5.20),
		Quantity: ptr(12.0),
	})
	require.NoError(t, err)

	item := session.Item(itemID)
	assert.Equal(t, "Craft Beer", item.Name)
	assert.Equal(t, 5.20, item.UnitPrice)
	assert.Equal(t, 12.0, item.TotalQuantity)
}

func TestUpdateItem_PartialUpdateLeavesRestUntouched(t *testing.T) {
	session, itemID, _ := newTestSession(t, 10, 1)

	require.NoError(t, UpdateItem(session, itemID, ItemUpdate{Price: ptr(9.99)}))

	item := session.Item(itemID)
	assert.Equal(t, "Beer", item.Name)
	assert.Equal(t, 9.99, item.UnitPrice)
	assert.Equal(t, 10.0, item.TotalQuantity)
}

func TestUpdateItem_Validation(t *testing.T) {
	session, itemID, _ := newTestSession(t, 10, 1)

	tests := []struct {
		name   string
		update ItemUpdate
	}{
		{"empty name", ItemUpdate{Name: ptr("   ")}},
		{"negative price", ItemUpdate{Price: ptr(-1.0)}},
		{"quantity below one", ItemUpdate{Quantity: ptr(0.5)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := UpdateItem(session, itemID, tc.update)
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)

			// Nothing changed.
			item := session.Item(itemID)
			assert.Equal(t, "Beer", item.Name)
			assert.Equal(t, 4.50, item.UnitPrice)
			assert.Equal(t, 10.0, item.TotalQuantity)
		})
	}
}

func TestUpdateItem_RejectsQuantityBelowAssigned(t *testing.T) {
	session, itemID, pids := newTestSession(t, 10, 2)
	require.NoError(t, AssignQuantity(session, itemID, pids[0], 4))
	require.NoError(t, AssignQuantity(session, itemID, pids[1], 3))

	err := UpdateItem(session, itemID, ItemUpdate{Quantity: ptr(5.0)})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)

	item := session.Item(itemID)
	assert.Equal(t, 10.0, item.TotalQuantity)
	assert.Equal(t, 4.0, item.AssignedTo(pids[0]))
	assert.Equal(t, 3.0, item.AssignedTo(pids[1]))
}

func TestUpdateItem_AllowsQuantityDownToAssignedSum(t *testing.T) {
	session, itemID, pids := newTestSession(t, 10, 1)
	require.NoError(t, AssignQuantity(session, itemID, pids[0], 7))

	require.NoError(t, UpdateItem(session, itemID, ItemUpdate{Quantity: ptr(7.0)}))
	assert.Equal(t, 7.0, session.Item(itemID).TotalQuantity)
}

func TestUpdateItem_UnknownItem(t *testing.T) {
	session, _, _ := newTestSession(t, 10, 1)

	err := UpdateItem(session, uuid.New(), ItemUpdate{Price: ptr(1.0)})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func flaggedSession(t *testing.T, fix *domain.SuggestedFix) (*domain.Session, uuid.UUID, []uuid.UUID) {
	t.Helper()
	session, itemID, pids := newTestSession(t, 10, 1)
	session.Item(itemID).VerificationIssue = &domain.VerificationIssue{
		Kind:         domain.IssueUnitPriceMismatch,
		Message:      "printed unit price is 2.25",
		SuggestedFix: fix,
	}
	return session, itemID, pids
}

func TestApplySuggestedFix_AppliesValuesAndClearsIssue(t *testing.T) {
	session, itemID, _ := flaggedSession(t, &domain.SuggestedFix{
		Price:    ptr(2.25),
		Quantity: ptr(2.0),
	})

	require.NoError(t, ApplySuggestedFix(session, itemID))

	item := session.Item(itemID)
	assert.Equal(t, 2.25, item.UnitPrice)
	assert.Equal(t, 2.0, item.TotalQuantity)
	assert.Nil(t, item.VerificationIssue)
}

func TestApplySuggestedFix_PriceOnly(t *testing.T) {
	session, itemID, _ := flaggedSession(t, &domain.SuggestedFix{Price: ptr(2.25)})

	require.NoError(t, ApplySuggestedFix(session, itemID))

	item := session.Item(itemID)
	assert.Equal(t, 2.25, item.UnitPrice)
	assert.Equal(t, 10.0, item.TotalQuantity)
}

func TestApplySuggestedFix_RejectsQuantityBelowAssigned(t *testing.T) {
	session, itemID, pids := flaggedSession(t, &domain.SuggestedFix{Quantity: ptr(2.0)})
	require.NoError(t, AssignQuantity(session, itemID, pids[0], 5))

	err := ApplySuggestedFix(session, itemID)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)

	// Issue stays in place so the user can release claims and retry.
	item := session.Item(itemID)
	assert.NotNil(t, item.VerificationIssue)
	assert.Equal(t, 10.0, item.TotalQuantity)
}

func TestApplySuggestedFix_NoIssue(t *testing.T) {
	session, itemID, _ := newTestSession(t, 10, 1)

	err := ApplySuggestedFix(session, itemID)
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestApplySuggestedFix_IssueWithoutFix(t *testing.T) {
	session, itemID, _ := flaggedSession(t, nil)

	err := ApplySuggestedFix(session, itemID)
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.NotNil(t, session.Item(itemID).VerificationIssue)
}

func TestDismissIssue(t *testing.T) {
	session, itemID, _ := flaggedSession(t, &domain.SuggestedFix{Price: ptr(2.25)})

	require.NoError(t, DismissIssue(session, itemID))

	item := session.Item(itemID)
	assert.Nil(t, item.VerificationIssue)
	// Values untouched.
	assert.Equal(t, 4.50, item.UnitPrice)
	assert.Equal(t, 10.0, item.TotalQuantity)
}

func TestDismissIssue_NoIssue(t *testing.T) {
	session, itemID, _ := newTestSession(t, 10, 1)

	err := DismissIssue(session, itemID)
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}
