package allocation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/LuisNabil29/billSplitter/internal/domain"
)

// ValidationError reports malformed or out-of-range input. Nothing is mutated
// when one is returned.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...any) error {
	return NewValidationError(format, args...)
}

// ItemUpdate carries the fields of an item edit. Nil fields are left
// untouched.
type ItemUpdate struct {
	Name     *string
	Price    *float64
	Quantity *float64
}

// UpdateItem applies an edit to an item's name, unit price and/or total
// quantity. Validation runs before any mutation: the name must be non-empty
// after trimming, the price non-negative, and the quantity at least 1.
//
// Lowering the total quantity below the sum of existing assignments is
// rejected: rescaling would silently change claims other participants made.
func UpdateItem(s *domain.Session, itemID uuid.UUID, update ItemUpdate) error {
	item := s.Item(itemID)
	if item == nil {
		return domain.ErrItemNotFound
	}

	var name string
	if update.Name != nil {
		name = strings.TrimSpace(*update.Name)
		if name == "" {
			return validationf("item name must not be empty")
		}
	}
	if update.Price != nil && *update.Price < 0 {
		return validationf("unit price must not be negative, got %g", *update.Price)
	}
	if update.Quantity != nil {
		if *update.Quantity < 1 {
			return validationf("quantity must be at least 1, got %g", *update.Quantity)
		}
		if assigned := item.AssignedQuantity(); *update.Quantity < assigned-domain.QuantityEpsilon {
			return validationf("quantity %g is below the %g already assigned; release assignments first", *update.Quantity, assigned)
		}
	}

	if update.Name != nil {
		item.Name = name
	}
	if update.Price != nil {
		item.UnitPrice = *update.Price
	}
	if update.Quantity != nil {
		item.TotalQuantity = *update.Quantity
	}
	return nil
}

// ApplySuggestedFix copies the verification issue's suggested price and/or
// quantity onto the item and clears the issue. The same quantity lower bound
// as UpdateItem applies: a fix that would drop the quantity below the already
// assigned sum is rejected and the issue stays in place.
func ApplySuggestedFix(s *domain.Session, itemID uuid.UUID) error {
	item := s.Item(itemID)
	if item == nil {
		return domain.ErrItemNotFound
	}
	issue := item.VerificationIssue
	if issue == nil {
		return validationf("item %q has no verification issue", item.Name)
	}
	if issue.SuggestedFix == nil {
		return validationf("verification issue on %q has no suggested fix", item.Name)
	}

	fix := issue.SuggestedFix
	if fix.Quantity != nil {
		if assigned := item.AssignedQuantity(); *fix.Quantity < assigned-domain.QuantityEpsilon {
			return validationf("suggested quantity %g is below the %g already assigned", *fix.Quantity, assigned)
		}
	}

	if fix.Price != nil {
		item.UnitPrice = *fix.Price
	}
	if fix.Quantity != nil {
		item.TotalQuantity = *fix.Quantity
	}
	item.VerificationIssue = nil
	return nil
}

// DismissIssue clears an item's verification issue without changing values.
func DismissIssue(s *domain.Session, itemID uuid.UUID) error {
	item := s.Item(itemID)
	if item == nil {
		return domain.ErrItemNotFound
	}
	if item.VerificationIssue == nil {
		return validationf("item %q has no verification issue", item.Name)
	}
	item.VerificationIssue = nil
	return nil
}
