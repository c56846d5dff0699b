package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LuisNabil29/billSplitter/internal/domain"
)

const verifySystemPrompt = `You are double-checking line items previously
extracted from a restaurant receipt against the original image.

You receive the current item list as JSON. For EACH item, in the same order,
verify its unit price and quantity against the image. Flag an item when:
- "unit_price_mismatch": the stored price does not match the printed unit
  price (a line total mistaken for a unit price is the common case).
- "sum_mismatch": the item's price x quantity disagrees with the printed line
  amount, or the overall receipt total disagrees with the sum of all items
  beyond +/-0.50.
- "suspicious_quantity": the quantity looks wrong for what the image shows.

Respond ONLY with valid JSON in this exact format, with exactly one entry per
input item, in input order:
{
  "items": [
    {
      "price": 25.50,
      "quantity": 2,
      "issue": {
        "kind": "unit_price_mismatch",
        "message": "printed unit price is 25.50, stored 51.00",
        "suggested_price": 25.50,
        "suggested_quantity": 2
      }
    },
    {"price": 15.00, "quantity": 1, "issue": null}
  ],
  "total_expected": 56.00,
  "total_calculated": 56.00
}

RULES:
- "price" and "quantity" are the values you verified from the image.
- "issue" is null for items that check out.
- "suggested_price"/"suggested_quantity" are optional corrected values.
- Keep messages short and concrete.`

// Verification is the result of re-checking extracted items against the
// receipt image. Items appear in the same order as the input.
type Verification struct {
	Items           []VerifiedItem
	TotalExpected   float64
	TotalCalculated float64
}

// VerifiedItem carries the verified values and an issue when the stored item
// looks wrong. Issue is nil for items that check out.
type VerifiedItem struct {
	Price    float64
	Quantity float64
	Issue    *domain.VerificationIssue
}

// IssueCount returns how many items were flagged.
func (v *Verification) IssueCount() int {
	count := 0
	for _, item := range v.Items {
		if item.Issue != nil {
			count++
		}
	}
	return count
}

// VerifyItems re-checks the given items against the receipt image.
// totalFromReceipt is the total the uploader read off the receipt; zero means
// unknown.
func (c *Client) VerifyItems(ctx context.Context, items []domain.Item, imageBase64, mimeType string, totalFromReceipt float64) (*Verification, error) {
	input := make([]map[string]any, len(items))
	for idx, item := range items {
		input[idx] = map[string]any{
			"name":     item.Name,
			"price":    item.UnitPrice,
			"quantity": item.TotalQuantity,
		}
	}
	inputJSON, err := json.Marshal(map[string]any{
		"items":              input,
		"total_from_receipt": totalFromReceipt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verification input: %w", err)
	}

	content, err := c.complete(ctx, "verify", verifySystemPrompt,
		"Verify these previously extracted items against the receipt image:\n"+string(inputJSON),
		imageBase64, mimeType)
	if err != nil {
		return nil, err
	}
	return parseVerification(content, len(items))
}

type verificationPayload struct {
	Items []struct {
		Price    float64 `json:"price"`
		Quantity float64 `json:"quantity"`
		Issue    *struct {
			Kind              string   `json:"kind"`
			Message           string   `json:"message"`
			SuggestedPrice    *float64 `json:"suggested_price"`
			SuggestedQuantity *float64 `json:"suggested_quantity"`
		} `json:"issue"`
	} `json:"items"`
	TotalExpected   float64 `json:"total_expected"`
	TotalCalculated float64 `json:"total_calculated"`
}

func parseVerification(content []byte, itemCount int) (*Verification, error) {
	var payload verificationPayload
	if err := json.Unmarshal(content, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse verification response: %w", err)
	}
	if len(payload.Items) != itemCount {
		return nil, fmt.Errorf("verification returned %d items, expected %d", len(payload.Items), itemCount)
	}

	result := &Verification{
		TotalExpected:   payload.TotalExpected,
		TotalCalculated: payload.TotalCalculated,
	}
	for _, item := range payload.Items {
		verified := VerifiedItem{Price: item.Price, Quantity: item.Quantity}
		if item.Issue != nil {
			kind, ok := issueKind(item.Issue.Kind)
			if ok {
				issue := &domain.VerificationIssue{
					Kind:    kind,
					Message: strings.TrimSpace(item.Issue.Message),
				}
				if item.Issue.SuggestedPrice != nil || item.Issue.SuggestedQuantity != nil {
					issue.SuggestedFix = &domain.SuggestedFix{
						Price:    item.Issue.SuggestedPrice,
						Quantity: item.Issue.SuggestedQuantity,
					}
				}
				verified.Issue = issue
			}
		}
		result.Items = append(result.Items, verified)
	}
	return result, nil
}

// issueKind maps a model-reported kind onto the known issue kinds; unknown
// kinds are discarded rather than stored.
func issueKind(raw string) (domain.IssueKind, bool) {
	switch domain.IssueKind(strings.TrimSpace(raw)) {
	case domain.IssueUnitPriceMismatch:
		return domain.IssueUnitPriceMismatch, true
	case domain.IssueSumMismatch:
		return domain.IssueSumMismatch, true
	case domain.IssueSuspiciousQuantity:
		return domain.IssueSuspiciousQuantity, true
	default:
		return "", false
	}
}
