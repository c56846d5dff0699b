package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// totalMatchMargin is the tolerance the model is told to use when comparing
// the extracted sum against the total printed on the receipt.
const totalMatchMargin = 0.50

const extractSystemPrompt = `You are an expert at reading restaurant receipts.
Analyze the receipt image and extract every line item with its price.

EXTRACTION AND VALIDATION PROCESS:
1. Extract all individual items with their unit prices and quantities.
2. Identify the TOTAL printed on the receipt.
3. Sum price x quantity over all extracted items.
4. Compare the computed sum against the printed total.
5. If they do not match (margin of +/-0.50): re-check each line for price or
   quantity mistakes, look for items you may have missed, and make sure prices
   are unit prices rather than line totals. Repeat this validation up to 5
   times if needed.
6. If the totals still do not match after 5 attempts, report the discrepancy.

Respond ONLY with valid JSON in this exact format:
{
  "items": [
    {"name": "item name", "price": 25.50, "quantity": 2}
  ],
  "total_image": 56.00,
  "total_calculated": 56.00,
  "validation_attempts": 1,
  "totals_match": true
}

RULES:
- "price" is the UNIT price of the item.
- "quantity" is how many of the item appear (default 1 when not printed).
- Use 0.00 when a price cannot be read, 1 when a quantity cannot be read.
- Ignore taxes and tips listed separately from the items.`

// Extraction is the result of reading a receipt image.
type Extraction struct {
	Items              []ExtractedItem
	TotalOnReceipt     float64
	TotalCalculated    float64
	ValidationAttempts int
	TotalsMatch        bool
}

// ExtractedItem is one line item as read from the image.
type ExtractedItem struct {
	Name     string
	Price    float64
	Quantity float64
}

// ExtractItems reads all line items from a receipt photo.
func (c *Client) ExtractItems(ctx context.Context, imageBase64, mimeType string) (*Extraction, error) {
	content, err := c.complete(ctx, "extract", extractSystemPrompt,
		"Extract every line item of this restaurant receipt with its price.",
		imageBase64, mimeType)
	if err != nil {
		return nil, err
	}
	return parseExtraction(content)
}

type extractionPayload struct {
	Items []struct {
		Name     string   `json:"name"`
		Price    *float64 `json:"price"`
		Quantity *float64 `json:"quantity"`
	} `json:"items"`
	TotalImage         float64 `json:"total_image"`
	TotalCalculated    float64 `json:"total_calculated"`
	ValidationAttempts int     `json:"validation_attempts"`
	TotalsMatch        bool    `json:"totals_match"`
}

func parseExtraction(content []byte) (*Extraction, error) {
	var payload extractionPayload
	if err := json.Unmarshal(content, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	result := &Extraction{
		TotalOnReceipt:     payload.TotalImage,
		TotalCalculated:    payload.TotalCalculated,
		ValidationAttempts: payload.ValidationAttempts,
		TotalsMatch:        payload.TotalsMatch,
	}
	for _, item := range payload.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		price := 0.0
		if item.Price != nil && *item.Price > 0 {
			price = *item.Price
		}
		quantity := 1.0
		if item.Quantity != nil && *item.Quantity >= 1 {
			quantity = *item.Quantity
		}
		result.Items = append(result.Items, ExtractedItem{Name: name, Price: price, Quantity: quantity})
	}
	return result, nil
}
