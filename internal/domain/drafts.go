package domain

// ItemDraft is the boundary form of a line item before it has an id or
// assignments: what the vision collaborator extracts and what the add-items
// operation accepts.
type ItemDraft struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  float64 `json:"quantity"`
}
