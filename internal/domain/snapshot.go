package domain

import "github.com/google/uuid"

// ParticipantTotal is the derived amount one participant owes:
// Σ over items of unitPrice × their assigned quantity.
type ParticipantTotal struct {
	ParticipantID uuid.UUID `json:"participantId"`
	Name          string    `json:"participantName"`
	Total         float64   `json:"total"`
}

// Snapshot is the full current state of a session plus derived per-participant
// totals, as delivered to subscribers and returned by the read endpoint.
type Snapshot struct {
	Session           *Session           `json:"session"`
	ParticipantTotals []ParticipantTotal `json:"participantTotals"`
}
