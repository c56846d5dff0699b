package allocation

import "github.com/LuisNabil29/billSplitter/internal/domain"

// ParticipantTotals derives what each participant currently owes, in join
// order: Σ over items of unitPrice × assigned quantity.
func ParticipantTotals(s *domain.Session) []domain.ParticipantTotal {
	totals := make([]domain.ParticipantTotal, len(s.Participants))
	for idx, p := range s.Participants {
		totals[idx] = domain.ParticipantTotal{ParticipantID: p.ID, Name: p.Name}
	}
	for _, item := range s.Items {
		for _, a := range item.Assignments {
			for idx := range totals {
				if totals[idx].ParticipantID == a.ParticipantID {
					totals[idx].Total += item.UnitPrice * a.Quantity
					break
				}
			}
		}
	}
	return totals
}

// SnapshotOf bundles a session with its derived totals for delivery to
// subscribers and read responses.
func SnapshotOf(s *domain.Session) *domain.Snapshot {
	return &domain.Snapshot{Session: s, ParticipantTotals: ParticipantTotals(s)}
}
