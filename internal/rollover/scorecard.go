package rollover

import "github.com/leaderreps/leaderreps/internal/models"

// ComputeScorecard derives the live scorecard of a record: committed
// commitments out of all active ones, and completed wins out of the
// non-empty win slots.
func ComputeScorecard(rec models.DailyPracticeRecord) models.Scorecard {
	var s models.Scorecard
	for _, c := range rec.ActiveCommitments {
		s.Reps.Total++
		if c.Status == models.RepCommitted {
			s.Reps.Done++
		}
	}
	for _, w := range rec.MorningWins {
		if w.IsEmpty() {
			continue
		}
		s.Win.Total++
		if w.Completed {
			s.Win.Done++
		}
	}
	return s
}
