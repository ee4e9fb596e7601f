package streak

import "github.com/leaderreps/leaderreps/internal/models"

// milestones are ordered from highest threshold to lowest.
var milestones = []models.Milestone{
	{Threshold: 100, Level: "legendary", Message: "Legendary Leader", Color: "amber"},
	{Threshold: 50, Level: "master", Message: "Master Practitioner", Color: "purple"},
	{Threshold: 30, Level: "champion", Message: "Leadership Champion", Color: "blue"},
	{Threshold: 21, Level: "committed", Message: "Habit Formed", Color: "teal"},
	{Threshold: 14, Level: "dedicated", Message: "Building Momentum", Color: "green"},
	{Threshold: 7, Level: "consistent", Message: "One Week Strong", Color: "emerald"},
	{Threshold: 3, Level: "starting", Message: "Getting Started", Color: "slate"},
}

// MilestoneFor returns the highest milestone reached by streak.
func MilestoneFor(streak int) (models.Milestone, bool) {
	for _, m := range milestones {
		if streak >= m.Threshold {
			return m, true
		}
	}
	return models.Milestone{}, false
}

// NextMilestone returns the lowest milestone not yet reached.
func NextMilestone(streak int) (models.Milestone, bool) {
	for i := len(milestones) - 1; i >= 0; i-- {
		if streak < milestones[i].Threshold {
			return milestones[i], true
		}
	}
	return models.Milestone{}, false
}
