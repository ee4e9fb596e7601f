package models

// StreakState is derived from repsHistory and the calendar; it is never persisted.
type StreakState struct {
	CurrentStreak  int    `json:"currentStreak"`
	LongestStreak  int    `json:"longestStreak"`
	LastActiveDate string `json:"lastActiveDate,omitempty"` // empty when there is no activity
}

// Milestone is a named streak threshold shown to the user.
type Milestone struct {
	Threshold int    `json:"threshold"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Color     string `json:"color"`
}
