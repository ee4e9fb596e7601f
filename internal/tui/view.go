package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leaderreps/leaderreps/internal/streak"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case StateToday:
		content = docStyle.Render(m.todayModel.View())
	case StateStreak:
		content = docStyle.Render(m.viewStreak())
	case StateHistory:
		content = docStyle.Render(m.historyModel.View())
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewTabs(),
		m.viewStatus(),
		content,
		m.help.View(m),
	)
}

func (m Model) viewTabs() string {
	var tabs []string
	for i, title := range tabTitles {
		if m.state == SessionState(i) {
			tabs = append(tabs, activeTabStyle.Render(title))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewStatus() string {
	parts := []string{m.now.Format("Mon Jan 2 15:04:05"), "today " + m.clock.Today()}
	if m.record != nil && m.record.Date != m.clock.Today() {
		parts = append(parts, "record "+m.record.Date)
	}
	if m.lastChange != nil {
		parts = append(parts, fmt.Sprintf("rolled %s→%s (%s)", m.lastChange.From, m.lastChange.To, m.lastChange.Source))
	}
	line := statusStyle.Render(strings.Join(parts, "  ·  "))
	if m.clock.Traveling() {
		line += "  " + travelStyle.Render(fmt.Sprintf("TIME TRAVEL %s", formatOffset(m.clock.Offset().Hours())))
	}
	if m.err != nil {
		line += "\n" + dangerStyle.Render("Error: "+m.err.Error())
	}
	return line
}

func formatOffset(hours float64) string {
	sign := "+"
	if hours < 0 {
		sign = "-"
		hours = -hours
	}
	if hours >= 24 {
		return fmt.Sprintf("%s%.1fd", sign, hours/24)
	}
	return fmt.Sprintf("%s%.1fh", sign, hours)
}

func (m Model) viewStreak() string {
	s := m.streak
	var b strings.Builder
	fmt.Fprintf(&b, "Current streak: %d day(s)\n", s.CurrentStreak)
	fmt.Fprintf(&b, "Longest streak: %d day(s)\n", s.LongestStreak)
	if s.LastActiveDate != "" {
		fmt.Fprintf(&b, "Last active:    %s\n", s.LastActiveDate)
	}
	if ms, ok := streak.MilestoneFor(s.CurrentStreak); ok {
		fmt.Fprintf(&b, "\n%s (%d+ days)\n", activeTabStyle.Render(ms.Message), ms.Threshold)
	}
	if next, ok := streak.NextMilestone(s.CurrentStreak); ok {
		fmt.Fprintf(&b, "%d day(s) to %s\n", next.Threshold-s.CurrentStreak, next.Message)
	}
	return b.String()
}
