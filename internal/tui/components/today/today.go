package today

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/leaderreps/leaderreps/internal/models"
)

var (
	headingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)

// Model renders the live daily practice record.
type Model struct {
	viewport viewport.Model
	Record   *models.DailyPracticeRecord
}

func New(width, height int) Model {
	return Model{viewport: viewport.New(width, height)}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Record == nil {
		return "Loading today's practice..."
	}
	return m.viewport.View()
}

func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	m.Render()
}

func (m *Model) SetRecord(rec models.DailyPracticeRecord) {
	m.Record = &rec
	m.Render()
}

func check(done bool) string {
	if done {
		return doneStyle.Render("[x]")
	}
	return "[ ]"
}

func (m *Model) Render() {
	if m.Record == nil {
		m.viewport.SetContent("")
		return
	}
	rec := m.Record

	var b strings.Builder
	b.WriteString(headingStyle.Render("Morning wins") + "\n")
	for i, w := range rec.MorningWins {
		text := w.Text
		if w.IsEmpty() {
			text = mutedStyle.Render("(empty)")
		} else if w.CarriedOver {
			text += mutedStyle.Render("  carried over")
		}
		fmt.Fprintf(&b, " %d %s %s\n", i+1, check(w.Completed), itemStyle.Render(text))
	}

	b.WriteString("\n" + headingStyle.Render("Commitments") + "\n")
	if len(rec.ActiveCommitments) == 0 {
		b.WriteString(mutedStyle.Render("   none") + "\n")
	}
	for _, c := range rec.ActiveCommitments {
		fmt.Fprintf(&b, "   %s %s\n", check(c.Status == models.RepCommitted), itemStyle.Render(c.Text))
	}

	if len(rec.OtherTasks) > 0 {
		b.WriteString("\n" + headingStyle.Render("Other tasks") + "\n")
		for _, t := range rec.OtherTasks {
			fmt.Fprintf(&b, "   %s %s\n", check(t.Completed), itemStyle.Render(t.Text))
		}
	}

	b.WriteString("\n" + headingStyle.Render("Scorecard") + "\n")
	fmt.Fprintf(&b, "   reps %s  wins %s  total %s\n",
		rec.Scorecard.Reps, rec.Scorecard.Win, rec.Scorecard.Total())

	r := rec.EveningReflection
	if r.HasContent() {
		b.WriteString("\n" + headingStyle.Render("Reflection") + "\n")
		for _, line := range []struct{ label, text string }{
			{"good", r.Good}, {"better", r.Better}, {"best", r.Best},
		} {
			if line.text != "" {
				fmt.Fprintf(&b, "   %-7s %s\n", line.label, itemStyle.Render(line.text))
			}
		}
	}

	m.viewport.SetContent(b.String())
}
