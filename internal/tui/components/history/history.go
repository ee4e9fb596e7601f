package history

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/leaderreps/leaderreps/internal/models"
)

type Item struct {
	Archive models.DailyLogArchive
}

func (i Item) Title() string { return i.Archive.Date }

func (i Item) Description() string {
	wins := 0
	for _, w := range i.Archive.MorningWins {
		if w.Completed {
			wins++
		}
	}
	desc := fmt.Sprintf("score %s | %d win(s) done", i.Archive.Scorecard.Total(), wins)
	if i.Archive.RolloverSource != "" {
		desc += " | " + string(i.Archive.RolloverSource)
	}
	return desc
}

func (i Item) FilterValue() string { return i.Archive.Date }

// Model lists archived days, newest first.
type Model struct {
	list list.Model
}

func New(archives []models.DailyLogArchive, width, height int) Model {
	l := list.New(nil, list.NewDefaultDelegate(), width, height)
	l.Title = "History"
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	m := Model{list: l}
	m.SetArchives(archives)
	return m
}

// SetArchives replaces the items; archives arrive oldest first.
func (m *Model) SetArchives(archives []models.DailyLogArchive) {
	items := make([]list.Item, len(archives))
	for i, a := range archives {
		items[len(archives)-1-i] = Item{Archive: a}
	}
	m.list.SetItems(items)
}

func (m Model) Len() int {
	return len(m.list.Items())
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 && m.list.FilterState() != list.Filtering {
		return "\n  No archived days yet."
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}
