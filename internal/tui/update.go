package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/leaderreps/leaderreps/internal/clock"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.todayModel.SetSize(msg.Width-4, msg.Height-6)
		m.historyModel.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tickMsg:
		m.now = m.clock.Now()
		return m, tick()

	case updateMsg:
		rec := msg.Record
		m.record = &rec
		m.streak = msg.Streak
		m.err = nil
		m.todayModel.SetRecord(rec)
		var cmds []tea.Cmd
		if msg.Rollover != nil {
			m.lastChange = msg.Rollover
			cmds = append(cmds, m.loadArchives())
		}
		cmds = append(cmds, m.waitForUpdate())
		return m, tea.Batch(cmds...)

	case closedMsg:
		m.updates = nil
		return m, nil

	case archivesMsg:
		m.historyModel.SetArchives(msg)
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Tab):
			m.state = (m.state + 1) % SessionState(len(tabTitles))
			return m, nil
		case key.Matches(msg, m.keys.ShiftTab):
			m.state = (m.state - 1 + SessionState(len(tabTitles))) % SessionState(len(tabTitles))
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, tea.Batch(m.load(), m.loadArchives())
		case key.Matches(msg, m.keys.Forward):
			return m, m.travel(func() ([]clock.Boundary, error) { return m.clock.TravelDays(1) })
		case key.Matches(msg, m.keys.Reset):
			return m, m.travel(func() ([]clock.Boundary, error) { return m.clock.Reset(), nil })
		case m.state == StateToday && key.Matches(msg, m.keys.ToggleWin):
			return m, m.toggleWin(int(msg.Runes[0] - '1'))
		}
	}

	var cmd tea.Cmd
	switch m.state {
	case StateToday:
		m.todayModel, cmd = m.todayModel.Update(msg)
	case StateHistory:
		m.historyModel, cmd = m.historyModel.Update(msg)
	}
	return m, cmd
}
