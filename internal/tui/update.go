package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case TickMsg:
		m.refresh(time.Time(msg))
		return m, tickCmd(m.interval)
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *StatsModel) refresh(now time.Time) {
	m.stats = m.snapshot()

	if !m.lastTick.IsZero() {
		if elapsed := now.Sub(m.lastTick).Seconds(); elapsed > 0 && m.stats.RXFrames >= m.lastRX {
			m.fps = float64(m.stats.RXFrames-m.lastRX) / elapsed
		}
	}
	m.lastTick = now
	m.lastRX = m.stats.RXFrames

	ids := m.stats.SortedIDs()
	rows := make([]table.Row, len(ids))
	for i, id := range ids {
		count := m.stats.MessageIDs[id]
		share := 0.0
		if m.stats.RXFrames > 0 {
			share = 100 * float64(count) / float64(m.stats.RXFrames)
		}
		rows[i] = table.Row{fmt.Sprintf("%X", id), fmt.Sprintf("%d", count), fmt.Sprintf("%.1f%%", share)}
	}
	m.table.SetRows(rows)
}
