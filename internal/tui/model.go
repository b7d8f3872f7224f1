package tui

import (
	"time"

	"can-decoder/internal/models"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SnapshotFunc returns the current frame counters.
type SnapshotFunc func() models.FrameStats

type TickMsg time.Time

// StatsModel shows live frame counters for one interface.
type StatsModel struct {
	snapshot      SnapshotFunc
	interfaceName string
	interval      time.Duration

	stats    models.FrameStats
	lastRX   uint64
	lastTick time.Time
	fps      float64
	table    table.Model
}

func NewStatsModel(snapshot SnapshotFunc, iface string, interval time.Duration) StatsModel {
	columns := []table.Column{
		{Title: "CAN ID", Width: 10},
		{Title: "Frames", Width: 12},
		{Title: "Share", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	return StatsModel{
		snapshot:      snapshot,
		interfaceName: iface,
		interval:      interval,
		table:         t,
	}
}

func (m StatsModel) Init() tea.Cmd {
	return tickCmd(m.interval)
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Stats returns the last snapshot shown.
func (m StatsModel) Stats() models.FrameStats { return m.stats }

// FramesPerSecond returns the receive rate between the last two ticks.
func (m StatsModel) FramesPerSecond() float64 { return m.fps }
