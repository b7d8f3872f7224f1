package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)
)

func (m StatsModel) View() string {
	title := titleStyle.Render(fmt.Sprintf("canstats - %s", m.interfaceName))

	s := m.stats
	totals := fmt.Sprintf("RX Total: %d\nRate: %.1f fps", s.RXFrames, m.fps)
	totalsBox := infoStyle.Render(totals)

	kinds := fmt.Sprintf("EFF Total: %d  ERR: %d  RTR: %d\nSFF Total: %d  ERR: %d  RTR: %d",
		s.EFFTotal, s.EFFError, s.EFFRTR, s.SFFTotal, s.SFFError, s.SFFRTR)
	kindsBox := infoStyle.Render(kinds)

	var idsBox string
	if len(s.MessageIDs) == 0 {
		idsBox = infoStyle.Render("Messages by CAN ID\nWaiting for frames...")
	} else {
		idsBox = infoStyle.Render("Messages by CAN ID\n" + m.table.View())
	}

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, totalsBox, kindsBox)
	body := lipgloss.JoinVertical(lipgloss.Left, title, row1, idsBox)

	return body + "\nPress q to quit."
}
