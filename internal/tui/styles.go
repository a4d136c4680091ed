package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcin-skalski/prwatch/internal/pr"
)

var (
	colorOpen   = lipgloss.Color("46")  // green
	colorDraft  = lipgloss.Color("240") // gray
	colorStale  = lipgloss.Color("214") // orange
	colorError  = lipgloss.Color("196") // red
	colorAccent = lipgloss.Color("39")  // blue
	colorLabel  = lipgloss.Color("135") // purple

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			PaddingLeft(1).
			PaddingRight(1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Underline(true)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	treeRepoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("cyan"))

	treePRStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Background(lipgloss.Color("237"))

	staleStyle = lipgloss.NewStyle().
			Foreground(colorStale)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorLabel)

	detailsStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	detailKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Width(11)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	statusMsgStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Italic(true)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

func statusIcon(s pr.Status) string {
	switch s {
	case pr.StatusOpen:
		return "●"
	case pr.StatusDraft:
		return "◌"
	default:
		return "?"
	}
}

func statusColor(s pr.Status) lipgloss.Color {
	switch s {
	case pr.StatusOpen:
		return colorOpen
	case pr.StatusDraft:
		return colorDraft
	default:
		return lipgloss.Color("252")
	}
}
