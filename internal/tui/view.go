package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/marcin-skalski/prwatch/internal/github"
	"github.com/marcin-skalski/prwatch/internal/pr"
	"github.com/marcin-skalski/prwatch/internal/store"
	"github.com/marcin-skalski/prwatch/internal/view"
)

const (
	headerLines  = 2
	footerLines  = 3
	detailsLines = 9
	defaultWidth = 100
)

func renderView(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n")
	if line := renderSearch(m); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
		b.WriteString("\n")
		b.WriteString(footerStyle.Render("esc/?: close help"))
		return b.String()
	}

	b.WriteString(renderTree(m))

	if p, _, ok := m.selectedPR(); ok && p != nil {
		b.WriteString(renderDetails(*p, m.width, m.now()))
		b.WriteString("\n")
	}

	b.WriteString(renderFooter(m))
	return b.String()
}

func renderHeader(m Model) string {
	tabs := make([]string, 0, len(pr.Roles))
	for i, role := range pr.Roles {
		label := fmt.Sprintf("%s (%d)", role.Title(), m.snaps[role].Count)
		if i == m.active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}
	return headerStyle.Render("prwatch") + "│ " + strings.Join(tabs, "  ")
}

func renderSearch(m Model) string {
	if m.searching {
		return " " + m.search.View()
	}
	if q := m.current().Search(); q != "" {
		return emptyStyle.Render(fmt.Sprintf(" filter: %q (/ to edit, esc in search to clear)", q))
	}
	return ""
}

// listHeight is how many rows fit between the header and the footer. Without
// a known terminal size every row is shown.
func (m Model) listHeight() int {
	if m.height <= 0 {
		return 1 << 16
	}
	h := m.height - headerLines - footerLines - 1
	if m.searching || m.current().Search() != "" {
		h--
	}
	if p, _, ok := m.selectedPR(); ok && p != nil {
		h -= detailsLines
	}
	return max(h, 1)
}

// window returns the [start, end) range of rows to draw so that the selection
// stays visible.
func window(total, selected, height int) (int, int) {
	if total <= height {
		return 0, total
	}
	start := max(selected-height/2, 0)
	start = min(start, total-height)
	return start, start + height
}

func renderTree(m Model) string {
	v := m.current()
	rows := v.Rows()
	if len(rows) == 0 {
		return emptyStyle.Render("  (no repositories configured)") + "\n"
	}

	snap := m.snaps[m.role()]
	statuses := make(map[string]store.RepoStatus, len(snap.Repos))
	for _, s := range snap.Repos {
		statuses[s.Repository.FullName()] = s
	}

	width := m.width
	if width <= 0 {
		width = defaultWidth
	}

	start, end := window(len(rows), v.Selected(), m.listHeight())
	var b strings.Builder
	for i := start; i < end; i++ {
		row := rows[i]
		selected := i == v.Selected()
		switch row.Kind {
		case view.RowHeader:
			b.WriteString(renderRepoRow(row, statuses[row.Repository.FullName()], snap.AuthErr, selected))
		case view.RowPullRequest:
			last := i == len(rows)-1 || rows[i+1].Kind == view.RowHeader
			b.WriteString(renderPRRow(row.PullRequest, last, selected, width))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderRepoRow(row view.Row, status store.RepoStatus, authErr error, selected bool) string {
	arrow := "▸"
	if row.Expanded {
		arrow = "▾"
	}
	line := fmt.Sprintf("%s %s [%d]", arrow, row.Repository.FullName(), row.Count)

	marker := ""
	switch {
	case authErr != nil:
		marker = "⚠ " + github.StatusText(authErr)
	case status.Stale():
		marker = "⚠ " + github.StatusText(status.Err)
		if status.Fetched {
			marker += " (showing " + status.UpdatedAt.Format("15:04:05") + ")"
		}
	case !status.Fetched:
		marker = "…"
	}

	if selected {
		return selectedStyle.Render(strings.TrimSpace(line + "  " + marker))
	}
	out := treeRepoStyle.Render(line)
	if marker != "" {
		out += "  " + staleStyle.Render(marker)
	}
	return out
}

func renderPRRow(p pr.PullRequest, last, selected bool, width int) string {
	prefix := "├─"
	if last {
		prefix = "└─"
	}

	suffix := " @" + p.Author
	if p.Status == pr.StatusDraft {
		suffix += " [draft]"
	}

	head := fmt.Sprintf("  %s %s #%d ", prefix, statusIcon(p.Status), p.Number)
	room := width - runewidth.StringWidth(head) - runewidth.StringWidth(suffix)
	title := p.Title
	if room < 4 {
		room = 4
	}
	if runewidth.StringWidth(title) > room {
		title = runewidth.Truncate(title, room, "...")
	}

	if selected {
		return selectedStyle.Render(head + title + suffix)
	}
	icon := lipgloss.NewStyle().Foreground(statusColor(p.Status)).Render(statusIcon(p.Status))
	return treePRStyle.Render(fmt.Sprintf("  %s ", prefix)) + icon +
		treePRStyle.Render(fmt.Sprintf(" #%d %s", p.Number, title)) +
		emptyStyle.Render(suffix)
}

func renderDetails(p pr.PullRequest, width int, now time.Time) string {
	if width <= 0 {
		width = defaultWidth
	}
	field := func(k, v string) string {
		if v == "" {
			v = "-"
		}
		return detailKeyStyle.Render(k) + v
	}

	labels := make([]string, 0, len(p.Labels))
	for _, l := range p.Labels {
		labels = append(labels, labelStyle.Render(l))
	}

	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(runewidth.Truncate(fmt.Sprintf("%s #%d %s", p.Repo.FullName(), p.Number, p.Title), width-4, "...")),
		field("Author", "@"+p.Author),
		field("Status", lipgloss.NewStyle().Foreground(statusColor(p.Status)).Render(string(p.Status))),
		field("Branch", strings.TrimSuffix(p.HeadRef+" → "+p.BaseRef, " → ")),
		field("Labels", strings.Join(labels, ", ")),
		field("Reviewers", strings.Join(p.Reviewers, ", ")),
		field("Updated", fmt.Sprintf("%s (%s ago)", p.UpdatedAt.Local().Format("2006-01-02 15:04"), formatDuration(now.Sub(p.UpdatedAt)))),
	}
	return detailsStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func renderFooter(m Model) string {
	snap := m.snaps[m.role()]
	parts := []string{}

	switch {
	case snap.Loading:
		parts = append(parts, m.spinner.View()+" refreshing")
	case snap.LastCycle.IsZero():
		parts = append(parts, "waiting for first refresh")
	default:
		parts = append(parts, fmt.Sprintf("updated %s (%s ago)",
			snap.LastCycle.Format("15:04:05"), formatDuration(m.now().Sub(snap.LastCycle))))
	}

	if snap.AuthErr != nil {
		parts = append(parts, errorStyle.Render("⚠ authentication failed, run gh auth login and press f"))
	} else if n := snap.Errors(); n > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("%d repos failing", n)))
	}

	if m.status != "" {
		style := statusMsgStyle
		if m.statusErr {
			style = errorStyle
		}
		parts = append(parts, style.Render(m.status))
	}

	var helpLine string
	if m.searching {
		helpLine = m.help.View(searchKeys{m.keys})
	} else {
		helpLine = m.help.View(m.keys)
	}
	return footerStyle.Render(strings.Join(parts, " │ ")) + "\n" + helpLine
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	switch {
	case h >= 24:
		return fmt.Sprintf("%dd", h/24)
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
