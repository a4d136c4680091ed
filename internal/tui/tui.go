package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcin-skalski/prwatch/internal/daemon"
	"github.com/marcin-skalski/prwatch/internal/launcher"
	"github.com/marcin-skalski/prwatch/internal/pr"
	"github.com/marcin-skalski/prwatch/internal/view"
)

const statusTTL = 4 * time.Second

// Scheduler is the part of the refresh scheduler the dashboard drives.
type Scheduler interface {
	Tick(now time.Time) bool
	RequestRefresh(role pr.Role) bool
	Snapshot(role pr.Role) daemon.Snapshot
}

// Actions performs side effects for the selected pull request.
type Actions interface {
	OpenURL(url string) error
	CopyURL(url string) error
	Review(ctx context.Context, p pr.PullRequest) (launcher.Command, error)
}

// CycleDoneMsg tells the dashboard that a cycle for Role was committed.
type CycleDoneMsg struct {
	Role pr.Role
}

type tickMsg time.Time

type actionDoneMsg struct {
	text string
	err  error
}

type Model struct {
	ctx     context.Context
	sched   Scheduler
	actions Actions

	views  map[pr.Role]*view.State
	snaps  map[pr.Role]daemon.Snapshot
	active int // index in pr.Roles

	frame time.Duration
	now   func() time.Time

	keys      keyMap
	help      help.Model
	spinner   spinner.Model
	search    textinput.Model
	searching bool
	showHelp  bool

	status      string
	statusErr   bool
	statusUntil time.Time

	width  int
	height int
}

func NewModel(ctx context.Context, sched Scheduler, src view.Source, actions Actions, frame time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "repository, number or title"
	ti.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:     ctx,
		sched:   sched,
		actions: actions,
		views:   make(map[pr.Role]*view.State, len(pr.Roles)),
		snaps:   make(map[pr.Role]daemon.Snapshot, len(pr.Roles)),
		frame:   frame,
		now:     time.Now,
		keys:    newKeyMap(),
		help:    help.New(),
		spinner: sp,
		search:  ti,
	}
	for _, role := range pr.Roles {
		m.views[role] = view.New(role, src)
		m.snaps[role] = sched.Snapshot(role)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(m.frame), m.spinner.Tick)
}

func (m Model) role() pr.Role {
	return pr.Roles[m.active]
}

func (m Model) current() *view.State {
	return m.views[m.role()]
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		now := time.Time(msg)
		m.sched.Tick(now)
		for _, role := range pr.Roles {
			m.refresh(role)
		}
		if !m.statusUntil.IsZero() && now.After(m.statusUntil) {
			m.status, m.statusUntil = "", time.Time{}
		}
		return m, tickCmd(m.frame)

	case CycleDoneMsg:
		m.refresh(msg.Role)
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
		} else {
			m.setStatus(msg.text, false)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		if m.showHelp {
			switch {
			case msg.String() == "ctrl+c":
				return m, tea.Quit
			case key.Matches(msg, m.keys.Help, m.keys.Cancel, m.keys.Quit):
				m.showHelp = false
			}
			return m, nil
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.current()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		v.MoveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		v.MoveSelection(1)
	case key.Matches(msg, m.keys.JumpDown):
		v.MoveSelection(m.jump())
	case key.Matches(msg, m.keys.JumpUp):
		v.MoveSelection(-m.jump())
	case key.Matches(msg, m.keys.NextRepo):
		v.NextGroup()
	case key.Matches(msg, m.keys.PrevRepo):
		v.PrevGroup()
	case key.Matches(msg, m.keys.Toggle):
		v.ToggleSelected()
	case key.Matches(msg, m.keys.ExpandAll):
		v.ExpandAll()
	case key.Matches(msg, m.keys.CollapseAll):
		v.CollapseAll()
	case key.Matches(msg, m.keys.Tab):
		m.active = (m.active + 1) % len(pr.Roles)
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue(v.Search())
		m.search.CursorEnd()
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.Refresh):
		if m.sched.RequestRefresh(m.role()) {
			m.snaps[m.role()] = m.sched.Snapshot(m.role())
		} else {
			m.setStatus("refresh already in progress", false)
		}
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Open):
		return m, m.open()
	case key.Matches(msg, m.keys.Copy):
		return m, m.copyURL()
	case key.Matches(msg, m.keys.Review):
		return m, m.review()
	}
	return m, nil
}

// updateSearch filters both panels live while typing. Enter keeps the filter,
// esc clears it.
func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.Accept):
		m.searching = false
		m.search.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.searching = false
		m.search.Blur()
		m.search.Reset()
		m.setSearch("")
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.setSearch(m.search.Value())
	return m, cmd
}

func (m Model) setSearch(text string) {
	for _, role := range pr.Roles {
		m.views[role].SetSearch(text)
	}
}

func (m Model) refresh(role pr.Role) {
	m.views[role].Refresh()
	m.snaps[role] = m.sched.Snapshot(role)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
	m.statusUntil = m.now().Add(statusTTL)
}

// jump is half the visible list height.
func (m Model) jump() int {
	return max(m.listHeight()/2, 1)
}

func (m Model) selectedPR() (*pr.PullRequest, pr.Repository, bool) {
	t, ok := m.current().ActivateSelection()
	if !ok {
		return nil, pr.Repository{}, false
	}
	return t.PullRequest, t.Repository, true
}

func (m Model) open() tea.Cmd {
	p, repo, ok := m.selectedPR()
	if !ok {
		return nil
	}
	url := fmt.Sprintf("https://github.com/%s/pulls", repo.FullName())
	if p != nil {
		url = p.URL
	}
	actions := m.actions
	return func() tea.Msg {
		if err := actions.OpenURL(url); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{text: "opened " + url}
	}
}

func (m Model) copyURL() tea.Cmd {
	p, _, ok := m.selectedPR()
	if !ok || p == nil {
		return nil
	}
	url := p.URL
	actions := m.actions
	return func() tea.Msg {
		if err := actions.CopyURL(url); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{text: "copied " + url}
	}
}

func (m Model) review() tea.Cmd {
	p, _, ok := m.selectedPR()
	if !ok || p == nil {
		return func() tea.Msg {
			return actionDoneMsg{err: errors.New("select a pull request to review")}
		}
	}
	target := *p
	ctx, actions := m.ctx, m.actions
	return func() tea.Msg {
		cmd, err := actions.Review(ctx, target)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{text: fmt.Sprintf("review of %s started: %s", target.ID(), cmd.Name)}
	}
}

func (m Model) View() string {
	return renderView(m)
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
