package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	JumpDown    key.Binding
	JumpUp      key.Binding
	NextRepo    key.Binding
	PrevRepo    key.Binding
	Toggle      key.Binding
	ExpandAll   key.Binding
	CollapseAll key.Binding
	Tab         key.Binding
	Search      key.Binding
	Refresh     key.Binding
	Open        key.Binding
	Review      key.Binding
	Copy        key.Binding
	Help        key.Binding
	Quit        key.Binding

	Accept key.Binding
	Cancel key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		JumpDown:    key.NewBinding(key.WithKeys("d", "pgdown"), key.WithHelp("d", "jump down")),
		JumpUp:      key.NewBinding(key.WithKeys("u", "pgup"), key.WithHelp("u", "jump up")),
		NextRepo:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next repository")),
		PrevRepo:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous repository")),
		Toggle:      key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "expand/collapse")),
		ExpandAll:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "expand all")),
		CollapseAll: key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "collapse all")),
		Tab:         key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "switch panel")),
		Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Refresh:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "refetch")),
		Open:        key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open in browser")),
		Review:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "review")),
		Copy:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy URL")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		Accept: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "keep filter")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Toggle, k.Search, k.Open, k.Review, k.Refresh, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.JumpDown, k.JumpUp, k.NextRepo, k.PrevRepo},
		{k.Toggle, k.ExpandAll, k.CollapseAll, k.Tab, k.Search},
		{k.Open, k.Review, k.Copy, k.Refresh, k.Help, k.Quit},
	}
}

// searchKeys is shown while the search input is focused.
type searchKeys struct{ keyMap }

func (k searchKeys) ShortHelp() []key.Binding { return []key.Binding{k.Accept, k.Cancel} }

func (k searchKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }
