// Package view turns the grouped pull requests of one role into a flat,
// navigable row sequence and tracks selection, expansion and search.
package view

import "github.com/marcin-skalski/prwatch/internal/pr"

// Source answers grouped queries. *store.Store satisfies it.
type Source interface {
	Query(role pr.Role, search string) []pr.Group
}

type RowKind int

const (
	RowHeader RowKind = iota
	RowPullRequest
)

// Row is one visible line: a repository header or a pull request of an
// expanded repository.
type Row struct {
	Kind        RowKind
	Repository  pr.Repository
	PullRequest pr.PullRequest // zero value for headers
	Count       int            // headers: matching pull requests in the group
	Expanded    bool           // headers: whether the group is expanded
}

type rowKey struct {
	repo   string
	number int // 0 for headers
}

func (r Row) key() rowKey {
	if r.Kind == RowHeader {
		return rowKey{repo: r.Repository.FullName()}
	}
	return rowKey{repo: r.Repository.FullName(), number: r.PullRequest.Number}
}

// Target is what the selected row is bound to. PullRequest is nil when a
// repository header is selected.
type Target struct {
	Repository  pr.Repository
	PullRequest *pr.PullRequest
}

// State is the per-role view state. It is owned by the input loop and is not
// safe for concurrent use.
type State struct {
	role     pr.Role
	source   Source
	expanded map[string]bool
	search   string
	groups   []pr.Group
	rows     []Row
	selected int // -1 when nothing is selected
}

func New(role pr.Role, source Source) *State {
	s := &State{
		role:     role,
		source:   source,
		expanded: make(map[string]bool),
		selected: -1,
	}
	s.Refresh()
	return s
}

func (s *State) Role() pr.Role { return s.role }

func (s *State) Search() string { return s.search }

// Rows returns the visible row sequence. Callers must not modify it.
func (s *State) Rows() []Row { return s.rows }

// Selected returns the selected row index, or -1.
func (s *State) Selected() int { return s.selected }

func (s *State) IsExpanded(repo string) bool { return s.expanded[repo] }

// Refresh re-queries the source, typically after a commit, and re-clamps the
// selection.
func (s *State) Refresh() {
	s.groups = s.source.Query(s.role, s.search)
	s.rebuild()
}

// MoveSelection moves the cursor by delta rows, clamped to the sequence.
func (s *State) MoveSelection(delta int) {
	if len(s.rows) == 0 {
		s.selected = -1
		return
	}
	next := s.selected + delta
	if s.selected < 0 {
		next = 0
	}
	s.selected = clamp(next, 0, len(s.rows)-1)
}

// NextGroup selects the next repository header, if any.
func (s *State) NextGroup() {
	for i := s.selected + 1; i < len(s.rows); i++ {
		if s.rows[i].Kind == RowHeader {
			s.selected = i
			return
		}
	}
}

// PrevGroup selects the closest repository header above the cursor, if any.
func (s *State) PrevGroup() {
	for i := min(s.selected, len(s.rows)) - 1; i >= 0; i-- {
		if s.rows[i].Kind == RowHeader {
			s.selected = i
			return
		}
	}
}

func (s *State) ToggleExpand(repo string) {
	if s.expanded[repo] {
		delete(s.expanded, repo)
	} else {
		s.expanded[repo] = true
	}
	s.rebuild()
}

// ToggleSelected toggles the group owning the selected row.
func (s *State) ToggleSelected() {
	if s.selected < 0 || s.selected >= len(s.rows) {
		return
	}
	s.ToggleExpand(s.rows[s.selected].Repository.FullName())
}

func (s *State) ExpandAll() {
	for _, g := range s.groups {
		s.expanded[g.Repository.FullName()] = true
	}
	s.rebuild()
}

func (s *State) CollapseAll() {
	clear(s.expanded)
	s.rebuild()
}

func (s *State) SetSearch(text string) {
	if text == s.search {
		return
	}
	s.search = text
	s.Refresh()
}

// ActivateSelection returns the pull request or repository bound to the
// selected row. A header of a group without matching pull requests yields
// nothing.
func (s *State) ActivateSelection() (Target, bool) {
	if s.selected < 0 || s.selected >= len(s.rows) {
		return Target{}, false
	}
	row := s.rows[s.selected]
	if row.Kind == RowHeader {
		if row.Count == 0 {
			return Target{}, false
		}
		return Target{Repository: row.Repository}, true
	}
	p := row.PullRequest
	return Target{Repository: row.Repository, PullRequest: &p}, true
}

func (s *State) rebuild() {
	prevIdx := s.selected
	var prev rowKey
	hadSelection := prevIdx >= 0 && prevIdx < len(s.rows)
	if hadSelection {
		prev = s.rows[prevIdx].key()
	}

	s.rows = s.buildRows()
	s.selected = s.reclamp(hadSelection, prev, prevIdx)
}

func (s *State) buildRows() []Row {
	rows := make([]Row, 0, len(s.groups))
	for _, g := range s.groups {
		expanded := s.expanded[g.Repository.FullName()]
		rows = append(rows, Row{
			Kind:       RowHeader,
			Repository: g.Repository,
			Count:      len(g.PullRequests),
			Expanded:   expanded,
		})
		if !expanded {
			continue
		}
		for _, p := range g.PullRequests {
			rows = append(rows, Row{Kind: RowPullRequest, Repository: g.Repository, PullRequest: p})
		}
	}
	return rows
}

// reclamp keeps the previously selected identity when it is still visible.
// A pull request hidden by collapsing its group falls back to the group
// header; anything else falls back to the same index, then the last row.
func (s *State) reclamp(hadSelection bool, prev rowKey, prevIdx int) int {
	if len(s.rows) == 0 {
		return -1
	}
	if !hadSelection {
		return 0
	}
	if i := s.indexOf(prev); i >= 0 {
		return i
	}
	if prev.number != 0 && !s.expanded[prev.repo] {
		if i := s.indexOf(rowKey{repo: prev.repo}); i >= 0 {
			return i
		}
	}
	return clamp(prevIdx, 0, len(s.rows)-1)
}

func (s *State) indexOf(k rowKey) int {
	for i, r := range s.rows {
		if r.key() == k {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
