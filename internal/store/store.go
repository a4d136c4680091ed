// Package store keeps the latest reconciled pull requests per role, grouped by
// repository. Writers publish copy-on-write snapshots, so readers never block
// and never see a half-applied commit.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcin-skalski/prwatch/internal/pr"
)

var (
	ErrDuplicatePR       = errors.New("duplicate pull request")
	ErrUnknownRepository = errors.New("unknown repository")
	ErrUnknownRole       = errors.New("unknown role")
)

// RepoStatus describes the freshness of one repository's data.
type RepoStatus struct {
	Repository pr.Repository
	Fetched    bool      // at least one commit succeeded
	UpdatedAt  time.Time // last successful commit
	Err        error     // error of the most recent attempt, nil when it succeeded
	FailedAt   time.Time
}

// Stale reports whether the data shown is older than the most recent attempt.
func (s RepoStatus) Stale() bool {
	return s.Err != nil
}

// Result is the outcome of fetching one repository during a cycle.
type Result struct {
	Repo         string // owner/name
	PullRequests []pr.PullRequest
	Err          error
}

type entry struct {
	prs    []pr.PullRequest // sorted, never mutated after publish
	status RepoStatus
}

type snapshot struct {
	order   []string
	entries map[string]*entry
}

type bucket struct {
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[snapshot]
}

type Store struct {
	logger  *slog.Logger
	now     func() time.Time
	buckets map[pr.Role]*bucket
}

func New(repos []pr.Repository, logger *slog.Logger) *Store {
	s := &Store{
		logger:  logger,
		now:     time.Now,
		buckets: make(map[pr.Role]*bucket, len(pr.Roles)),
	}
	for _, role := range pr.Roles {
		b := &bucket{}
		b.snap.Store(&snapshot{entries: map[string]*entry{}})
		s.buckets[role] = b
	}
	s.SetRepositories(repos)
	return s
}

// SetRepositories replaces the configured repository set. Data of repositories
// that remain configured is kept; removed repositories are dropped.
func (s *Store) SetRepositories(repos []pr.Repository) {
	for _, b := range s.buckets {
		b.mu.Lock()
		old := b.snap.Load()
		next := &snapshot{
			order:   make([]string, 0, len(repos)),
			entries: make(map[string]*entry, len(repos)),
		}
		for _, r := range repos {
			key := r.FullName()
			if _, dup := next.entries[key]; dup {
				continue
			}
			e := &entry{status: RepoStatus{Repository: r}}
			if prev, ok := old.entries[key]; ok {
				cp := *prev
				cp.status.Repository = r
				cp.prs = withRepository(prev.prs, r)
				e = &cp
			}
			next.order = append(next.order, key)
			next.entries[key] = e
		}
		b.snap.Store(next)
		b.mu.Unlock()
	}
}

// Commit replaces every pull request of (role, repo) at once. A malformed
// commit is rejected whole and the previous data is kept.
func (s *Store) Commit(role pr.Role, repo string, prs []pr.PullRequest) error {
	return s.Apply(role, []Result{{Repo: repo, PullRequests: prs}})
}

// Apply publishes the outcome of a whole cycle in a single snapshot swap.
// Failed repositories keep their previous pull requests and are marked stale.
// The returned error joins every rejected commit.
func (s *Store) Apply(role pr.Role, results []Result) error {
	b, ok := s.buckets[role]
	if !ok {
		return fmt.Errorf("role %d: %w", int(role), ErrUnknownRole)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.snap.Load()
	next := &snapshot{order: old.order, entries: make(map[string]*entry, len(old.entries))}
	for k, v := range old.entries {
		next.entries[k] = v
	}

	now := s.now()
	var errs []error
	for _, res := range results {
		prev, ok := next.entries[res.Repo]
		if !ok {
			errs = append(errs, fmt.Errorf("commit %s: %w", res.Repo, ErrUnknownRepository))
			continue
		}

		if res.Err != nil {
			next.entries[res.Repo] = failed(prev, res.Err, now)
			continue
		}

		prs, err := reconcile(prev.status.Repository, res.PullRequests)
		if err != nil {
			s.logger.Warn("rejected commit", "role", role, "repo", res.Repo, "err", err)
			errs = append(errs, fmt.Errorf("commit %s: %w", res.Repo, err))
			next.entries[res.Repo] = failed(prev, err, now)
			continue
		}

		next.entries[res.Repo] = &entry{
			prs: prs,
			status: RepoStatus{
				Repository: prev.status.Repository,
				Fetched:    true,
				UpdatedAt:  now,
			},
		}
	}

	b.snap.Store(next)
	return errors.Join(errs...)
}

// Query returns the groups of role in configuration order. Each group holds
// the pull requests matching search; groups without matches are kept.
func (s *Store) Query(role pr.Role, search string) []pr.Group {
	b, ok := s.buckets[role]
	if !ok {
		return nil
	}
	snap := b.snap.Load()

	groups := make([]pr.Group, 0, len(snap.order))
	for _, key := range snap.order {
		e := snap.entries[key]
		prs := make([]pr.PullRequest, 0, len(e.prs))
		for _, p := range e.prs {
			if p.Matches(search) {
				prs = append(prs, p)
			}
		}
		groups = append(groups, pr.Group{Repository: e.status.Repository, PullRequests: prs})
	}
	return groups
}

// Statuses returns the per-repository status of role in configuration order.
func (s *Store) Statuses(role pr.Role) []RepoStatus {
	b, ok := s.buckets[role]
	if !ok {
		return nil
	}
	snap := b.snap.Load()
	out := make([]RepoStatus, 0, len(snap.order))
	for _, key := range snap.order {
		out = append(out, snap.entries[key].status)
	}
	return out
}

// Count returns the number of pull requests held for role.
func (s *Store) Count(role pr.Role) int {
	b, ok := s.buckets[role]
	if !ok {
		return 0
	}
	n := 0
	for _, e := range b.snap.Load().entries {
		n += len(e.prs)
	}
	return n
}

func failed(prev *entry, err error, at time.Time) *entry {
	e := *prev
	e.status.Err = err
	e.status.FailedAt = at
	return &e
}

// reconcile validates a fetched set and returns a private sorted copy holding
// only open-class pull requests.
func reconcile(repo pr.Repository, in []pr.PullRequest) ([]pr.PullRequest, error) {
	seen := make(map[int]struct{}, len(in))
	out := make([]pr.PullRequest, 0, len(in))
	for _, p := range in {
		if _, dup := seen[p.Number]; dup {
			return nil, fmt.Errorf("%w: #%d", ErrDuplicatePR, p.Number)
		}
		seen[p.Number] = struct{}{}
		if !p.Status.IsOpen() {
			continue
		}
		p.Repo = repo
		p.Labels = slices.Clone(p.Labels)
		p.Reviewers = slices.Clone(p.Reviewers)
		out = append(out, p)
	}
	pr.Sort(out)
	return out, nil
}

func withRepository(prs []pr.PullRequest, repo pr.Repository) []pr.PullRequest {
	out := make([]pr.PullRequest, len(prs))
	for i, p := range prs {
		p.Repo = repo
		out[i] = p
	}
	return out
}
