package store

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/prwatch/internal/pr"
)

var (
	repoA = pr.Repository{Owner: "acme", Name: "api", LocalPath: "/src/api"}
	repoB = pr.Repository{Owner: "acme", Name: "web"}
	base  = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
)

func newTestStore(repos ...pr.Repository) *Store {
	return New(repos, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mkPR(number int, title string, age time.Duration) pr.PullRequest {
	return pr.PullRequest{
		Number:    number,
		Title:     title,
		Status:    pr.StatusOpen,
		UpdatedAt: base.Add(-age),
	}
}

func numbers(g pr.Group) []int {
	out := make([]int, 0, len(g.PullRequests))
	for _, p := range g.PullRequests {
		out = append(out, p.Number)
	}
	return out
}

func TestQuery_GroupsInConfigOrderEvenWhenEmpty(t *testing.T) {
	s := newTestStore(repoB, repoA)

	groups := s.Query(pr.RoleReviewRequested, "")

	require.Len(t, groups, 2)
	assert.Equal(t, "acme/web", groups[0].Repository.FullName())
	assert.Equal(t, "acme/api", groups[1].Repository.FullName())
	assert.Empty(t, groups[0].PullRequests)
	assert.Empty(t, groups[1].PullRequests)
}

func TestCommit_OrdersByUpdateThenNumber(t *testing.T) {
	s := newTestStore(repoA)

	err := s.Commit(pr.RoleAuthored, "acme/api", []pr.PullRequest{
		mkPR(7, "old", 3*time.Hour),
		mkPR(9, "tie", time.Hour),
		mkPR(4, "tie", time.Hour),
		mkPR(2, "new", 0),
	})
	require.NoError(t, err)

	groups := s.Query(pr.RoleAuthored, "")
	assert.Equal(t, []int{2, 4, 9, 7}, numbers(groups[0]))
	assert.Equal(t, repoA, groups[0].PullRequests[0].Repo)
}

func TestCommit_ReplacesWholeSet(t *testing.T) {
	s := newTestStore(repoA)

	require.NoError(t, s.Commit(pr.RoleAuthored, "acme/api", []pr.PullRequest{mkPR(1, "a", 0), mkPR(2, "b", 0)}))
	require.NoError(t, s.Commit(pr.RoleAuthored, "acme/api", []pr.PullRequest{mkPR(3, "c", 0)}))

	assert.Equal(t, []int{3}, numbers(s.Query(pr.RoleAuthored, "")[0]))
}

func TestCommit_DropsClosedAndMerged(t *testing.T) {
	s := newTestStore(repoA)
	draft := mkPR(2, "draft", 0)
	draft.Status = pr.StatusDraft
	merged := mkPR(3, "merged", 0)
	merged.Status = pr.StatusMerged
	closed := mkPR(4, "closed", 0)
	closed.Status = pr.StatusClosed

	require.NoError(t, s.Commit(pr.RoleAuthored, "acme/api", []pr.PullRequest{mkPR(1, "open", time.Minute), draft, merged, closed}))

	assert.Equal(t, []int{2, 1}, numbers(s.Query(pr.RoleAuthored, "")[0]))
}

func TestCommit_DuplicateRejectedKeepsPrevious(t *testing.T) {
	s := newTestStore(repoA)
	require.NoError(t, s.Commit(pr.RoleAuthored, "acme/api", []pr.PullRequest{mkPR(1, "a", 0)}))

	err := s.Commit(pr.RoleAuthored, "acme/api", []pr.PullRequest{mkPR(5, "x", 0), mkPR(5, "y", 0)})

	require.ErrorIs(t, err, ErrDuplicatePR)
	assert.Equal(t, []int{1}, numbers(s.Query(pr.RoleAuthored, "")[0]))
	st := s.Statuses(pr.RoleAuthored)[0]
	assert.True(t, st.Stale())
	assert.True(t, st.Fetched)
}

func TestCommit_UnknownRepository(t *testing.T) {
	s := newTestStore(repoA)

	err := s.Commit(pr.RoleAuthored, "acme/nope", nil)

	require.ErrorIs(t, err, ErrUnknownRepository)
}

func TestApply_UnknownRole(t *testing.T) {
	s := newTestStore(repoA)

	err := s.Apply(pr.Role(42), []Result{{Repo: "acme/api"}})

	require.ErrorIs(t, err, ErrUnknownRole)
	assert.NotErrorIs(t, err, ErrUnknownRepository)
}

func TestApply_FailedRepositoryKeepsSnapshot(t *testing.T) {
	s := newTestStore(repoA, repoB)
	require.NoError(t, s.Apply(pr.RoleReviewRequested, []Result{
		{Repo: "acme/api", PullRequests: []pr.PullRequest{mkPR(1, "a", 0)}},
		{Repo: "acme/web", PullRequests: []pr.PullRequest{mkPR(10, "w", 0)}},
	}))

	fetchErr := errors.New("connection reset")
	require.NoError(t, s.Apply(pr.RoleReviewRequested, []Result{
		{Repo: "acme/api", PullRequests: []pr.PullRequest{mkPR(2, "b", 0), mkPR(3, "c", time.Minute)}},
		{Repo: "acme/web", Err: fetchErr},
	}))

	groups := s.Query(pr.RoleReviewRequested, "")
	assert.Equal(t, []int{2, 3}, numbers(groups[0]))
	assert.Equal(t, []int{10}, numbers(groups[1]))

	statuses := s.Statuses(pr.RoleReviewRequested)
	assert.False(t, statuses[0].Stale())
	assert.True(t, statuses[1].Stale())
	assert.ErrorIs(t, statuses[1].Err, fetchErr)
}

func TestApply_SuccessClearsStaleMarker(t *testing.T) {
	s := newTestStore(repoA)
	require.NoError(t, s.Apply(pr.RoleAuthored, []Result{{Repo: "acme/api", Err: errors.New("boom")}}))
	require.True(t, s.Statuses(pr.RoleAuthored)[0].Stale())
	assert.False(t, s.Statuses(pr.RoleAuthored)[0].Fetched)

	require.NoError(t, s.Apply(pr.RoleAuthored, []Result{{Repo: "acme/api"}}))

	assert.False(t, s.Statuses(pr.RoleAuthored)[0].Stale())
}

func TestQuery_RolesAreIndependent(t *testing.T) {
	s := newTestStore(repoA)
	require.NoError(t, s.Commit(pr.RoleAuthored, "acme/api", []pr.PullRequest{mkPR(1, "a", 0)}))

	assert.Empty(t, s.Query(pr.RoleReviewRequested, "")[0].PullRequests)
	assert.Equal(t, 1, s.Count(pr.RoleAuthored))
	assert.Equal(t, 0, s.Count(pr.RoleReviewRequested))
}

func TestQuery_Search(t *testing.T) {
	s := newTestStore(repoA, repoB)
	require.NoError(t, s.Commit(pr.RoleAuthored, "acme/api", []pr.PullRequest{
		mkPR(12, "Add Rate Limiting", 0),
		mkPR(345, "fix typo", time.Minute),
	}))
	require.NoError(t, s.Commit(pr.RoleAuthored, "acme/web", []pr.PullRequest{mkPR(8, "Dark mode", 0)}))

	tests := []struct {
		name  string
		query string
		want  [][]int
	}{
		{"empty returns all", "", [][]int{{12, 345}, {8}}},
		{"title case-insensitive", "rate", [][]int{{12}, {}}},
		{"number substring", "34", [][]int{{345}, {}}},
		{"repository name", "web", [][]int{{}, {8}}},
		{"no match keeps groups", "zzz", [][]int{{}, {}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := s.Query(pr.RoleAuthored, tt.query)
			require.Len(t, groups, 2)
			for i, g := range groups {
				assert.Equal(t, tt.want[i], numbers(g))
			}
		})
	}
}

func TestQuery_Idempotent(t *testing.T) {
	s := newTestStore(repoA, repoB)
	require.NoError(t, s.Commit(pr.RoleAuthored, "acme/api", []pr.PullRequest{
		mkPR(1, "a", 0), mkPR(2, "b", 0), mkPR(3, "c", time.Hour),
	}))

	assert.Equal(t, s.Query(pr.RoleAuthored, "a"), s.Query(pr.RoleAuthored, "a"))
	assert.Equal(t, s.Query(pr.RoleAuthored, ""), s.Query(pr.RoleAuthored, ""))
}

func TestCommit_CallerMutationDoesNotLeak(t *testing.T) {
	s := newTestStore(repoA)
	in := []pr.PullRequest{mkPR(1, "a", 0)}
	in[0].Labels = []string{"bug"}
	require.NoError(t, s.Commit(pr.RoleAuthored, "acme/api", in))

	in[0].Title = "mutated"
	in[0].Labels[0] = "mutated"

	got := s.Query(pr.RoleAuthored, "")[0].PullRequests[0]
	assert.Equal(t, "a", got.Title)
	assert.Equal(t, []string{"bug"}, got.Labels)
}

func TestSetRepositories_KeepsDataOfRemainingRepos(t *testing.T) {
	s := newTestStore(repoA, repoB)
	require.NoError(t, s.Commit(pr.RoleAuthored, "acme/api", []pr.PullRequest{mkPR(1, "a", 0)}))

	moved := repoA
	moved.LocalPath = "/elsewhere"
	repoC := pr.Repository{Owner: "acme", Name: "cli"}
	s.SetRepositories([]pr.Repository{repoC, moved})

	groups := s.Query(pr.RoleAuthored, "")
	require.Len(t, groups, 2)
	assert.Equal(t, "acme/cli", groups[0].Repository.FullName())
	assert.Equal(t, []int{1}, numbers(groups[1]))
	assert.Equal(t, "/elsewhere", groups[1].PullRequests[0].Repo.LocalPath)
}

// Readers must observe either the old or the new generation of a repository,
// never a mix of both.
func TestQuery_NoTornReadsDuringCommit(t *testing.T) {
	s := newTestStore(repoA)
	gen := func(g int) []pr.PullRequest {
		prs := make([]pr.PullRequest, 20)
		for i := range prs {
			prs[i] = mkPR(i+1, "gen", 0)
			prs[i].Author = string(rune('a' + g%26))
		}
		return prs
	}
	require.NoError(t, s.Commit(pr.RoleAuthored, "acme/api", gen(0)))

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for g := 1; g <= 200; g++ {
			_ = s.Commit(pr.RoleAuthored, "acme/api", gen(g))
		}
		close(done)
	}()

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				prs := s.Query(pr.RoleAuthored, "")[0].PullRequests
				if !assert.Len(t, prs, 20) {
					return
				}
				for _, p := range prs {
					if !assert.Equal(t, prs[0].Author, p.Author) {
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}
