package daemon

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marcin-skalski/prwatch/internal/config"
	"github.com/marcin-skalski/prwatch/internal/github"
	"github.com/marcin-skalski/prwatch/internal/pr"
	"github.com/marcin-skalski/prwatch/internal/store"
)

// fetchConcurrency caps concurrent requests within one cycle.
const fetchConcurrency = 8

// Source fetches the open pull requests of one repository for a role.
type Source interface {
	Fetch(ctx context.Context, role pr.Role, repo pr.Repository, username string) ([]pr.PullRequest, error)
}

type bucketState struct {
	inflight  bool
	lastCycle time.Time // completion of the last cycle
	authErr   error     // kept until Reconfigure or a clean manual cycle
}

// Snapshot is the per-frame projection of one bucket's refresh state.
type Snapshot struct {
	Role      pr.Role
	Loading   bool
	LastCycle time.Time
	AuthErr   error
	Repos     []store.RepoStatus
	Count     int
}

// Errors counts repositories whose most recent fetch failed.
func (s Snapshot) Errors() int {
	n := 0
	for _, r := range s.Repos {
		if r.Stale() {
			n++
		}
	}
	return n
}

type Daemon struct {
	src    Source
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	onCycle    func(pr.Role)
	ctx        context.Context
	username   string
	repos      []pr.Repository
	interval   time.Duration
	generation int
	buckets    map[pr.Role]*bucketState

	wg sync.WaitGroup
}

func New(cfg *config.Config, src Source, st *store.Store, logger *slog.Logger) *Daemon {
	d := &Daemon{
		src:      src,
		store:    st,
		logger:   logger,
		now:      time.Now,
		ctx:      context.Background(),
		username: cfg.Username,
		repos:    cfg.Repositories(),
		interval: cfg.RefreshInterval,
		buckets:  make(map[pr.Role]*bucketState, len(pr.Roles)),
	}
	for _, role := range pr.Roles {
		d.buckets[role] = &bucketState{}
	}
	return d
}

// Start binds cycles to ctx and runs the initial cycle for every role.
func (d *Daemon) Start(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	interval, repos := d.interval, len(d.repos)
	d.mu.Unlock()

	d.logger.Info("scheduler started", "interval", interval, "repos", repos)
	for _, role := range pr.Roles {
		d.startCycle(role, "startup")
	}
}

// Run is the headless loop: it starts the scheduler and ticks until ctx is
// done, then waits for in-flight cycles.
func (d *Daemon) Run(ctx context.Context) error {
	d.Start(ctx)

	ticker := time.NewTicker(min(d.refreshInterval(), time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down, waiting for cycles")
			d.Wait()
			return nil
		case now := <-ticker.C:
			d.Tick(now)
		}
	}
}

// Wait blocks until every in-flight cycle has committed or been abandoned.
func (d *Daemon) Wait() {
	d.wg.Wait()
}

// Tick starts a cycle for each role whose interval has elapsed since its last
// completed cycle. Roles with a cycle in flight are skipped. It reports whether
// any cycle was started.
func (d *Daemon) Tick(now time.Time) bool {
	started := false
	for _, role := range pr.Roles {
		if d.due(role, now) && d.startCycle(role, "tick") {
			started = true
		}
	}
	return started
}

// RequestRefresh starts a cycle for role right away unless one is in flight.
func (d *Daemon) RequestRefresh(role pr.Role) bool {
	return d.startCycle(role, "manual")
}

// Reconfigure applies a reloaded configuration. Auth markers are cleared and
// both roles are refreshed so new repositories fill in. A role with a cycle in
// flight is refreshed again as soon as that cycle finishes.
func (d *Daemon) Reconfigure(cfg *config.Config) {
	repos := cfg.Repositories()

	d.mu.Lock()
	d.username = cfg.Username
	d.repos = repos
	d.interval = cfg.RefreshInterval
	d.generation++
	for _, b := range d.buckets {
		b.authErr = nil
	}
	d.mu.Unlock()

	d.store.SetRepositories(repos)
	d.logger.Info("scheduler reconfigured", "interval", cfg.RefreshInterval, "repos", len(repos))

	for _, role := range pr.Roles {
		d.startCycle(role, "reconfigure")
	}
}

// OnCycle registers fn to be called after every cycle commit.
func (d *Daemon) OnCycle(fn func(pr.Role)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onCycle = fn
}

func (d *Daemon) Loading(role pr.Role) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buckets[role].inflight
}

func (d *Daemon) LastCycle(role pr.Role) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buckets[role].lastCycle
}

func (d *Daemon) Snapshot(role pr.Role) Snapshot {
	d.mu.Lock()
	b := *d.buckets[role]
	d.mu.Unlock()

	return Snapshot{
		Role:      role,
		Loading:   b.inflight,
		LastCycle: b.lastCycle,
		AuthErr:   b.authErr,
		Repos:     d.store.Statuses(role),
		Count:     d.store.Count(role),
	}
}

func (d *Daemon) refreshInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

func (d *Daemon) due(role pr.Role, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.buckets[role]
	if b.inflight {
		return false
	}
	return b.lastCycle.IsZero() || !now.Before(b.lastCycle.Add(d.interval))
}

type cycle struct {
	role       pr.Role
	reason     string
	ctx        context.Context
	username   string
	repos      []pr.Repository
	generation int
}

func (d *Daemon) startCycle(role pr.Role, reason string) bool {
	d.mu.Lock()
	b, ok := d.buckets[role]
	if !ok || b.inflight {
		d.mu.Unlock()
		return false
	}
	b.inflight = true
	c := cycle{
		role:       role,
		reason:     reason,
		ctx:        d.ctx,
		username:   d.username,
		repos:      slices.Clone(d.repos),
		generation: d.generation,
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.run(c)
	}()
	return true
}

func (d *Daemon) run(c cycle) {
	logger := d.logger.With("cycle", uuid.NewString(), "role", c.role)
	logger.Debug("cycle started", "reason", c.reason, "repos", len(c.repos))
	started := d.now()

	results := make([]store.Result, len(c.repos))
	var g errgroup.Group
	g.SetLimit(fetchConcurrency)
	for i, repo := range c.repos {
		g.Go(func() error {
			prs, err := d.src.Fetch(c.ctx, c.role, repo, c.username)
			if err != nil {
				logger.Warn("fetch failed", "repo", repo.FullName(), "kind", kindOf(err), "err", err)
			}
			results[i] = store.Result{Repo: repo.FullName(), PullRequests: prs, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	if c.ctx.Err() != nil {
		logger.Debug("cycle abandoned", "err", c.ctx.Err())
		d.finish(c, nil, false)
		return
	}

	var authErr error
	failed := 0
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		failed++
		if authErr == nil && github.IsAuth(r.Err) {
			authErr = r.Err
		}
	}

	if err := d.store.Apply(c.role, d.current(c, results)); err != nil {
		logger.Warn("commit rejected", "err", err)
	}

	outdated := d.finish(c, authErr, true)

	logger.Info("cycle finished",
		"reason", c.reason,
		"repos", len(c.repos),
		"failed", failed,
		"prs", d.store.Count(c.role),
		"duration", d.now().Sub(started).Round(time.Millisecond))

	d.mu.Lock()
	onCycle := d.onCycle
	d.mu.Unlock()
	if onCycle != nil {
		onCycle(c.role)
	}

	if outdated {
		logger.Debug("configuration changed during cycle, refreshing again")
		d.startCycle(c.role, "reconfigure")
	}
}

// current drops results of repositories removed by a Reconfigure that raced
// with the cycle.
func (d *Daemon) current(c cycle, results []store.Result) []store.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.generation == d.generation {
		return results
	}
	keep := make(map[string]bool, len(d.repos))
	for _, r := range d.repos {
		keep[r.FullName()] = true
	}
	return slices.DeleteFunc(results, func(r store.Result) bool { return !keep[r.Repo] })
}

// finish releases the bucket and reports whether the cycle ran against a
// configuration that has since been replaced.
func (d *Daemon) finish(c cycle, authErr error, completed bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.buckets[c.role]
	b.inflight = false
	if !completed {
		return false
	}
	b.lastCycle = d.now()
	if c.generation != d.generation {
		return true
	}
	if authErr != nil {
		b.authErr = authErr
	} else if c.reason != "tick" {
		b.authErr = nil
	}
	return false
}

func kindOf(err error) github.ErrorKind {
	var fe *github.FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return github.KindUnknown
}
