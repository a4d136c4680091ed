// Package launcher performs the side actions dispatched from the dashboard:
// opening a pull request in the browser, copying its URL and starting the
// configured review command in the repository checkout.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"text/template"

	"github.com/atotto/clipboard"

	"github.com/marcin-skalski/prwatch/internal/config"
	"github.com/marcin-skalski/prwatch/internal/git"
	"github.com/marcin-skalski/prwatch/internal/pr"
)

var (
	ErrNoLocalPath     = errors.New("no local path configured")
	ErrNoReviewCommand = errors.New("no review command configured and $TERMINAL is unset")
	ErrNoURL           = errors.New("pull request has no URL")
)

// Command is a fully resolved process to start.
type Command struct {
	Name string
	Args []string
	Dir  string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// TemplateData is what review args are rendered against.
type TemplateData struct {
	Number int
	Title  string
	URL    string
	Branch string
	Base   string
	Owner  string
	Repo   string
	Path   string
}

type Launcher struct {
	logger *slog.Logger
	git    *git.Client

	mu     sync.Mutex
	review config.ReviewConfig

	getenv func(string) string
	start  func(Command) error
	copy   func(string) error
}

func New(review config.ReviewConfig, g *git.Client, logger *slog.Logger) *Launcher {
	l := &Launcher{
		logger: logger,
		git:    g,
		review: review,
		getenv: os.Getenv,
		copy:   clipboard.WriteAll,
	}
	l.start = l.detach
	return l
}

// SetReview swaps the review settings after a config reload.
func (l *Launcher) SetReview(review config.ReviewConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.review = review
}

// OpenURL opens url with the platform browser opener.
func (l *Launcher) OpenURL(url string) error {
	if url == "" {
		return ErrNoURL
	}
	name, args := browserCommand(url)
	if err := l.start(Command{Name: name, Args: args}); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

// CopyURL puts url on the system clipboard.
func (l *Launcher) CopyURL(url string) error {
	if url == "" {
		return ErrNoURL
	}
	if err := l.copy(url); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

// Prepare resolves the review command for p without running anything.
func (l *Launcher) Prepare(p pr.PullRequest) (Command, error) {
	l.mu.Lock()
	review := l.review
	l.mu.Unlock()

	if p.Repo.LocalPath == "" {
		return Command{}, fmt.Errorf("%s: %w", p.Repo.FullName(), ErrNoLocalPath)
	}
	dir := config.ExpandHome(p.Repo.LocalPath)

	name := review.Command
	if name == "" {
		name = l.getenv("TERMINAL")
	}
	if name == "" {
		return Command{}, ErrNoReviewCommand
	}

	data := TemplateData{
		Number: p.Number,
		Title:  p.Title,
		URL:    p.URL,
		Branch: p.HeadRef,
		Base:   p.BaseRef,
		Owner:  p.Repo.Owner,
		Repo:   p.Repo.Name,
		Path:   dir,
	}
	args := make([]string, 0, len(review.Args))
	for i, raw := range review.Args {
		arg, err := render(raw, data)
		if err != nil {
			return Command{}, fmt.Errorf("review arg %d: %w", i, err)
		}
		args = append(args, arg)
	}

	return Command{Name: name, Args: args, Dir: dir}, nil
}

// Review starts the review command for p in its repository checkout. When
// review.fetch is set the pull request branch is fetched first.
func (l *Launcher) Review(ctx context.Context, p pr.PullRequest) (Command, error) {
	cmd, err := l.Prepare(p)
	if err != nil {
		return Command{}, err
	}

	l.mu.Lock()
	fetch := l.review.Fetch
	l.mu.Unlock()

	if fetch {
		dir, err := l.git.CheckoutDir(cmd.Dir)
		if err != nil {
			return Command{}, err
		}
		if err := l.git.FetchBranch(ctx, dir, p.HeadRef); err != nil {
			return Command{}, fmt.Errorf("fetch %s: %w", p.HeadRef, err)
		}
	} else if info, err := os.Stat(cmd.Dir); err != nil || !info.IsDir() {
		return Command{}, fmt.Errorf("local path %s: %w", cmd.Dir, ErrNoLocalPath)
	}

	l.logger.Info("starting review", "pr", p.ID(), "cmd", cmd.String(), "dir", cmd.Dir)
	if err := l.start(cmd); err != nil {
		return Command{}, fmt.Errorf("start review: %w", err)
	}
	return cmd, nil
}

func render(raw string, data TemplateData) (string, error) {
	tmpl, err := template.New("arg").Option("missingkey=error").Parse(raw)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// detach starts cmd without attaching it to the terminal and reaps it in the
// background.
func (l *Launcher) detach(c Command) error {
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			l.logger.Warn("command exited with error", "cmd", c.Name, "err", err)
		}
	}()
	return nil
}
