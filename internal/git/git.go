package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var ErrNotCheckout = errors.New("not a git checkout")

type runFunc func(ctx context.Context, dir, name string, args ...string) error

// Client runs git in local checkouts used by the review action.
type Client struct {
	logger *slog.Logger
	run    runFunc
}

func NewClient(logger *slog.Logger) *Client {
	c := &Client{logger: logger}
	c.run = c.command
	return c
}

// CheckoutDir validates that dir is the root of a git checkout. Worktrees,
// where .git is a file, are accepted.
func (c *Client) CheckoutDir(dir string) (string, error) {
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("checkout %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("checkout %s: %w", dir, ErrNotCheckout)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return "", fmt.Errorf("checkout %s: %w", dir, ErrNotCheckout)
	}
	return dir, nil
}

// FetchBranch updates origin/<branch> in dir so the review command sees the
// pull request head.
func (c *Client) FetchBranch(ctx context.Context, dir, branch string) error {
	if branch == "" {
		return fmt.Errorf("fetch: empty branch")
	}
	return c.run(ctx, dir, "git", "fetch", "origin", branch)
}

func (c *Client) command(ctx context.Context, dir string, name string, args ...string) error {
	c.logger.Debug("exec", "cmd", name+" "+strings.Join(args, " "), "dir", dir)
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w\n%s", name, strings.Join(args, " "), err, string(out))
	}
	return nil
}
