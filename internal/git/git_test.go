package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/prwatch/internal/logging"
)

func TestCheckoutDir(t *testing.T) {
	c := NewClient(logging.Discard())

	repo := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(repo, ".git"), 0o755))

	worktree := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(worktree, ".git"), []byte("gitdir: /elsewhere"), 0o644))

	plain := t.TempDir()

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	got, err := c.CheckoutDir(repo + "/")
	require.NoError(t, err)
	assert.Equal(t, repo, got)

	_, err = c.CheckoutDir(worktree)
	assert.NoError(t, err)

	_, err = c.CheckoutDir(plain)
	assert.ErrorIs(t, err, ErrNotCheckout)

	_, err = c.CheckoutDir(file)
	assert.ErrorIs(t, err, ErrNotCheckout)

	_, err = c.CheckoutDir(filepath.Join(plain, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetchBranch(t *testing.T) {
	c := NewClient(logging.Discard())
	var gotDir string
	var gotArgs []string
	c.run = func(_ context.Context, dir, name string, args ...string) error {
		gotDir = dir
		gotArgs = append([]string{name}, args...)
		return nil
	}

	require.NoError(t, c.FetchBranch(context.Background(), "/src/api", "rate-limit"))
	assert.Equal(t, "/src/api", gotDir)
	assert.Equal(t, []string{"git", "fetch", "origin", "rate-limit"}, gotArgs)

	assert.Error(t, c.FetchBranch(context.Background(), "/src/api", ""))
}
