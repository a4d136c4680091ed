package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/prwatch/internal/config"
	"github.com/marcin-skalski/prwatch/internal/git"
	"github.com/marcin-skalski/prwatch/internal/logging"
	"github.com/marcin-skalski/prwatch/internal/pr"
)

type recorder struct {
	started []Command
	copied  []string
	env     map[string]string
}

func newTestLauncher(review config.ReviewConfig) (*Launcher, *recorder) {
	rec := &recorder{env: map[string]string{}}
	l := New(review, git.NewClient(logging.Discard()), logging.Discard())
	l.getenv = func(k string) string { return rec.env[k] }
	l.start = func(c Command) error {
		rec.started = append(rec.started, c)
		return nil
	}
	l.copy = func(s string) error {
		rec.copied = append(rec.copied, s)
		return nil
	}
	return l, rec
}

func samplePR(localPath string) pr.PullRequest {
	return pr.PullRequest{
		Repo:    pr.Repository{Owner: "acme", Name: "api", LocalPath: localPath},
		Number:  42,
		Title:   "Add rate limiting",
		URL:     "https://github.com/acme/api/pull/42",
		HeadRef: "rate-limit",
		BaseRef: "main",
	}
}

func TestPrepare_RendersArgs(t *testing.T) {
	l, _ := newTestLauncher(config.ReviewConfig{
		Command: "nvim",
		Args:    []string{"-c", "Octo pr edit {{.Number}}", "{{.Owner}}/{{.Repo}}@{{.Branch}}", "{{.Path}}"},
	})

	cmd, err := l.Prepare(samplePR("/src/api"))

	require.NoError(t, err)
	assert.Equal(t, Command{
		Name: "nvim",
		Args: []string{"-c", "Octo pr edit 42", "acme/api@rate-limit", "/src/api"},
		Dir:  "/src/api",
	}, cmd)
}

func TestPrepare_FallsBackToTerminal(t *testing.T) {
	l, rec := newTestLauncher(config.ReviewConfig{})

	_, err := l.Prepare(samplePR("/src/api"))
	require.ErrorIs(t, err, ErrNoReviewCommand)

	rec.env["TERMINAL"] = "ghostty"
	cmd, err := l.Prepare(samplePR("/src/api"))
	require.NoError(t, err)
	assert.Equal(t, "ghostty", cmd.Name)
	assert.Empty(t, cmd.Args)
}

func TestPrepare_Errors(t *testing.T) {
	l, _ := newTestLauncher(config.ReviewConfig{Command: "nvim", Args: []string{"{{.Nope}}"}})

	_, err := l.Prepare(samplePR(""))
	require.ErrorIs(t, err, ErrNoLocalPath)

	_, err = l.Prepare(samplePR("/src/api"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review arg 0")
}

func TestPrepare_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	l, _ := newTestLauncher(config.ReviewConfig{Command: "code", Args: []string{"."}})

	cmd, err := l.Prepare(samplePR("~/src/api"))

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "src", "api"), cmd.Dir)
}

func TestReview_StartsInLocalPath(t *testing.T) {
	dir := t.TempDir()
	l, rec := newTestLauncher(config.ReviewConfig{Command: "code", Args: []string{"."}})

	cmd, err := l.Review(context.Background(), samplePR(dir))

	require.NoError(t, err)
	require.Len(t, rec.started, 1)
	assert.Equal(t, cmd, rec.started[0])
	assert.Equal(t, dir, rec.started[0].Dir)
}

func TestReview_MissingDirectory(t *testing.T) {
	l, rec := newTestLauncher(config.ReviewConfig{Command: "code"})

	_, err := l.Review(context.Background(), samplePR(filepath.Join(t.TempDir(), "gone")))

	require.ErrorIs(t, err, ErrNoLocalPath)
	assert.Empty(t, rec.started)
}

func TestReview_FetchRequiresCheckout(t *testing.T) {
	l, rec := newTestLauncher(config.ReviewConfig{Command: "code", Fetch: true})

	_, err := l.Review(context.Background(), samplePR(t.TempDir()))

	require.ErrorIs(t, err, git.ErrNotCheckout)
	assert.Empty(t, rec.started)
}

func TestReview_StartFailure(t *testing.T) {
	l, _ := newTestLauncher(config.ReviewConfig{Command: "code"})
	l.start = func(Command) error { return errors.New("exec: not found") }

	_, err := l.Review(context.Background(), samplePR(t.TempDir()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "start review")
}

func TestSetReview(t *testing.T) {
	l, _ := newTestLauncher(config.ReviewConfig{Command: "code"})
	l.SetReview(config.ReviewConfig{Command: "zed"})

	cmd, err := l.Prepare(samplePR("/src/api"))
	require.NoError(t, err)
	assert.Equal(t, "zed", cmd.Name)
}

func TestOpenAndCopy(t *testing.T) {
	l, rec := newTestLauncher(config.ReviewConfig{})
	url := "https://github.com/acme/api/pull/42"

	require.NoError(t, l.OpenURL(url))
	require.NoError(t, l.CopyURL(url))
	require.Len(t, rec.started, 1)
	assert.Contains(t, rec.started[0].Args, url)
	assert.Equal(t, []string{url}, rec.copied)

	assert.ErrorIs(t, l.OpenURL(""), ErrNoURL)
	assert.ErrorIs(t, l.CopyURL(""), ErrNoURL)
}
