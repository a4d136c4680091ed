package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/marcin-skalski/prwatch/internal/pr"
)

const prFields = "number,title,url,author,isDraft,state,labels,reviewRequests,updatedAt,headRefName,baseRefName"

type runFunc func(ctx context.Context, args ...string) ([]byte, error)

// Client fetches pull requests through the gh CLI, reusing its stored
// credentials.
type Client struct {
	logger  *slog.Logger
	limit   int
	timeout time.Duration
	run     runFunc
}

func NewClient(limit int, timeout time.Duration, logger *slog.Logger) *Client {
	c := &Client{logger: logger, limit: limit, timeout: timeout}
	c.run = c.gh
	return c
}

type prInfo struct {
	Number         int             `json:"number"`
	Title          string          `json:"title"`
	URL            string          `json:"url"`
	Author         author          `json:"author"`
	IsDraft        bool            `json:"isDraft"`
	State          string          `json:"state"`
	Labels         []label         `json:"labels"`
	ReviewRequests []reviewRequest `json:"reviewRequests"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	HeadRef        string          `json:"headRefName"`
	BaseRef        string          `json:"baseRefName"`
}

type author struct {
	Login string `json:"login"`
}

type label struct {
	Name string `json:"name"`
}

// reviewRequest is either a user (login) or a team (slug/name).
type reviewRequest struct {
	Login string `json:"login"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
}

// Fetch lists the open pull requests of repo in which username plays role.
// Every failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context, role pr.Role, repo pr.Repository, username string) ([]pr.PullRequest, error) {
	args := []string{
		"pr", "list",
		"-R", repo.FullName(),
		"--state", "open",
		"--limit", strconv.Itoa(c.limit),
		"--json", prFields,
	}
	switch role {
	case pr.RoleReviewRequested:
		args = append(args, "--search", "review-requested:"+username)
	case pr.RoleAuthored:
		args = append(args, "--author", username)
	default:
		return nil, &FetchError{Kind: KindUnknown, Repo: repo.FullName(), Err: fmt.Errorf("unsupported role %s", role)}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, c.fetchError(ctx, repo, err)
	}

	prs, err := parsePRs(out, repo)
	if err != nil {
		return nil, &FetchError{Kind: KindUnknown, Repo: repo.FullName(), Err: err}
	}
	return prs, nil
}

func (c *Client) fetchError(ctx context.Context, repo pr.Repository, err error) *FetchError {
	if errors.Is(err, exec.ErrNotFound) {
		return &FetchError{Kind: KindAuth, Repo: repo.FullName(), Err: fmt.Errorf("gh CLI not found: %w", err)}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	var stderr string
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr = string(exitErr.Stderr)
	} else {
		stderr = err.Error()
	}
	return &FetchError{Kind: classify(err, stderr), Repo: repo.FullName(), Err: err}
}

func parsePRs(out []byte, repo pr.Repository) ([]pr.PullRequest, error) {
	var infos []prInfo
	if err := json.Unmarshal(out, &infos); err != nil {
		return nil, fmt.Errorf("parse PRs: %w", err)
	}

	prs := make([]pr.PullRequest, 0, len(infos))
	for _, in := range infos {
		p := pr.PullRequest{
			Repo:      repo,
			Number:    in.Number,
			Title:     in.Title,
			URL:       in.URL,
			Author:    in.Author.Login,
			Status:    status(in),
			HeadRef:   in.HeadRef,
			BaseRef:   in.BaseRef,
			UpdatedAt: in.UpdatedAt,
		}
		for _, l := range in.Labels {
			p.Labels = append(p.Labels, l.Name)
		}
		for _, r := range in.ReviewRequests {
			if name := r.display(); name != "" {
				p.Reviewers = append(p.Reviewers, name)
			}
		}
		prs = append(prs, p)
	}
	return prs, nil
}

func status(in prInfo) pr.Status {
	if in.IsDraft && strings.EqualFold(in.State, "open") {
		return pr.StatusDraft
	}
	switch strings.ToUpper(in.State) {
	case "MERGED":
		return pr.StatusMerged
	case "CLOSED":
		return pr.StatusClosed
	default:
		return pr.StatusOpen
	}
}

func (r reviewRequest) display() string {
	switch {
	case r.Login != "":
		return r.Login
	case r.Slug != "":
		return r.Slug
	default:
		return r.Name
	}
}

func (c *Client) gh(ctx context.Context, args ...string) ([]byte, error) {
	c.logger.Debug("gh", "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, "gh", args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}
