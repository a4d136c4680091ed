// Package pr holds the pull request model shared by the store, the scheduler
// and the views.
package pr

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Role is the relationship between the configured user and a pull request.
type Role int

const (
	RoleReviewRequested Role = iota
	RoleAuthored
)

// Roles lists every role in display order.
var Roles = []Role{RoleReviewRequested, RoleAuthored}

func (r Role) String() string {
	switch r {
	case RoleReviewRequested:
		return "review_requested"
	case RoleAuthored:
		return "authored"
	default:
		return "unknown"
	}
}

// Title is the human-readable tab name.
func (r Role) Title() string {
	switch r {
	case RoleReviewRequested:
		return "Review Requested"
	case RoleAuthored:
		return "My Pull Requests"
	default:
		return "Unknown"
	}
}

type Status string

const (
	StatusOpen   Status = "open"
	StatusDraft  Status = "draft"
	StatusMerged Status = "merged"
	StatusClosed Status = "closed"
)

// IsOpen reports whether the status belongs to the open class (open or draft).
func (s Status) IsOpen() bool {
	return s == StatusOpen || s == StatusDraft
}

// Repository is a configured GitHub repository. LocalPath is passed through
// to the review action untouched.
type Repository struct {
	Owner     string
	Name      string
	LocalPath string
}

func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// ID identifies a pull request across repositories.
type ID struct {
	Repo   string
	Number int
}

func (id ID) String() string {
	return fmt.Sprintf("%s#%d", id.Repo, id.Number)
}

// PullRequest is an immutable snapshot of one pull request. Slices must not
// be modified after the value has been committed to a store.
type PullRequest struct {
	Repo      Repository
	Number    int
	Title     string
	URL       string
	Author    string
	Status    Status
	Labels    []string
	Reviewers []string
	HeadRef   string
	BaseRef   string
	UpdatedAt time.Time
}

func (p PullRequest) ID() ID {
	return ID{Repo: p.Repo.FullName(), Number: p.Number}
}

// Matches reports whether the repository name, number or title contains
// query, ignoring case. An empty query matches everything.
func (p PullRequest) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(p.Repo.FullName()), q) ||
		strings.Contains(strconv.Itoa(p.Number), q) ||
		strings.Contains(strings.ToLower(p.Title), q)
}

// Group is every pull request of one repository within one role.
type Group struct {
	Repository   Repository
	PullRequests []PullRequest
}

// Sort orders pull requests by update time descending, then number ascending.
func Sort(prs []PullRequest) {
	slices.SortStableFunc(prs, compare)
}

func compare(a, b PullRequest) int {
	if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Number, b.Number)
}
