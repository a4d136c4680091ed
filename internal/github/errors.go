package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies why a repository could not be fetched.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindRateLimited ErrorKind = "rate_limited"
	KindAuth        ErrorKind = "auth"
	KindNotFound    ErrorKind = "not_found"
	KindTimeout     ErrorKind = "timeout"
	KindUnknown     ErrorKind = "unknown"
)

// Transient reports whether retrying on the next cycle may succeed without
// any configuration change.
func (k ErrorKind) Transient() bool {
	return k != KindAuth && k != KindNotFound
}

// FetchError is returned by Client.Fetch for every failed request.
type FetchError struct {
	Kind ErrorKind
	Repo string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.Repo, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Status is the short line shown next to a stale repository.
func (e *FetchError) Status() string {
	switch e.Kind {
	case KindNetwork:
		return "network error"
	case KindRateLimited:
		return "rate limited"
	case KindAuth:
		return "authentication failed"
	case KindNotFound:
		return "repository not found"
	case KindTimeout:
		return "timed out"
	default:
		return "fetch failed"
	}
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindAuth
}

// StatusText renders any fetch-related error as a one-line status.
func StatusText(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Status()
	}
	return err.Error()
}

func classify(err error, stderr string) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "secondary rate"):
		return KindRateLimited
	case strings.Contains(msg, "http 401"), strings.Contains(msg, "bad credentials"),
		strings.Contains(msg, "gh auth login"), strings.Contains(msg, "authentication"):
		return KindAuth
	case strings.Contains(msg, "could not resolve to a repository"), strings.Contains(msg, "http 404"),
		strings.Contains(msg, "not found"):
		return KindNotFound
	case strings.Contains(msg, "http 403"):
		return KindAuth
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return KindTimeout
	case strings.Contains(msg, "dial tcp"), strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "error connecting"), strings.Contains(msg, "network is unreachable"):
		return KindNetwork
	default:
		return KindUnknown
	}
}
