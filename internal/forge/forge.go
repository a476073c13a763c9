// Package forge defines the Service contract the executor depends on
// and the shared PullRequest/error types. Concrete adapters
// (github.go, gitlab.go) implement it by shelling out to the forge's
// official CLI, the same subprocess-and-parse pattern gh_manager.go
// uses for `gh`.
package forge

import (
	"context"
	"fmt"
)

// State is a pull request's lifecycle state.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
	StateMerged State = "merged"
)

// PullRequest is the forge-side entity. Identity is (forge, repo, number).
type PullRequest struct {
	Number     int
	URL        string
	Title      string
	Body       string
	BaseBranch string
	HeadBranch string
	State      State
	IsDraft    bool
}

// CreateParams are the fields needed to open a new PR.
type CreateParams struct {
	Head  string
	Base  string
	Title string
	Body  string
	Draft bool
}

// Service is the capability interface the executor depends on. Each
// method fails with a *Error carrying an HTTP-equivalent status class
// and a message.
type Service interface {
	FindPRByHead(ctx context.Context, headBranch string) (*PullRequest, error)
	CreatePR(ctx context.Context, params CreateParams) (*PullRequest, error)
	UpdatePRBase(ctx context.Context, number int, newBase string) error
	PublishPR(ctx context.Context, number int) error
	UpsertStackComment(ctx context.Context, number int, body, marker string) error
	GetPR(ctx context.Context, number int) (*PullRequest, error)
	// SupportsDrafts reports whether this forge models draft PRs. Both
	// adapters report true; the planner and executor do not consult it.
	SupportsDrafts() bool
}

// StatusClass approximates an HTTP status class for forge errors.
type StatusClass int

const (
	StatusUnknown     StatusClass = 0
	StatusClient      StatusClass = 400
	StatusAuth        StatusClass = 401
	StatusNotFound    StatusClass = 404
	StatusConflict    StatusClass = 409
	StatusServer      StatusClass = 500
	StatusUnsupported StatusClass = 501
)

// Error is the forge-category error carrying a status class.
type Error struct {
	Class   StatusClass
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("forge error (%d): %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("forge error (%d): %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Unsupported builds a typed "capability unavailable" error, used when
// a forge does not model a requested feature (e.g. draft PRs).
func Unsupported(feature string) *Error {
	return &Error{Class: StatusUnsupported, Message: fmt.Sprintf("%s is not supported by this forge", feature)}
}

// Retryable reports whether err represents a transport-class failure
// eligible for the single retry permitted at the FindPRByHead/GetPR
// boundaries.
func Retryable(err error) bool {
	fe, ok := err.(*Error)
	if !ok {
		return false
	}
	switch fe.Class {
	case StatusServer, StatusUnknown:
		return true
	default:
		return false
	}
}

// WithOneRetry calls fn once, and again exactly once more if the
// first call fails with a Retryable error. Callers use this only at
// the FindPRByHead/GetPR boundaries; mutating calls (CreatePR,
// UpdatePRBase, PublishPR, UpsertStackComment) are never retried.
func WithOneRetry[T any](fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil || !Retryable(err) {
		return v, err
	}
	return fn()
}
