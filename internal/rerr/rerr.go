// Package rerr defines ryu's error taxonomy and the exit codes that map to it.
package rerr

import (
	"errors"
	"fmt"
)

// Category classifies an error by which layer raised it, per the
// propagation rules: each component surfaces its own category and
// failures are never swallowed.
type Category int

const (
	// UserInput covers unknown bookmarks, missing targets, empty
	// selections, and unauthenticated forges.
	UserInput Category = iota
	// Vcs covers workspace-not-found, unresolvable trunk, and
	// merge-bearing ancestries.
	Vcs
	// Forge covers transport, authz, validation, and conflict errors
	// from the code-forge.
	Forge
	// Planning covers contradictory constraints and unresolvable
	// cycles in the execution step graph.
	Planning
	// Internal covers invariant violations — a bug class, not a user
	// or environment problem.
	Internal
)

func (c Category) String() string {
	switch c {
	case UserInput:
		return "user input"
	case Vcs:
		return "vcs"
	case Forge:
		return "forge"
	case Planning:
		return "planning"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// ExitCode returns the process exit code for the category:
// 0 success, 1 user error, 2 forge error, 3 VCS error, 4 internal/planning.
func (c Category) ExitCode() int {
	switch c {
	case UserInput:
		return 1
	case Forge:
		return 2
	case Vcs:
		return 3
	case Planning, Internal:
		return 4
	default:
		return 1
	}
}

// Error is a category-tagged error that also carries optional
// step-level context (which bookmark, which action) so the executor
// can report exactly where a plan aborted.
type Error struct {
	Category Category
	Bookmark string
	Action   string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Bookmark != "" && e.Action != "":
		return fmt.Sprintf("%s: %s %s: %v", e.Category, e.Action, e.Bookmark, e.Err)
	case e.Bookmark != "":
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Bookmark, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a category.
func New(cat Category, err error) *Error {
	return &Error{Category: cat, Err: err}
}

// Newf builds a categorized error from a format string.
func Newf(cat Category, format string, args ...any) *Error {
	return &Error{Category: cat, Err: fmt.Errorf(format, args...)}
}

// WithStep attaches bookmark/action context to an existing categorized
// error, used by the executor when a step fails.
func WithStep(cat Category, bookmark, action string, err error) *Error {
	return &Error{Category: cat, Bookmark: bookmark, Action: action, Err: err}
}

// ExitCode extracts the exit code for any error, defaulting to 1
// (user error) for uncategorized errors so a stray error never looks
// like success.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Category.ExitCode()
	}
	return 1
}
