package vbranch

import (
	"errors"
	"fmt"

	"github.com/gitbutlerapp/vbranch-core/stack"
)

// The §7 error taxonomy. Every operation returns one of these (wrapped
// with %w over the underlying cause) so callers can classify failures
// with errors.Is without string matching.
var (
	// ErrInvalidArgument covers a malformed commit id, an unknown stack, or
	// an empty shard list in split-commit.
	ErrInvalidArgument = errors.New("vbranch: invalid argument")
	// ErrStateConflict covers a squash whose source/destination are on
	// different stacks, a path outside the source commit, or a hunk locked
	// by another stack.
	ErrStateConflict = errors.New("vbranch: state conflict")
	// ErrIOError wraps an ODB or filesystem failure. Never recovered
	// locally; always surfaced.
	ErrIOError = errors.New("vbranch: io error")
	// ErrLockHeld means another operation is in progress on this stack or
	// the worktree. Retryable by the caller.
	ErrLockHeld = errors.New("vbranch: lock held by another operation")
	// ErrNotAnAncestor means a squash destination is not an ancestor of a
	// source.
	ErrNotAnAncestor = errors.New("vbranch: squash destination is not an ancestor of source")
	// ErrVerificationFailed means HEAD does not point at the workspace
	// ref; the user must re-check-out before continuing.
	ErrVerificationFailed = errors.New("vbranch: HEAD does not point at the workspace ref")
)

// MergeConflictReport is the structured error §7 requires for
// MergeConflict: produced during rebase, integration, or workspace
// rebuild. The operation still completes, with the stack marked
// conflicted, rather than being rolled back.
type MergeConflictReport struct {
	StackID          stack.StackId
	ConflictingPaths []string
}

func (r *MergeConflictReport) Error() string {
	return fmt.Sprintf("vbranch: stack %s has %d conflicting path(s)", r.StackID, len(r.ConflictingPaths))
}

// IsMergeConflict reports whether err is (or wraps) a MergeConflictReport.
func IsMergeConflict(err error) bool {
	var report *MergeConflictReport
	return errors.As(err, &report)
}
