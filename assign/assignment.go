// Package assign implements the hunk-assignment / ownership model (L2): it
// maps every uncommitted hunk to at most one stack, and reconciles that
// mapping as the worktree changes underneath it (§4.2).
package assign

import (
	"github.com/google/uuid"

	"github.com/gitbutlerapp/vbranch-core/diffengine"
	"github.com/gitbutlerapp/vbranch-core/odb"
)

// HunkLock records that some commit on some stack already touched this
// hunk's lines, making a reassignment to a different stack unsafe without
// an explicit force (§3, §4.2).
type HunkLock struct {
	CommitID odb.ObjectId
	StackID  uuid.UUID
}

// HunkAssignment is `{ path, hunk_header?, stack_id?, hunk_locks }` (§3).
// A nil HunkHeader means "the whole file is claimed" (new/deleted/binary
// files). A nil StackID means unassigned (falls back to the leftmost
// stack at commit time).
type HunkAssignment struct {
	Path       string
	HunkHeader *diffengine.HunkHeader
	StackID    *uuid.UUID
	HunkLocks  []HunkLock
}

// IsWholeFile reports whether this assignment claims an entire path rather
// than one hunk within it.
func (a HunkAssignment) IsWholeFile() bool {
	return a.HunkHeader == nil
}

// Locked reports whether any lock is present, i.e. reassigning this
// assignment to a different stack requires force.
func (a HunkAssignment) Locked() bool {
	return len(a.HunkLocks) > 0
}

// LockedToOtherStack reports whether any lock names a stack other than
// target, which is the forbidden-without-force condition in §4.2.
func (a HunkAssignment) LockedToOtherStack(target uuid.UUID) bool {
	for _, l := range a.HunkLocks {
		if l.StackID != target {
			return true
		}
	}
	return false
}

// overlapsHeader reports whether this assignment's hunk overlaps h. Used
// by reconciliation to find the current hunk a stored assignment maps to.
func (a HunkAssignment) overlapsHeader(h diffengine.HunkHeader) bool {
	if a.HunkHeader == nil {
		return false
	}
	return a.HunkHeader.Overlaps(h)
}
