// Package diffengine computes per-file, per-hunk changes of the working
// tree against a target commit (WorktreeChanges) and tree-to-tree changes
// (TreeChanges), respecting index/worktree semantics and ignored-change
// classification (§4.1).
package diffengine

import "github.com/gitbutlerapp/vbranch-core/odb"

// StatusKind tags the TreeChange variant (§3).
type StatusKind int

const (
	StatusAddition StatusKind = iota
	StatusDeletion
	StatusModification
	StatusRename
)

func (k StatusKind) String() string {
	switch k {
	case StatusAddition:
		return "addition"
	case StatusDeletion:
		return "deletion"
	case StatusModification:
		return "modification"
	case StatusRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ModFlag is the Modification/Rename `flags` field (§3).
type ModFlag int

const (
	ModNone ModFlag = iota
	ModExecutableBitAdded
	ModExecutableBitRemoved
	ModTypeChangeFileToLink
	ModTypeChangeLinkToFile
)

// TreeChange is `{ path, status }` from §3, flattened into one struct since
// Go has no tagged unions; Status says which fields are meaningful.
//
//   - Addition:     State, IsUntracked
//   - Deletion:     PreviousState
//   - Modification: PreviousState, State, Flags
//   - Rename:       PreviousPath, PreviousState, State, Flags
type TreeChange struct {
	Path         string
	Status       StatusKind
	PreviousPath string

	PreviousState *odb.ChangeState
	State         *odb.ChangeState
	IsUntracked   bool
	Flags         ModFlag
}

// IgnoreReason tags why a path was placed in WorktreeChanges.Ignored (§3).
type IgnoreReason int

const (
	ReasonConflict IgnoreReason = iota
	ReasonTreeIndex
	ReasonTreeIndexWorktreeChangeIneffective
)

func (r IgnoreReason) String() string {
	switch r {
	case ReasonConflict:
		return "conflict"
	case ReasonTreeIndex:
		return "tree-index"
	case ReasonTreeIndexWorktreeChangeIneffective:
		return "tree-index-worktree-change-ineffective"
	default:
		return "unknown"
	}
}

// IgnoredChange is `{ path, reason }` from §3.
type IgnoredChange struct {
	Path   string
	Reason IgnoreReason
}

// WorktreeChanges is `{ changes, ignored }` from §3: the result of diffing
// index+worktree against a HEAD tree.
type WorktreeChanges struct {
	Changes []TreeChange
	Ignored []IgnoredChange
}
