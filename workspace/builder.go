// Package workspace builds and maintains the synthetic workspace commit
// (L4): the octopus merge of every applied stack's tip over the target,
// kept in sync after each mutation and always pointed at by HEAD (§4.4).
package workspace

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
)

// Message is the fixed marker string identifying workspace commits to the
// verifier (§6).
const Message = "GitButler Workspace Commit"

// Identity is the fixed author/committer used for every workspace commit,
// with a zero timestamp so SHAs are reproducible modulo state (§6).
var Identity = object.Signature{
	Name:  "GitButler",
	Email: "gitbutler@gitbutler.com",
	When:  time.Unix(0, 0).UTC(),
}

var (
	// ErrDetachedHead is returned by Verify when HEAD is not on the
	// workspace ref at all (§4.4).
	ErrDetachedHead = errors.New("workspace: HEAD is detached or points elsewhere; re-checkout the workspace ref")
)

// Result is the outcome of (re)building the workspace commit.
type Result struct {
	CommitID   odb.ObjectId
	Conflicted []stack.StackId
}

// Build recomputes the workspace commit from target and the given applied
// stacks (already sorted by Order), writes it, and atomically moves ref to
// point at it (§4.4 steps 1-5).
func Build(store *odb.Store, ref plumbing.ReferenceName, target odb.ObjectId, stacks []stack.Stack) (*Result, error) {
	targetCommit, err := store.Commit(target)
	if err != nil {
		return nil, fmt.Errorf("workspace: load target: %w", err)
	}
	targetTree := targetCommit.TreeHash

	accumulator := targetTree
	parents := []odb.ObjectId{target}
	var conflicted []stack.StackId

	for _, st := range stacks {
		tip := st.Tip()
		if tip == odb.ZeroID {
			continue
		}
		tipCommit, err := store.Commit(tip)
		if err != nil {
			return nil, fmt.Errorf("workspace: load stack %s tip: %w", st.ID, err)
		}

		merged, err := store.Merge3(targetTree, accumulator, tipCommit.TreeHash, nil)
		if err != nil {
			return nil, fmt.Errorf("workspace: merge stack %s: %w", st.ID, err)
		}

		resultTree := merged.TreeID
		for _, path := range merged.ConflictPaths {
			var ours, theirs *odb.ChangeState
			if state, err := store.ReadPath(accumulator, path); err == nil {
				ours = &state
			}
			if state, err := store.ReadPath(tipCommit.TreeHash, path); err == nil {
				theirs = &state
			}
			resultTree, err = ConflictMarkerTree(store, resultTree, path, ours, theirs)
			if err != nil {
				return nil, fmt.Errorf("workspace: mark conflict %s in stack %s: %w", path, st.ID, err)
			}
		}

		accumulator = resultTree
		parents = append(parents, tip)
		if merged.Conflicted {
			conflicted = append(conflicted, st.ID)
		}
	}

	id, err := store.WriteCommit(object.Commit{
		Author:       Identity,
		Committer:    Identity,
		Message:      Message,
		TreeHash:     accumulator,
		ParentHashes: parents,
	})
	if err != nil {
		return nil, fmt.Errorf("workspace: write commit: %w", err)
	}

	if err := store.SetReference(ref, id); err != nil {
		return nil, fmt.Errorf("workspace: move ref: %w", err)
	}

	return &Result{CommitID: id, Conflicted: conflicted}, nil
}

// Verify checks that HEAD matches the workspace commit, and if new commits
// were appended directly past it (via external git), returns them oldest
// first; attributing them to a stack and rebuilding are left to the
// caller (§4.4's verification/heal paragraph).
func Verify(store *odb.Store, headRef, workspaceRef plumbing.ReferenceName, lastKnown odb.ObjectId) ([]odb.ObjectId, error) {
	if headRef != workspaceRef {
		return nil, ErrDetachedHead
	}
	current, err := store.Reference(workspaceRef)
	if err != nil {
		return nil, err
	}
	if current == lastKnown {
		return nil, nil
	}
	ok, err := store.IsAncestor(lastKnown, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDetachedHead
	}

	var appended []odb.ObjectId
	cursor := current
	for cursor != lastKnown {
		c, err := store.Commit(cursor)
		if err != nil {
			return nil, err
		}
		appended = append([]odb.ObjectId{cursor}, appended...)
		if len(c.ParentHashes) == 0 {
			break
		}
		cursor = c.ParentHashes[0]
	}
	return appended, nil
}
