package commitengine

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
)

// CreateResult is the outcome of CreateCommit.
type CreateResult struct {
	NewCommit odb.ObjectId
	Mapping   *Mapping
}

// CreateCommit synthesizes a tree from the given hunk selections on top of
// parent (defaulting to the stack's current tip), writes the new commit,
// rebases the commits between parent and the old tip onto it, and advances
// the stack's working head (§4.5's create_commit).
func CreateCommit(store *odb.Store, stacks *stack.Store, st *stack.Stack, parent *odb.ObjectId, selections []HunkSelection, message string, identity object.Signature) (*CreateResult, error) {
	head, err := st.WorkingHead()
	if err != nil {
		return nil, err
	}
	oldTip := head.Tip

	parentID := oldTip
	if parent != nil {
		parentID = *parent
	}

	parentCommit, err := store.Commit(parentID)
	if err != nil {
		return nil, fmt.Errorf("commitengine: create_commit: load parent: %w", err)
	}

	newTree, err := SynthesizeTree(store, parentCommit.TreeHash, selections)
	if err != nil {
		return nil, err
	}

	newID, err := store.WriteCommit(object.Commit{
		Author:       identity,
		Committer:    identity,
		Message:      message,
		TreeHash:     newTree,
		ParentHashes: []odb.ObjectId{parentID},
	})
	if err != nil {
		return nil, fmt.Errorf("commitengine: create_commit: write: %w", err)
	}

	mapping := NewMapping()
	finalTip := newID

	if oldTip != odb.ZeroID && parentID != oldTip {
		chain, err := FindDescendants(store, oldTip, parentID)
		if err != nil {
			return nil, err
		}
		if len(chain) > 0 {
			_, rebaseMapping, err := RebaseDescendants(store, newID, chain)
			if err != nil {
				return nil, err
			}
			mapping.Merge(rebaseMapping)
			finalTip = mapping.Resolve(oldTip)
		}
	}

	if _, err := stacks.AppendCommit(store, st.ID, finalTip, true); err != nil {
		return nil, fmt.Errorf("commitengine: create_commit: advance head: %w", err)
	}

	return &CreateResult{NewCommit: newID, Mapping: mapping}, nil
}
