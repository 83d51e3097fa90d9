package commitengine

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
)

// AmendResult is the outcome of AmendCommit.
type AmendResult struct {
	NewCommit odb.ObjectId
	Mapping   *Mapping
}

// AmendCommit synthesizes a replacement tree for commitID by applying
// selections on top of it, keeps commitID's parents, optionally rewrites
// the message, and rebases every descendant of commitID across the given
// stacks onto the replacement, advancing each stack's working head
// (§4.5's amend_commit).
func AmendCommit(store *odb.Store, stacks *stack.Store, affected []*stack.Stack, commitID odb.ObjectId, selections []HunkSelection, newMessage *string, identity object.Signature) (*AmendResult, error) {
	old, err := store.Commit(commitID)
	if err != nil {
		return nil, fmt.Errorf("commitengine: amend_commit: load %s: %w", commitID, err)
	}

	newTree, err := SynthesizeTree(store, old.TreeHash, selections)
	if err != nil {
		return nil, err
	}

	message := old.Message
	if newMessage != nil {
		message = *newMessage
	}

	parents := make([]odb.ObjectId, len(old.ParentHashes))
	copy(parents, old.ParentHashes)

	newID, err := store.WriteCommit(object.Commit{
		Author:       identity,
		Committer:    identity,
		Message:      message,
		TreeHash:     newTree,
		ParentHashes: parents,
	})
	if err != nil {
		return nil, fmt.Errorf("commitengine: amend_commit: write replacement: %w", err)
	}

	mapping := NewMapping()
	mapping.Record(commitID, newID)

	for _, st := range affected {
		head, err := st.WorkingHead()
		if err != nil {
			return nil, err
		}
		if head.Tip == commitID {
			if _, err := stacks.AppendCommit(store, st.ID, newID, true); err != nil {
				return nil, err
			}
			continue
		}

		chain, err := FindDescendants(store, head.Tip, commitID)
		if err != nil {
			return nil, err
		}
		if len(chain) == 0 {
			continue
		}

		_, rebaseMapping, err := RebaseDescendants(store, newID, chain)
		if err != nil {
			return nil, err
		}
		mapping.Merge(rebaseMapping)

		if _, err := stacks.AppendCommit(store, st.ID, mapping.Resolve(head.Tip), true); err != nil {
			return nil, err
		}
	}

	return &AmendResult{NewCommit: newID, Mapping: mapping}, nil
}
