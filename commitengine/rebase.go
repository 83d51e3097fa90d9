package commitengine

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gitbutlerapp/vbranch-core/odb"
)

// Rewrite is one entry of rebase_descendants' result: the old/new commit
// ids of one rewritten commit and whether its replay conflicted (§4.5.1).
type Rewrite struct {
	OldCommit  odb.ObjectId
	NewCommit  odb.ObjectId
	Conflicted bool
}

// Chain is the ancestor-to-descendant ordered list of commits to replay,
// as found by walking a stack's tip down to (but not including) baseOld.
type Chain []odb.ObjectId

// FindDescendants walks tip down to the first commit whose parent is
// baseOld, returning the chain in ancestor-first (oldest first) order.
// Returns an empty chain if tip does not descend from baseOld at all.
func FindDescendants(store *odb.Store, tip, baseOld odb.ObjectId) (Chain, error) {
	var reversed []odb.ObjectId
	cursor := tip
	for cursor != baseOld {
		if cursor == odb.ZeroID {
			return nil, nil
		}
		c, err := store.Commit(cursor)
		if err != nil {
			return nil, err
		}
		reversed = append(reversed, cursor)
		if len(c.ParentHashes) == 0 {
			return nil, nil
		}
		cursor = c.ParentHashes[0]
	}
	chain := make(Chain, len(reversed))
	for i, id := range reversed {
		chain[len(reversed)-1-i] = id
	}
	return chain, nil
}

// RebaseDescendants replays chain (ancestor-first) onto baseNew, one
// replacement commit per original, preserving author/message/committer.
// On a conflicting merge the replacement commit still gets written (marker
// tree with both sides) and is flagged Conflicted, matching the workspace
// commit's "always exists" contract (§4.5.1, §9).
func RebaseDescendants(store *odb.Store, baseNew odb.ObjectId, chain Chain) ([]Rewrite, *Mapping, error) {
	mapping := NewMapping()
	var rewrites []Rewrite

	newParent := baseNew
	for _, old := range chain {
		oldCommit, err := store.Commit(old)
		if err != nil {
			return nil, nil, fmt.Errorf("commitengine: rebase: load %s: %w", old, err)
		}
		if len(oldCommit.ParentHashes) == 0 {
			return nil, nil, fmt.Errorf("commitengine: rebase: commit %s has no parent", old)
		}
		parentCommit, err := store.Commit(oldCommit.ParentHashes[0])
		if err != nil {
			return nil, nil, fmt.Errorf("commitengine: rebase: load parent of %s: %w", old, err)
		}
		newParentCommit, err := store.Commit(newParent)
		if err != nil {
			return nil, nil, fmt.Errorf("commitengine: rebase: load new parent %s: %w", newParent, err)
		}

		conflicted := false
		merged, err := store.Merge3(parentCommit.TreeHash, newParentCommit.TreeHash, oldCommit.TreeHash, func(path string, base, ours, theirs *odb.ChangeState) (odb.ChangeState, error) {
			conflicted = true
			if theirs != nil {
				return *theirs, nil
			}
			if ours != nil {
				return *ours, nil
			}
			return odb.ChangeState{}, fmt.Errorf("commitengine: rebase conflict at %s with no content on either side", path)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("commitengine: rebase: merge %s: %w", old, err)
		}

		newID, err := store.WriteCommit(object.Commit{
			Author:       oldCommit.Author,
			Committer:    oldCommit.Committer,
			Message:      oldCommit.Message,
			TreeHash:     merged.TreeID,
			ParentHashes: []odb.ObjectId{newParent},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("commitengine: rebase: write replacement for %s: %w", old, err)
		}

		mapping.Record(old, newID)
		rewrites = append(rewrites, Rewrite{OldCommit: old, NewCommit: newID, Conflicted: conflicted})
		newParent = newID
	}

	return rewrites, mapping, nil
}
