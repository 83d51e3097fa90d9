package commitengine

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gitbutlerapp/vbranch-core/diffengine"
	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
)

// MoveResult is the outcome of MoveChangesBetweenCommits.
type MoveResult struct {
	NewSrcCommit odb.ObjectId
	NewDstCommit odb.ObjectId
	Mapping      *Mapping
}

// MoveChangesBetweenCommits removes paths from srcCommit (reverting them to
// srcCommit's parent's version, amending srcCommit) and adds their
// srcCommit-time content into dstCommit (amending dstCommit), rebasing
// descendants on whichever stacks are affected (§4.5's
// move_changes_between_commits). srcAffected/dstAffected are the stacks
// whose tips might descend from srcCommit/dstCommit respectively; when
// src and dst are on the same stack, pass the same slice for both so a
// single rebase walk covers both rewrites.
func MoveChangesBetweenCommits(store *odb.Store, stacks *stack.Store, srcStack *stack.Stack, srcCommit odb.ObjectId, srcAffected []*stack.Stack, dstStack *stack.Stack, dstCommit odb.ObjectId, dstAffected []*stack.Stack, paths []string, identity object.Signature) (*MoveResult, error) {
	src, err := store.Commit(srcCommit)
	if err != nil {
		return nil, fmt.Errorf("commitengine: move_changes: load src: %w", err)
	}
	if len(src.ParentHashes) == 0 {
		return nil, fmt.Errorf("commitengine: move_changes: src has no parent")
	}
	srcParent, err := store.Commit(src.ParentHashes[0])
	if err != nil {
		return nil, fmt.Errorf("commitengine: move_changes: load src parent: %w", err)
	}

	changes, err := diffengine.TreeChanges(store, srcParent.TreeHash, src.TreeHash)
	if err != nil {
		return nil, err
	}
	byPath := map[string]diffengine.TreeChange{}
	for _, c := range changes {
		byPath[c.Path] = c
	}

	var removeSelections, addSelections []HunkSelection
	for _, p := range paths {
		c, ok := byPath[p]
		if !ok {
			return nil, fmt.Errorf("commitengine: move_changes: path %q not touched by src commit", p)
		}

		// Revert src's copy of p back to what it was before this commit.
		if c.PreviousState == nil {
			removeSelections = append(removeSelections, HunkSelection{Path: p, WholeFile: true, State: nil})
		} else {
			removeSelections = append(removeSelections, HunkSelection{Path: p, WholeFile: true, State: c.PreviousState})
		}

		// Carry src's final state for p into dst.
		if c.Status == diffengine.StatusDeletion {
			addSelections = append(addSelections, HunkSelection{Path: p, WholeFile: true, State: nil})
		} else {
			addSelections = append(addSelections, HunkSelection{Path: p, WholeFile: true, State: c.State})
		}
	}

	srcResult, err := AmendCommit(store, stacks, srcAffected, srcCommit, removeSelections, nil, identity)
	if err != nil {
		return nil, fmt.Errorf("commitengine: move_changes: amend src: %w", err)
	}

	newDstCommit := dstCommit
	if resolved := srcResult.Mapping.Resolve(dstCommit); resolved != dstCommit {
		newDstCommit = resolved
	}

	dstResult, err := AmendCommit(store, stacks, dstAffected, newDstCommit, addSelections, nil, identity)
	if err != nil {
		return nil, fmt.Errorf("commitengine: move_changes: amend dst: %w", err)
	}

	mapping := NewMapping()
	mapping.Merge(srcResult.Mapping)
	mapping.Merge(dstResult.Mapping)

	return &MoveResult{
		NewSrcCommit: srcResult.NewCommit,
		NewDstCommit: dstResult.NewCommit,
		Mapping:      mapping,
	}, nil
}
