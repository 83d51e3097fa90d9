package commitengine

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gitbutlerapp/vbranch-core/diffengine"
	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
)

// SplitBranchResult is the outcome of SplitBranch.
type SplitBranchResult struct {
	NewStack *stack.Stack
	Mapping  *Mapping
}

// SplitBranch creates a new stack holding a path-restricted copy of
// srcStack's history (base..tip), then strips those same paths out of
// every one of srcStack's own commits (§4.5's split_branch). base is the
// commit srcStack's own history starts at (its target or fork point);
// commits that touch none of paths are skipped entirely when building
// the copy.
func SplitBranch(store *odb.Store, stacks *stack.Store, srcStack *stack.Stack, base odb.ObjectId, newBranchName string, paths []string, identity object.Signature) (*SplitBranchResult, error) {
	tip := srcStack.Tip()
	chain, err := FindDescendants(store, tip, base)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("commitengine: split_branch: stack has no commits above base")
	}

	want := map[string]bool{}
	for _, p := range paths {
		want[p] = true
	}

	// Pass 1: replay the path-restricted copy onto a brand new stack.
	newParent := base
	for _, c := range chain {
		commit, err := store.Commit(c)
		if err != nil {
			return nil, err
		}
		if len(commit.ParentHashes) == 0 {
			return nil, fmt.Errorf("commitengine: split_branch: commit %s has no parent", c)
		}
		parentCommit, err := store.Commit(commit.ParentHashes[0])
		if err != nil {
			return nil, err
		}

		changes, err := diffengine.TreeChanges(store, parentCommit.TreeHash, commit.TreeHash)
		if err != nil {
			return nil, err
		}

		var matched []string
		for _, ch := range changes {
			if want[ch.Path] {
				matched = append(matched, ch.Path)
			}
		}
		if len(matched) == 0 {
			continue // this commit touches none of the requested paths
		}

		selections := selectionsForPaths(changes, commit.TreeHash, matched)
		baseTreeForShard := parentCommit.TreeHash
		if newParent != base {
			newParentCommit, loadErr := store.Commit(newParent)
			if loadErr != nil {
				return nil, loadErr
			}
			baseTreeForShard = newParentCommit.TreeHash
		}
		tree, err := SynthesizeTree(store, baseTreeForShard, selections)
		if err != nil {
			return nil, err
		}

		id, err := store.WriteCommit(object.Commit{
			Author:       commit.Author,
			Committer:    commit.Committer,
			Message:      commit.Message,
			TreeHash:     tree,
			ParentHashes: []odb.ObjectId{newParent},
		})
		if err != nil {
			return nil, err
		}
		newParent = id
	}
	if newParent == base {
		return nil, fmt.Errorf("commitengine: split_branch: no commit in the source stack touches the given paths")
	}

	newStack, err := stacks.Create(stack.CreateRequest{
		Heads: []stack.Head{{Name: newBranchName, Tip: newParent}},
	})
	if err != nil {
		return nil, err
	}

	// Pass 2: strip the moved paths out of every source commit, oldest
	// first, resolving each original id through the mapping accumulated
	// so far since earlier amends may already have rebased later ones.
	mapping := NewMapping()
	affected := []*stack.Stack{srcStack}
	for _, c := range chain {
		commit, err := store.Commit(c)
		if err != nil {
			return nil, err
		}
		parentCommit, err := store.Commit(commit.ParentHashes[0])
		if err != nil {
			return nil, err
		}
		changes, err := diffengine.TreeChanges(store, parentCommit.TreeHash, commit.TreeHash)
		if err != nil {
			return nil, err
		}

		var strip []string
		for _, ch := range changes {
			if want[ch.Path] {
				strip = append(strip, ch.Path)
			}
		}
		if len(strip) == 0 {
			continue
		}

		removal := revertSelections(changes, strip)
		current := mapping.Resolve(c)

		result, err := AmendCommit(store, stacks, affected, current, removal, nil, identity)
		if err != nil {
			return nil, fmt.Errorf("commitengine: split_branch: strip paths from %s: %w", c, err)
		}
		mapping.Merge(result.Mapping)

		refreshed, err := stacks.Get(srcStack.ID)
		if err != nil {
			return nil, err
		}
		affected = []*stack.Stack{refreshed}
	}

	return &SplitBranchResult{NewStack: newStack, Mapping: mapping}, nil
}

// revertSelections builds selections that put each path in paths back to
// its pre-commit (PreviousState) value, i.e. undoes that commit's touch of
// the path.
func revertSelections(changes []diffengine.TreeChange, paths []string) []HunkSelection {
	want := map[string]bool{}
	for _, p := range paths {
		want[p] = true
	}
	var out []HunkSelection
	for _, c := range changes {
		if !want[c.Path] {
			continue
		}
		out = append(out, HunkSelection{Path: c.Path, WholeFile: true, State: c.PreviousState})
	}
	return out
}
