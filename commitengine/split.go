package commitengine

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gitbutlerapp/vbranch-core/diffengine"
	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
)

// Shard is one `{message, paths}` entry of a split_commit request.
type Shard struct {
	Message string
	Paths   []string
}

// SplitResult is the outcome of SplitCommit. NewCommits is in the same
// order as the input shards (child-most first).
type SplitResult struct {
	NewCommits []odb.ObjectId
	Mapping    *Mapping
}

// SplitCommit replaces source with one commit per shard, stacked
// child-first, where shards.last() sits directly on source's old parent
// (§4.5's split_commit). The union of shard paths must equal exactly the
// paths source touched relative to its parent, with no overlap and no
// empty shard.
func SplitCommit(store *odb.Store, stacks *stack.Store, st *stack.Stack, source odb.ObjectId, shards []Shard, identity object.Signature) (*SplitResult, error) {
	if len(shards) == 0 {
		return nil, fmt.Errorf("commitengine: split_commit: no shards given")
	}

	srcCommit, err := store.Commit(source)
	if err != nil {
		return nil, fmt.Errorf("commitengine: split_commit: load source: %w", err)
	}
	if len(srcCommit.ParentHashes) == 0 {
		return nil, fmt.Errorf("commitengine: split_commit: source has no parent")
	}
	parentID := srcCommit.ParentHashes[0]
	parentCommit, err := store.Commit(parentID)
	if err != nil {
		return nil, fmt.Errorf("commitengine: split_commit: load parent: %w", err)
	}

	changes, err := diffengine.TreeChanges(store, parentCommit.TreeHash, srcCommit.TreeHash)
	if err != nil {
		return nil, err
	}

	if err := validateShardPartition(changes, shards); err != nil {
		return nil, err
	}

	// Build child-most first in the result slice, but construct commits
	// from the parent upward: shards[last] sits directly on parentID.
	newParent := parentID
	built := make([]odb.ObjectId, len(shards))
	for i := len(shards) - 1; i >= 0; i-- {
		selections := selectionsForPaths(changes, srcCommit.TreeHash, shards[i].Paths)
		tree, err := SynthesizeTree(store, parentCommit.TreeHash, selections)
		if err != nil {
			return nil, err
		}
		// SynthesizeTree above always starts from the *original* parent
		// tree; re-base that result onto the accumulated newParent tree so
		// earlier shards' changes are carried forward too.
		if newParent != parentID {
			newParentCommit, err := store.Commit(newParent)
			if err != nil {
				return nil, err
			}
			merged, err := store.Merge3(parentCommit.TreeHash, newParentCommit.TreeHash, tree, nil)
			if err != nil {
				return nil, err
			}
			tree = merged.TreeID
		}

		id, err := store.WriteCommit(object.Commit{
			Author:       identity,
			Committer:    identity,
			Message:      shards[i].Message,
			TreeHash:     tree,
			ParentHashes: []odb.ObjectId{newParent},
		})
		if err != nil {
			return nil, err
		}
		built[i] = id
		newParent = id
	}

	mapping := NewMapping()
	mapping.Record(source, newParent)

	head, err := st.WorkingHead()
	if err != nil {
		return nil, err
	}
	if head.Tip == source {
		if _, err := stacks.AppendCommit(store, st.ID, newParent, true); err != nil {
			return nil, err
		}
	} else {
		chain, err := FindDescendants(store, head.Tip, source)
		if err != nil {
			return nil, err
		}
		if len(chain) > 0 {
			_, rebaseMapping, err := RebaseDescendants(store, newParent, chain)
			if err != nil {
				return nil, err
			}
			mapping.Merge(rebaseMapping)
		}
		if _, err := stacks.AppendCommit(store, st.ID, mapping.Resolve(head.Tip), true); err != nil {
			return nil, err
		}
	}

	return &SplitResult{NewCommits: built, Mapping: mapping}, nil
}

func validateShardPartition(changes []diffengine.TreeChange, shards []Shard) error {
	touched := map[string]bool{}
	for _, c := range changes {
		touched[c.Path] = true
	}

	seen := map[string]bool{}
	for _, sh := range shards {
		if len(sh.Paths) == 0 {
			return fmt.Errorf("commitengine: split_commit: shard %q has no paths", sh.Message)
		}
		for _, p := range sh.Paths {
			if !touched[p] {
				return fmt.Errorf("commitengine: split_commit: path %q is not touched by source", p)
			}
			if seen[p] {
				return fmt.Errorf("commitengine: split_commit: path %q claimed by more than one shard", p)
			}
			seen[p] = true
		}
	}
	if len(seen) != len(touched) {
		return fmt.Errorf("commitengine: split_commit: shards do not cover every path touched by source")
	}
	return nil
}

func selectionsForPaths(changes []diffengine.TreeChange, finalTree odb.ObjectId, paths []string) []HunkSelection {
	want := map[string]bool{}
	for _, p := range paths {
		want[p] = true
	}

	var out []HunkSelection
	for _, c := range changes {
		if !want[c.Path] {
			continue
		}
		if c.Status == diffengine.StatusDeletion {
			out = append(out, HunkSelection{Path: c.Path, WholeFile: true, State: nil})
			continue
		}
		if c.Status == diffengine.StatusRename && c.PreviousPath != "" {
			out = append(out, HunkSelection{Path: c.PreviousPath, WholeFile: true, State: nil})
		}
		out = append(out, HunkSelection{Path: c.Path, WholeFile: true, State: c.State})
	}
	return out
}
