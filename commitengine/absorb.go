package commitengine

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gitbutlerapp/vbranch-core/diffengine"
	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
)

// AbsorbHunk is one uncommitted hunk (or whole-file claim) to fold into
// whichever existing commit last touched its path.
type AbsorbHunk struct {
	Path      string
	WholeFile bool
	State     *odb.ChangeState
	Hunks     []diffengine.Hunk
}

// AbsorbResult is the outcome of Absorb.
type AbsorbResult struct {
	// AmendedCommits maps each target commit id to the new commit that
	// replaced it.
	AmendedCommits map[odb.ObjectId]odb.ObjectId
	Mapping        *Mapping
}

// Absorb implements the commit auto-selection underlying uncommitted-change
// triage (SPEC_FULL.md §C.2): for each hunk, it walks st's tip toward
// mergeBase looking for the most recent commit that last touched the
// hunk's path, and amends the hunk into that commit; hunks on paths no
// commit in the walk touched fall back to the stack's working-head tip.
func Absorb(store *odb.Store, stacks *stack.Store, st *stack.Stack, mergeBase odb.ObjectId, hunks []AbsorbHunk, identity object.Signature) (*AbsorbResult, error) {
	head, err := st.WorkingHead()
	if err != nil {
		return nil, err
	}

	chain, err := FindDescendants(store, head.Tip, mergeBase)
	if err != nil {
		return nil, err
	}

	byTarget := map[odb.ObjectId][]HunkSelection{}
	var order []odb.ObjectId

	for _, h := range hunks {
		target, err := lastCommitTouching(store, chain, h.Path)
		if err != nil {
			return nil, err
		}
		if target == odb.ZeroID {
			target = head.Tip
		}
		if _, seen := byTarget[target]; !seen {
			order = append(order, target)
		}
		sel := HunkSelection{Path: h.Path, WholeFile: h.WholeFile, State: h.State, Hunks: h.Hunks}
		byTarget[target] = append(byTarget[target], sel)
	}

	mapping := NewMapping()
	amended := map[odb.ObjectId]odb.ObjectId{}
	affected := []*stack.Stack{st}

	for _, target := range order {
		current := mapping.Resolve(target)
		result, err := AmendCommit(store, stacks, affected, current, byTarget[target], nil, identity)
		if err != nil {
			return nil, fmt.Errorf("commitengine: absorb: amend %s: %w", target, err)
		}
		mapping.Merge(result.Mapping)
		amended[target] = result.NewCommit

		refreshed, err := stacks.Get(st.ID)
		if err != nil {
			return nil, err
		}
		affected = []*stack.Stack{refreshed}
	}

	return &AbsorbResult{AmendedCommits: amended, Mapping: mapping}, nil
}

// lastCommitTouching returns the newest commit in chain (searched from the
// tip end backward) whose diff against its parent touches path, or ZeroID
// if none does.
func lastCommitTouching(store *odb.Store, chain Chain, path string) (odb.ObjectId, error) {
	for i := len(chain) - 1; i >= 0; i-- {
		c := chain[i]
		commit, err := store.Commit(c)
		if err != nil {
			return odb.ZeroID, err
		}
		if len(commit.ParentHashes) == 0 {
			continue
		}
		parentCommit, err := store.Commit(commit.ParentHashes[0])
		if err != nil {
			return odb.ZeroID, err
		}
		changes, err := diffengine.TreeChanges(store, parentCommit.TreeHash, commit.TreeHash)
		if err != nil {
			return odb.ZeroID, err
		}
		for _, ch := range changes {
			if ch.Path == path {
				return c, nil
			}
		}
	}
	return odb.ZeroID, nil
}
