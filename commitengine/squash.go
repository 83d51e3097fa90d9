package commitengine

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
)

// SquashResult is the outcome of SquashCommits.
type SquashResult struct {
	SquashedCommit odb.ObjectId
	Mapping        *Mapping
}

// SquashCommits builds one replacement commit for destination plus every
// source (sources must be given oldest-first, each a descendant of
// destination, i.e. "squash down"), by replaying each source's
// diff-against-its-parent onto the accumulator in turn. The replacement
// keeps destination's parents; descendants of the newest source are
// rebased onto it (§4.5's squash_commits).
func SquashCommits(store *odb.Store, stacks *stack.Store, st *stack.Stack, sources []odb.ObjectId, destination odb.ObjectId, message *string, identity object.Signature) (*SquashResult, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("commitengine: squash_commits: no sources given")
	}

	destCommit, err := store.Commit(destination)
	if err != nil {
		return nil, fmt.Errorf("commitengine: squash_commits: load destination: %w", err)
	}

	for _, src := range sources {
		ok, err := store.IsAncestor(destination, src)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("commitengine: squash_commits: destination %s is not an ancestor of source %s", destination, src)
		}
	}

	accumulator := destCommit.TreeHash
	var messages []string
	messages = append(messages, destCommit.Message)

	for _, src := range sources {
		srcCommit, err := store.Commit(src)
		if err != nil {
			return nil, fmt.Errorf("commitengine: squash_commits: load source %s: %w", src, err)
		}
		if len(srcCommit.ParentHashes) == 0 {
			return nil, fmt.Errorf("commitengine: squash_commits: source %s has no parent", src)
		}
		parentCommit, err := store.Commit(srcCommit.ParentHashes[0])
		if err != nil {
			return nil, fmt.Errorf("commitengine: squash_commits: load parent of %s: %w", src, err)
		}

		merged, err := store.CherryPickTree(parentCommit.TreeHash, srcCommit.TreeHash, accumulator)
		if err != nil {
			return nil, fmt.Errorf("commitengine: squash_commits: replay %s: %w", src, err)
		}
		accumulator = merged.TreeID
		messages = append(messages, srcCommit.Message)
	}

	finalMessage := strings.Join(messages, "\n")
	if message != nil {
		finalMessage = *message
	}

	newID, err := store.WriteCommit(object.Commit{
		Author:       identity,
		Committer:    identity,
		Message:      finalMessage,
		TreeHash:     accumulator,
		ParentHashes: destCommit.ParentHashes,
	})
	if err != nil {
		return nil, fmt.Errorf("commitengine: squash_commits: write: %w", err)
	}

	mapping := NewMapping()
	for _, src := range sources {
		mapping.Record(src, newID)
	}
	mapping.Record(destination, newID)

	newest := sources[len(sources)-1]
	head, err := st.WorkingHead()
	if err != nil {
		return nil, err
	}

	if head.Tip == newest {
		if _, err := stacks.AppendCommit(store, st.ID, newID, true); err != nil {
			return nil, err
		}
	} else {
		chain, err := FindDescendants(store, head.Tip, newest)
		if err != nil {
			return nil, err
		}
		if len(chain) > 0 {
			_, rebaseMapping, err := RebaseDescendants(store, newID, chain)
			if err != nil {
				return nil, err
			}
			mapping.Merge(rebaseMapping)
		}
		if _, err := stacks.AppendCommit(store, st.ID, mapping.Resolve(head.Tip), true); err != nil {
			return nil, err
		}
	}

	return &SquashResult{SquashedCommit: newID, Mapping: mapping}, nil
}
