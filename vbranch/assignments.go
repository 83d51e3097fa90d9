package vbranch

import (
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"

	"github.com/gitbutlerapp/vbranch-core/assign"
	"github.com/gitbutlerapp/vbranch-core/commitengine"
	"github.com/gitbutlerapp/vbranch-core/diffengine"
	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
)

// pathHunksFromChanges turns one status pass's TreeChanges into the
// assign.PathHunks reconciliation expects: additions, deletions, and
// anything that isn't a plain text blob stay whole-file claims; a text
// modification is split into its actual hunks so reconciliation can track
// them individually (§4.2).
func pathHunksFromChanges(store *odb.Store, fs billy.Filesystem, changes []diffengine.TreeChange, contextLines int) ([]assign.PathHunks, error) {
	out := make([]assign.PathHunks, 0, len(changes))
	for _, c := range changes {
		if c.Status != diffengine.StatusModification || !isTextBlob(c.PreviousState) || !isTextBlob(c.State) {
			out = append(out, assign.PathHunks{Path: c.Path, WholeFile: true})
			continue
		}

		oldContent, err := store.BlobBytes(c.PreviousState.ID)
		if err != nil {
			return nil, fmt.Errorf("vbranch: read old content of %s: %w", c.Path, err)
		}
		newContent, err := readWorktreeFile(fs, c.Path)
		if err != nil {
			return nil, fmt.Errorf("vbranch: read worktree content of %s: %w", c.Path, err)
		}

		patch, err := diffengine.UnifiedPatchFor(c, oldContent, newContent, c.State.ID, contextLines, diffengine.Limits{})
		if err != nil {
			return nil, fmt.Errorf("vbranch: patch %s: %w", c.Path, err)
		}
		if patch.Kind != diffengine.PatchKindHunks {
			out = append(out, assign.PathHunks{Path: c.Path, WholeFile: true})
			continue
		}

		headers := make([]diffengine.HunkHeader, len(patch.Hunks))
		for i, h := range patch.Hunks {
			headers[i] = h.Header
		}
		out = append(out, assign.PathHunks{Path: c.Path, Headers: headers})
	}
	return out, nil
}

func isTextBlob(s *odb.ChangeState) bool {
	return s != nil && (s.Kind == odb.KindBlob || s.Kind == odb.KindBlobExecutable)
}

func readWorktreeFile(fs billy.Filesystem, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// stackLockSource implements assign.LockSource over the live stack store
// and object database: §4.2 step 5's "scan the commits of every stack
// between merge base and tip; if any commit touched overlapping lines of
// the same path, add (commit_id, S) to hunk_locks".
type stackLockSource struct {
	store        *odb.Store
	stacks       []stack.Stack
	target       odb.ObjectId
	contextLines int
}

func (l *stackLockSource) LocksForHunk(path string, header *diffengine.HunkHeader) ([]assign.HunkLock, error) {
	var locks []assign.HunkLock
	for _, st := range l.stacks {
		tip := st.Tip()
		if tip == odb.ZeroID {
			continue
		}
		base, err := l.store.MergeBase(l.target, tip)
		if err != nil {
			return nil, err
		}

		cursor := tip
		for cursor != odb.ZeroID && cursor != base {
			commit, err := l.store.Commit(cursor)
			if err != nil {
				return nil, err
			}
			if len(commit.ParentHashes) == 0 {
				break
			}
			parent, err := l.store.Commit(commit.ParentHashes[0])
			if err != nil {
				return nil, err
			}

			changes, err := diffengine.TreeChanges(l.store, parent.TreeHash, commit.TreeHash)
			if err != nil {
				return nil, err
			}
			for _, c := range changes {
				if c.Path != path {
					continue
				}
				touched, err := l.touchesHunk(c, header)
				if err != nil {
					return nil, err
				}
				if touched {
					locks = append(locks, assign.HunkLock{CommitID: cursor, StackID: st.ID})
				}
			}

			cursor = commit.ParentHashes[0]
		}
	}
	return locks, nil
}

// touchesHunk reports whether change c overlaps header (nil meaning a
// whole-file claim, which any touch to the path satisfies).
func (l *stackLockSource) touchesHunk(c diffengine.TreeChange, header *diffengine.HunkHeader) (bool, error) {
	if header == nil {
		return true, nil
	}
	if !isTextBlob(c.PreviousState) || !isTextBlob(c.State) {
		// Binary/add/delete changes claim the whole path, so they always
		// conflict with a specific-hunk claim too.
		return true, nil
	}

	oldContent, err := l.store.BlobBytes(c.PreviousState.ID)
	if err != nil {
		return false, err
	}
	newContent, err := l.store.BlobBytes(c.State.ID)
	if err != nil {
		return false, err
	}
	patch, err := diffengine.UnifiedPatchFor(c, oldContent, newContent, c.State.ID, l.contextLines, diffengine.Limits{})
	if err != nil {
		return false, err
	}
	if patch.Kind != diffengine.PatchKindHunks {
		return true, nil
	}
	for _, h := range patch.Hunks {
		if h.Header.Overlaps(*header) {
			return true, nil
		}
	}
	return false, nil
}

// resolveCommitSelections drops selections that belong to a different
// stack and keeps only the hunks/whole-file claims this stack currently
// owns, defaulting anything unassigned in the store to the leftmost stack
// in workspace order (§3: "stack_id = None means unassigned (will default
// to the leftmost stack at commit time)").
func (e *Engine) resolveCommitSelections(stackID stack.StackId, selections []commitengine.HunkSelection) ([]commitengine.HunkSelection, error) {
	if e.Assigns == nil {
		return selections, nil
	}
	assignments, err := e.Assigns.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	stacks, err := e.Stacks.ListInWorkspace()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	leftmost := stackID
	if len(stacks) > 0 {
		leftmost = stacks[0].ID
	}

	ownerOf := func(path string, header *diffengine.HunkHeader) stack.StackId {
		for _, a := range assignments {
			if a.Path != path {
				continue
			}
			if header == nil {
				if !a.IsWholeFile() {
					continue
				}
			} else if a.IsWholeFile() || !a.HunkHeader.Overlaps(*header) {
				continue
			}
			if a.StackID != nil {
				return *a.StackID
			}
			return leftmost
		}
		return leftmost
	}

	var out []commitengine.HunkSelection
	for _, sel := range selections {
		if sel.WholeFile {
			if ownerOf(sel.Path, nil) != stackID {
				continue
			}
			out = append(out, sel)
			continue
		}

		var kept []diffengine.Hunk
		for _, h := range sel.Hunks {
			header := h.Header
			if ownerOf(sel.Path, &header) == stackID {
				kept = append(kept, h)
			}
		}
		if len(kept) == 0 {
			continue
		}
		sel.Hunks = kept
		out = append(out, sel)
	}
	return out, nil
}
