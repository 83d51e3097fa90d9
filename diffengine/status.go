package diffengine

import (
	"io"
	"os"
	"path"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"

	"github.com/gitbutlerapp/vbranch-core/odb"
)

// leafState is the resolved on-disk or in-index state of one path, used
// internally while reconciling tree/index/worktree into one change list.
// A nil *leafState means "absent at this layer".
type leafState struct {
	id   odb.ObjectId // for worktree content: its computed blob hash; the blob is not written to the ODB
	kind odb.Kind
}

func (a *leafState) equal(b *leafState) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.id == b.id && a.kind == b.kind
}

// WorktreeChangesInput bundles what worktreeChanges needs to read: the
// object store, the worktree filesystem, and the HEAD tree to diff against.
type WorktreeChangesInput struct {
	Store    *odb.Store
	FS       billy.Filesystem
	HeadTree odb.ObjectId
}

// WorktreeChanges derives "what has the user changed since HEAD" (§4.1):
// index-vs-tree and worktree-vs-index are collapsed into one effective
// per-path result.
func WorktreeChanges(in WorktreeChangesInput) (*WorktreeChanges, error) {
	treeLeaves, err := in.Store.WalkPaths(in.HeadTree)
	if err != nil {
		return nil, err
	}

	idx, err := in.Store.Repo().Storer.Index()
	if err != nil {
		return nil, err
	}
	if idx.Version > 3 && hasSparseMarkers(idx) {
		return nil, odb.ErrSparseIndex
	}

	indexLeaves, conflicted, err := flattenIndex(idx)
	if err != nil {
		return nil, err
	}

	worktreeLeaves, err := walkWorktree(in.FS)
	if err != nil {
		return nil, err
	}

	paths := map[string]struct{}{}
	for p := range treeLeaves {
		paths[p] = struct{}{}
	}
	for p := range indexLeaves {
		paths[p] = struct{}{}
	}
	for p := range worktreeLeaves {
		paths[p] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	out := &WorktreeChanges{}
	for _, p := range sorted {
		if conflicted[p] {
			out.Ignored = append(out.Ignored, IgnoredChange{Path: p, Reason: ReasonConflict})
			continue
		}

		tl := toLeaf(treeLeaves, p)
		il := toLeaf(indexLeaves, p)
		wl := worktreeLeaves[p]

		// Untracked means "not in the index at all", independent of the
		// blob id assigned to the worktree content (§3).
		trackedInIndex := il != nil

		staged := !tl.equal(il)
		unstaged := !il.equal(wl)

		switch {
		case !staged && !unstaged:
			// Unmodified; not reported (§4.1 totality is over differing paths).
			continue
		case staged && unstaged && tl.equal(wl):
			// Tree->index changed, then reverted in the worktree: a no-op chain.
			out.Ignored = append(out.Ignored, IgnoredChange{Path: p, Reason: ReasonTreeIndexWorktreeChangeIneffective})
			continue
		case staged && unstaged:
			// The worktree change supersedes the staged one; report the
			// effective tree->worktree change and flag the staged one as masked.
			out.Ignored = append(out.Ignored, IgnoredChange{Path: p, Reason: ReasonTreeIndex})
			if c, ok := buildChange(p, tl, wl, trackedInIndex); ok {
				out.Changes = append(out.Changes, c)
			}
		default:
			// Either staged-only or unstaged-only; diff tree against whichever
			// of index/worktree is the current effective state.
			effective := il
			if unstaged {
				effective = wl
			}
			if c, ok := buildChange(p, tl, effective, trackedInIndex); ok {
				out.Changes = append(out.Changes, c)
			}
		}
	}

	detectRenames(out)
	return out, nil
}

func toLeaf(m map[string]odb.ChangeState, p string) *leafState {
	s, ok := m[p]
	if !ok {
		return nil
	}
	return &leafState{id: s.ID, kind: s.Kind}
}

// buildChange classifies a single path's before/after leaf state into a
// TreeChange. trackedInIndex reports whether the path currently has an
// entry in the index, which is what distinguishes an untracked new file
// from a staged addition (both can carry a non-zero worktree blob id).
// Returns ok=false only when both before and after are nil.
func buildChange(p string, before, after *leafState, trackedInIndex bool) (TreeChange, bool) {
	switch {
	case before == nil && after != nil:
		st := odb.ChangeState{ID: after.id, Kind: after.kind}
		return TreeChange{
			Path:        p,
			Status:      StatusAddition,
			State:       &st,
			IsUntracked: !trackedInIndex,
		}, true
	case before != nil && after == nil:
		st := odb.ChangeState{ID: before.id, Kind: before.kind}
		return TreeChange{
			Path:          p,
			Status:        StatusDeletion,
			PreviousState: &st,
		}, true
	case before != nil && after != nil:
		bs := odb.ChangeState{ID: before.id, Kind: before.kind}
		as := odb.ChangeState{ID: after.id, Kind: after.kind}
		return TreeChange{
			Path:          p,
			Status:        StatusModification,
			PreviousState: &bs,
			State:         &as,
			Flags:         modFlag(before.kind, after.kind),
		}, true
	default:
		return TreeChange{}, false
	}
}

func modFlag(before, after odb.Kind) ModFlag {
	switch {
	case before == odb.KindBlob && after == odb.KindBlobExecutable:
		return ModExecutableBitAdded
	case before == odb.KindBlobExecutable && after == odb.KindBlob:
		return ModExecutableBitRemoved
	case before == odb.KindBlob && after == odb.KindLink:
		return ModTypeChangeFileToLink
	case before == odb.KindLink && after == odb.KindBlob:
		return ModTypeChangeLinkToFile
	default:
		return ModNone
	}
}

// flattenIndex reduces the git index to one leaf per merged path, plus the
// set of paths that are conflicted (any non-Merged stage present).
func flattenIndex(idx *index.Index) (map[string]odb.ChangeState, map[string]bool, error) {
	leaves := map[string]odb.ChangeState{}
	conflicted := map[string]bool{}
	for _, e := range idx.Entries {
		if e.Stage != index.Merged {
			conflicted[e.Name] = true
			continue
		}
		leaves[e.Name] = odb.ChangeState{ID: e.Hash, Kind: kindFromIndexMode(e.Mode)}
	}
	for p := range conflicted {
		delete(leaves, p)
	}
	return leaves, conflicted, nil
}

func kindFromIndexMode(mode filemode.FileMode) odb.Kind {
	switch mode {
	case filemode.Executable:
		return odb.KindBlobExecutable
	case filemode.Symlink:
		return odb.KindLink
	case filemode.Submodule:
		return odb.KindCommit
	default:
		return odb.KindBlob
	}
}

func hasSparseMarkers(idx *index.Index) bool {
	for _, e := range idx.Entries {
		if e.SkipWorktree {
			return true
		}
	}
	return false
}

// walkWorktree flattens the on-disk worktree into path -> leaf state. Blob
// ids are the git blob hash computed from the content; the content itself
// is not written into the ODB. Non-regular files (fifo/socket/device)
// are invisible, per §4.1.
func walkWorktree(fs billy.Filesystem) (map[string]*leafState, error) {
	out := map[string]*leafState{}
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := fs.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			if e.Name() == ".git" {
				continue
			}
			full := path.Join(dir, e.Name())
			if e.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			if e.Mode()&os.ModeSymlink != 0 {
				target, err := fs.Readlink(full)
				if err != nil {
					return err
				}
				out[full] = &leafState{id: plumbing.ComputeHash(plumbing.BlobObject, []byte(target)), kind: odb.KindLink}
				continue
			}
			if !e.Mode().IsRegular() {
				// fifo, socket, device node: invisible to the diff engine.
				continue
			}
			content, err := readFile(fs, full)
			if err != nil {
				return err
			}
			kind := odb.KindBlob
			if e.Mode()&0o111 != 0 {
				kind = odb.KindBlobExecutable
			}
			out[full] = &leafState{id: plumbing.ComputeHash(plumbing.BlobObject, content), kind: kind}
		}
		return nil
	}
	if err := walk("."); err != nil {
		return nil, err
	}
	return out, nil
}

func readFile(fs billy.Filesystem, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
