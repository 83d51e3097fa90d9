package diffengine

import (
	"sort"

	"github.com/gitbutlerapp/vbranch-core/odb"
)

// TreeChanges diffs two trees directly (no index/worktree involved), used
// wherever a commit is compared with its parent: absorb, split, move,
// lock detection and the façade's commit/branch change listings.
func TreeChanges(store *odb.Store, from, to odb.ObjectId) ([]TreeChange, error) {
	fromLeaves, err := store.WalkPaths(from)
	if err != nil {
		return nil, err
	}
	toLeaves, err := store.WalkPaths(to)
	if err != nil {
		return nil, err
	}

	paths := map[string]struct{}{}
	for p := range fromLeaves {
		paths[p] = struct{}{}
	}
	for p := range toLeaves {
		paths[p] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	wc := &WorktreeChanges{}
	for _, p := range sorted {
		before := toLeafFromChangeState(fromLeaves, p)
		after := toLeafFromChangeState(toLeaves, p)
		if before.equal(after) {
			continue
		}
		// Pure tree-to-tree diffs have no worktree/index concept; an
		// addition here is always a committed blob, never untracked.
		if c, ok := buildChange(p, before, after, true); ok {
			wc.Changes = append(wc.Changes, c)
		}
	}
	detectRenames(wc)
	return wc.Changes, nil
}

func toLeafFromChangeState(m map[string]odb.ChangeState, p string) *leafState {
	s, ok := m[p]
	if !ok {
		return nil
	}
	return &leafState{id: s.ID, kind: s.Kind}
}
