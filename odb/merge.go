package odb

import "sort"

// MergeResult is the outcome of a 3-way tree merge (§4.4, §4.5.1, §4.6).
// TreeID is always populated, even when Conflicted is true: a conflicting
// path holds whatever the markConflict callback returns, or base's state
// when no callback is given, rather than being signaled as an error.
type MergeResult struct {
	TreeID        ObjectId
	Conflicted    bool
	ConflictPaths []string
}

// Merge3 merges ours and theirs over base. For each path:
//   - unchanged on one side: take the other side's state
//   - changed identically on both sides: take that state (no conflict)
//   - changed differently on both sides: conflict; the path is resolved by
//     markConflict, which may either reject it (caller wants a clean merge)
//     or synthesize marker content (workspace builder, §9).
func (s *Store) Merge3(base, ours, theirs ObjectId, markConflict func(path string, base, ours, theirs *ChangeState) (ChangeState, error)) (*MergeResult, error) {
	baseMap, err := s.WalkPaths(base)
	if err != nil {
		return nil, err
	}
	oursMap, err := s.WalkPaths(ours)
	if err != nil {
		return nil, err
	}
	theirsMap, err := s.WalkPaths(theirs)
	if err != nil {
		return nil, err
	}

	paths := map[string]struct{}{}
	for p := range baseMap {
		paths[p] = struct{}{}
	}
	for p := range oursMap {
		paths[p] = struct{}{}
	}
	for p := range theirsMap {
		paths[p] = struct{}{}
	}

	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	result := &MergeResult{TreeID: base}
	for _, p := range sorted {
		b, bok := baseMap[p]
		o, ook := oursMap[p]
		t, took := theirsMap[p]

		var bp, op, tp *ChangeState
		if bok {
			bp = &b
		}
		if ook {
			op = &o
		}
		if took {
			tp = &t
		}

		final, changed, conflict, err := merge3Path(bp, op, tp)
		if err != nil {
			return nil, err
		}

		if conflict {
			result.Conflicted = true
			result.ConflictPaths = append(result.ConflictPaths, p)
			if markConflict == nil {
				continue
			}
			resolved, err := markConflict(p, bp, op, tp)
			if err != nil {
				return nil, err
			}
			final = &resolved
			changed = true
		}

		if !changed {
			continue
		}

		var newTree ObjectId
		if final == nil {
			newTree, err = s.RemovePath(result.TreeID, p)
		} else {
			newTree, err = s.UpsertPath(result.TreeID, p, *final)
		}
		if err != nil {
			return nil, err
		}
		result.TreeID = newTree
	}

	return result, nil
}

// merge3Path applies the classic 3-way rule to a single path. changed
// reports whether result.TreeID needs touching at all (both sides already
// agree with base, or with each other).
func merge3Path(base, ours, theirs *ChangeState) (final *ChangeState, changed bool, conflict bool, err error) {
	sameState := func(a, b *ChangeState) bool {
		if a == nil || b == nil {
			return a == b
		}
		return *a == *b
	}

	if sameState(ours, theirs) {
		// both sides agree (including both-deleted); nothing to splice if
		// it also matches base, otherwise splice ours (== theirs).
		return ours, !sameState(base, ours), false, nil
	}

	if sameState(base, ours) {
		// only theirs changed
		return theirs, true, false, nil
	}

	if sameState(base, theirs) {
		// only ours changed
		return ours, true, false, nil
	}

	// both sides changed, and not to the same thing: conflict.
	return nil, false, true, nil
}

// CherryPickTree synthesizes the tree that results from applying the diff
// of (parent -> commit) onto target, i.e. a 3-way merge with base = parent,
// ours = target, theirs = commit. Used by squash_commits to replay a
// source commit's change onto a different base (§4.5).
func (s *Store) CherryPickTree(parentTree, commitTree, targetTree ObjectId) (*MergeResult, error) {
	return s.Merge3(parentTree, targetTree, commitTree, nil)
}
