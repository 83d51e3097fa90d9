// Package integration implements the integration detector (L6): deciding
// whether a stack's commit has already landed upstream, so the façade can
// offer to drop it from the applied workspace (§4.6).
package integration

import (
	"github.com/gitbutlerapp/vbranch-core/odb"
)

// IsCommitIntegrated reports whether commit is already represented in
// upstream, following the five-step algorithm of §4.6.
func IsCommitIntegrated(store *odb.Store, targetSHA, upstreamTip, commit odb.ObjectId) (bool, error) {
	if commit == targetSHA {
		return false, nil
	}

	upstreamCommits, err := ancestorsExclusive(store, upstreamTip, targetSHA)
	if err != nil {
		return false, err
	}
	if len(upstreamCommits) == 0 {
		return false, nil
	}
	if upstreamCommits[commit] {
		return true, nil
	}

	mb, err := store.MergeBase(targetSHA, commit)
	if err != nil {
		return false, err
	}
	if mb == commit {
		return true, nil
	}

	mbCommit, err := store.Commit(mb)
	if err != nil {
		return false, err
	}
	upstreamCommit, err := store.Commit(upstreamTip)
	if err != nil {
		return false, err
	}
	targetCommit, err := store.Commit(commit)
	if err != nil {
		return false, err
	}

	merged, err := store.Merge3(mbCommit.TreeHash, upstreamCommit.TreeHash, targetCommit.TreeHash, nil)
	if err != nil {
		return false, err
	}
	if merged.Conflicted {
		return false, nil
	}
	return merged.TreeID == upstreamCommit.TreeHash, nil
}

// ancestorsExclusive returns every commit reachable from tip that is not
// also reachable from exclude (the set-difference of their ancestor sets,
// §4.6 step 2's "commits reachable from upstream tip but not from
// target.sha").
func ancestorsExclusive(store *odb.Store, tip, exclude odb.ObjectId) (map[odb.ObjectId]bool, error) {
	excluded, err := ancestorSet(store, exclude)
	if err != nil {
		return nil, err
	}
	all, err := ancestorSet(store, tip)
	if err != nil {
		return nil, err
	}
	for id := range excluded {
		delete(all, id)
	}
	return all, nil
}

// ancestorSet is the full transitive closure of tip's ancestry, tip
// included.
func ancestorSet(store *odb.Store, tip odb.ObjectId) (map[odb.ObjectId]bool, error) {
	visited := map[odb.ObjectId]bool{}
	if tip == odb.ZeroID {
		return visited, nil
	}
	queue := []odb.ObjectId{tip}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		c, err := store.Commit(id)
		if err != nil {
			return nil, err
		}
		for _, p := range c.ParentHashes {
			if !visited[p] {
				queue = append(queue, p)
			}
		}
	}
	return visited, nil
}
