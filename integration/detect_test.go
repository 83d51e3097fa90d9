package integration

import (
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"

	"github.com/gitbutlerapp/vbranch-core/odb"
)

var testIdentity = object.Signature{Name: "t", Email: "t@t", When: time.Unix(0, 0).UTC()}

func newTestStore(t *testing.T) *odb.Store {
	t.Helper()
	repo, err := git.Init(memory.NewStorage(), nil)
	require.NoError(t, err)
	return odb.Open(repo)
}

func writeFile(t *testing.T, store *odb.Store, tree odb.ObjectId, path, content string) odb.ObjectId {
	t.Helper()
	blob, err := store.WriteBlob([]byte(content))
	require.NoError(t, err)
	newTree, err := store.UpsertPath(tree, path, odb.ChangeState{ID: blob, Kind: odb.KindBlob})
	require.NoError(t, err)
	return newTree
}

func writeCommit(t *testing.T, store *odb.Store, tree odb.ObjectId, parents []odb.ObjectId, msg string) odb.ObjectId {
	t.Helper()
	id, err := store.WriteCommit(object.Commit{
		Author:       testIdentity,
		Committer:    testIdentity,
		Message:      msg,
		TreeHash:     tree,
		ParentHashes: parents,
	})
	require.NoError(t, err)
	return id
}

func TestIsCommitIntegratedExactMatch(t *testing.T) {
	store := newTestStore(t)

	tree0 := writeFile(t, store, odb.ZeroID, "a.txt", "base")
	target := writeCommit(t, store, tree0, nil, "target")

	tree1 := writeFile(t, store, tree0, "b.txt", "upstream-change")
	upstream := writeCommit(t, store, tree1, []odb.ObjectId{target}, "upstream commit")

	ok, err := IsCommitIntegrated(store, target, upstream, upstream)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsCommitIntegratedNotReachable(t *testing.T) {
	store := newTestStore(t)

	tree0 := writeFile(t, store, odb.ZeroID, "a.txt", "base")
	target := writeCommit(t, store, tree0, nil, "target")

	tree1 := writeFile(t, store, tree0, "x.txt", "local work")
	local := writeCommit(t, store, tree1, []odb.ObjectId{target}, "local only commit")

	// upstream never saw `local`, so it isn't integrated.
	ok, err := IsCommitIntegrated(store, target, target, local)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsCommitIntegratedPatchEquivalent(t *testing.T) {
	store := newTestStore(t)

	tree0 := writeFile(t, store, odb.ZeroID, "a.txt", "base")
	target := writeCommit(t, store, tree0, nil, "target")

	// Upstream applies the same change as `local`, but as a fresh commit
	// with a different id (e.g. the user's local commit got squashed and
	// pushed as something else upstream).
	treeChange := writeFile(t, store, tree0, "x.txt", "local work")
	local := writeCommit(t, store, treeChange, []odb.ObjectId{target}, "local only commit")
	upstream := writeCommit(t, store, treeChange, []odb.ObjectId{target}, "upstream equivalent commit")

	ok, err := IsCommitIntegrated(store, target, upstream, local)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsCommitIntegratedSameAsTarget(t *testing.T) {
	store := newTestStore(t)
	tree0 := writeFile(t, store, odb.ZeroID, "a.txt", "base")
	target := writeCommit(t, store, tree0, nil, "target")

	ok, err := IsCommitIntegrated(store, target, target, target)
	require.NoError(t, err)
	require.False(t, ok)
}
