package commitengine

import (
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"

	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
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

func newStackStore(t *testing.T) *stack.Store {
	t.Helper()
	s, err := stack.Open(":memory:")
	require.NoError(t, err)
	return s
}

func TestCreateCommitAdvancesHead(t *testing.T) {
	store := newTestStore(t)

	tree := writeFile(t, store, odb.ZeroID, "a.txt", "one")
	base := writeCommit(t, store, tree, nil, "base")

	stacks := newStackStore(t)
	defer stacks.Close()
	st, err := stacks.Create(stack.CreateRequest{Heads: []stack.Head{{Name: "top", Tip: base}}})
	require.NoError(t, err)

	newBlob, err := store.WriteBlob([]byte("two"))
	require.NoError(t, err)

	selections := []HunkSelection{
		{Path: "b.txt", WholeFile: true, State: &odb.ChangeState{ID: newBlob, Kind: odb.KindBlob}},
	}
	result, err := CreateCommit(store, stacks, st, nil, selections, "add b", testIdentity)
	require.NoError(t, err)

	commit, err := store.Commit(result.NewCommit)
	require.NoError(t, err)
	require.Equal(t, []odb.ObjectId{base}, commit.ParentHashes)

	got, err := store.ReadPath(commit.TreeHash, "b.txt")
	require.NoError(t, err)
	require.Equal(t, newBlob, got.ID)

	reloaded, err := stacks.Get(st.ID)
	require.NoError(t, err)
	require.Equal(t, result.NewCommit, reloaded.Heads[0].Tip)
}

func TestAmendCommitRebasesDescendant(t *testing.T) {
	store := newTestStore(t)

	tree1 := writeFile(t, store, odb.ZeroID, "a.txt", "one")
	c1 := writeCommit(t, store, tree1, nil, "c1")

	tree2 := writeFile(t, store, tree1, "b.txt", "two")
	c2 := writeCommit(t, store, tree2, []odb.ObjectId{c1}, "c2")

	stacks := newStackStore(t)
	defer stacks.Close()
	st, err := stacks.Create(stack.CreateRequest{Heads: []stack.Head{{Name: "top", Tip: c2}}})
	require.NoError(t, err)

	newBlob, err := store.WriteBlob([]byte("one-amended"))
	require.NoError(t, err)
	selections := []HunkSelection{
		{Path: "a.txt", WholeFile: true, State: &odb.ChangeState{ID: newBlob, Kind: odb.KindBlob}},
	}

	result, err := AmendCommit(store, stacks, []*stack.Stack{st}, c1, selections, nil, testIdentity)
	require.NoError(t, err)
	require.NotEqual(t, c1, result.NewCommit)

	reloaded, err := stacks.Get(st.ID)
	require.NoError(t, err)
	newTip := reloaded.Heads[0].Tip
	require.NotEqual(t, c2, newTip)

	tipCommit, err := store.Commit(newTip)
	require.NoError(t, err)
	// b.txt (from c2) must still be present after rebasing onto the amended c1.
	gotB, err := store.ReadPath(tipCommit.TreeHash, "b.txt")
	require.NoError(t, err)
	require.NotEqual(t, odb.ZeroID, gotB.ID)

	gotA, err := store.ReadPath(tipCommit.TreeHash, "a.txt")
	require.NoError(t, err)
	require.Equal(t, newBlob, gotA.ID)
}

func TestSquashCommitsCombinesTreesAndMessages(t *testing.T) {
	store := newTestStore(t)

	tree0 := writeFile(t, store, odb.ZeroID, "a.txt", "one")
	c0 := writeCommit(t, store, tree0, nil, "base")

	tree1 := writeFile(t, store, tree0, "b.txt", "two")
	c1 := writeCommit(t, store, tree1, []odb.ObjectId{c0}, "add b")

	tree2 := writeFile(t, store, tree1, "c.txt", "three")
	c2 := writeCommit(t, store, tree2, []odb.ObjectId{c1}, "add c")

	stacks := newStackStore(t)
	defer stacks.Close()
	st, err := stacks.Create(stack.CreateRequest{Heads: []stack.Head{{Name: "top", Tip: c2}}})
	require.NoError(t, err)

	result, err := SquashCommits(store, stacks, st, []odb.ObjectId{c1, c2}, c0, nil, testIdentity)
	require.NoError(t, err)

	commit, err := store.Commit(result.SquashedCommit)
	require.NoError(t, err)
	require.Nil(t, commit.ParentHashes)
	require.Equal(t, "base\nadd b\nadd c", commit.Message)

	for _, path := range []string{"a.txt", "b.txt", "c.txt"} {
		_, err := store.ReadPath(commit.TreeHash, path)
		require.NoError(t, err, "path %s should survive the squash", path)
	}

	reloaded, err := stacks.Get(st.ID)
	require.NoError(t, err)
	require.Equal(t, result.SquashedCommit, reloaded.Heads[0].Tip)
}

func TestSplitCommitPartitionsPaths(t *testing.T) {
	store := newTestStore(t)

	tree0 := writeFile(t, store, odb.ZeroID, "base.txt", "base")
	c0 := writeCommit(t, store, tree0, nil, "base")

	tree1 := writeFile(t, store, tree0, "a.txt", "a")
	tree1 = writeFile(t, store, tree1, "b.txt", "b")
	src := writeCommit(t, store, tree1, []odb.ObjectId{c0}, "add a and b")

	stacks := newStackStore(t)
	defer stacks.Close()
	st, err := stacks.Create(stack.CreateRequest{Heads: []stack.Head{{Name: "top", Tip: src}}})
	require.NoError(t, err)

	shards := []Shard{
		{Message: "add a", Paths: []string{"a.txt"}},
		{Message: "add b", Paths: []string{"b.txt"}},
	}
	result, err := SplitCommit(store, stacks, st, src, shards, testIdentity)
	require.NoError(t, err)
	require.Len(t, result.NewCommits, 2)

	bCommit, err := store.Commit(result.NewCommits[1])
	require.NoError(t, err)
	require.Equal(t, []odb.ObjectId{c0}, bCommit.ParentHashes)
	_, err = store.ReadPath(bCommit.TreeHash, "b.txt")
	require.NoError(t, err)
	_, err = store.ReadPath(bCommit.TreeHash, "a.txt")
	require.Error(t, err, "the parent-most shard should not yet contain a.txt")

	aCommit, err := store.Commit(result.NewCommits[0])
	require.NoError(t, err)
	require.Equal(t, []odb.ObjectId{result.NewCommits[1]}, aCommit.ParentHashes)
	_, err = store.ReadPath(aCommit.TreeHash, "a.txt")
	require.NoError(t, err)
	_, err = store.ReadPath(aCommit.TreeHash, "b.txt")
	require.NoError(t, err, "child-most shard should still see ancestor's paths")
}
