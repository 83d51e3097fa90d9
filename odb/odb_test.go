package odb

import (
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	repo, err := git.Init(memory.NewStorage(), nil)
	require.NoError(t, err)
	return Open(repo)
}

func TestUpsertAndReadPath(t *testing.T) {
	s := newTestStore(t)

	blobID, err := s.WriteBlob([]byte("hello"))
	require.NoError(t, err)

	treeID, err := s.UpsertPath(ZeroID, "dir/a.txt", ChangeState{ID: blobID, Kind: KindBlob})
	require.NoError(t, err)

	got, err := s.ReadPath(treeID, "dir/a.txt")
	require.NoError(t, err)
	require.Equal(t, blobID, got.ID)
	require.Equal(t, KindBlob, got.Kind)

	_, err = s.ReadPath(treeID, "dir/missing.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemovePathPrunesEmptyDir(t *testing.T) {
	s := newTestStore(t)

	blobID, err := s.WriteBlob([]byte("x"))
	require.NoError(t, err)

	treeID, err := s.UpsertPath(ZeroID, "a/b/c.txt", ChangeState{ID: blobID})
	require.NoError(t, err)

	treeID, err = s.RemovePath(treeID, "a/b/c.txt")
	require.NoError(t, err)

	tree, err := s.Tree(treeID)
	require.NoError(t, err)
	require.Empty(t, tree.Entries, "removing the only file should prune empty ancestor dirs")
}

func TestMerge3OnlyOneSideChanged(t *testing.T) {
	s := newTestStore(t)

	blobA, _ := s.WriteBlob([]byte("a"))
	base, err := s.UpsertPath(ZeroID, "a.txt", ChangeState{ID: blobA})
	require.NoError(t, err)

	blobB, _ := s.WriteBlob([]byte("b"))
	theirs, err := s.UpsertPath(base, "b.txt", ChangeState{ID: blobB})
	require.NoError(t, err)

	res, err := s.Merge3(base, base, theirs, nil)
	require.NoError(t, err)
	require.False(t, res.Conflicted)

	got, err := s.ReadPath(res.TreeID, "b.txt")
	require.NoError(t, err)
	require.Equal(t, blobB, got.ID)
}

func TestMerge3Conflict(t *testing.T) {
	s := newTestStore(t)

	blobBase, _ := s.WriteBlob([]byte("base"))
	base, err := s.UpsertPath(ZeroID, "a.txt", ChangeState{ID: blobBase})
	require.NoError(t, err)

	blobOurs, _ := s.WriteBlob([]byte("ours"))
	ours, err := s.UpsertPath(base, "a.txt", ChangeState{ID: blobOurs})
	require.NoError(t, err)

	blobTheirs, _ := s.WriteBlob([]byte("theirs"))
	theirs, err := s.UpsertPath(base, "a.txt", ChangeState{ID: blobTheirs})
	require.NoError(t, err)

	res, err := s.Merge3(base, ours, theirs, nil)
	require.NoError(t, err)
	require.True(t, res.Conflicted)
	require.Equal(t, []string{"a.txt"}, res.ConflictPaths)
	// unresolved conflicts with a nil markConflict leave the base content.
	got, err := s.ReadPath(res.TreeID, "a.txt")
	require.NoError(t, err)
	require.Equal(t, blobBase, got.ID)
}

func TestMerge3WithResolver(t *testing.T) {
	s := newTestStore(t)

	blobBase, _ := s.WriteBlob([]byte("base"))
	base, err := s.UpsertPath(ZeroID, "a.txt", ChangeState{ID: blobBase})
	require.NoError(t, err)

	blobOurs, _ := s.WriteBlob([]byte("ours"))
	ours, err := s.UpsertPath(base, "a.txt", ChangeState{ID: blobOurs})
	require.NoError(t, err)

	blobTheirs, _ := s.WriteBlob([]byte("theirs"))
	theirs, err := s.UpsertPath(base, "a.txt", ChangeState{ID: blobTheirs})
	require.NoError(t, err)

	markerBlob, _ := s.WriteBlob([]byte("<<<conflict>>>"))
	res, err := s.Merge3(base, ours, theirs, func(path string, base, ours, theirs *ChangeState) (ChangeState, error) {
		return ChangeState{ID: markerBlob, Kind: KindBlob}, nil
	})
	require.NoError(t, err)
	require.True(t, res.Conflicted)

	got, err := s.ReadPath(res.TreeID, "a.txt")
	require.NoError(t, err)
	require.Equal(t, markerBlob, got.ID)
}
