package stack

import (
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"

	"github.com/gitbutlerapp/vbranch-core/odb"
)

func newTestRepo(t *testing.T) *odb.Store {
	t.Helper()
	repo, err := git.Init(memory.NewStorage(), nil)
	require.NoError(t, err)
	return odb.Open(repo)
}

func commitOn(t *testing.T, store *odb.Store, parent odb.ObjectId, msg string) odb.ObjectId {
	t.Helper()
	tree := odb.ZeroID
	if parent != odb.ZeroID {
		parentCommit, err := store.Commit(parent)
		require.NoError(t, err)
		tree = parentCommit.TreeHash
	}
	var parents []odb.ObjectId
	if parent != odb.ZeroID {
		parents = []odb.ObjectId{parent}
	}
	id, err := store.WriteCommit(object.Commit{
		Author:       object.Signature{Name: "t", Email: "t@t"},
		Committer:    object.Signature{Name: "t", Email: "t@t"},
		Message:      msg,
		TreeHash:     tree,
		ParentHashes: parents,
	})
	require.NoError(t, err)
	return id
}

func TestWorkingHeadSkipsArchived(t *testing.T) {
	s := Stack{Heads: []Head{
		{Name: "top", Archived: true},
		{Name: "bottom"},
	}}
	h, err := s.WorkingHead()
	require.NoError(t, err)
	require.Equal(t, "bottom", h.Name)
}

func TestValidateLinearity(t *testing.T) {
	store := newTestRepo(t)
	base := commitOn(t, store, odb.ZeroID, "base")
	mid := commitOn(t, store, base, "mid")
	top := commitOn(t, store, mid, "top")

	s := Stack{Heads: []Head{
		{Name: "top", Tip: top},
		{Name: "mid", Tip: mid},
		{Name: "base", Tip: base},
	}}
	require.NoError(t, s.ValidateLinearity(store))

	bad := Stack{Heads: []Head{
		{Name: "top", Tip: top},
		{Name: "base", Tip: base},
		{Name: "mid", Tip: mid},
	}}
	require.ErrorIs(t, bad.ValidateLinearity(store), ErrNonLinearHeads)
}

func TestCreateAssignsOrderAndBumpsSubsequent(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	first, err := s.Create(CreateRequest{Heads: []Head{{Name: "a"}}})
	require.NoError(t, err)
	require.Equal(t, uint32(0), first.Order)

	second, err := s.Create(CreateRequest{Heads: []Head{{Name: "b"}}})
	require.NoError(t, err)
	require.Equal(t, uint32(1), second.Order)

	zero := uint32(0)
	third, err := s.Create(CreateRequest{Heads: []Head{{Name: "c"}}, Order: &zero})
	require.NoError(t, err)
	require.Equal(t, uint32(0), third.Order)

	reloadedFirst, err := s.Get(first.ID)
	require.NoError(t, err)
	require.Equal(t, uint32(1), reloadedFirst.Order)

	reloadedSecond, err := s.Get(second.ID)
	require.NoError(t, err)
	require.Equal(t, uint32(2), reloadedSecond.Order)
}

func TestListInWorkspaceOrdered(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Create(CreateRequest{Heads: []Head{{Name: "a"}}})
	require.NoError(t, err)
	_, err = s.Create(CreateRequest{Heads: []Head{{Name: "b"}}})
	require.NoError(t, err)

	all, err := s.ListInWorkspace()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.True(t, all[0].Order < all[1].Order)
}

func TestUpdateBranchRenamesHead(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	created, err := s.Create(CreateRequest{Heads: []Head{{Name: "old"}}})
	require.NoError(t, err)

	newName := "new"
	updated, err := s.UpdateBranch(created.ID, "old", HeadUpdate{NewName: &newName})
	require.NoError(t, err)
	require.Equal(t, "new", updated.Heads[0].Name)

	_, err = s.UpdateBranch(created.ID, "old", HeadUpdate{NewName: &newName})
	require.ErrorIs(t, err, ErrHeadNotFound)
}

func TestAppendCommitRejectsNonDescendant(t *testing.T) {
	store := newTestRepo(t)
	base := commitOn(t, store, odb.ZeroID, "base")
	sideways := commitOn(t, store, odb.ZeroID, "sideways")
	descendant := commitOn(t, store, base, "child")

	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	created, err := s.Create(CreateRequest{Heads: []Head{{Name: "top", Tip: base}}})
	require.NoError(t, err)

	_, err = s.AppendCommit(store, created.ID, sideways, false)
	require.ErrorIs(t, err, ErrNotDescendant)

	updated, err := s.AppendCommit(store, created.ID, descendant, false)
	require.NoError(t, err)
	require.Equal(t, descendant, updated.Heads[0].Tip)
}

func TestDelete(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	created, err := s.Create(CreateRequest{Heads: []Head{{Name: "a"}}})
	require.NoError(t, err)

	require.NoError(t, s.Delete(created.ID))
	_, err = s.Get(created.ID)
	require.ErrorIs(t, err, ErrStackNotFound)
}
