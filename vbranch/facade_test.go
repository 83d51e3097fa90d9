package vbranch

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"

	"github.com/gitbutlerapp/vbranch-core/commitengine"
	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
)

var testIdentity = object.Signature{Name: "t", Email: "t@t", When: time.Unix(0, 0).UTC()}

const testWorkspaceRef plumbing.ReferenceName = "refs/heads/gitbutler/workspace"

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

func newEngine(t *testing.T, store *odb.Store, target odb.ObjectId, sink EventSink) (*Engine, *stack.Store) {
	t.Helper()
	stacks, err := stack.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { stacks.Close() })

	e := NewEngine("proj-1", store, nil, stacks, odb.Target{SHA: target}, testWorkspaceRef, 3, sink, nil)
	return e, stacks
}

func TestCreateBranchBuildsWorkspaceAndEmits(t *testing.T) {
	store := newTestStore(t)
	tree := writeFile(t, store, odb.ZeroID, "a.txt", "one")
	target := writeCommit(t, store, tree, nil, "base")

	sink := NewChannelSink(4)
	e, stacks := newEngine(t, store, target, sink)

	st, err := e.CreateBranch(context.Background(), "feature", target, "first stack")
	require.NoError(t, err)
	require.Equal(t, "feature", st.Heads[0].Name)

	reloaded, err := stacks.Get(st.ID)
	require.NoError(t, err)
	require.True(t, reloaded.InWorkspace)

	wsID, err := store.Reference(testWorkspaceRef)
	require.NoError(t, err)
	wsCommit, err := store.Commit(wsID)
	require.NoError(t, err)
	require.Equal(t, "GitButler Workspace Commit", wsCommit.Message)

	select {
	case u := <-sink.C:
		require.Equal(t, st.ID, u.StackID)
		require.Equal(t, "proj-1", u.ProjectID)
	default:
		t.Fatal("expected a StackUpdate event")
	}
}

func TestCommitAdvancesStackAndWorkspace(t *testing.T) {
	store := newTestStore(t)
	tree := writeFile(t, store, odb.ZeroID, "a.txt", "one")
	target := writeCommit(t, store, tree, nil, "base")

	e, stacks := newEngine(t, store, target, nil)
	ctx := context.Background()

	st, err := e.CreateBranch(ctx, "feature", target, "")
	require.NoError(t, err)

	blob, err := store.WriteBlob([]byte("two"))
	require.NoError(t, err)
	selections := []commitengine.HunkSelection{
		{Path: "b.txt", WholeFile: true, State: &odb.ChangeState{ID: blob, Kind: odb.KindBlob}},
	}
	result, err := e.Commit(ctx, st.ID, nil, selections, "add b", testIdentity)
	require.NoError(t, err)

	reloaded, err := stacks.Get(st.ID)
	require.NoError(t, err)
	require.Equal(t, result.NewCommit, reloaded.Heads[0].Tip)

	wsID, err := store.Reference(testWorkspaceRef)
	require.NoError(t, err)
	wsCommit, err := store.Commit(wsID)
	require.NoError(t, err)
	_, err = store.ReadPath(wsCommit.TreeHash, "b.txt")
	require.NoError(t, err, "the new commit's change should be folded into the workspace tree")
}

func TestApplyUnapplyBranchTogglesWorkspaceMembership(t *testing.T) {
	store := newTestStore(t)
	tree0 := writeFile(t, store, odb.ZeroID, "base.txt", "base")
	target := writeCommit(t, store, tree0, nil, "base")

	tree1 := writeFile(t, store, tree0, "feature.txt", "feature work")
	featureTip := writeCommit(t, store, tree1, []odb.ObjectId{target}, "feature commit")

	e, stacks := newEngine(t, store, target, nil)
	ctx := context.Background()

	st, err := stacks.Create(stack.CreateRequest{Heads: []stack.Head{{Name: "feature", Tip: featureTip}}})
	require.NoError(t, err)
	require.NoError(t, e.rebuildWorkspace())

	require.NoError(t, e.UnapplyBranch(ctx, st.ID))
	reloaded, err := stacks.Get(st.ID)
	require.NoError(t, err)
	require.False(t, reloaded.InWorkspace)

	wsID, err := store.Reference(testWorkspaceRef)
	require.NoError(t, err)
	wsCommit, err := store.Commit(wsID)
	require.NoError(t, err)
	_, err = store.ReadPath(wsCommit.TreeHash, "feature.txt")
	require.Error(t, err, "unapplied stack must not contribute to the workspace tree")

	require.NoError(t, e.ApplyBranch(ctx, st.ID))
	reloaded, err = stacks.Get(st.ID)
	require.NoError(t, err)
	require.True(t, reloaded.InWorkspace)

	wsID, err = store.Reference(testWorkspaceRef)
	require.NoError(t, err)
	wsCommit, err = store.Commit(wsID)
	require.NoError(t, err)
	_, err = store.ReadPath(wsCommit.TreeHash, "feature.txt")
	require.NoError(t, err, "re-applied stack must contribute to the workspace tree again")
}

func TestGetCommitDetailsReportsChanges(t *testing.T) {
	store := newTestStore(t)
	tree0 := writeFile(t, store, odb.ZeroID, "a.txt", "one")
	base := writeCommit(t, store, tree0, nil, "base")

	tree1 := writeFile(t, store, tree0, "b.txt", "two")
	head := writeCommit(t, store, tree1, []odb.ObjectId{base}, "add b")

	e, _ := newEngine(t, store, base, nil)
	details, err := e.GetCommitDetails(context.Background(), head)
	require.NoError(t, err)
	require.Len(t, details.Changes, 1)
	require.Equal(t, "b.txt", details.Changes[0].Path)
}

func TestResetBranchRejectsNonAncestor(t *testing.T) {
	store := newTestStore(t)
	tree0 := writeFile(t, store, odb.ZeroID, "a.txt", "one")
	base := writeCommit(t, store, tree0, nil, "base")

	tree1 := writeFile(t, store, tree0, "b.txt", "two")
	tip := writeCommit(t, store, tree1, []odb.ObjectId{base}, "add b")

	unrelatedTree := writeFile(t, store, odb.ZeroID, "c.txt", "unrelated")
	unrelated := writeCommit(t, store, unrelatedTree, nil, "unrelated commit")

	e, stacks := newEngine(t, store, base, nil)
	st, err := stacks.Create(stack.CreateRequest{Heads: []stack.Head{{Name: "feature", Tip: tip}}})
	require.NoError(t, err)
	require.NoError(t, e.rebuildWorkspace())

	err = e.ResetBranch(context.Background(), st.ID, unrelated)
	require.ErrorIs(t, err, ErrNotAnAncestor)
}
