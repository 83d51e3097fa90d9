package vbranch

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gitbutlerapp/vbranch-core/assign"
	"github.com/gitbutlerapp/vbranch-core/commitengine"
	"github.com/gitbutlerapp/vbranch-core/diffengine"
	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
)

func newEngineWithAssigns(t *testing.T, store *odb.Store, target odb.ObjectId) (*Engine, *stack.Store, *assign.Store) {
	t.Helper()
	stacks, err := stack.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { stacks.Close() })

	assigns, err := assign.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { assigns.Close() })

	e := NewEngine("proj-1", store, assigns, stacks, odb.Target{SHA: target}, testWorkspaceRef, 3, nil, nil)
	return e, stacks, assigns
}

func TestStackLockSourceFindsOverlappingCommit(t *testing.T) {
	store := newTestStore(t)
	tree0 := writeFile(t, store, odb.ZeroID, "a.txt", "one\ntwo\nthree\n")
	base := writeCommit(t, store, tree0, nil, "base")

	tree1 := writeFile(t, store, tree0, "a.txt", "one\nTWO\nthree\n")
	tip := writeCommit(t, store, tree1, []odb.ObjectId{base}, "change line 2")

	st, err := stack.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	stk, err := st.Create(stack.CreateRequest{Heads: []stack.Head{{Name: "feature", Tip: tip}}})
	require.NoError(t, err)

	locks := &stackLockSource{store: store, stacks: []stack.Stack{stk}, target: base, contextLines: 3}

	overlapping := diffengine.HunkHeader{OldStart: 2, OldLines: 1, NewStart: 2, NewLines: 1}
	found, err := locks.LocksForHunk("a.txt", &overlapping)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, tip, found[0].CommitID)
	require.Equal(t, stk.ID, found[0].StackID)

	disjoint := diffengine.HunkHeader{OldStart: 40, OldLines: 1, NewStart: 40, NewLines: 1}
	none, err := locks.LocksForHunk("other.txt", &disjoint)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestStatusChangesReconcileAndPersistAssignments(t *testing.T) {
	store := newTestStore(t)
	tree := writeFile(t, store, odb.ZeroID, "a.txt", "one")
	target := writeCommit(t, store, tree, nil, "base")

	e, _, assigns := newEngineWithAssigns(t, store, target)

	stackID := uuid.New()
	require.NoError(t, assigns.Save([]assign.HunkAssignment{
		{Path: "a.txt", StackID: &stackID},
	}))

	changes := []diffengine.TreeChange{
		{Path: "a.txt", Status: diffengine.StatusDeletion},
	}
	current, err := pathHunksFromChanges(e.Store, nil, changes, e.ContextLines)
	require.NoError(t, err)
	require.Len(t, current, 1)
	require.True(t, current[0].WholeFile)

	result, notes, err := assign.AssignmentsWithFallback(assigns, current, nil)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, &stackID, result[0].StackID)
	require.NotEmpty(t, notes)

	reloaded, err := assigns.Load()
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	require.Equal(t, stackID, *reloaded[0].StackID)
}

func TestResolveCommitSelectionsDefersUnassignedToLeftmostStack(t *testing.T) {
	store := newTestStore(t)
	tree := writeFile(t, store, odb.ZeroID, "a.txt", "one")
	target := writeCommit(t, store, tree, nil, "base")

	e, stacks, assigns := newEngineWithAssigns(t, store, target)
	ctx := context.Background()

	left, err := e.CreateBranch(ctx, "left", target, "")
	require.NoError(t, err)
	right, err := stacks.Create(stack.CreateRequest{Heads: []stack.Head{{Name: "right", Tip: target}}})
	require.NoError(t, err)
	require.NoError(t, e.rebuildWorkspace())

	// "owned.txt" is explicitly claimed by right; "unassigned.txt" has no
	// stored assignment at all and must default to the leftmost stack.
	require.NoError(t, assigns.Save([]assign.HunkAssignment{
		{Path: "owned.txt", StackID: &right.ID},
	}))

	blob, err := store.WriteBlob([]byte("content"))
	require.NoError(t, err)
	selections := []commitengine.HunkSelection{
		{Path: "owned.txt", WholeFile: true, State: &odb.ChangeState{ID: blob, Kind: odb.KindBlob}},
		{Path: "unassigned.txt", WholeFile: true, State: &odb.ChangeState{ID: blob, Kind: odb.KindBlob}},
	}

	resolvedForRight, err := e.resolveCommitSelections(right.ID, selections)
	require.NoError(t, err)
	require.Len(t, resolvedForRight, 1)
	require.Equal(t, "owned.txt", resolvedForRight[0].Path)

	resolvedForLeft, err := e.resolveCommitSelections(left.ID, selections)
	require.NoError(t, err)
	require.Len(t, resolvedForLeft, 1)
	require.Equal(t, "unassigned.txt", resolvedForLeft[0].Path)
}
