package assign

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gitbutlerapp/vbranch-core/diffengine"
)

type noLocks struct{}

func (noLocks) LocksForHunk(path string, header *diffengine.HunkHeader) ([]HunkLock, error) {
	return nil, nil
}

func TestAssignmentsWithFallbackCreatesAndPersists(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	current := []PathHunks{
		{Path: "a.txt", Headers: []diffengine.HunkHeader{{OldStart: 1, OldLines: 3, NewStart: 1, NewLines: 3}}},
	}
	result, notes, err := AssignmentsWithFallback(store, current, noLocks{})
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Nil(t, result[0].StackID)
	require.Len(t, notes, 1)
	require.Equal(t, NoteCreated, notes[0].Kind)

	stackID := uuid.New()
	require.NoError(t, Assign(&result[0], stackID, false))
	require.NoError(t, store.Save(result))

	reloaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	require.NotNil(t, reloaded[0].StackID)
	require.Equal(t, stackID, *reloaded[0].StackID)
}

func TestReconciliationFollowsShiftedHunk(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	stackID := uuid.New()
	require.NoError(t, store.Save([]HunkAssignment{
		{Path: "a.txt", HunkHeader: &diffengine.HunkHeader{OldStart: 10, OldLines: 2, NewStart: 10, NewLines: 2}, StackID: &stackID},
	}))

	// The hunk shifted down by one line but still overlaps the stored
	// range: stored old lines 10-11 vs current old lines 11-13 share
	// line 11.
	current := []PathHunks{
		{Path: "a.txt", Headers: []diffengine.HunkHeader{{OldStart: 11, OldLines: 3, NewStart: 13, NewLines: 3}}},
	}
	result, notes, err := AssignmentsWithFallback(store, current, noLocks{})
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.NotNil(t, result[0].StackID)
	require.Equal(t, stackID, *result[0].StackID)
	require.Equal(t, NoteMatched, notes[0].Kind)
}

func TestReconciliationDropsVanishedHunk(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	stackID := uuid.New()
	require.NoError(t, store.Save([]HunkAssignment{
		{Path: "a.txt", HunkHeader: &diffengine.HunkHeader{OldStart: 100, OldLines: 2, NewStart: 100, NewLines: 2}, StackID: &stackID},
	}))

	current := []PathHunks{
		{Path: "a.txt", Headers: []diffengine.HunkHeader{{OldStart: 1, OldLines: 2, NewStart: 1, NewLines: 2}}},
	}
	result, notes, err := AssignmentsWithFallback(store, current, noLocks{})
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Nil(t, result[0].StackID, "vanished assignment should not survive; new hunk starts unassigned")

	var sawDrop, sawCreate bool
	for _, n := range notes {
		if n.Kind == NoteDropped {
			sawDrop = true
		}
		if n.Kind == NoteCreated {
			sawCreate = true
		}
	}
	require.True(t, sawDrop)
	require.True(t, sawCreate)
}

func TestAssignForbidsCrossingLockWithoutForce(t *testing.T) {
	other := uuid.New()
	a := HunkAssignment{Path: "a.txt", HunkLocks: []HunkLock{{StackID: other}}}

	target := uuid.New()
	err := Assign(&a, target, false)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, Assign(&a, target, true))
	require.Equal(t, target, *a.StackID)
}
