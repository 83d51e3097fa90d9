package diffengine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitbutlerapp/vbranch-core/odb"
)

func TestUnifiedPatchRoundTrip(t *testing.T) {
	old := []byte("line1\nline2\nline3\nline4\nline5\n")
	next := []byte("line1\nline2\nCHANGED\nline4\nline5\nline6\n")

	change := TreeChange{
		Path:          "f.txt",
		Status:        StatusModification,
		PreviousState: &odb.ChangeState{ID: odb.ZeroID, Kind: odb.KindBlob},
		State:         &odb.ChangeState{ID: odb.ZeroID, Kind: odb.KindBlob},
	}

	patch, err := UnifiedPatchFor(change, old, next, odb.ZeroID, 3, Limits{})
	require.NoError(t, err)
	require.Equal(t, PatchKindHunks, patch.Kind)
	require.NotEmpty(t, patch.Hunks)

	got := old
	for _, h := range patch.Hunks {
		got, err = ApplyHunk(got, h)
		require.NoError(t, err)
	}
	require.Equal(t, string(next), string(got))
}

func TestUnifiedPatchBinary(t *testing.T) {
	old := []byte{0, 1, 2, 3}
	next := []byte{0, 1, 2, 4}
	change := TreeChange{Path: "bin", Status: StatusModification}
	patch, err := UnifiedPatchFor(change, old, next, odb.ZeroID, 3, Limits{})
	require.NoError(t, err)
	require.Equal(t, PatchKindBinary, patch.Kind)
}

func TestUnifiedPatchTooLarge(t *testing.T) {
	big := strings.Repeat("x", 100)
	change := TreeChange{Path: "big.txt", Status: StatusAddition}
	patch, err := UnifiedPatchFor(change, nil, []byte(big), odb.ZeroID, 3, Limits{MaxBytes: 10})
	require.NoError(t, err)
	require.Equal(t, PatchKindTooLarge, patch.Kind)
}

func TestUnifiedPatchSubmoduleErrors(t *testing.T) {
	change := TreeChange{
		Path:          "sub",
		Status:        StatusModification,
		PreviousState: &odb.ChangeState{Kind: odb.KindCommit},
		State:         &odb.ChangeState{Kind: odb.KindCommit},
	}
	_, err := UnifiedPatchFor(change, nil, nil, odb.ZeroID, 3, Limits{})
	require.ErrorIs(t, err, ErrSubmoduleChange)
}

func TestHunkHeaderOverlaps(t *testing.T) {
	a := HunkHeader{OldStart: 5, OldLines: 3}  // lines 5-7
	b := HunkHeader{OldStart: 7, OldLines: 2}  // lines 7-8: overlaps at 7
	c := HunkHeader{OldStart: 8, OldLines: 2}  // lines 8-9: no overlap with a
	require.True(t, a.Overlaps(b))
	require.False(t, a.Overlaps(c))
}
