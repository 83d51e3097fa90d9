package diffengine

import "fmt"

// HunkHeader is the 1-based line range pair from §3. Both sides are
// zero-length at creation/deletion boundaries.
type HunkHeader struct {
	OldStart, OldLines int
	NewStart, NewLines int
}

// Overlaps reports whether two hunk headers claim any of the same old-side
// line range. Used by the assignment store (§4.2) to detect when two claims
// would cover the same lines, and by reconciliation to match a stored
// assignment to its current hunk.
func (h HunkHeader) Overlaps(o HunkHeader) bool {
	aStart, aEnd := h.OldStart, h.OldStart+h.OldLines
	bStart, bEnd := o.OldStart, o.OldStart+o.OldLines
	if h.OldLines == 0 {
		aEnd = aStart + 1
	}
	if o.OldLines == 0 {
		bEnd = bStart + 1
	}
	return aStart < bEnd && bStart < aEnd
}

// ValidateHunkHeader is the "line count reasonableness" check ported from
// but-core's worktree_changes tests (SPEC_FULL.md §C.4): catches the
// off-by-one class of bug where a hunk claims more lines than the file
// containing it has.
func ValidateHunkHeader(h HunkHeader, oldFileLines, newFileLines int) error {
	if h.OldStart < 0 || h.NewStart < 0 {
		return fmt.Errorf("diffengine: negative hunk start %+v", h)
	}
	if h.OldStart+h.OldLines > oldFileLines+1 {
		return fmt.Errorf("diffengine: hunk %+v exceeds old file length %d", h, oldFileLines)
	}
	if h.NewStart+h.NewLines > newFileLines+1 {
		return fmt.Errorf("diffengine: hunk %+v exceeds new file length %d", h, newFileLines)
	}
	return nil
}
