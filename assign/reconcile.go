package assign

import (
	"github.com/google/uuid"

	"github.com/gitbutlerapp/vbranch-core/diffengine"
)

// NoteKind classifies one reconciliation event, surfaced so callers can log
// or display what changed in the ownership model between calls.
type NoteKind int

const (
	NoteMatched NoteKind = iota
	NoteDropped
	NoteCreated
)

// ReconciliationNote records one event from a reconciliation pass (§4.2).
type ReconciliationNote struct {
	Path string
	Kind NoteKind
}

// PathHunks is the current hunk set for one path, keyed by path, as
// produced by the diff engine at a fixed context-line count. A nil
// Headers slice with WholeFile=true represents a whole-file claim
// (new/deleted/binary/too-large content).
type PathHunks struct {
	Path      string
	WholeFile bool
	Headers   []diffengine.HunkHeader
}

// LockSource recomputes the hunk_locks for one path/hunk by scanning every
// applied stack's commits between its merge base and tip (§4.2 step 5).
// Implemented by the façade, which has access to both the stack store and
// the object database; kept as an interface here so assign doesn't need to
// import either.
type LockSource interface {
	LocksForHunk(path string, header *diffengine.HunkHeader) ([]HunkLock, error)
}

// AssignmentsWithFallback performs §4.2's reconciliation and returns the
// canonical, freshly-persisted assignment list. If lock detection or saving
// fails it returns the last persisted list alongside the error, matching
// §4.2's "never delete user-visible work" failure semantics; if loading
// that list fails, only the error is returned. The caller decides whether
// to retry or surface err.
func AssignmentsWithFallback(store *Store, current []PathHunks, locks LockSource) ([]HunkAssignment, []ReconciliationNote, error) {
	stored, err := store.Load()
	if err != nil {
		return nil, nil, err
	}

	byPath := map[string][]HunkAssignment{}
	for _, a := range stored {
		byPath[a.Path] = append(byPath[a.Path], a)
	}

	var result []HunkAssignment
	var notes []ReconciliationNote

	for _, ph := range current {
		if ph.WholeFile {
			// Exactly one whole-file assignment per path (§4.2).
			var existing *HunkAssignment
			for i := range byPath[ph.Path] {
				if byPath[ph.Path][i].IsWholeFile() {
					existing = &byPath[ph.Path][i]
					break
				}
			}
			a := HunkAssignment{Path: ph.Path}
			if existing != nil {
				a.StackID = existing.StackID
				notes = append(notes, ReconciliationNote{Path: ph.Path, Kind: NoteMatched})
			} else {
				notes = append(notes, ReconciliationNote{Path: ph.Path, Kind: NoteCreated})
			}
			result = append(result, a)
			continue
		}

		prior := byPath[ph.Path]
		matchedPrior := map[int]bool{}

		for _, h := range ph.Headers {
			header := h
			var stackID *uuid.UUID
			matched := false
			for i, p := range prior {
				if matchedPrior[i] || p.IsWholeFile() {
					continue
				}
				if p.overlapsHeader(header) {
					stackID = p.StackID
					matchedPrior[i] = true
					matched = true
					notes = append(notes, ReconciliationNote{Path: ph.Path, Kind: NoteMatched})
					break
				}
			}
			if !matched {
				notes = append(notes, ReconciliationNote{Path: ph.Path, Kind: NoteCreated})
			}

			result = append(result, HunkAssignment{
				Path:       ph.Path,
				HunkHeader: &header,
				StackID:    stackID,
			})
		}

		for i, p := range prior {
			if !matchedPrior[i] && !p.IsWholeFile() {
				notes = append(notes, ReconciliationNote{Path: ph.Path, Kind: NoteDropped})
			}
		}
	}

	if locks != nil {
		for i := range result {
			l, err := locks.LocksForHunk(result[i].Path, result[i].HunkHeader)
			if err != nil {
				return stored, notes, err
			}
			result[i].HunkLocks = l
		}
	}

	if err := store.Save(result); err != nil {
		return stored, notes, err
	}

	return result, notes, nil
}

// Assign sets the stack claim for one assignment, refusing the transfer if
// it would cross a lock the caller hasn't forced past (§4.2: "Assignment
// transfer is forbidden when the target stack differs from any lock's
// stack unless the caller explicitly forces").
func Assign(a *HunkAssignment, target uuid.UUID, force bool) error {
	if !force && a.LockedToOtherStack(target) {
		return ErrLocked
	}
	id := target
	a.StackID = &id
	return nil
}
