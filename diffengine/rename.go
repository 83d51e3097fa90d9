package diffengine

// detectRenames pairs up Addition/Deletion entries that carry identical
// blob content into a single Rename entry (§4.1: "rename detection is
// enabled"). Content-identity is the simplest correct heuristic and is
// sufficient for the common single-file-move case this engine needs to
// support; similarity-based (inexact) rename detection is not attempted.
func detectRenames(wc *WorktreeChanges) {
	type candidate struct {
		idx int
		id  string
	}

	var additions, deletions []candidate
	for i, c := range wc.Changes {
		switch c.Status {
		case StatusAddition:
			if c.State != nil && !c.IsUntracked {
				additions = append(additions, candidate{i, c.State.ID.String()})
			}
		case StatusDeletion:
			if c.PreviousState != nil {
				deletions = append(deletions, candidate{i, c.PreviousState.ID.String()})
			}
		}
	}

	used := map[int]bool{}
	var merged []TreeChange
	removed := map[int]bool{}

	for _, a := range additions {
		for _, d := range deletions {
			if used[d.idx] || a.id != d.id {
				continue
			}
			add := wc.Changes[a.idx]
			del := wc.Changes[d.idx]
			merged = append(merged, TreeChange{
				Path:          add.Path,
				Status:        StatusRename,
				PreviousPath:  del.Path,
				PreviousState: del.PreviousState,
				State:         add.State,
				Flags:         modFlag(del.PreviousState.Kind, add.State.Kind),
			})
			used[d.idx] = true
			removed[a.idx] = true
			removed[d.idx] = true
			break
		}
	}

	if len(merged) == 0 {
		return
	}

	var kept []TreeChange
	for i, c := range wc.Changes {
		if removed[i] {
			continue
		}
		kept = append(kept, c)
	}
	wc.Changes = append(kept, merged...)
}
