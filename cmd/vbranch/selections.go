package main

import (
	"os"
	"path/filepath"

	"github.com/gitbutlerapp/vbranch-core/commitengine"
	"github.com/gitbutlerapp/vbranch-core/odb"
)

// wholeFileSelections reads each path's current on-disk content (relative
// to repoPath) and builds a whole-file HunkSelection for it. A path that
// no longer exists on disk becomes a deletion. This is the CLI's
// coarse-grained stand-in for the UI's hunk-level picker (§4.1's
// per-hunk assignment is exercised directly by the API, not this CLI).
func wholeFileSelections(store *odb.Store, repoPath string, paths []string) ([]commitengine.HunkSelection, error) {
	selections := make([]commitengine.HunkSelection, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(filepath.Join(repoPath, p))
		if os.IsNotExist(err) {
			selections = append(selections, commitengine.HunkSelection{Path: p, WholeFile: true, State: nil})
			continue
		}
		if err != nil {
			return nil, err
		}

		blobID, err := store.WriteBlob(content)
		if err != nil {
			return nil, err
		}
		state := odb.ChangeState{ID: blobID, Kind: odb.KindBlob}
		selections = append(selections, commitengine.HunkSelection{Path: p, WholeFile: true, State: &state})
	}
	return selections, nil
}
