package workspace

import "github.com/gitbutlerapp/vbranch-core/odb"

// ConflictMarkerTree replaces path in tree with two sibling entries,
// ours/<path> and theirs/<path>, carrying each side's content, instead of
// failing the merge outright (SPEC_FULL.md §C.2, §9's "conflicts are
// materialized into the tree as marker blobs" design note). A nil side is
// simply omitted (that side deleted the path).
func ConflictMarkerTree(store *odb.Store, tree odb.ObjectId, path string, ours, theirs *odb.ChangeState) (odb.ObjectId, error) {
	t := tree

	if _, err := store.ReadPath(t, path); err == nil {
		var removeErr error
		t, removeErr = store.RemovePath(t, path)
		if removeErr != nil {
			return odb.ZeroID, removeErr
		}
	}

	if ours != nil {
		next, err := store.UpsertPath(t, "ours/"+path, *ours)
		if err != nil {
			return odb.ZeroID, err
		}
		t = next
	}
	if theirs != nil {
		next, err := store.UpsertPath(t, "theirs/"+path, *theirs)
		if err != nil {
			return odb.ZeroID, err
		}
		t = next
	}

	return t, nil
}
