package commitengine

import (
	"fmt"

	"github.com/gitbutlerapp/vbranch-core/diffengine"
	"github.com/gitbutlerapp/vbranch-core/odb"
)

// HunkSelection is one path's worth of applied changes for
// SynthesizeTree: either a whole-file claim (State nil means the path is
// deleted) or a specific ordered run of hunks to apply on top of the base
// tree's blob (§4.5's synthesize_tree).
type HunkSelection struct {
	Path      string
	WholeFile bool
	State     *odb.ChangeState // whole-file target; nil + WholeFile means delete
	Hunks     []diffengine.Hunk
}

// SynthesizeTree starts from baseTree and applies each selection in turn,
// leaving every path absent from selections at baseTree's version (§4.5).
func SynthesizeTree(store *odb.Store, baseTree odb.ObjectId, selections []HunkSelection) (odb.ObjectId, error) {
	tree := baseTree
	for _, sel := range selections {
		next, err := applySelection(store, tree, sel)
		if err != nil {
			return odb.ZeroID, fmt.Errorf("commitengine: synthesize %s: %w", sel.Path, err)
		}
		tree = next
	}
	return tree, nil
}

func applySelection(store *odb.Store, tree odb.ObjectId, sel HunkSelection) (odb.ObjectId, error) {
	if sel.WholeFile {
		if sel.State == nil {
			return store.RemovePath(tree, sel.Path)
		}
		return store.UpsertPath(tree, sel.Path, *sel.State)
	}

	base, err := store.ReadPath(tree, sel.Path)
	if err != nil {
		return odb.ZeroID, err
	}
	content, err := store.BlobBytes(base.ID)
	if err != nil {
		return odb.ZeroID, err
	}
	for _, h := range sel.Hunks {
		content, err = diffengine.ApplyHunk(content, h)
		if err != nil {
			return odb.ZeroID, err
		}
	}
	newBlob, err := store.WriteBlob(content)
	if err != nil {
		return odb.ZeroID, err
	}
	return store.UpsertPath(tree, sel.Path, odb.ChangeState{ID: newBlob, Kind: base.Kind})
}
