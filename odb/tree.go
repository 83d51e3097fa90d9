package odb

import (
	"io"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ReadPath resolves a path inside a tree to its change state. It returns
// ErrNotFound if the path does not exist.
func (s *Store) ReadPath(treeID ObjectId, path string) (ChangeState, error) {
	if treeID == ZeroID {
		return ChangeState{}, ErrNotFound
	}
	tree, err := s.Tree(treeID)
	if err != nil {
		return ChangeState{}, err
	}
	entry, err := tree.FindEntry(path)
	if err != nil {
		return ChangeState{}, ErrNotFound
	}
	return ChangeState{ID: entry.Hash, Kind: kindFromMode(entry.Mode)}, nil
}

// UpsertPath returns a new tree id with path set to state, rebuilding every
// ancestor directory along the way. It is the write side of synthesize_tree
// (§4.5): hunk application writes a blob and calls this to splice it in.
func (s *Store) UpsertPath(treeID ObjectId, path string, state ChangeState) (ObjectId, error) {
	return s.writePath(treeID, path, &state)
}

// RemovePath returns a new tree id with path removed. Empty directories left
// behind by the removal are pruned.
func (s *Store) RemovePath(treeID ObjectId, path string) (ObjectId, error) {
	return s.writePath(treeID, path, nil)
}

// writePath is the shared recursive splice used by UpsertPath/RemovePath.
// state == nil means "remove"; otherwise it's the new leaf state.
func (s *Store) writePath(treeID ObjectId, path string, state *ChangeState) (ObjectId, error) {
	entries, err := s.loadEntries(treeID)
	if err != nil {
		return ZeroID, err
	}

	name, rest, isLeaf := splitPath(path)

	if isLeaf {
		if state == nil {
			delete(entries, name)
		} else {
			entries[name] = object.TreeEntry{
				Name: name,
				Mode: modeFromKind(state.Kind),
				Hash: state.ID,
			}
		}
		return s.buildTree(entries)
	}

	childID := ZeroID
	if e, ok := entries[name]; ok && e.Mode == filemode.Dir {
		childID = e.Hash
	}

	newChildID, err := s.writePath(childID, rest, state)
	if err != nil {
		return ZeroID, err
	}

	empty, err := s.isEmptyTree(newChildID)
	if err != nil {
		return ZeroID, err
	}
	if empty {
		delete(entries, name)
	} else {
		entries[name] = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: newChildID}
	}

	return s.buildTree(entries)
}

func (s *Store) isEmptyTree(id ObjectId) (bool, error) {
	if id == ZeroID {
		return true, nil
	}
	t, err := s.Tree(id)
	if err != nil {
		return false, err
	}
	return len(t.Entries) == 0, nil
}

func (s *Store) loadEntries(treeID ObjectId) (map[string]object.TreeEntry, error) {
	out := map[string]object.TreeEntry{}
	if treeID == ZeroID {
		return out, nil
	}
	t, err := s.Tree(treeID)
	if err != nil {
		return nil, err
	}
	for _, e := range t.Entries {
		out[e.Name] = e
	}
	return out, nil
}

func (s *Store) buildTree(entries map[string]object.TreeEntry) (ObjectId, error) {
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	sort.Strings(names)

	tree := object.Tree{}
	for _, n := range names {
		tree.Entries = append(tree.Entries, entries[n])
	}

	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return ZeroID, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}

// splitPath divides "a/b/c" into ("a", "b/c", false) or ("c", "", true)
// when there's no remaining separator.
func splitPath(path string) (head, rest string, isLeaf bool) {
	path = strings.TrimPrefix(path, "/")
	i := strings.IndexByte(path, '/')
	if i < 0 {
		return path, "", true
	}
	return path[:i], path[i+1:], false
}

// WalkPaths flattens a tree into a path -> ChangeState map; a nil treeID
// yields an empty map. Used by the 3-way merge and by whole-tree status
// comparisons that need every leaf at once.
func (s *Store) WalkPaths(treeID ObjectId) (map[string]ChangeState, error) {
	out := map[string]ChangeState{}
	if treeID == ZeroID {
		return out, nil
	}
	t, err := s.Tree(treeID)
	if err != nil {
		return nil, err
	}
	walker := object.NewTreeWalker(t, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if entry.Mode == filemode.Dir {
			continue
		}
		out[name] = ChangeState{ID: entry.Hash, Kind: kindFromMode(entry.Mode)}
	}
	return out, nil
}
