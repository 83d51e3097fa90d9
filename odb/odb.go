// Package odb is the typed object-store adapter (L0). It gives the layers
// above it blob/tree/commit/ref access, merge-base computation and tree
// merging without leaking go-git's lower-level encoding details.
package odb

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ObjectId is an opaque content-addressed identifier. go-git's Hash is
// already exactly this (a 20-byte SHA-1), so we reuse it rather than
// re-encode the same bytes behind a second type.
type ObjectId = plumbing.Hash

// ZeroID denotes "untracked worktree content, not yet in the object
// database" per §3 of the spec.
var ZeroID = plumbing.ZeroHash

// Kind mirrors ChangeState.kind from §3.
type Kind uint8

const (
	KindBlob Kind = iota
	KindBlobExecutable
	KindLink
	KindCommit
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindBlobExecutable:
		return "blob-executable"
	case KindLink:
		return "link"
	case KindCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// ChangeState is `{ id, kind }` from §3. A zero ID means untracked worktree
// content that hasn't been written to the object database yet.
type ChangeState struct {
	ID   ObjectId
	Kind Kind
}

// IsUntracked reports whether this state has no object-database backing yet.
func (s ChangeState) IsUntracked() bool {
	return s.ID == ZeroID
}

func kindFromMode(mode filemode.FileMode) Kind {
	switch mode {
	case filemode.Executable:
		return KindBlobExecutable
	case filemode.Symlink:
		return KindLink
	case filemode.Submodule:
		return KindCommit
	default:
		return KindBlob
	}
}

func modeFromKind(k Kind) filemode.FileMode {
	switch k {
	case KindBlobExecutable:
		return filemode.Executable
	case KindLink:
		return filemode.Symlink
	case KindCommit:
		return filemode.Submodule
	default:
		return filemode.Regular
	}
}

var (
	// ErrNotFound is returned when a requested object, ref, or path does
	// not exist.
	ErrNotFound = errors.New("odb: not found")
	// ErrSparseIndex is returned by worktree readers when the repository's
	// index is sparse; §4.1 requires this to surface as an error rather
	// than a partial status.
	ErrSparseIndex = errors.New("odb: sparse index not supported")
)

// Store is the typed handle on a single repository's object database and
// refs namespace, grounded on go-git's *git.Repository.
type Store struct {
	repo *git.Repository
}

// Open wraps an already-opened go-git repository.
func Open(repo *git.Repository) *Store {
	return &Store{repo: repo}
}

// Repo exposes the underlying go-git repository for layers that need
// lower-level access (e.g. Worktree() for filesystem reads).
func (s *Store) Repo() *git.Repository {
	return s.repo
}

// Commit loads a commit object by id.
func (s *Store) Commit(id ObjectId) (*object.Commit, error) {
	c, err := s.repo.CommitObject(id)
	if err != nil {
		return nil, fmt.Errorf("odb: load commit %s: %w", id, err)
	}
	return c, nil
}

// Tree loads a tree object by id.
func (s *Store) Tree(id ObjectId) (*object.Tree, error) {
	t, err := s.repo.TreeObject(id)
	if err != nil {
		return nil, fmt.Errorf("odb: load tree %s: %w", id, err)
	}
	return t, nil
}

// Blob loads a blob object by id.
func (s *Store) Blob(id ObjectId) (*object.Blob, error) {
	b, err := s.repo.BlobObject(id)
	if err != nil {
		return nil, fmt.Errorf("odb: load blob %s: %w", id, err)
	}
	return b, nil
}

// BlobBytes reads the full content of a blob.
func (s *Store) BlobBytes(id ObjectId) ([]byte, error) {
	b, err := s.Blob(id)
	if err != nil {
		return nil, err
	}
	r, err := b.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteBlob stores raw content and returns its id. Used both for
// synthesizing tree content (§4.5) and for hashing untracked worktree
// content so it can be diffed as a Binary patch (§4.1).
func (s *Store) WriteBlob(data []byte) (ObjectId, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return ZeroID, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return ZeroID, err
	}
	if err := w.Close(); err != nil {
		return ZeroID, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}

// WriteCommit synthesizes a new commit object with a fixed tree and parent
// set, used by every commit-engine operation and by the workspace builder.
func (s *Store) WriteCommit(c object.Commit) (ObjectId, error) {
	obj := s.repo.Storer.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return ZeroID, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}

// Reference resolves a ref name to the object id it points at.
func (s *Store) Reference(name plumbing.ReferenceName) (ObjectId, error) {
	ref, err := s.repo.Reference(name, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return ZeroID, fmt.Errorf("odb: reference %s: %w", name, ErrNotFound)
		}
		return ZeroID, err
	}
	return ref.Hash(), nil
}

// SetReference atomically moves (or creates) a ref to point at id. Moving
// the workspace ref is always done through this single call site so the
// "atomic HEAD move" guarantee in §4.4 holds.
func (s *Store) SetReference(name plumbing.ReferenceName, id ObjectId) error {
	return s.repo.Storer.SetReference(plumbing.NewHashReference(name, id))
}

// IsAncestor reports whether anc is an ancestor of (or equal to) desc.
func (s *Store) IsAncestor(anc, desc ObjectId) (bool, error) {
	if anc == desc {
		return true, nil
	}
	ancC, err := s.Commit(anc)
	if err != nil {
		return false, err
	}
	descC, err := s.Commit(desc)
	if err != nil {
		return false, err
	}
	return ancC.IsAncestor(descC)
}

// MergeBase returns the best common ancestor of a and b. go-git can return
// more than one candidate for criss-cross merges; we deterministically take
// the first, matching the teacher's own merge_base_test.go expectations for
// the common (non criss-cross) case.
func (s *Store) MergeBase(a, b ObjectId) (ObjectId, error) {
	ac, err := s.Commit(a)
	if err != nil {
		return ZeroID, err
	}
	bc, err := s.Commit(b)
	if err != nil {
		return ZeroID, err
	}
	bases, err := ac.MergeBase(bc)
	if err != nil {
		return ZeroID, err
	}
	if len(bases) == 0 {
		return ZeroID, fmt.Errorf("odb: no merge base between %s and %s", a, b)
	}
	return bases[0].Hash, nil
}
