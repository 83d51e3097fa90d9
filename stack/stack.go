// Package stack persists stack/branch metadata (L3): per-stack, an ordered
// list of heads, upstream binding, order, name and description (§4.3).
package stack

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gitbutlerapp/vbranch-core/odb"
)

// StackId is a stable UUIDv4 identifying a stack across sessions and
// rebases (§3).
type StackId = uuid.UUID

// NewStackId generates a fresh StackId. Grounded on kdlbs-kandev's use of
// google/uuid for entity identifiers.
func NewStackId() StackId {
	return uuid.New()
}

// Head is one named branch within a stack (§3).
type Head struct {
	Name        string
	Tip         odb.ObjectId
	Description string
	Archived    bool
}

// Stack is the ordered chain of heads worked on as one unit (§3). The
// working head is the first non-archived entry of Heads (see WorkingHead);
// additional heads (older commits) follow.
type Stack struct {
	ID          StackId
	Heads       []Head
	Order       uint32
	InWorkspace bool
	Upstream    *odb.RemoteRef
	Description string
}

var (
	ErrNoHeads          = errors.New("stack: must have at least one head")
	ErrNonLinearHeads   = errors.New("stack: head tips must be linearly ordered")
	ErrDuplicateOrder   = errors.New("stack: order must be unique across stacks in the workspace")
	ErrHeadNotFound     = errors.New("stack: head not found")
	ErrNotDescendant    = errors.New("stack: new tip is not a descendant of the previous tip")
	ErrStackNotFound    = errors.New("stack: not found")
)

// WorkingHead returns the stack's first non-archived head, i.e. the head
// new commits are appended to. SPEC_FULL.md §C.3: archived heads are
// skipped for this purpose but remain in the ordered list for history.
func (s *Stack) WorkingHead() (*Head, error) {
	for i := range s.Heads {
		if !s.Heads[i].Archived {
			return &s.Heads[i], nil
		}
	}
	return nil, fmt.Errorf("stack %s: %w", s.ID, ErrNoHeads)
}

// Tip is the stack's topmost commit, i.e. WorkingHead().Tip, or the first
// head's tip if every head happens to be archived (so the stack still
// resolves to a commit for workspace-building purposes).
func (s *Stack) Tip() odb.ObjectId {
	if h, err := s.WorkingHead(); err == nil {
		return h.Tip
	}
	if len(s.Heads) > 0 {
		return s.Heads[0].Tip
	}
	return odb.ZeroID
}

// ValidateLinearity checks the invariant from §3/§4.3: within a stack, for
// heads[i], heads[i+1], heads[i+1].Tip must be an ancestor of heads[i].Tip.
func (s *Stack) ValidateLinearity(store *odb.Store) error {
	if len(s.Heads) == 0 {
		return ErrNoHeads
	}
	for i := 0; i+1 < len(s.Heads); i++ {
		ok, err := store.IsAncestor(s.Heads[i+1].Tip, s.Heads[i].Tip)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s is not an ancestor of %s", ErrNonLinearHeads, s.Heads[i+1].Name, s.Heads[i].Name)
		}
	}
	return nil
}

// ArchiveHead marks a head archived, excluding it from WorkingHead()
// resolution while keeping it in the ordered list (SPEC_FULL.md §C.3).
func (s *Stack) ArchiveHead(name string) error {
	for i := range s.Heads {
		if s.Heads[i].Name == name {
			s.Heads[i].Archived = true
			return nil
		}
	}
	return fmt.Errorf("%s: %w", name, ErrHeadNotFound)
}

// UnarchiveHead clears the archived flag.
func (s *Stack) UnarchiveHead(name string) error {
	for i := range s.Heads {
		if s.Heads[i].Name == name {
			s.Heads[i].Archived = false
			return nil
		}
	}
	return fmt.Errorf("%s: %w", name, ErrHeadNotFound)
}
