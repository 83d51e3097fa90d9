// Package vbranch is the operation façade (L7): the verbs the outer
// system consumes, each of which acquires the worktree lock, runs its
// core logic against the lower layers, rebuilds the workspace commit, and
// emits a StackUpdate per affected stack (§4.7).
package vbranch

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/gitbutlerapp/vbranch-core/assign"
	"github.com/gitbutlerapp/vbranch-core/commitengine"
	"github.com/gitbutlerapp/vbranch-core/diffengine"
	"github.com/gitbutlerapp/vbranch-core/integration"
	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
	"github.com/gitbutlerapp/vbranch-core/workspace"
)

// Engine wires every layer together behind the façade. One Engine serves
// one repository/project.
type Engine struct {
	ProjectID string

	Store        *odb.Store
	Assigns      *assign.Store
	Stacks       *stack.Store
	Target       odb.Target
	WorkspaceRef plumbing.ReferenceName
	ContextLines int

	lock *WorktreeLock
	sink EventSink
	log  *zap.Logger

	lastWorkspaceCommit odb.ObjectId
}

// Identity returns the commit author/committer used for all user-facing
// commits (as opposed to workspace.Identity, which is fixed for the
// synthetic workspace commit itself).
type Identity = object.Signature

// NewEngine assembles a façade over already-opened stores.
func NewEngine(projectID string, store *odb.Store, assigns *assign.Store, stacks *stack.Store, target odb.Target, workspaceRef plumbing.ReferenceName, contextLines int, sink EventSink, log *zap.Logger) *Engine {
	if sink == nil {
		sink = NullSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		ProjectID:    projectID,
		Store:        store,
		Assigns:      assigns,
		Stacks:       stacks,
		Target:       target,
		WorkspaceRef: workspaceRef,
		ContextLines: contextLines,
		lock:         NewWorktreeLock(),
		sink:         sink,
		log:          log,
	}
}

// ProjectStatus is the result of GetProjectStatus (§4.7, §6's `status`
// CLI verb).
type ProjectStatus struct {
	Stacks      []stack.Stack
	FileChanges []diffengine.TreeChange
	Assignments []assign.HunkAssignment
}

// GetProjectStatus reconciles assignments against the live worktree diff
// and returns every applied stack, the current set of file changes, and
// the freshly-reconciled hunk ownership (§4.2, §6). HunkAssignments are
// rewritten on every call, per §3's lifecycle.
func (e *Engine) GetProjectStatus(ctx context.Context, fs billy.Filesystem) (*ProjectStatus, error) {
	release, err := e.lock.RLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	stacks, err := e.Stacks.ListInWorkspace()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	changes, err := diffengine.WorktreeChanges(diffengine.WorktreeChangesInput{
		Store:    e.Store,
		FS:       fs,
		HeadTree: e.currentHeadTree(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	status := &ProjectStatus{Stacks: stacks, FileChanges: changes.Changes}

	if e.Assigns != nil {
		current, err := pathHunksFromChanges(e.Store, fs, changes.Changes, e.ContextLines)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIOError, err)
		}
		locks := &stackLockSource{store: e.Store, stacks: stacks, target: e.Target.SHA, contextLines: e.ContextLines}
		assignments, _, err := assign.AssignmentsWithFallback(e.Assigns, current, locks)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIOError, err)
		}
		status.Assignments = assignments
	}

	return status, nil
}

func (e *Engine) currentHeadTree() odb.ObjectId {
	id, err := e.Store.Reference(e.WorkspaceRef)
	if err != nil {
		return e.Target.SHA
	}
	commit, err := e.Store.Commit(id)
	if err != nil {
		return e.Target.SHA
	}
	return commit.TreeHash
}

// CommitDetails is the result of GetCommitDetails (§4.7, §6's `describe`
// CLI verb).
type CommitDetails struct {
	ID      odb.ObjectId
	Commit  *object.Commit
	Changes []diffengine.TreeChange
}

// GetCommitDetails loads one commit plus its diff against its first
// parent (§4.7's get_commit_details).
func (e *Engine) GetCommitDetails(ctx context.Context, id odb.ObjectId) (*CommitDetails, error) {
	release, err := e.lock.RLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	commit, err := e.Store.Commit(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var parentTree odb.ObjectId
	if len(commit.ParentHashes) > 0 {
		parent, err := e.Store.Commit(commit.ParentHashes[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIOError, err)
		}
		parentTree = parent.TreeHash
	}

	changes, err := diffengine.TreeChanges(e.Store, parentTree, commit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	return &CommitDetails{ID: id, Commit: commit, Changes: changes}, nil
}

// GetBranchChanges returns the cumulative diff of one stack's head against
// the integration target (§4.7's get_branch_changes).
func (e *Engine) GetBranchChanges(ctx context.Context, stackID stack.StackId) ([]diffengine.TreeChange, error) {
	release, err := e.lock.RLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := e.Stacks.Get(stackID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	tip, err := e.Store.Commit(st.Tip())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	target, err := e.Store.Commit(e.Target.SHA)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	changes, err := diffengine.TreeChanges(e.Store, target.TreeHash, tip.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	return changes, nil
}

// CreateBranch creates a new stack with a single working head at tip
// (§4.3's create, exposed as the façade's create_branch verb).
func (e *Engine) CreateBranch(ctx context.Context, name string, tip odb.ObjectId, description string) (*stack.Stack, error) {
	release, err := e.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := e.Stacks.Create(stack.CreateRequest{
		Heads:       []stack.Head{{Name: name, Tip: tip}},
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if err := e.rebuildWorkspace(); err != nil {
		return nil, err
	}
	e.emit(st.ID)
	return st, nil
}

// Commit creates a new commit on stackID from the given hunk selections,
// keeping only the selections the assignment store gives to stackID, with
// unclaimed hunks going to the leftmost stack, rather than trusting the
// caller's selection list verbatim (§4.5's create_commit, exposed as the façade's commit
// verb; §3's "unassigned defaults to the leftmost stack at commit time").
func (e *Engine) Commit(ctx context.Context, stackID stack.StackId, parent *odb.ObjectId, selections []commitengine.HunkSelection, message string, identity Identity) (*commitengine.CreateResult, error) {
	release, err := e.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := e.Stacks.Get(stackID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	selections, err = e.resolveCommitSelections(stackID, selections)
	if err != nil {
		return nil, err
	}

	result, err := commitengine.CreateCommit(e.Store, e.Stacks, st, parent, selections, message, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	if err := e.rebuildWorkspace(); err != nil {
		return nil, err
	}
	e.emit(stackID)
	return result, nil
}

// Amend applies selections onto commitID, rebasing its descendants within
// the given stack (§4.5's amend_commit).
func (e *Engine) Amend(ctx context.Context, stackID stack.StackId, commitID odb.ObjectId, selections []commitengine.HunkSelection, newMessage *string, identity Identity) (*commitengine.AmendResult, error) {
	release, err := e.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := e.Stacks.Get(stackID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	result, err := commitengine.AmendCommit(e.Store, e.Stacks, []*stack.Stack{st}, commitID, selections, newMessage, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	if err := e.rebuildWorkspace(); err != nil {
		return nil, err
	}
	e.emit(stackID)
	return result, nil
}

// SquashCommits squashes sources into destination on stackID (§4.5's
// squash_commits). ErrNotAnAncestor surfaces if destination does not
// precede every source.
func (e *Engine) SquashCommits(ctx context.Context, stackID stack.StackId, sources []odb.ObjectId, destination odb.ObjectId, message *string, identity Identity) (*commitengine.SquashResult, error) {
	release, err := e.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := e.Stacks.Get(stackID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	result, err := commitengine.SquashCommits(e.Store, e.Stacks, st, sources, destination, message, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnAncestor, err)
	}

	if err := e.rebuildWorkspace(); err != nil {
		return nil, err
	}
	e.emit(stackID)
	return result, nil
}

// SplitCommit splits source into shards on stackID (§4.5's split_commit).
func (e *Engine) SplitCommit(ctx context.Context, stackID stack.StackId, source odb.ObjectId, shards []commitengine.Shard, identity Identity) (*commitengine.SplitResult, error) {
	release, err := e.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := e.Stacks.Get(stackID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	result, err := commitengine.SplitCommit(e.Store, e.Stacks, st, source, shards, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if err := e.rebuildWorkspace(); err != nil {
		return nil, err
	}
	e.emit(stackID)
	return result, nil
}

// SplitBranch splits paths out of srcStackID into a brand-new stack
// named newBranchName (§4.5's split_branch).
func (e *Engine) SplitBranch(ctx context.Context, srcStackID stack.StackId, newBranchName string, paths []string, identity Identity) (*commitengine.SplitBranchResult, error) {
	release, err := e.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := e.Stacks.Get(srcStackID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	result, err := commitengine.SplitBranch(e.Store, e.Stacks, st, e.Target.SHA, newBranchName, paths, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if err := e.rebuildWorkspace(); err != nil {
		return nil, err
	}
	e.emit(srcStackID)
	e.emit(result.NewStack.ID)
	return result, nil
}

// MoveFileChanges moves paths from srcCommit to dstCommit, possibly across
// stacks, rebuilding the workspace commit once at the end (§4.5's
// move_changes_between_commits).
func (e *Engine) MoveFileChanges(ctx context.Context, srcStackID stack.StackId, srcCommit odb.ObjectId, dstStackID stack.StackId, dstCommit odb.ObjectId, paths []string, identity Identity) (*commitengine.MoveResult, error) {
	release, err := e.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	srcStack, err := e.Stacks.Get(srcStackID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	dstStack, err := e.Stacks.Get(dstStackID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	result, err := commitengine.MoveChangesBetweenCommits(e.Store, e.Stacks, srcStack, srcCommit, []*stack.Stack{srcStack}, dstStack, dstCommit, []*stack.Stack{dstStack}, paths, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateConflict, err)
	}

	if err := e.rebuildWorkspace(); err != nil {
		return nil, err
	}
	e.emit(srcStackID)
	e.emit(dstStackID)
	return result, nil
}

// ApplyBranch marks an existing stack as applied, adding it to the
// workspace commit.
func (e *Engine) ApplyBranch(ctx context.Context, stackID stack.StackId) error {
	release, err := e.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	if _, err := e.Stacks.SetInWorkspace(stackID, true); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	if err := e.rebuildWorkspace(); err != nil {
		return err
	}
	e.emit(stackID)
	return nil
}

// UnapplyBranch removes a stack from the workspace commit, which is rebuilt
// from the remaining applied stacks; files in the worktree are not
// changed. The stack and its commits are untouched and can be re-applied
// later.
func (e *Engine) UnapplyBranch(ctx context.Context, stackID stack.StackId) error {
	release, err := e.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	if _, err := e.Stacks.SetInWorkspace(stackID, false); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	if err := e.rebuildWorkspace(); err != nil {
		return err
	}
	e.emit(stackID)
	return nil
}

// ResetBranch moves a stack's working head back to commit, discarding
// anything above it (reset_branch(commit) from §4.7). commit must be an
// ancestor of the current tip.
func (e *Engine) ResetBranch(ctx context.Context, stackID stack.StackId, commit odb.ObjectId) error {
	release, err := e.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	st, err := e.Stacks.Get(stackID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	head, err := st.WorkingHead()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	ok, err := e.Store.IsAncestor(commit, head.Tip)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is not an ancestor of %s", ErrNotAnAncestor, commit, head.Tip)
	}

	if _, err := e.Stacks.AppendCommit(e.Store, stackID, commit, true); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	if err := e.rebuildWorkspace(); err != nil {
		return err
	}
	e.emit(stackID)
	return nil
}

// Absorb folds every given hunk into whichever commit in stackID last
// touched its path, falling back to the tip (SPEC_FULL.md §C.2).
func (e *Engine) Absorb(ctx context.Context, stackID stack.StackId, hunks []commitengine.AbsorbHunk, identity Identity) (*commitengine.AbsorbResult, error) {
	release, err := e.lock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := e.Stacks.Get(stackID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	result, err := commitengine.Absorb(e.Store, e.Stacks, st, e.Target.SHA, hunks, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	if err := e.rebuildWorkspace(); err != nil {
		return nil, err
	}
	e.emit(stackID)
	return result, nil
}

// Pusher publishes a stack's tip to a remote. Implementing a real
// transport is out of scope (§1's "no remote transport protocol
// implementation" non-goal); callers supply one built on whatever git
// transport their environment already has available.
type Pusher interface {
	Push(ctx context.Context, stackID stack.StackId, tip odb.ObjectId, force bool) error
}

// Push hands a stack's tip to pusher (§4.7's push(stack, force)).
func (e *Engine) Push(ctx context.Context, pusher Pusher, stackID stack.StackId, force bool) error {
	release, err := e.lock.RLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	st, err := e.Stacks.Get(stackID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	head, err := st.WorkingHead()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := pusher.Push(ctx, stackID, head.Tip, force); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	return nil
}

// IntegrateUpstream reports which of stackID's commits are already
// integrated upstream (§4.7's integrate_upstream(stack), §4.6).
func (e *Engine) IntegrateUpstream(ctx context.Context, stackID stack.StackId) (map[odb.ObjectId]bool, error) {
	release, err := e.lock.RLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := e.Stacks.Get(stackID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	upstream, err := e.Store.Reference(plumbing.NewBranchReferenceName(e.Target.Branch.Branch))
	if err != nil {
		upstream = e.Target.SHA
	}

	results := map[odb.ObjectId]bool{}
	cursor := st.Tip()
	for cursor != odb.ZeroID && cursor != e.Target.SHA {
		ok, err := integration.IsCommitIntegrated(e.Store, e.Target.SHA, upstream, cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIOError, err)
		}
		results[cursor] = ok

		commit, err := e.Store.Commit(cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIOError, err)
		}
		if len(commit.ParentHashes) == 0 {
			break
		}
		cursor = commit.ParentHashes[0]
	}
	return results, nil
}

func (e *Engine) rebuildWorkspace() error {
	stacks, err := e.Stacks.ListInWorkspace()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	result, err := workspace.Build(e.Store, e.WorkspaceRef, e.Target.SHA, stacks)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	e.lastWorkspaceCommit = result.CommitID

	for _, conflicted := range result.Conflicted {
		e.log.Warn("stack conflicted during workspace rebuild", zap.Stringer("stack_id", conflicted))
	}
	return nil
}

func (e *Engine) emit(stackID stack.StackId) {
	e.sink.Publish(StackUpdate{ProjectID: e.ProjectID, StackID: stackID})
}
