package vbranch

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// maxReaders bounds how many concurrent shared (read) holders the
// worktree lock admits; an exclusive holder acquires all of them at once,
// which is the standard way to build a cancellable RWMutex on top of a
// weighted semaphore (§5's worktree lock).
const maxReaders = 1 << 30

// WorktreeLock is the single process-wide reader/writer lock guarding the
// Git worktree and the assignment store (§5). Read operations (status,
// get_branch_changes) take it shared; every mutation in §4.5/§4.4 takes it
// exclusive. Acquire is context-aware so a suspended operation can be
// cancelled at the lock-acquisition boundary, per §5's cancellation model.
type WorktreeLock struct {
	sem *semaphore.Weighted
}

// NewWorktreeLock returns a ready-to-use lock.
func NewWorktreeLock() *WorktreeLock {
	return &WorktreeLock{sem: semaphore.NewWeighted(maxReaders)}
}

// RLock acquires the lock in shared mode. The returned func releases it.
func (l *WorktreeLock) RLock(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { l.sem.Release(1) }, nil
}

// Lock acquires the lock in exclusive mode. The returned func releases it.
// Deadlock prevention (§5): never call Lock while already holding this
// lock, exclusively or shared, on the same goroutine.
func (l *WorktreeLock) Lock(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, maxReaders); err != nil {
		return nil, err
	}
	return func() { l.sem.Release(maxReaders) }, nil
}

// TryLock attempts to acquire the lock exclusively without blocking,
// returning ErrLockHeld if another operation currently holds it (§7's
// LockHeld, retryable by the caller).
func (l *WorktreeLock) TryLock() (func(), error) {
	if !l.sem.TryAcquire(maxReaders) {
		return nil, ErrLockHeld
	}
	return func() { l.sem.Release(maxReaders) }, nil
}
