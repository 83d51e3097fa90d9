// Package vbranch is a virtual-branch engine: it lets a single working copy
// carry the uncommitted changes of several independent branches at once,
// and lets each branch be committed, reordered, squashed, split or pushed in
// isolation without ever requiring a physical checkout switch.
//
// The engine is organized as a layered pipeline, each layer depending only
// on those beneath it:
//
//	odb          object store adapter (blobs, trees, commits, refs, merge-base)
//	diffengine   worktree/tree diffing into hunk-level unified patches
//	assign       per-hunk ownership claims, reconciled across worktree edits
//	stack        stack/branch metadata (ordered heads, upstream binding)
//	workspace    the synthetic octopus workspace commit
//	commitengine commit synthesis, amend/squash/split, and the rebase engine
//	integration  upstream-integration detection
//	vbranch      the operation façade the CLI and other front ends call
package vbranch
