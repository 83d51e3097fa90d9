package main

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"

	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
)

func parseCommit(s string) (odb.ObjectId, error) {
	if !plumbing.IsHash(s) {
		return odb.ZeroID, fmt.Errorf("%q is not a valid commit id", s)
	}
	return plumbing.NewHash(s), nil
}

// resolveStack accepts either a stack's UUID or one of its head names, the
// latter being far friendlier on a command line.
func resolveStack(stacks *stack.Store, ref string) (*stack.Stack, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return stacks.Get(id)
	}

	all, err := stacks.ListInWorkspace()
	if err != nil {
		return nil, err
	}
	for i := range all {
		for _, h := range all[i].Heads {
			if h.Name == ref {
				return &all[i], nil
			}
		}
	}
	return nil, fmt.Errorf("no stack with head %q", ref)
}
