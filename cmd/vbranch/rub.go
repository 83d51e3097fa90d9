package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitbutlerapp/vbranch-core/diffengine"
	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
	"github.com/gitbutlerapp/vbranch-core/vbranch"
	"github.com/gitbutlerapp/vbranch-core/workspace"
)

// rubCmd is the user-friendly "combine these two commits" verb: squash when
// source and target share a stack (where squashing is well defined, since
// destination must be an ancestor of source), otherwise move every path
// source touches onto target (§C.1's supplemented rub dispatch).
var rubCmd = &cobra.Command{
	Use:   "rub <source> <target>",
	Short: "Combine source into target, squashing or moving changes as appropriate",
	Args:  cobra.ExactArgs(2),
	RunE:  runRub,
}

func init() {
	rootCmd.AddCommand(rubCmd)
}

func runRub(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(cmd)
	if err != nil {
		return err
	}

	source, err := parseCommit(args[0])
	if err != nil {
		return err
	}
	target, err := parseCommit(args[1])
	if err != nil {
		return err
	}

	srcStack, err := stackContaining(engine, source)
	if err != nil {
		return err
	}
	dstStack, err := stackContaining(engine, target)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if srcStack.ID == dstStack.ID {
		result, err := engine.SquashCommits(ctx, srcStack.ID, []odb.ObjectId{source}, target, nil, workspace.Identity)
		if err != nil {
			return err
		}
		fmt.Printf("squashed into %s\n", result.SquashedCommit)
		return nil
	}

	srcCommit, err := engine.Store.Commit(source)
	if err != nil {
		return err
	}
	if len(srcCommit.ParentHashes) == 0 {
		return fmt.Errorf("vbranch: rub: source commit has no parent to diff against")
	}
	srcParent, err := engine.Store.Commit(srcCommit.ParentHashes[0])
	if err != nil {
		return err
	}
	changes, err := diffengine.TreeChanges(engine.Store, srcParent.TreeHash, srcCommit.TreeHash)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(changes))
	for _, c := range changes {
		paths = append(paths, c.Path)
	}

	result, err := engine.MoveFileChanges(ctx, srcStack.ID, source, dstStack.ID, target, paths, workspace.Identity)
	if err != nil {
		return err
	}
	fmt.Printf("moved %d path(s): source now %s, target now %s\n", len(paths), result.NewSrcCommit, result.NewDstCommit)
	return nil
}

// stackContaining finds the applied stack whose history includes commit,
// walking first-parent from each stack's tip.
func stackContaining(engine *vbranch.Engine, commit odb.ObjectId) (*stack.Stack, error) {
	stacks, err := engine.Stacks.ListInWorkspace()
	if err != nil {
		return nil, err
	}
	for i := range stacks {
		cursor := stacks[i].Tip()
		for cursor != odb.ZeroID {
			if cursor == commit {
				return &stacks[i], nil
			}
			c, err := engine.Store.Commit(cursor)
			if err != nil {
				return nil, err
			}
			if len(c.ParentHashes) == 0 {
				break
			}
			cursor = c.ParentHashes[0]
		}
	}
	return nil, fmt.Errorf("vbranch: no applied stack contains commit %s", commit)
}
