package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitbutlerapp/vbranch-core/commitengine"
	"github.com/gitbutlerapp/vbranch-core/diffengine"
	"github.com/gitbutlerapp/vbranch-core/workspace"
)

var absorbCmd = &cobra.Command{
	Use:   "absorb <stack>",
	Short: "Fold uncommitted changes into whichever commit last touched each path",
	Args:  cobra.ExactArgs(1),
	RunE:  runAbsorb,
}

func init() {
	rootCmd.AddCommand(absorbCmd)
}

func runAbsorb(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(cmd)
	if err != nil {
		return err
	}

	st, err := resolveStack(engine.Stacks, args[0])
	if err != nil {
		return err
	}

	wt, err := engine.Store.Repo().Worktree()
	if err != nil {
		return err
	}
	headTree, err := engine.Store.Commit(st.Tip())
	if err != nil {
		return err
	}

	wc, err := diffengine.WorktreeChanges(diffengine.WorktreeChangesInput{
		Store:    engine.Store,
		FS:       wt.Filesystem,
		HeadTree: headTree.TreeHash,
	})
	if err != nil {
		return err
	}
	if len(wc.Changes) == 0 {
		fmt.Println("nothing to absorb")
		return nil
	}

	hunks := make([]commitengine.AbsorbHunk, 0, len(wc.Changes))
	for _, c := range wc.Changes {
		hunks = append(hunks, commitengine.AbsorbHunk{Path: c.Path, WholeFile: true, State: c.State})
	}

	result, err := engine.Absorb(context.Background(), st.ID, hunks, workspace.Identity)
	if err != nil {
		return err
	}

	fmt.Printf("absorbed into %d commit(s)\n", len(result.AmendedCommits))
	return nil
}
