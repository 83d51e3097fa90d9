package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/workspace"
)

var commitCmd = &cobra.Command{
	Use:   "commit <stack> [path...]",
	Short: "Create a new commit on a stack from the given paths",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCommit,
}

func init() {
	commitCmd.Flags().StringP("message", "m", "", "commit message (required)")
	commitCmd.Flags().String("parent", "", "parent commit id (defaults to the stack's current tip)")
	_ = commitCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(commitCmd)
}

func runCommit(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(cmd)
	if err != nil {
		return err
	}

	st, err := resolveStack(engine.Stacks, args[0])
	if err != nil {
		return err
	}

	repoPath, _ := cmd.Flags().GetString("repo")
	selections, err := wholeFileSelections(engine.Store, repoPath, args[1:])
	if err != nil {
		return err
	}

	var parent *odb.ObjectId
	if p, _ := cmd.Flags().GetString("parent"); p != "" {
		id, err := parseCommit(p)
		if err != nil {
			return err
		}
		parent = &id
	}

	message, _ := cmd.Flags().GetString("message")
	result, err := engine.Commit(context.Background(), st.ID, parent, selections, message, workspace.Identity)
	if err != nil {
		return err
	}

	fmt.Printf("created %s\n", result.NewCommit)
	return nil
}
