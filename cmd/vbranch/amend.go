package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitbutlerapp/vbranch-core/workspace"
)

var amendCmd = &cobra.Command{
	Use:   "amend <stack> <commit> [path...]",
	Short: "Rewrite a commit's content, rebasing anything stacked above it",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAmend,
}

func init() {
	amendCmd.Flags().StringP("message", "m", "", "new commit message (defaults to keeping the original)")
	rootCmd.AddCommand(amendCmd)
}

func runAmend(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(cmd)
	if err != nil {
		return err
	}

	st, err := resolveStack(engine.Stacks, args[0])
	if err != nil {
		return err
	}
	commitID, err := parseCommit(args[1])
	if err != nil {
		return err
	}

	repoPath, _ := cmd.Flags().GetString("repo")
	selections, err := wholeFileSelections(engine.Store, repoPath, args[2:])
	if err != nil {
		return err
	}

	var newMessage *string
	if m, _ := cmd.Flags().GetString("message"); m != "" {
		newMessage = &m
	}

	result, err := engine.Amend(context.Background(), st.ID, commitID, selections, newMessage, workspace.Identity)
	if err != nil {
		return err
	}

	fmt.Printf("amended into %s\n", result.NewCommit)
	return nil
}
