package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <commit>",
	Short: "Show a commit's message, author, and the paths it touches",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(cmd)
	if err != nil {
		return err
	}

	id, err := parseCommit(args[0])
	if err != nil {
		return err
	}

	details, err := engine.GetCommitDetails(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Printf("commit %s\n", details.ID)
	fmt.Printf("Author: %s <%s>\n", details.Commit.Author.Name, details.Commit.Author.Email)
	fmt.Printf("\n    %s\n\n", details.Commit.Message)
	for _, c := range details.Changes {
		fmt.Printf("  %s %s\n", c.Status, c.Path)
	}
	return nil
}
