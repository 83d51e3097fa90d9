package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/workspace"
)

var squashCmd = &cobra.Command{
	Use:   "squash <stack> <source>... <destination>",
	Short: "Fold one or more commits into an ancestor destination commit",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runSquash,
}

func init() {
	squashCmd.Flags().StringP("message", "m", "", "message for the squashed commit (defaults to joining the originals)")
	rootCmd.AddCommand(squashCmd)
}

func runSquash(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(cmd)
	if err != nil {
		return err
	}

	st, err := resolveStack(engine.Stacks, args[0])
	if err != nil {
		return err
	}

	commitArgs := args[1:]
	destination, err := parseCommit(commitArgs[len(commitArgs)-1])
	if err != nil {
		return err
	}
	sources := make([]odb.ObjectId, 0, len(commitArgs)-1)
	for _, a := range commitArgs[:len(commitArgs)-1] {
		id, err := parseCommit(a)
		if err != nil {
			return err
		}
		sources = append(sources, id)
	}

	var message *string
	if m, _ := cmd.Flags().GetString("message"); m != "" {
		message = &m
	}

	result, err := engine.SquashCommits(context.Background(), st.ID, sources, destination, message, workspace.Identity)
	if err != nil {
		return err
	}

	fmt.Printf("squashed into %s\n", result.SquashedCommit)
	return nil
}
