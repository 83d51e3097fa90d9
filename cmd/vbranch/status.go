package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every applied stack and the current set of file changes",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "print status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(cmd)
	if err != nil {
		return err
	}

	repoPath, _ := cmd.Flags().GetString("repo")
	wt, err := engine.Store.Repo().Worktree()
	if err != nil {
		return fmt.Errorf("vbranch: status requires a non-bare repository at %s: %w", repoPath, err)
	}

	result, err := engine.GetProjectStatus(context.Background(), wt.Filesystem)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for _, st := range result.Stacks {
		head, err := st.WorkingHead()
		name := "<no working head>"
		if err == nil {
			name = head.Name
		}
		fmt.Printf("stack %s (%s)\n", st.ID, name)
	}
	fmt.Printf("\n%d changed path(s)\n", len(result.FileChanges))
	for _, c := range result.FileChanges {
		fmt.Printf("  %s %s\n", c.Status, c.Path)
	}

	fmt.Printf("\n%d hunk assignment(s)\n", len(result.Assignments))
	for _, a := range result.Assignments {
		owner := "<unassigned>"
		if a.StackID != nil {
			owner = a.StackID.String()
		}
		fmt.Printf("  %s -> %s\n", a.Path, owner)
	}
	return nil
}
