// Command vbranch is the CLI front end for the virtual-branch engine: it
// wires configuration, logging, and the underlying stores together and
// dispatches to the operation façade in package vbranch.
package main

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"

	"github.com/gitbutlerapp/vbranch-core/assign"
	"github.com/gitbutlerapp/vbranch-core/internal/config"
	"github.com/gitbutlerapp/vbranch-core/internal/obslog"
	"github.com/gitbutlerapp/vbranch-core/odb"
	"github.com/gitbutlerapp/vbranch-core/stack"
	"github.com/gitbutlerapp/vbranch-core/vbranch"
)

var rootCmd = &cobra.Command{
	Use:   "vbranch",
	Short: "Manage stacked virtual branches over a single Git worktree",
	Long: `vbranch lets you work on several independent lines of development at
once inside one working copy. Each stack owns a slice of the worktree's
changes; they are kept applied together as one synthetic workspace commit.`,
}

func init() {
	rootCmd.PersistentFlags().String("repo", ".", "path to the Git repository")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openEngine loads config, builds a logger, opens the repo/stores at
// --repo, and assembles a ready-to-use vbranch.Engine.
func openEngine(cmd *cobra.Command) (*vbranch.Engine, error) {
	repoPath, err := cmd.Flags().GetString("repo")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("vbranch: load config: %w", err)
	}
	log, err := obslog.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("vbranch: build logger: %w", err)
	}

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("vbranch: open repository at %s: %w", repoPath, err)
	}
	store := odb.Open(repo)

	stacks, err := stack.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("vbranch: open stack store: %w", err)
	}
	assigns, err := assign.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("vbranch: open assignment store: %w", err)
	}

	target, err := resolveTarget(repo)
	if err != nil {
		return nil, fmt.Errorf("vbranch: resolve target: %w", err)
	}

	return vbranch.NewEngine(repoPath, store, assigns, stacks, target, plumbing.ReferenceName(cfg.Workspace.Ref), cfg.Diff.ContextLines, vbranch.NullSink{}, log), nil
}

// resolveTarget picks the upstream commit integration is measured against:
// the current branch's configured remote-tracking ref, falling back to
// HEAD itself for a repository with no remote configured yet.
func resolveTarget(repo *git.Repository) (odb.Target, error) {
	head, err := repo.Head()
	if err != nil {
		return odb.Target{}, err
	}

	branchName := head.Name().Short()
	cfg, err := repo.Config()
	if err != nil {
		return odb.Target{}, err
	}
	branchCfg, ok := cfg.Branches[branchName]
	if !ok || branchCfg.Remote == "" || branchCfg.Merge == "" {
		return odb.Target{SHA: odb.ObjectId(head.Hash())}, nil
	}

	remote, err := repo.Remote(branchCfg.Remote)
	remoteURL := ""
	if err == nil && len(remote.Config().URLs) > 0 {
		remoteURL = remote.Config().URLs[0]
	}

	trackingRef := plumbing.NewRemoteReferenceName(branchCfg.Remote, branchCfg.Merge.Short())
	ref, err := repo.Reference(trackingRef, true)
	if err != nil {
		return odb.Target{SHA: odb.ObjectId(head.Hash())}, nil
	}

	return odb.Target{
		Branch:    odb.RemoteRef{Remote: branchCfg.Remote, Branch: branchCfg.Merge.Short()},
		RemoteURL: remoteURL,
		SHA:       odb.ObjectId(ref.Hash()),
	}, nil
}
