package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RevCBH/ragweb/internal/adminrpc"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Inspect what would be scheduled for a workspace",
	}
	cmd.AddCommand(newWorkspaceDiffCmd())
	return cmd
}

func newWorkspaceDiffCmd() *cobra.Command {
	var req adminrpc.DiffWorkspaceRequest
	var actions []string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Preview the Jobs a RAP create request would schedule, without creating them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Backend == "" || req.Workspace == "" || req.RepoURL == "" || req.Commit == "" {
				return fmt.Errorf("--backend, --workspace, --repo-url, and --commit are required")
			}
			req.RequestedActions = actions
			if len(req.RequestedActions) == 0 {
				req.RequestedActions = []string{"run_all"}
			}

			client, err := dialAdmin(controllerSocketPath())
			if err != nil {
				return err
			}
			defer client.Close()

			jobs, err := client.DiffWorkspace(cmd.Context(), req)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("Nothing to do")
				return nil
			}
			for _, j := range jobs {
				fmt.Printf("%-12s %-24s %s\n", j.Backend, j.Action, j.State)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Backend, "backend", "", "Backend to diff against (required)")
	cmd.Flags().StringVar(&req.Workspace, "workspace", "", "Workspace slug (required)")
	cmd.Flags().StringVar(&req.RepoURL, "repo-url", "", "Git repository URL (required)")
	cmd.Flags().StringVar(&req.Commit, "commit", "", "Commit SHA (required)")
	cmd.Flags().StringVar(&req.Branch, "branch", "main", "Branch the commit must be reachable from")
	cmd.Flags().StringVar(&req.DatabaseName, "database-name", "default", "Requested database access level")
	cmd.Flags().StringSliceVar(&actions, "actions", nil, "Actions to preview (default: run_all)")
	cmd.Flags().BoolVar(&req.CodelistsOK, "codelists-ok", true, "Whether codelists are up to date")

	return cmd
}
