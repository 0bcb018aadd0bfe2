package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect a project's pipeline manifest",
	}
	cmd.AddCommand(newManifestShowCmd())
	return cmd
}

func newManifestShowCmd() *cobra.Command {
	var repoURL, commit string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the raw project.yaml at a commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if repoURL == "" || commit == "" {
				return fmt.Errorf("--repo-url and --commit are required")
			}
			client, err := dialAdmin(controllerSocketPath())
			if err != nil {
				return err
			}
			defer client.Close()

			yaml, err := client.ShowManifest(cmd.Context(), repoURL, commit)
			if err != nil {
				return err
			}
			fmt.Print(yaml)
			return nil
		},
	}
	cmd.Flags().StringVar(&repoURL, "repo-url", "", "Git repository URL (required)")
	cmd.Flags().StringVar(&commit, "commit", "", "Commit SHA to resolve project.yaml at (required)")
	return cmd
}
