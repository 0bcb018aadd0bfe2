// Command ragctl is the operator CLI for a ragweb deployment: it starts
// and stops the Controller/Agent daemons, drives their admin gRPC plane
// (status, flags, manifest, workspace diff, prepare-for-reboot), and
// watches a RAP's Jobs live over the client REST surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Operate a ragweb Controller/Agent deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newControllerCmd())
	root.AddCommand(newAgentCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newFlagsCmd())
	root.AddCommand(newManifestCmd())
	root.AddCommand(newWorkspaceCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the ragctl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ragctl: %v\n", err)
		os.Exit(1)
	}
}
