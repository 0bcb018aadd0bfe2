package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func agentSocketPath(backend string) string {
	return filepath.Join(runtimeDir(), "agent-"+backend+"-admin.sock")
}
func agentPIDPath(backend string) string { return filepath.Join(runtimeDir(), "agent-"+backend+".pid") }
func agentLogPath(backend string) string { return filepath.Join(runtimeDir(), "agent-"+backend+".log") }

func newAgentCmd() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage a ragweb Agent daemon",
	}
	cmd.PersistentFlags().StringVar(&backend, "backend", "", "Backend this Agent serves (required)")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if backend == "" {
			return fmt.Errorf("--backend is required")
		}
		return nil
	}

	cmd.AddCommand(newAgentStartCmd(&backend))
	cmd.AddCommand(newAgentStopCmd(&backend))
	cmd.AddCommand(newAgentStatusCmd(&backend))
	cmd.AddCommand(newAgentLogsCmd(&backend))

	return cmd
}

func newAgentStartCmd(backend *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start an Agent daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			if isDaemonRunning(agentPIDPath(*backend)) {
				fmt.Printf("Agent %s is already running\n", *backend)
				return nil
			}
			env := []string{"BACKEND=" + *backend}
			pid, err := startBackground("ragweb-agent", env, agentLogPath(*backend), agentPIDPath(*backend))
			if err != nil {
				return err
			}
			fmt.Printf("Agent %s started (PID: %d)\n", *backend, pid)
			fmt.Printf("Logs: %s\n", agentLogPath(*backend))
			return nil
		},
	}
}

func newAgentStopCmd(backend *string) *cobra.Command {
	var waitForJobs bool
	var timeout int32

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop an Agent daemon gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isDaemonRunning(agentPIDPath(*backend)) {
				fmt.Printf("Agent %s is not running\n", *backend)
				return nil
			}
			return stopDaemon(cmd.Context(), agentSocketPath(*backend), waitForJobs, timeout)
		},
	}
	cmd.Flags().BoolVar(&waitForJobs, "wait", true, "Wait for running tasks to complete")
	cmd.Flags().Int32Var(&timeout, "timeout", 30, "Shutdown timeout in seconds")
	return cmd
}

func newAgentStatusCmd(backend *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show an Agent daemon's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(cmd.Context(), agentSocketPath(*backend))
		},
	}
}

func newAgentLogsCmd(backend *string) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show an Agent daemon's logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if follow {
				return followLogs(cmd.Context(), agentLogPath(*backend), lines)
			}
			return showLogs(agentLogPath(*backend), lines)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for all)")
	return cmd
}
