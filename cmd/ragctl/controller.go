package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func controllerSocketPath() string { return filepath.Join(runtimeDir(), "controller-admin.sock") }
func controllerPIDPath() string    { return filepath.Join(runtimeDir(), "controller.pid") }
func controllerLogPath() string    { return filepath.Join(runtimeDir(), "controller.log") }

func newControllerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "controller",
		Short: "Manage the ragweb Controller daemon",
	}

	cmd.AddCommand(newControllerStartCmd())
	cmd.AddCommand(newControllerStopCmd())
	cmd.AddCommand(newControllerStatusCmd())
	cmd.AddCommand(newControllerLogsCmd())
	cmd.AddCommand(newPrepareForRebootCmd())

	return cmd
}

func newControllerStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the Controller daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			if isDaemonRunning(controllerPIDPath()) {
				fmt.Println("Controller is already running")
				return nil
			}
			pid, err := startBackground("ragweb-controller", nil, controllerLogPath(), controllerPIDPath())
			if err != nil {
				return err
			}
			fmt.Printf("Controller started (PID: %d)\n", pid)
			fmt.Printf("Logs: %s\n", controllerLogPath())
			return nil
		},
	}
}

func newControllerStopCmd() *cobra.Command {
	var waitForJobs bool
	var timeout int32

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the Controller daemon gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isDaemonRunning(controllerPIDPath()) {
				fmt.Println("Controller is not running")
				return nil
			}
			return stopDaemon(cmd.Context(), controllerSocketPath(), waitForJobs, timeout)
		},
	}
	cmd.Flags().BoolVar(&waitForJobs, "wait", true, "Wait for running jobs to complete")
	cmd.Flags().Int32Var(&timeout, "timeout", 30, "Shutdown timeout in seconds")
	return cmd
}

func newControllerStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Controller daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(cmd.Context(), controllerSocketPath())
		},
	}
}

func newControllerLogsCmd() *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show Controller daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if follow {
				return followLogs(cmd.Context(), controllerLogPath(), lines)
			}
			return showLogs(controllerLogPath(), lines)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for all)")
	return cmd
}

func newPrepareForRebootCmd() *cobra.Command {
	var timeout int32

	cmd := &cobra.Command{
		Use:   "prepare-for-reboot",
		Short: "Pause every backend and wait for running jobs to drain",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialAdmin(controllerSocketPath())
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.PrepareForReboot(cmd.Context(), timeout)
			if err != nil {
				return err
			}
			fmt.Printf("Paused backends: %v\n", resp.PausedBackends)
			if resp.TimedOut {
				fmt.Printf("Timed out with %d job(s) still running\n", resp.JobsRemaining)
			} else {
				fmt.Println("All jobs drained")
			}
			return nil
		},
	}
	cmd.Flags().Int32Var(&timeout, "timeout", 30, "Seconds to wait for running jobs to drain")
	return cmd
}
