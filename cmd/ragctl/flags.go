package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFlagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Inspect and change operational flags on the Controller",
	}
	cmd.AddCommand(newFlagsGetCmd())
	cmd.AddCommand(newFlagsSetCmd())
	cmd.AddCommand(newFlagsListCmd())
	return cmd
}

func newFlagsGetCmd() *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Print a single flag's value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialAdmin(controllerSocketPath())
			if err != nil {
				return err
			}
			defer client.Close()

			flag, err := client.GetFlag(cmd.Context(), args[0], backend)
			if err != nil {
				return err
			}
			if flag == nil || flag.Value == nil {
				fmt.Println("(unset)")
				return nil
			}
			fmt.Println(*flag.Value)
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "Backend the flag applies to (required)")
	return cmd
}

func newFlagsSetCmd() *cobra.Command {
	var backend string
	var clear bool
	cmd := &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Set (or, with --clear, unset) a flag's value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialAdmin(controllerSocketPath())
			if err != nil {
				return err
			}
			defer client.Close()

			var value *string
			if !clear {
				if len(args) != 2 {
					return fmt.Errorf("a value is required unless --clear is set")
				}
				value = &args[1]
			}
			return client.SetFlag(cmd.Context(), args[0], backend, value)
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "Backend the flag applies to (required)")
	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the flag instead of setting it")
	return cmd
}

func newFlagsListCmd() *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every flag set for a backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialAdmin(controllerSocketPath())
			if err != nil {
				return err
			}
			defer client.Close()

			flags, err := client.ListFlags(cmd.Context(), backend)
			if err != nil {
				return err
			}
			for _, f := range flags {
				value := "(unset)"
				if f.Value != nil {
					value = *f.Value
				}
				fmt.Printf("%-24s %s\n", f.Name, value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "Backend to list flags for (required)")
	return cmd
}
