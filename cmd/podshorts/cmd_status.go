package main

import (
	"github.com/spf13/cobra"
)

func newStatusCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show a run's current state",
		Long: `Show a run's current state: in_progress, suspended, completed, or failed.

For suspended runs the output includes the waiting gate and its payload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(*configPath)
			if err != nil {
				return err
			}

			st, err := svc.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), st)
		},
	}

	return cmd
}
