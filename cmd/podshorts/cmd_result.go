package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newResultCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result <run-id>",
		Short: "Print a completed run's artifacts",
		Long: `Print a completed run's artifact set as JSON: the final video, caption
file, thumbnail, and upload metadata.

Fails for runs that have not completed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(*configPath)
			if err != nil {
				return err
			}

			out, err := svc.Result(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			raw, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		},
	}

	return cmd
}
