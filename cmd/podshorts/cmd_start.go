package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"podshorts/pipeline"
)

func newStartCommand(configPath *string) *cobra.Command {
	var (
		owner     string
		prefsPath string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch a new pipeline run",
		Long: `Launch a new pipeline run and block until it completes, fails, or
suspends at a human gate.

When the run suspends, the printed status includes the gate name and its
payload (the choices on offer). Answer it with:

  podshorts resume <run-id> <gate> --decision '<json>'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startCommandE(cmd, *configPath, owner, prefsPath)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner recorded on the run")
	cmd.Flags().StringVar(&prefsPath, "prefs", "", "Path to a JSON file with persona preferences")

	return cmd
}

func startCommandE(cmd *cobra.Command, configPath, owner, prefsPath string) error {
	var prefs pipeline.Preferences
	if prefsPath != "" {
		raw, err := os.ReadFile(prefsPath)
		if err != nil {
			return fmt.Errorf("read prefs: %w", err)
		}
		if err := json.Unmarshal(raw, &prefs); err != nil {
			return fmt.Errorf("parse prefs: %w", err)
		}
	}

	svc, err := buildService(configPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	runID, _, err := svc.Start(ctx, owner, prefs)
	if err != nil {
		return err
	}

	st, err := svc.Status(ctx, runID)
	if err != nil {
		return err
	}
	if err := printStatus(cmd.OutOrStdout(), st); err != nil {
		return err
	}

	if st.Status == pipeline.RunStatusFailed {
		return &RunFailedError{Message: fmt.Sprintf("run %s failed: %s", runID, st.Error)}
	}
	return nil
}
