package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "podshorts",
		Short: "Podshorts - durable pipeline for short-form podcast videos",
		Long: `Podshorts turns trending topics into short-form podcast videos through
a checkpointed multi-stage pipeline.

A run moves through research, scripting, media production, assembly, and
publishing, pausing at human gates for topic, speaker, script, audio, and
hook decisions. Every step is persisted, so suspended runs survive process
restarts and resume exactly where they stopped.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "podshorts.yaml", "Path to the pipeline config file")

	// Add subcommands
	cmd.AddCommand(newStartCommand(&configPath))
	cmd.AddCommand(newStatusCommand(&configPath))
	cmd.AddCommand(newResumeCommand(&configPath))
	cmd.AddCommand(newResultCommand(&configPath))

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
