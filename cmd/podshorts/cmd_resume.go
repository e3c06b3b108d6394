package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"podshorts/pipeline"
)

func newResumeCommand(configPath *string) *cobra.Command {
	var decision string

	cmd := &cobra.Command{
		Use:   "resume <run-id> <gate>",
		Short: "Answer a suspended run's gate and continue it",
		Long: `Apply a decision to a run suspended at a human gate and block until the
run reaches its next gate, completes, or fails.

The decision is a JSON object whose keys depend on the gate:

  topic_selection   {"selected_topic": "..."}
  speaker_selection {"host": "...", "participants": ["..."]}
  script_review     {"approved": true} or {"approved": false, "feedback": "..."}
  audio_choice      {"audio_source": "tts"} or
                    {"audio_source": "manual", "audio_files": {"scene_1": "/path.mp3"}}
  hook_prompt       {"prompt": "..."} or {} to keep the generated prompt

Pass the JSON with --decision, or --decision - to read it from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resumeCommandE(cmd, *configPath, args[0], args[1], decision)
		},
	}

	cmd.Flags().StringVarP(&decision, "decision", "d", "{}", "Gate decision as a JSON object (- reads stdin)")

	return cmd
}

func resumeCommandE(cmd *cobra.Command, configPath, runID, gate, decision string) error {
	if decision == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read decision: %w", err)
		}
		decision = string(raw)
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(decision), &parsed); err != nil {
		return fmt.Errorf("decision must be a JSON object: %w", err)
	}

	svc, err := buildService(configPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := svc.Resume(ctx, runID, gate, parsed); err != nil {
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
