package pipeline

import "testing"

func TestReduce(t *testing.T) {
	t.Run("zero delta changes nothing", func(t *testing.T) {
		approved := true
		prev := PipelineState{
			RunID:         "run-1",
			TopicSelected: "ai news",
			HumanApproved: &approved,
			RetryCounts:   map[string]int{StageResearch: 1},
		}

		got := Reduce(prev, PipelineState{})

		if got.RunID != "run-1" || got.TopicSelected != "ai news" {
			t.Errorf("identity fields changed: %+v", got)
		}
		if got.HumanApproved == nil || !*got.HumanApproved {
			t.Error("HumanApproved reset by empty delta")
		}
		if got.RetryCounts[StageResearch] != 1 {
			t.Error("retry counts changed by empty delta")
		}
	})

	t.Run("sparse delta overwrites only set fields", func(t *testing.T) {
		prev := PipelineState{
			RunID:         "run-1",
			TopicSelected: "old topic",
			TrendData:     &TrendData{SelectedTopic: "old topic"},
		}
		delta := PipelineState{
			ScriptData: &ScriptData{Title: "new script"},
		}

		got := Reduce(prev, delta)

		if got.ScriptData == nil || got.ScriptData.Title != "new script" {
			t.Error("delta output not applied")
		}
		if got.TrendData == nil || got.TrendData.SelectedTopic != "old topic" {
			t.Error("unrelated output was dropped")
		}
		if got.TopicSelected != "old topic" {
			t.Error("unrelated scalar was dropped")
		}
	})

	t.Run("retry counts merge key-wise and never decrease", func(t *testing.T) {
		prev := PipelineState{RetryCounts: map[string]int{
			StageResearch: 2,
			StageDraft:    1,
		}}
		delta := PipelineState{RetryCounts: map[string]int{
			StageResearch: 1, // stale, must not lower the stored count
			StageDraft:    2,
			StageMedia:    1,
		}}

		got := Reduce(prev, delta)

		if got.RetryCounts[StageResearch] != 2 {
			t.Errorf("research count decreased to %d", got.RetryCounts[StageResearch])
		}
		if got.RetryCounts[StageDraft] != 2 {
			t.Errorf("draft count = %d, want 2", got.RetryCounts[StageDraft])
		}
		if got.RetryCounts[StageMedia] != 1 {
			t.Errorf("media count = %d, want 1", got.RetryCounts[StageMedia])
		}
	})

	t.Run("retry counts initialize from nil", func(t *testing.T) {
		got := Reduce(PipelineState{}, PipelineState{
			RetryCounts: map[string]int{StageResearch: 1},
		})
		if got.RetryCounts[StageResearch] != 1 {
			t.Errorf("count = %d, want 1", got.RetryCounts[StageResearch])
		}
	})

	t.Run("ClearReview resets the previous review", func(t *testing.T) {
		approved := true
		prev := PipelineState{
			HumanApproved: &approved,
			HumanFeedback: "tighten the hook",
		}

		got := Reduce(prev, PipelineState{ClearReview: true})

		if got.HumanApproved != nil {
			t.Error("HumanApproved not reset")
		}
		if got.HumanFeedback != "" {
			t.Errorf("HumanFeedback not reset: %q", got.HumanFeedback)
		}
	})

	t.Run("ClearReview applies before the delta's own review fields", func(t *testing.T) {
		stale := true
		prev := PipelineState{HumanApproved: &stale, HumanFeedback: "old"}

		rejected := false
		got := Reduce(prev, PipelineState{
			ClearReview:   true,
			HumanApproved: &rejected,
			HumanFeedback: "new feedback",
		})

		if got.HumanApproved == nil || *got.HumanApproved {
			t.Error("delta's HumanApproved lost to the reset")
		}
		if got.HumanFeedback != "new feedback" {
			t.Errorf("HumanFeedback = %q, want new feedback", got.HumanFeedback)
		}
	})

	t.Run("gate approvals are sticky", func(t *testing.T) {
		prev := PipelineState{TopicApproved: true, SpeakersApproved: true}

		got := Reduce(prev, PipelineState{ScriptFilePath: "out/script.txt"})

		if !got.TopicApproved || !got.SpeakersApproved {
			t.Error("approval flags reset by unrelated delta")
		}
	})

	t.Run("error is carried forward", func(t *testing.T) {
		got := Reduce(PipelineState{}, PipelineState{Error: "research exhausted"})
		if got.Error != "research exhausted" {
			t.Errorf("Error = %q", got.Error)
		}
	})
}
