package pipeline

// successor maps each quality-gated stage to the node that follows it
// when its assessment passes.
var successor = map[string]string{
	StageResearch: StageTopicGate,
	StageDraft:    StageReviewGate,
	StageMedia:    StageHookGate,
	StageAssemble: StagePublish,
}

// Decide routes after a quality-gated stage.
//
// A missing or passing assessment moves forward. A failing one retries
// the same stage while the budget lasts. An exhausted budget ends the
// run, with one exception: assembly proceeds to publish with whatever
// it managed to produce, since a partially flawed cut is still worth
// uploading for a human to judge.
func Decide(stage string, quality *QualityAssessment, retryCounts map[string]int, maxRetries int) string {
	next, ok := successor[stage]
	if !ok {
		return StageFailed
	}

	if quality == nil || quality.Passed {
		return next
	}
	if retryCounts[stage] < maxRetries {
		return stage
	}
	if stage == StageAssemble {
		return StagePublish
	}
	return StageFailed
}
