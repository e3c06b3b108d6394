package pipeline

import "testing"

func TestDecide(t *testing.T) {
	failing := &QualityAssessment{Passed: false, Score: 0.3}
	passing := &QualityAssessment{Passed: true, Score: 0.9}

	tests := []struct {
		name        string
		stage       string
		quality     *QualityAssessment
		retryCounts map[string]int
		maxRetries  int
		want        string
	}{
		{
			name:    "nil assessment moves forward",
			stage:   StageResearch,
			quality: nil,
			want:    StageTopicGate,
		},
		{
			name:    "passing assessment moves forward",
			stage:   StageDraft,
			quality: passing,
			want:    StageReviewGate,
		},
		{
			name:        "failing with budget left retries",
			stage:       StageResearch,
			quality:     failing,
			retryCounts: map[string]int{StageResearch: 1},
			maxRetries:  2,
			want:        StageResearch,
		},
		{
			name:        "failing with no attempts yet retries",
			stage:       StageMedia,
			quality:     failing,
			retryCounts: nil,
			maxRetries:  2,
			want:        StageMedia,
		},
		{
			name:        "exhausted budget fails the run",
			stage:       StageResearch,
			quality:     failing,
			retryCounts: map[string]int{StageResearch: 2},
			maxRetries:  2,
			want:        StageFailed,
		},
		{
			name:        "exhausted draft budget fails the run",
			stage:       StageDraft,
			quality:     failing,
			retryCounts: map[string]int{StageDraft: 2},
			maxRetries:  2,
			want:        StageFailed,
		},
		{
			name:        "exhausted media budget fails the run",
			stage:       StageMedia,
			quality:     failing,
			retryCounts: map[string]int{StageMedia: 2},
			maxRetries:  2,
			want:        StageFailed,
		},
		{
			name:        "exhausted assembly budget still publishes",
			stage:       StageAssemble,
			quality:     failing,
			retryCounts: map[string]int{StageAssemble: 2},
			maxRetries:  2,
			want:        StagePublish,
		},
		{
			name:        "other stages' counters do not count against this one",
			stage:       StageDraft,
			quality:     failing,
			retryCounts: map[string]int{StageResearch: 2},
			maxRetries:  2,
			want:        StageDraft,
		},
		{
			name:       "zero retry budget fails immediately",
			stage:      StageResearch,
			quality:    failing,
			maxRetries: 0,
			want:       StageFailed,
		},
		{
			name:  "unknown stage fails",
			stage: "mystery",
			want:  StageFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.stage, tt.quality, tt.retryCounts, tt.maxRetries)
			if got != tt.want {
				t.Errorf("Decide(%s) = %q, want %q", tt.stage, got, tt.want)
			}
		})
	}
}
