package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podshorts/model"
)

// fakeRenderer writes the output file and reports a fixed duration.
type fakeRenderer struct {
	duration float64
	err      error
	jobs     []RenderJob
}

func (r *fakeRenderer) Render(ctx context.Context, job RenderJob) (float64, error) {
	r.jobs = append(r.jobs, job)
	if r.err != nil {
		return 0, r.err
	}
	if err := os.WriteFile(job.Output, []byte("video"), 0o644); err != nil {
		return 0, err
	}
	return r.duration, nil
}

// assembleFixture lays out media assets on disk the way the media
// stage leaves them.
func assembleFixture(t *testing.T, cfg Config, runID string, sceneIDs []string) *MediaAssets {
	t.Helper()
	runDir := filepath.Join(cfg.OutputDir, runID)
	for _, sub := range []string{"audio", "images"} {
		if err := os.MkdirAll(filepath.Join(runDir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	assets := &MediaAssets{AudioPath: filepath.Join(runDir, "audio", "full_audio.mp3")}
	if err := os.WriteFile(assets.AudioPath, []byte("joined"), 0o644); err != nil {
		t.Fatal(err)
	}
	for i, id := range sceneIDs {
		audio := filepath.Join(runDir, "audio", id+".mp3")
		image := filepath.Join(runDir, "images", id+".png")
		if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(image, []byte("png"), 0o644); err != nil {
			t.Fatal(err)
		}
		assets.AudioSegments = append(assets.AudioSegments, AudioSegment{
			SceneID: id, AudioPath: audio, Duration: float64(3 + i),
		})
		assets.Images = append(assets.Images, ImageAsset{SceneID: id, ImagePath: image})
		assets.VideoClips = append(assets.VideoClips, VideoClip{SceneID: id})
	}
	return assets
}

func TestAssembleStage(t *testing.T) {
	ctx := context.Background()

	t.Run("renders plan and scores full marks", func(t *testing.T) {
		cfg := mediaTestConfig(t)
		renderer := &fakeRenderer{duration: 45}
		stage := &AssembleStage{
			Transcriber: &model.MockTranscriber{Segments: []model.CaptionSegment{
				{Start: 0, End: 2.5, Text: "hello"},
				{Start: 2.5, End: 5.0, Text: "world"},
			}},
			Renderer: renderer,
			Cfg:      cfg,
		}

		state := PipelineState{
			RunID:       "run-asm",
			MediaAssets: assembleFixture(t, cfg, "run-asm", []string{"scene_1", "scene_2"}),
			ScriptData:  &ScriptData{Title: "Big Episode"},
			TrendData:   &TrendData{SelectedTopic: "ai", Keywords: []string{"ai", "chips"}, Category: "tech"},
		}

		result := stage.Run(ctx, state)
		if result.Err != nil {
			t.Fatal(result.Err)
		}

		out := result.Delta.EditorOutput
		if out == nil {
			t.Fatal("no editor output")
		}
		for _, path := range []string{out.FinalVideoPath, out.CaptionSRTPath, out.ThumbnailPath} {
			if info, err := os.Stat(path); err != nil || info.Size() == 0 {
				t.Errorf("artifact missing or empty: %s", path)
			}
		}
		if out.Duration != 45 {
			t.Errorf("duration = %v, want 45", out.Duration)
		}
		if out.Metadata.Title != "Big Episode" || out.Metadata.Category != "tech" {
			t.Errorf("metadata = %+v", out.Metadata)
		}
		if len(out.Metadata.Tags) != 2 {
			t.Errorf("tags = %v, want trend keywords", out.Metadata.Tags)
		}

		q := result.Delta.Quality
		if !q.Passed || q.Score != 1.0 {
			t.Errorf("assessment = %+v, want passing 1.0", q)
		}

		if len(renderer.jobs) != 1 {
			t.Fatalf("renderer ran %d times", len(renderer.jobs))
		}
		job := renderer.jobs[0]
		if job.Width != 1080 || job.Height != 1920 {
			t.Errorf("resolution = %dx%d, want 1080x1920", job.Width, job.Height)
		}
		if len(job.Plan.Scenes) != 2 {
			t.Errorf("plan has %d scenes, want 2", len(job.Plan.Scenes))
		}

		srt, err := os.ReadFile(out.CaptionSRTPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(srt), "00:00:02,500 --> 00:00:05,000") {
			t.Errorf("unexpected srt timing: %s", srt)
		}
	})

	t.Run("short render fails the duration check", func(t *testing.T) {
		cfg := mediaTestConfig(t)
		cfg.QualityThreshold = 0.8
		stage := &AssembleStage{
			Transcriber: &model.MockTranscriber{Segments: []model.CaptionSegment{
				{Start: 0, End: 1, Text: "hi"},
			}},
			Renderer: &fakeRenderer{duration: 12},
			Cfg:      cfg,
		}
		state := PipelineState{
			RunID:       "run-asm",
			MediaAssets: assembleFixture(t, cfg, "run-asm", []string{"scene_1"}),
		}

		result := stage.Run(ctx, state)
		q := result.Delta.Quality
		if q.Passed {
			t.Error("3/4 checks must fail a 0.8 threshold")
		}
		if q.Score != 0.75 {
			t.Errorf("score = %v, want 0.75", q.Score)
		}
		if !strings.Contains(q.Feedback, "Duration 12.0s outside 30-200s range.") {
			t.Errorf("feedback = %q", q.Feedback)
		}
	})

	t.Run("missing media becomes a failing assessment", func(t *testing.T) {
		cfg := mediaTestConfig(t)
		stage := &AssembleStage{
			Transcriber: &model.MockTranscriber{},
			Renderer:    &fakeRenderer{duration: 45},
			Cfg:         cfg,
		}

		result := stage.Run(ctx, PipelineState{RunID: "run-asm", RetryCounts: map[string]int{StageAssemble: 1}})
		if result.Err != nil {
			t.Fatal("stage errors must become failing assessments")
		}

		q := result.Delta.Quality
		if q.Passed || q.Score != 0.0 || !strings.Contains(q.Feedback, "Will retry.") {
			t.Errorf("assessment = %+v", q)
		}
		if q.Attempt != 2 || result.Delta.RetryCounts[StageAssemble] != 2 {
			t.Errorf("attempt accounting wrong: %+v", result.Delta)
		}
	})

	t.Run("render failure becomes a failing assessment", func(t *testing.T) {
		cfg := mediaTestConfig(t)
		stage := &AssembleStage{
			Transcriber: &model.MockTranscriber{},
			Renderer:    &fakeRenderer{err: fmt.Errorf("ffmpeg exited 1")},
			Cfg:         cfg,
		}
		state := PipelineState{
			RunID:       "run-asm",
			MediaAssets: assembleFixture(t, cfg, "run-asm", []string{"scene_1"}),
		}

		result := stage.Run(ctx, state)
		q := result.Delta.Quality
		if q.Passed || !strings.Contains(q.Feedback, "ffmpeg exited 1") {
			t.Errorf("assessment = %+v", q)
		}
	})

	t.Run("hook clip duration follows the hook narration", func(t *testing.T) {
		tests := []struct {
			name         string
			hookDuration float64
			want         float64
		}{
			{"long hook gets the long clip", 8.0, 9.0},
			{"short hook gets the short clip", 4.0, 5.0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := mediaTestConfig(t)
				video := &model.MockVideoSynthesizer{}
				stage := &AssembleStage{
					Transcriber: &model.MockTranscriber{},
					Video:       video,
					Renderer:    &fakeRenderer{duration: 45},
					Cfg:         cfg,
				}

				assets := assembleFixture(t, cfg, "run-asm", []string{"hook", "scene_1"})
				assets.AudioSegments[0].Duration = tt.hookDuration
				state := PipelineState{
					RunID:           "run-asm",
					MediaAssets:     assets,
					HookVideoPrompt: "a spinning vinyl record",
				}

				result := stage.Run(ctx, state)
				if result.Delta.Quality == nil || !result.Delta.Quality.Passed {
					t.Fatalf("assembly failed: %+v", result.Delta.Quality)
				}
				if len(video.Calls) != 1 {
					t.Fatalf("video synthesizer called %d times", len(video.Calls))
				}
				if video.Calls[0].Duration != tt.want {
					t.Errorf("clip duration = %v, want %v", video.Calls[0].Duration, tt.want)
				}
			})
		}
	})

	t.Run("hook synthesis failure is tolerated", func(t *testing.T) {
		cfg := mediaTestConfig(t)
		stage := &AssembleStage{
			Transcriber: &model.MockTranscriber{},
			Video:       &model.MockVideoSynthesizer{Err: fmt.Errorf("luma unavailable")},
			Renderer:    &fakeRenderer{duration: 45},
			Cfg:         cfg,
		}
		state := PipelineState{
			RunID:           "run-asm",
			MediaAssets:     assembleFixture(t, cfg, "run-asm", []string{"scene_1"}),
			HookVideoPrompt: "prompt",
		}

		result := stage.Run(ctx, state)
		if result.Delta.Quality == nil || !result.Delta.Quality.Passed {
			t.Errorf("hook failure must not fail assembly: %+v", result.Delta.Quality)
		}
	})
}

func TestSRTTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{2.5, "00:00:02,500"},
		{65.25, "00:01:05,250"},
		{3661.004, "01:01:01,004"},
		{-1, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := srtTimestamp(tt.seconds); got != tt.want {
			t.Errorf("srtTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
