package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"podshorts/model"
)

// File-writing test doubles. The media quality score checks files on
// disk, so the model mocks are not enough here.

type writingSpeech struct {
	failText map[string]bool
}

func (s *writingSpeech) Synthesize(ctx context.Context, req model.SpeechRequest) (model.SpeechResult, error) {
	if s.failText[req.Text] {
		return model.SpeechResult{}, fmt.Errorf("speech provider unavailable")
	}
	if err := os.WriteFile(req.OutputPath, []byte("audio"), 0o644); err != nil {
		return model.SpeechResult{}, err
	}
	return model.SpeechResult{Path: req.OutputPath, Duration: 2.5}, nil
}

type writingImage struct{}

func (writingImage) Generate(ctx context.Context, req model.ImageRequest) (string, error) {
	if err := os.WriteFile(req.OutputPath, []byte("png"), 0o644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

type fakeJoiner struct{}

func (fakeJoiner) Join(ctx context.Context, inputs []string, output string) error {
	return os.WriteFile(output, []byte("joined"), 0o644)
}

func mediaTestConfig(t *testing.T) Config {
	t.Helper()
	cfg := Config{
		OutputDir: t.TempDir(),
		Roster: []RosterMember{
			{Key: "ava", Name: "Ava", VoiceID: "voice-ava"},
		},
		DefaultVoice: "voice-default",
	}
	cfg.ApplyDefaults()
	return cfg
}

func makeScenes(n int) []Scene {
	scenes := make([]Scene, 0, n)
	for i := 1; i <= n; i++ {
		scenes = append(scenes, Scene{
			SceneID:     fmt.Sprintf("scene_%d", i),
			Text:        fmt.Sprintf("line %d", i),
			Duration:    3.0,
			ImagePrompt: fmt.Sprintf("image %d", i),
			Speaker:     "host",
		})
	}
	return scenes
}

func TestMediaStage(t *testing.T) {
	ctx := context.Background()

	t.Run("all scenes succeed scores full marks", func(t *testing.T) {
		cfg := mediaTestConfig(t)
		stage := &MediaStage{
			Speech: &writingSpeech{},
			Image:  writingImage{},
			Prober: &model.MockAudioProber{},
			Joiner: fakeJoiner{},
			Chat:   &model.MockChatModel{Responses: []model.ChatOut{{Text: "a neon cityscape"}}},
			Cfg:    cfg,
		}
		state := PipelineState{
			RunID:      "run-media",
			ScriptData: &ScriptData{Title: "T", FullScript: "hello", Scenes: makeScenes(3)},
		}

		result := stage.Run(ctx, state)
		if result.Err != nil {
			t.Fatal(result.Err)
		}

		assets := result.Delta.MediaAssets
		if len(assets.AudioSegments) != 3 || len(assets.Images) != 3 {
			t.Fatalf("expected 3 scenes of assets, got %d audio %d images",
				len(assets.AudioSegments), len(assets.Images))
		}
		if assets.AudioPath == "" {
			t.Error("full audio track not recorded")
		}
		if result.Delta.HookVideoPrompt != "a neon cityscape" {
			t.Errorf("hook prompt = %q", result.Delta.HookVideoPrompt)
		}

		q := result.Delta.Quality
		if q == nil || !q.Passed {
			t.Fatalf("expected passing assessment, got %+v", q)
		}
		if q.Score != 1.0 {
			t.Errorf("score = %v, want 1.0", q.Score)
		}
		if q.Attempt != 1 {
			t.Errorf("attempt = %d, want 1", q.Attempt)
		}
		if result.Delta.RetryCounts[StageMedia] != 1 {
			t.Errorf("retry count = %d, want 1", result.Delta.RetryCounts[StageMedia])
		}
	})

	t.Run("two of ten scenes failing scores 0.773", func(t *testing.T) {
		cfg := mediaTestConfig(t)
		cfg.QualityThreshold = 0.8
		stage := &MediaStage{
			Speech: &writingSpeech{failText: map[string]bool{"line 3": true, "line 7": true}},
			Image:  writingImage{},
			Prober: &model.MockAudioProber{},
			Joiner: fakeJoiner{},
			Chat:   &model.MockChatModel{Responses: []model.ChatOut{{Text: "prompt"}}},
			Cfg:    cfg,
		}
		state := PipelineState{
			RunID:      "run-media",
			ScriptData: &ScriptData{Title: "T", FullScript: "hello", Scenes: makeScenes(10)},
		}

		result := stage.Run(ctx, state)
		if result.Err != nil {
			t.Fatal(result.Err)
		}

		assets := result.Delta.MediaAssets
		if len(assets.AudioSegments) != 8 {
			t.Fatalf("expected 8 surviving audio segments, got %d", len(assets.AudioSegments))
		}

		// 10 scenes: 20 per-scene checks, no video clips, plus the full
		// track and the count check. 17 of 22 pass.
		q := result.Delta.Quality
		if q.Score != 0.773 {
			t.Errorf("score = %v, want 0.773", q.Score)
		}
		if q.Passed {
			t.Error("0.773 must fail a 0.8 threshold")
		}
		if !strings.Contains(q.Feedback, "17/22 checks passed") {
			t.Errorf("feedback missing check ratio: %q", q.Feedback)
		}
		if !strings.Contains(q.Feedback, "Missing 2 audio segments.") {
			t.Errorf("feedback missing audio count: %q", q.Feedback)
		}
		if !strings.Contains(q.Feedback, "Missing 2 images.") {
			t.Errorf("feedback missing image count: %q", q.Feedback)
		}
	})

	t.Run("no script fails the attempt but records it", func(t *testing.T) {
		cfg := mediaTestConfig(t)
		stage := &MediaStage{
			Speech: &writingSpeech{},
			Image:  writingImage{},
			Prober: &model.MockAudioProber{},
			Joiner: fakeJoiner{},
			Chat:   &model.MockChatModel{},
			Cfg:    cfg,
		}
		state := PipelineState{
			RunID:       "run-media",
			RetryCounts: map[string]int{StageMedia: 1},
		}

		result := stage.Run(ctx, state)
		if result.Err != nil {
			t.Fatal("stage errors must become failing assessments, not node errors")
		}

		q := result.Delta.Quality
		if q.Passed || q.Score != 0.0 {
			t.Errorf("expected failing zero-score assessment, got %+v", q)
		}
		if !strings.Contains(q.Feedback, "Will retry.") {
			t.Errorf("feedback = %q", q.Feedback)
		}
		if q.Attempt != 2 {
			t.Errorf("attempt = %d, want 2", q.Attempt)
		}
		if result.Delta.RetryCounts[StageMedia] != 2 {
			t.Errorf("retry count = %d, want 2", result.Delta.RetryCounts[StageMedia])
		}
		if result.Delta.MediaAssets == nil || len(result.Delta.MediaAssets.AudioSegments) != 0 {
			t.Error("expected empty media assets on failure")
		}
	})

	t.Run("manual audio copies recordings and probes duration", func(t *testing.T) {
		cfg := mediaTestConfig(t)

		recDir := t.TempDir()
		files := map[string]string{}
		for i := 1; i <= 2; i++ {
			path := fmt.Sprintf("%s/rec_%d.mp3", recDir, i)
			if err := os.WriteFile(path, []byte("recorded"), 0o644); err != nil {
				t.Fatal(err)
			}
			files[fmt.Sprintf("scene_%d", i)] = path
		}

		stage := &MediaStage{
			Speech: &writingSpeech{failText: map[string]bool{"line 1": true, "line 2": true}}, // must not be called
			Image:  writingImage{},
			Prober: &model.MockAudioProber{},
			Joiner: fakeJoiner{},
			Chat:   &model.MockChatModel{Responses: []model.ChatOut{{Text: "prompt"}}},
			Cfg:    cfg,
		}
		state := PipelineState{
			RunID:       "run-media",
			ScriptData:  &ScriptData{Title: "T", FullScript: "hello", Scenes: makeScenes(2)},
			AudioSource: AudioSourceManual,
			AudioFiles:  files,
		}

		result := stage.Run(ctx, state)
		if result.Err != nil {
			t.Fatal(result.Err)
		}

		q := result.Delta.Quality
		if !q.Passed {
			t.Fatalf("manual path failed: %+v", q)
		}
		for _, seg := range result.Delta.MediaAssets.AudioSegments {
			if seg.Duration != 1.0 {
				t.Errorf("scene %s duration = %v, want probed 1.0", seg.SceneID, seg.Duration)
			}
		}
	})

	t.Run("manual audio without a file for a scene loses that scene", func(t *testing.T) {
		cfg := mediaTestConfig(t)

		recDir := t.TempDir()
		path := recDir + "/rec_1.mp3"
		if err := os.WriteFile(path, []byte("recorded"), 0o644); err != nil {
			t.Fatal(err)
		}

		stage := &MediaStage{
			Speech: &writingSpeech{},
			Image:  writingImage{},
			Prober: &model.MockAudioProber{},
			Joiner: fakeJoiner{},
			Chat:   &model.MockChatModel{Responses: []model.ChatOut{{Text: "prompt"}}},
			Cfg:    cfg,
		}
		state := PipelineState{
			RunID:       "run-media",
			ScriptData:  &ScriptData{Title: "T", FullScript: "hello", Scenes: makeScenes(2)},
			AudioSource: AudioSourceManual,
			AudioFiles:  map[string]string{"scene_1": path},
		}

		result := stage.Run(ctx, state)
		if result.Err != nil {
			t.Fatal(result.Err)
		}
		if got := len(result.Delta.MediaAssets.AudioSegments); got != 1 {
			t.Errorf("expected 1 surviving scene, got %d", got)
		}
	})
}
