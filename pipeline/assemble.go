package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"podshorts/flow"
	"podshorts/model"
	"podshorts/timeline"
)

// RenderJob is everything the renderer needs to cut the final video.
type RenderJob struct {
	Plan    timeline.Plan
	Output  string
	Width   int
	Height  int
	FPS     int
	BGMPath string
}

// Renderer turns a scene plan into the final video file and reports
// the rendered duration.
type Renderer interface {
	Render(ctx context.Context, job RenderJob) (float64, error)
}

// AssembleStage composes the final short: transcribes the narration,
// buckets captions per scene, synthesizes the hook video from the
// approved prompt, renders the timeline, and writes the thumbnail and
// metadata.
type AssembleStage struct {
	Transcriber model.Transcriber
	Video       model.VideoSynthesizer
	Renderer    Renderer
	Cfg         Config
}

func (a *AssembleStage) Run(ctx context.Context, state PipelineState) flow.NodeResult[PipelineState] {
	attempt := state.RetryCounts[StageAssemble] + 1

	out, quality, err := a.assemble(ctx, state)
	if err != nil {
		out = &EditorOutput{Metadata: ArtifactMetadata{Tags: []string{}}}
		quality = &QualityAssessment{
			Stage:    StageAssemble,
			Passed:   false,
			Score:    0.0,
			Feedback: fmt.Sprintf("Video assembly failed: %v. Will retry.", err),
		}
	}
	quality.Attempt = attempt

	return flow.NodeResult[PipelineState]{
		Delta: PipelineState{
			EditorOutput: out,
			Quality:      quality,
			RetryCounts:  map[string]int{StageAssemble: attempt},
		},
	}
}

func (a *AssembleStage) assemble(ctx context.Context, state PipelineState) (*EditorOutput, *QualityAssessment, error) {
	media := state.MediaAssets
	if media == nil || len(media.AudioSegments) == 0 || media.AudioPath == "" {
		return nil, nil, fmt.Errorf("no audio assets available")
	}

	runDir := filepath.Join(a.Cfg.OutputDir, state.RunID)
	outDir := filepath.Join(runDir, "output")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output dir: %w", err)
	}

	finalVideo := filepath.Join(outDir, state.RunID+"_final.mp4")
	srtPath := filepath.Join(outDir, state.RunID+"_captions.srt")
	thumbnail := filepath.Join(outDir, state.RunID+"_thumbnail.png")

	// Captions are cut against the concatenated narration, so their
	// timestamps line up with the running sum of segment durations.
	rawCaptions, err := a.Transcriber.Transcribe(ctx, media.AudioPath)
	if err != nil {
		return nil, nil, fmt.Errorf("transcribe narration: %w", err)
	}
	if err := writeSRT(srtPath, rawCaptions); err != nil {
		return nil, nil, err
	}

	segments := make([]timeline.Segment, len(media.AudioSegments))
	for i, seg := range media.AudioSegments {
		segments[i] = timeline.Segment{SceneID: seg.SceneID, AudioPath: seg.AudioPath, Duration: seg.Duration}
	}
	captions := make([]timeline.Caption, len(rawCaptions))
	for i, c := range rawCaptions {
		captions[i] = timeline.Caption{Start: c.Start, End: c.End, Text: c.Text}
	}
	buckets := timeline.Compose(segments, captions)

	hookVideo := a.hookVideo(ctx, state, runDir, media.AudioSegments)

	images := make(map[string]string, len(media.Images))
	for _, img := range media.Images {
		images[img.SceneID] = img.ImagePath
	}
	videos := make(map[string]string)
	for _, vc := range media.VideoClips {
		if vc.VideoPath != "" {
			videos[vc.SceneID] = vc.VideoPath
		}
	}
	if hookVideo != "" {
		videos["hook"] = hookVideo
	}

	plan := timeline.BuildPlan(segments, buckets, images, videos)
	if len(plan.Scenes) == 0 {
		return nil, nil, fmt.Errorf("no scene clips could be assembled")
	}

	width, height := a.resolution(state.VideoResolution)
	duration, err := a.Renderer.Render(ctx, RenderJob{
		Plan:    plan,
		Output:  finalVideo,
		Width:   width,
		Height:  height,
		FPS:     a.Cfg.VideoFPS,
		BGMPath: state.Preferences.BGMPath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("render final video: %w", err)
	}

	if len(media.Images) > 0 {
		if err := copyFile(media.Images[0].ImagePath, thumbnail); err != nil {
			return nil, nil, fmt.Errorf("write thumbnail: %w", err)
		}
	}

	out := &EditorOutput{
		FinalVideoPath: finalVideo,
		CaptionSRTPath: srtPath,
		ThumbnailPath:  thumbnail,
		Metadata:       buildMetadata(state.ScriptData, state.TrendData),
		Duration:       duration,
	}
	return out, a.assess(out), nil
}

// hookVideo synthesizes the hook clip from the approved prompt. Hook
// clips are nice to have: a failed generation falls back to the scene
// image.
func (a *AssembleStage) hookVideo(ctx context.Context, state PipelineState, runDir string, segments []AudioSegment) string {
	if state.HookVideoPrompt == "" || a.Video == nil {
		return ""
	}
	dir := filepath.Join(runDir, "video")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	path := filepath.Join(dir, "hook.mp4")

	hookDuration := 5.0
	for _, seg := range segments {
		if seg.SceneID == "hook" {
			hookDuration = seg.Duration
			break
		}
	}
	clipDuration := 5.0
	if hookDuration > 7.0 {
		clipDuration = 9.0
	}

	if _, err := a.Video.Generate(ctx, model.VideoRequest{
		Prompt:     state.HookVideoPrompt,
		Duration:   clipDuration,
		OutputPath: path,
	}); err != nil {
		return ""
	}
	return path
}

func (a *AssembleStage) resolution(res string) (int, int) {
	if res == "" {
		res = a.Cfg.VideoResolution
	}
	var width, height int
	if _, err := fmt.Sscanf(res, "%dx%d", &width, &height); err != nil || width <= 0 || height <= 0 {
		return 1080, 1920
	}
	return width, height
}

func buildMetadata(script *ScriptData, trend *TrendData) ArtifactMetadata {
	var topic, category string
	var tags []string
	if trend != nil {
		topic = trend.SelectedTopic
		category = trend.Category
		tags = trend.Keywords
	}
	title := ""
	if script != nil {
		title = script.Title
	}
	if title == "" {
		title = topic + " podcast short"
	}
	if tags == nil {
		tags = []string{}
	}
	return ArtifactMetadata{
		Title:       title,
		Description: fmt.Sprintf("A short-form podcast episode about %s.", topic),
		Tags:        tags,
		Category:    category,
	}
}

func (a *AssembleStage) assess(out *EditorOutput) *QualityAssessment {
	const totalChecks = 4
	passedChecks := 0

	videoOK := fileNonEmpty(out.FinalVideoPath)
	durationOK := out.Duration >= 30.0 && out.Duration <= 200.0
	if videoOK {
		passedChecks++
	}
	if fileNonEmpty(out.CaptionSRTPath) {
		passedChecks++
	}
	if fileNonEmpty(out.ThumbnailPath) {
		passedChecks++
	}
	if durationOK {
		passedChecks++
	}

	score := math.Round(float64(passedChecks)/totalChecks*1000) / 1000
	passed := score >= a.Cfg.QualityThreshold

	feedback := []string{}
	if passed {
		feedback = append(feedback, fmt.Sprintf("Video rendered successfully: %d/%d checks passed.", passedChecks, totalChecks))
	} else {
		feedback = append(feedback, fmt.Sprintf("Video rendering incomplete: %d/%d checks passed.", passedChecks, totalChecks))
		if !videoOK {
			feedback = append(feedback, "Final video file missing or empty.")
		}
		if !durationOK {
			feedback = append(feedback, fmt.Sprintf("Duration %.1fs outside 30-200s range.", out.Duration))
		}
	}

	return &QualityAssessment{
		Stage:    StageAssemble,
		Passed:   passed,
		Score:    score,
		Feedback: strings.Join(feedback, " "),
	}
}

// writeSRT renders caption segments in SubRip format.
func writeSRT(path string, captions []model.CaptionSegment) error {
	var sb strings.Builder
	for i, c := range captions {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(c.Start), srtTimestamp(c.End), strings.TrimSpace(c.Text))
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write captions: %w", err)
	}
	return nil
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(math.Round(seconds * 1000))
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
