package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"podshorts/flow"
	"podshorts/model"
)

// AudioJoiner concatenates per-scene narration into one track.
type AudioJoiner interface {
	Join(ctx context.Context, inputs []string, output string) error
}

const hookPromptSystem = "You are a video prompt engineer. Given a podcast script, generate a single " +
	"concise English prompt for a generative video model to create a short hook video. " +
	"The prompt should visually represent the core topic and mood of the script. " +
	"Output ONLY the prompt text, nothing else."

// MediaStage generates per-scene narration and imagery in parallel,
// concatenates the narration, and drafts the hook-video prompt for the
// next gate. Individual scene failures are tolerated; the quality
// score reflects what is missing.
type MediaStage struct {
	Speech model.SpeechSynthesizer
	Image  model.ImageSynthesizer
	Prober model.AudioProber
	Joiner AudioJoiner
	Chat   model.ChatModel
	Cfg    Config
}

type sceneAssets struct {
	audio AudioSegment
	image ImageAsset
	video VideoClip
	err   error
}

func (m *MediaStage) Run(ctx context.Context, state PipelineState) flow.NodeResult[PipelineState] {
	attempt := state.RetryCounts[StageMedia] + 1

	assets, hookPrompt, quality, err := m.produce(ctx, state)
	if err != nil {
		assets = &MediaAssets{
			AudioSegments: []AudioSegment{},
			Images:        []ImageAsset{},
			VideoClips:    []VideoClip{},
			VoiceIDs:      map[string]string{},
		}
		quality = &QualityAssessment{
			Stage:    StageMedia,
			Passed:   false,
			Score:    0.0,
			Feedback: fmt.Sprintf("Media production failed: %v. Will retry.", err),
		}
	}
	quality.Attempt = attempt

	return flow.NodeResult[PipelineState]{
		Delta: PipelineState{
			MediaAssets:     assets,
			HookVideoPrompt: hookPrompt,
			Quality:         quality,
			RetryCounts:     map[string]int{StageMedia: attempt},
		},
	}
}

func (m *MediaStage) produce(ctx context.Context, state PipelineState) (*MediaAssets, string, *QualityAssessment, error) {
	if state.ScriptData == nil || len(state.ScriptData.Scenes) == 0 {
		return nil, "", nil, fmt.Errorf("no scenes in script data")
	}
	scenes := state.ScriptData.Scenes

	runDir := filepath.Join(m.Cfg.OutputDir, state.RunID)
	for _, sub := range []string{"audio", "images", "video"} {
		if err := os.MkdirAll(filepath.Join(runDir, sub), 0o755); err != nil {
			return nil, "", nil, fmt.Errorf("create media dir: %w", err)
		}
	}

	voices := m.Cfg.ResolveVoices(state.SelectedSpeakers)
	manual := state.AudioSource == AudioSourceManual

	// Speech providers commonly allow only a couple of concurrent
	// requests; image calls get their own, wider limit.
	speechSem := semaphore.NewWeighted(int64(m.Cfg.SpeechConcurrency))
	imageSem := semaphore.NewWeighted(int64(m.Cfg.ImageConcurrency))

	results := make([]sceneAssets, len(scenes))
	var wg sync.WaitGroup
	for i, scene := range scenes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if manual {
				results[i] = m.manualScene(ctx, scene, state.AudioFiles, runDir, imageSem)
			} else {
				results[i] = m.synthScene(ctx, scene, voices, runDir, speechSem, imageSem)
			}
		}()
	}
	wg.Wait()

	assets := &MediaAssets{VoiceIDs: voices}
	for _, res := range results {
		if res.err != nil {
			continue
		}
		assets.AudioSegments = append(assets.AudioSegments, res.audio)
		assets.Images = append(assets.Images, res.image)
		assets.VideoClips = append(assets.VideoClips, res.video)
	}
	if len(assets.AudioSegments) == 0 {
		return nil, "", nil, fmt.Errorf("all scene audio generations failed")
	}

	fullAudio := filepath.Join(runDir, "audio", "full_audio.mp3")
	inputs := make([]string, len(assets.AudioSegments))
	for i, seg := range assets.AudioSegments {
		inputs[i] = seg.AudioPath
	}
	if err := m.Joiner.Join(ctx, inputs, fullAudio); err != nil {
		return nil, "", nil, fmt.Errorf("concatenate audio: %w", err)
	}
	assets.AudioPath = fullAudio

	hookPrompt, err := m.hookVideoPrompt(ctx, state.ScriptData)
	if err != nil {
		return nil, "", nil, err
	}

	quality := m.assess(assets, fullAudio, len(scenes))
	return assets, hookPrompt, quality, nil
}

// synthScene runs speech and image generation for one scene, each
// under its own concurrency limit.
func (m *MediaStage) synthScene(ctx context.Context, scene Scene, voices map[string]string, runDir string, speechSem, imageSem *semaphore.Weighted) sceneAssets {
	audioPath := filepath.Join(runDir, "audio", scene.SceneID+".mp3")
	imagePath := filepath.Join(runDir, "images", scene.SceneID+".png")

	voice := voices[scene.Speaker]
	if voice == "" {
		voice = voices["host"]
	}

	var (
		wg       sync.WaitGroup
		speech   model.SpeechResult
		errAudio error
		errImage error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if errAudio = speechSem.Acquire(ctx, 1); errAudio != nil {
			return
		}
		defer speechSem.Release(1)
		speech, errAudio = m.Speech.Synthesize(ctx, model.SpeechRequest{
			Text:       scene.Text,
			Voice:      voice,
			Emotion:    scene.Emotion,
			OutputPath: audioPath,
		})
	}()
	go func() {
		defer wg.Done()
		if errImage = imageSem.Acquire(ctx, 1); errImage != nil {
			return
		}
		defer imageSem.Release(1)
		_, errImage = m.Image.Generate(ctx, model.ImageRequest{
			Prompt:     scene.ImagePrompt,
			Aspect:     "portrait",
			OutputPath: imagePath,
		})
	}()
	wg.Wait()

	if errAudio != nil {
		return sceneAssets{err: fmt.Errorf("scene %s audio: %w", scene.SceneID, errAudio)}
	}
	if errImage != nil {
		return sceneAssets{err: fmt.Errorf("scene %s image: %w", scene.SceneID, errImage)}
	}

	return sceneAssets{
		audio: AudioSegment{SceneID: scene.SceneID, AudioPath: speech.Path, Duration: speech.Duration},
		image: ImageAsset{SceneID: scene.SceneID, ImagePath: imagePath, Prompt: scene.ImagePrompt},
		video: VideoClip{SceneID: scene.SceneID, Duration: scene.Duration},
	}
}

// manualScene copies a pre-recorded file into place and still
// generates the scene image.
func (m *MediaStage) manualScene(ctx context.Context, scene Scene, files map[string]string, runDir string, imageSem *semaphore.Weighted) sceneAssets {
	audioPath := filepath.Join(runDir, "audio", scene.SceneID+".mp3")
	imagePath := filepath.Join(runDir, "images", scene.SceneID+".png")

	source := files[scene.SceneID]
	if source == "" {
		return sceneAssets{err: fmt.Errorf("scene %s: no manual audio file provided", scene.SceneID)}
	}
	if err := copyFile(source, audioPath); err != nil {
		return sceneAssets{err: fmt.Errorf("scene %s: copy manual audio: %w", scene.SceneID, err)}
	}

	duration, err := m.Prober.Probe(ctx, audioPath)
	if err != nil {
		duration = scene.Duration
	}

	if err := imageSem.Acquire(ctx, 1); err != nil {
		return sceneAssets{err: err}
	}
	_, err = m.Image.Generate(ctx, model.ImageRequest{
		Prompt:     scene.ImagePrompt,
		Aspect:     "portrait",
		OutputPath: imagePath,
	})
	imageSem.Release(1)
	if err != nil {
		return sceneAssets{err: fmt.Errorf("scene %s image: %w", scene.SceneID, err)}
	}

	return sceneAssets{
		audio: AudioSegment{SceneID: scene.SceneID, AudioPath: audioPath, Duration: duration},
		image: ImageAsset{SceneID: scene.SceneID, ImagePath: imagePath, Prompt: scene.ImagePrompt},
		video: VideoClip{SceneID: scene.SceneID, Duration: duration},
	}
}

func (m *MediaStage) hookVideoPrompt(ctx context.Context, script *ScriptData) (string, error) {
	summary := script.FullScript
	if len(summary) > 500 {
		summary = summary[:500]
	}
	user := fmt.Sprintf(`Script title: %s
Hook text: %s
Full script summary: %s

Generate a visually compelling video prompt (in English) that captures the essence of this podcast topic. The video should be vertical (9:16 aspect ratio). Include the topic's key visual elements.`,
		script.Title, script.Hook, summary)

	out, err := m.Chat.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: hookPromptSystem},
		{Role: model.RoleUser, Content: user},
	}, model.ChatOptions{Temperature: 0.7})
	if err != nil {
		return "", fmt.Errorf("hook video prompt: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

// assess scores on file existence: audio and image per scene, video
// only where a clip was produced, plus the full track and a count
// check that every scene yielded assets.
func (m *MediaStage) assess(assets *MediaAssets, fullAudio string, expected int) *QualityAssessment {
	expectedVideos := 0
	for _, vc := range assets.VideoClips {
		if vc.VideoPath != "" {
			expectedVideos++
		}
	}
	totalChecks := expected*2 + expectedVideos + 2
	passedChecks := 0

	for _, seg := range assets.AudioSegments {
		if fileNonEmpty(seg.AudioPath) {
			passedChecks++
		}
	}
	for _, img := range assets.Images {
		if fileNonEmpty(img.ImagePath) {
			passedChecks++
		}
	}
	for _, vc := range assets.VideoClips {
		if vc.VideoPath != "" && fileNonEmpty(vc.VideoPath) {
			passedChecks++
		}
	}
	if fileNonEmpty(fullAudio) {
		passedChecks++
	}
	if len(assets.AudioSegments) == expected && len(assets.Images) == expected && len(assets.VideoClips) == expected {
		passedChecks++
	}

	score := 0.0
	if totalChecks > 0 {
		score = float64(passedChecks) / float64(totalChecks)
	}
	score = math.Round(score*1000) / 1000
	passed := score >= m.Cfg.QualityThreshold

	feedback := []string{}
	if passed {
		feedback = append(feedback, fmt.Sprintf("Media generation succeeded: %d/%d checks passed.", passedChecks, totalChecks))
	} else {
		feedback = append(feedback, fmt.Sprintf("Media generation incomplete: %d/%d checks passed.", passedChecks, totalChecks))
		if missing := expected - len(assets.AudioSegments); missing > 0 {
			feedback = append(feedback, fmt.Sprintf("Missing %d audio segments.", missing))
		}
		if missing := expected - len(assets.Images); missing > 0 {
			feedback = append(feedback, fmt.Sprintf("Missing %d images.", missing))
		}
	}

	return &QualityAssessment{
		Stage:    StageMedia,
		Passed:   passed,
		Score:    score,
		Feedback: strings.Join(feedback, " "),
	}
}

func fileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
