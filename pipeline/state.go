// Package pipeline implements the content-generation workflow: stage
// nodes, human gates, the quality-gated router, and the service facade
// that front doors call.
package pipeline

import "time"

// Stage node identifiers. The graph over them is fixed at build time.
const (
	StageResearch        = "research"
	StageTopicGate       = "topic_gate"
	StageSpeakerGate     = "speaker_gate"
	StageDraft           = "draft"
	StageReviewGate      = "review_gate"
	StageAudioChoiceGate = "audio_choice_gate"
	StageMedia           = "media"
	StageHookGate        = "hook_gate"
	StageAssemble        = "assemble"
	StagePublish         = "publish"
	StageFailed          = "failed"
)

// Gate type identifiers, used as suspension reasons and resume targets.
const (
	GateTopicSelection   = "topic_selection"
	GateSpeakerSelection = "speaker_selection"
	GateScriptReview     = "script_review"
	GateAudioChoice      = "audio_choice"
	GateHookPrompt       = "hook_prompt"
)

// Audio source modes resolved by the audio choice gate.
const (
	AudioSourceTTS    = "tts"
	AudioSourceManual = "manual"
)

// TopicSummary is one analyzed trend candidate.
type TopicSummary struct {
	Keyword       string  `json:"keyword"`
	Summary       string  `json:"summary"`
	Source        string  `json:"source"`
	TrendingScore float64 `json:"trending_score"`
}

// TrendData is the research stage's output.
type TrendData struct {
	Keywords       []string       `json:"keywords"`
	TopicSummaries []TopicSummary `json:"topic_summaries"`
	SelectedTopic  string         `json:"selected_topic"`
	Category       string         `json:"category"`
}

// Scene is an ordered unit of the script. Scenes are created once by
// the draft stage and never reordered; the scene id joins all
// downstream per-scene collections.
type Scene struct {
	SceneID     string  `json:"scene_id"`
	Text        string  `json:"text"`
	Duration    float64 `json:"duration"`
	Emotion     string  `json:"emotion"`
	ImagePrompt string  `json:"image_prompt"`
	Speaker     string  `json:"speaker"` // "host" | "participant_N"
}

// ScriptData is the draft stage's output.
type ScriptData struct {
	Title             string  `json:"title"`
	FullScript        string  `json:"full_script"`
	Scenes            []Scene `json:"scenes"`
	Hook              string  `json:"hook"`
	CTA               string  `json:"cta"`
	EstimatedDuration float64 `json:"estimated_duration_sec"`
}

// AudioSegment is one scene's narration audio with measured duration.
type AudioSegment struct {
	SceneID   string  `json:"scene_id"`
	AudioPath string  `json:"audio_path"`
	Duration  float64 `json:"duration"`
}

// ImageAsset is one scene's background image.
type ImageAsset struct {
	SceneID   string `json:"scene_id"`
	ImagePath string `json:"image_path"`
	Prompt    string `json:"prompt"`
}

// VideoClip is one scene's optional motion clip.
type VideoClip struct {
	SceneID   string  `json:"scene_id"`
	VideoPath string  `json:"video_path"`
	Duration  float64 `json:"duration"`
}

// MediaAssets is the media stage's output.
type MediaAssets struct {
	AudioPath     string            `json:"audio_path"` // concatenated narration
	AudioSegments []AudioSegment    `json:"audio_segments"`
	Images        []ImageAsset      `json:"images"`
	VideoClips    []VideoClip       `json:"video_clips"`
	VoiceIDs      map[string]string `json:"voice_ids"` // speaker tag → voice id
}

// ArtifactMetadata describes the published artifact.
type ArtifactMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
}

// EditorOutput is the assemble stage's output: the final artifact set.
type EditorOutput struct {
	FinalVideoPath string           `json:"final_video_path"`
	CaptionSRTPath string           `json:"caption_srt_path"`
	ThumbnailPath  string           `json:"thumbnail_path"`
	Metadata       ArtifactMetadata `json:"metadata"`
	Duration       float64          `json:"duration_sec"`
}

// QualityAssessment is a stage's self-reported verdict, consumed only
// by the router. A stage that crashes synthesizes a failing assessment
// rather than omitting one.
type QualityAssessment struct {
	Stage    string  `json:"stage"`
	Passed   bool    `json:"passed"`
	Score    float64 `json:"score"` // 0.0 - 1.0
	Feedback string  `json:"feedback"`
	Attempt  int     `json:"attempt"`
}

// SpeakerSelection is the speaker gate's resolved decision.
type SpeakerSelection struct {
	Host         string   `json:"host"`
	Participants []string `json:"participants"`
}

// Preferences carries the owner's persona and taste, set once at start.
type Preferences struct {
	Name           string   `json:"name,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	SpeechStyle    string   `json:"speech_style,omitempty"`
	FillerWords    []string `json:"filler_words,omitempty"`
	Tone           string   `json:"tone,omitempty"`
	TargetAudience string   `json:"target_audience,omitempty"`
	BGMPath        string   `json:"bgm_path,omitempty"`
}

// PipelineState is the single mutable aggregate threaded through every
// stage. Nodes return sparse deltas; Reduce merges them.
//
// Invariants: at most one of {Error, EditorOutput} is set at
// completion; retry counters only increase for the lifetime of a run.
type PipelineState struct {
	// Run identity, set once at start.
	RunID       string      `json:"run_id"`
	Owner       string      `json:"owner"`
	CreatedAt   time.Time   `json:"created_at"`
	Preferences Preferences `json:"preferences"`

	// Stage outputs.
	TrendData    *TrendData    `json:"trend_data,omitempty"`
	ScriptData   *ScriptData   `json:"script_data,omitempty"`
	MediaAssets  *MediaAssets  `json:"media_assets,omitempty"`
	EditorOutput *EditorOutput `json:"editor_output,omitempty"`

	// Quality control.
	Quality     *QualityAssessment `json:"quality,omitempty"`
	RetryCounts map[string]int     `json:"retry_counts,omitempty"`

	// Script review gate. HumanApproved is tri-state: nil means not
	// yet reviewed (or review invalidated by a fresh draft).
	HumanApproved *bool  `json:"human_approved,omitempty"`
	HumanFeedback string `json:"human_feedback,omitempty"`

	// Topic selection gate.
	TopicSelected string `json:"topic_selected,omitempty"`
	TopicApproved bool   `json:"topic_approved,omitempty"`

	// Speaker selection gate.
	SelectedSpeakers *SpeakerSelection `json:"selected_speakers,omitempty"`
	SpeakersApproved bool              `json:"speakers_approved,omitempty"`

	// Audio source gate.
	AudioSource         string            `json:"audio_source,omitempty"`
	AudioChoiceApproved bool              `json:"audio_choice_approved,omitempty"`
	AudioFiles          map[string]string `json:"audio_files,omitempty"` // scene id → recording (manual mode)

	// Hook prompt gate.
	HookVideoPrompt    string `json:"hook_video_prompt,omitempty"`
	HookPromptApproved bool   `json:"hook_prompt_approved,omitempty"`

	// Draft stage side artifact.
	ScriptFilePath string `json:"script_file_path,omitempty"`

	// Render configuration.
	VideoResolution string `json:"video_resolution,omitempty"` // "1080x1920" | "720x1280"

	// Terminal error summary. Set only on permanent failure.
	Error string `json:"error,omitempty"`

	// ClearReview, set in a delta only, resets HumanApproved and
	// HumanFeedback. A fresh draft invalidates the previous review.
	ClearReview bool `json:"-"`
}

// Reduce merges a sparse delta into the previous state.
//
// Zero-valued delta fields mean "unchanged". Retry counters merge
// key-wise and only ever increase. Reduce is the engine's reducer for
// the whole pipeline.
func Reduce(prev, delta PipelineState) PipelineState {
	if delta.RunID != "" {
		prev.RunID = delta.RunID
	}
	if delta.Owner != "" {
		prev.Owner = delta.Owner
	}
	if !delta.CreatedAt.IsZero() {
		prev.CreatedAt = delta.CreatedAt
	}

	if delta.TrendData != nil {
		prev.TrendData = delta.TrendData
	}
	if delta.ScriptData != nil {
		prev.ScriptData = delta.ScriptData
	}
	if delta.MediaAssets != nil {
		prev.MediaAssets = delta.MediaAssets
	}
	if delta.EditorOutput != nil {
		prev.EditorOutput = delta.EditorOutput
	}
	if delta.Quality != nil {
		prev.Quality = delta.Quality
	}

	for stage, count := range delta.RetryCounts {
		if prev.RetryCounts == nil {
			prev.RetryCounts = make(map[string]int)
		}
		if count > prev.RetryCounts[stage] {
			prev.RetryCounts[stage] = count
		}
	}

	if delta.ClearReview {
		prev.HumanApproved = nil
		prev.HumanFeedback = ""
	}
	if delta.HumanApproved != nil {
		prev.HumanApproved = delta.HumanApproved
	}
	if delta.HumanFeedback != "" {
		prev.HumanFeedback = delta.HumanFeedback
	}

	if delta.TopicSelected != "" {
		prev.TopicSelected = delta.TopicSelected
	}
	if delta.TopicApproved {
		prev.TopicApproved = true
	}
	if delta.SelectedSpeakers != nil {
		prev.SelectedSpeakers = delta.SelectedSpeakers
	}
	if delta.SpeakersApproved {
		prev.SpeakersApproved = true
	}
	if delta.AudioSource != "" {
		prev.AudioSource = delta.AudioSource
	}
	if delta.AudioChoiceApproved {
		prev.AudioChoiceApproved = true
	}
	if delta.AudioFiles != nil {
		prev.AudioFiles = delta.AudioFiles
	}
	if delta.HookVideoPrompt != "" {
		prev.HookVideoPrompt = delta.HookVideoPrompt
	}
	if delta.HookPromptApproved {
		prev.HookPromptApproved = true
	}
	if delta.ScriptFilePath != "" {
		prev.ScriptFilePath = delta.ScriptFilePath
	}
	if delta.VideoResolution != "" {
		prev.VideoResolution = delta.VideoResolution
	}
	if delta.Error != "" {
		prev.Error = delta.Error
	}

	return prev
}
