package pipeline

import (
	"context"
	"fmt"

	"podshorts/flow"
)

// Gate nodes suspend the run and wait for an external decision. Run
// builds the payload the decider sees and returns an Interrupt; Resume
// validates the decision and routes to the gate's fixed successor. A
// Resume error leaves the suspension pending so the caller can correct
// the decision and try again.

func invalidDecision(nodeID, format string, args ...any) error {
	return &flow.NodeError{
		Message: fmt.Sprintf(format, args...),
		Code:    "INVALID_DECISION",
		NodeID:  nodeID,
	}
}

// decision field accessors. Decisions arrive as decoded JSON, so
// numbers are float64 and lists are []any.

func decisionString(decision map[string]any, key string) (string, bool) {
	v, ok := decision[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func decisionBool(decision map[string]any, key string) (bool, bool) {
	v, ok := decision[key]
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func decisionStringSlice(decision map[string]any, key string) ([]string, bool) {
	v, ok := decision[key]
	if !ok || v == nil {
		return nil, true
	}
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func decisionStringMap(decision map[string]any, key string) (map[string]string, bool) {
	v, ok := decision[key]
	if !ok || v == nil {
		return nil, true
	}
	switch vv := v.(type) {
	case map[string]string:
		return vv, true
	case map[string]any:
		out := make(map[string]string, len(vv))
		for k, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// ── Topic selection ─────────────────────────────────────────────────

// TopicGate presents the researched topics and waits for the decider
// to pick one.
type TopicGate struct{}

type topicPayload struct {
	Topics  []TopicSummary `json:"topics"`
	Message string         `json:"message"`
}

func (g *TopicGate) Run(ctx context.Context, state PipelineState) flow.NodeResult[PipelineState] {
	var topics []TopicSummary
	if state.TrendData != nil {
		topics = state.TrendData.TopicSummaries
	}
	return flow.NodeResult[PipelineState]{
		Interrupt: &flow.Interrupt{
			Reason: GateTopicSelection,
			Payload: topicPayload{
				Topics:  topics,
				Message: "Review the trend results and select one topic.",
			},
		},
	}
}

func (g *TopicGate) Resume(ctx context.Context, state PipelineState, decision map[string]any) flow.NodeResult[PipelineState] {
	selected, ok := decisionString(decision, "selected_topic")
	if !ok || selected == "" {
		return flow.NodeResult[PipelineState]{
			Err: invalidDecision(StageTopicGate, "selected_topic is required"),
		}
	}

	trend := TrendData{SelectedTopic: selected}
	if state.TrendData != nil {
		trend = *state.TrendData
		trend.SelectedTopic = selected
	}

	return flow.NodeResult[PipelineState]{
		Delta: PipelineState{
			TrendData:     &trend,
			TopicSelected: selected,
			TopicApproved: true,
		},
		Route: flow.Goto(StageSpeakerGate),
	}
}

// ── Speaker selection ───────────────────────────────────────────────

// SpeakerGate presents the configured roster and waits for a host and
// participant selection.
type SpeakerGate struct {
	Roster      []RosterMember
	DefaultHost string
}

type speakerPayload struct {
	Members []RosterMember `json:"members"`
	Message string         `json:"message"`
}

func (g *SpeakerGate) Run(ctx context.Context, state PipelineState) flow.NodeResult[PipelineState] {
	return flow.NodeResult[PipelineState]{
		Interrupt: &flow.Interrupt{
			Reason: GateSpeakerSelection,
			Payload: speakerPayload{
				Members: g.Roster,
				Message: "Select the speakers: one host and any participants.",
			},
		},
	}
}

func (g *SpeakerGate) inRoster(key string) bool {
	for _, m := range g.Roster {
		if m.Key == key {
			return true
		}
	}
	return false
}

func (g *SpeakerGate) Resume(ctx context.Context, state PipelineState, decision map[string]any) flow.NodeResult[PipelineState] {
	host, ok := decisionString(decision, "host")
	if !ok || host == "" {
		host = g.DefaultHost
	}
	if !g.inRoster(host) {
		return flow.NodeResult[PipelineState]{
			Err: invalidDecision(StageSpeakerGate, "unknown host %q", host),
		}
	}

	participants, ok := decisionStringSlice(decision, "participants")
	if !ok {
		return flow.NodeResult[PipelineState]{
			Err: invalidDecision(StageSpeakerGate, "participants must be a list of roster keys"),
		}
	}
	for _, p := range participants {
		if !g.inRoster(p) {
			return flow.NodeResult[PipelineState]{
				Err: invalidDecision(StageSpeakerGate, "unknown participant %q", p),
			}
		}
	}
	if participants == nil {
		participants = []string{}
	}

	return flow.NodeResult[PipelineState]{
		Delta: PipelineState{
			SelectedSpeakers: &SpeakerSelection{Host: host, Participants: participants},
			SpeakersApproved: true,
		},
		Route: flow.Goto(StageDraft),
	}
}

// ── Script review ───────────────────────────────────────────────────

// ReviewGate presents the drafted script for approval before media
// generation spends money. A rejection routes back to the draft stage
// with the reviewer's feedback.
type ReviewGate struct{}

type reviewPayload struct {
	ScriptData     *ScriptData `json:"script_data"`
	ScriptFilePath string      `json:"script_file_path"`
	Message        string      `json:"message"`
}

func (g *ReviewGate) Run(ctx context.Context, state PipelineState) flow.NodeResult[PipelineState] {
	return flow.NodeResult[PipelineState]{
		Interrupt: &flow.Interrupt{
			Reason: GateScriptReview,
			Payload: reviewPayload{
				ScriptData:     state.ScriptData,
				ScriptFilePath: state.ScriptFilePath,
				Message:        "Review the script. Approve it or reject with revision feedback.",
			},
		},
	}
}

func (g *ReviewGate) Resume(ctx context.Context, state PipelineState, decision map[string]any) flow.NodeResult[PipelineState] {
	approved, ok := decisionBool(decision, "approved")
	if !ok {
		return flow.NodeResult[PipelineState]{
			Err: invalidDecision(StageReviewGate, "approved is required and must be a boolean"),
		}
	}
	feedback, ok := decisionString(decision, "feedback")
	if !ok && decision["feedback"] != nil {
		return flow.NodeResult[PipelineState]{
			Err: invalidDecision(StageReviewGate, "feedback must be a string"),
		}
	}

	next := StageAudioChoiceGate
	if !approved {
		next = StageDraft
	}

	return flow.NodeResult[PipelineState]{
		Delta: PipelineState{
			HumanApproved: &approved,
			HumanFeedback: feedback,
		},
		Route: flow.Goto(next),
	}
}

// ── Audio source choice ─────────────────────────────────────────────

// AudioChoiceGate asks whether scene audio should be synthesized or
// supplied as pre-recorded files.
type AudioChoiceGate struct{}

type audioScene struct {
	SceneID string `json:"scene_id"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type audioChoicePayload struct {
	Scenes         []audioScene `json:"scenes"`
	ScriptFilePath string       `json:"script_file_path"`
	Message        string       `json:"message"`
}

func (g *AudioChoiceGate) Run(ctx context.Context, state PipelineState) flow.NodeResult[PipelineState] {
	var scenes []audioScene
	if state.ScriptData != nil {
		scenes = make([]audioScene, 0, len(state.ScriptData.Scenes))
		for _, s := range state.ScriptData.Scenes {
			scenes = append(scenes, audioScene{
				SceneID: s.SceneID,
				Speaker: s.Speaker,
				Text:    s.Text,
			})
		}
	}
	return flow.NodeResult[PipelineState]{
		Interrupt: &flow.Interrupt{
			Reason: GateAudioChoice,
			Payload: audioChoicePayload{
				Scenes:         scenes,
				ScriptFilePath: state.ScriptFilePath,
				Message:        "Choose the audio source: synthesized speech or manual recordings.",
			},
		},
	}
}

func (g *AudioChoiceGate) Resume(ctx context.Context, state PipelineState, decision map[string]any) flow.NodeResult[PipelineState] {
	source, ok := decisionString(decision, "audio_source")
	if !ok || source == "" {
		source = AudioSourceTTS
	}
	if source != AudioSourceTTS && source != AudioSourceManual {
		return flow.NodeResult[PipelineState]{
			Err: invalidDecision(StageAudioChoiceGate, "audio_source must be %q or %q", AudioSourceTTS, AudioSourceManual),
		}
	}

	files, ok := decisionStringMap(decision, "audio_files")
	if !ok {
		return flow.NodeResult[PipelineState]{
			Err: invalidDecision(StageAudioChoiceGate, "audio_files must map scene ids to file paths"),
		}
	}
	if source == AudioSourceManual && len(files) == 0 {
		return flow.NodeResult[PipelineState]{
			Err: invalidDecision(StageAudioChoiceGate, "manual audio requires audio_files"),
		}
	}

	return flow.NodeResult[PipelineState]{
		Delta: PipelineState{
			AudioSource:         source,
			AudioFiles:          files,
			AudioChoiceApproved: true,
		},
		Route: flow.Goto(StageMedia),
	}
}

// ── Hook prompt review ──────────────────────────────────────────────

// HookGate presents the generated hook-video prompt for editing before
// the expensive video synthesis call.
type HookGate struct{}

type hookPayload struct {
	Prompt  string `json:"prompt"`
	Message string `json:"message"`
}

func (g *HookGate) Run(ctx context.Context, state PipelineState) flow.NodeResult[PipelineState] {
	return flow.NodeResult[PipelineState]{
		Interrupt: &flow.Interrupt{
			Reason: GateHookPrompt,
			Payload: hookPayload{
				Prompt:  state.HookVideoPrompt,
				Message: "Review the hook video prompt. Edit it or approve as is.",
			},
		},
	}
}

func (g *HookGate) Resume(ctx context.Context, state PipelineState, decision map[string]any) flow.NodeResult[PipelineState] {
	prompt, ok := decisionString(decision, "prompt")
	if !ok || prompt == "" {
		prompt = state.HookVideoPrompt
	}
	return flow.NodeResult[PipelineState]{
		Delta: PipelineState{
			HookVideoPrompt:    prompt,
			HookPromptApproved: true,
		},
		Route: flow.Goto(StageAssemble),
	}
}
