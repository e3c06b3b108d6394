package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"podshorts/flow"
	"podshorts/model"
	"podshorts/trend"
)

const draftSystemTemplate = `You are a writer of short-form conversational podcast episodes. Based
on a trending topic you write a 1-3 minute **%d-speaker dialogue**
script.

## Characters
%s

## Dialogue flow rules
1. Every speaker change starts a **new scene**. One scene = one speaker.
2. Base flow: host explains, participants ask or react, host answers,
   participants follow up.
3. Participant questions should drive the conversation naturally.
4. Set each scene's speaker field to one of: %s.

## Script structure
1. Write all lines in a natural spoken register, like a real
   conversation.
2. Follow this structure:
   - Hook: the host opens with a striking take on the topic (5-10s,
     speaker: host, scene_id: "hook")
   - Body part 1 (icebreaker): why this topic is hot right now,
     explained simply (15-25s, scene_ids "body_1_1", "body_1_2", ...)
   - Body part 2 (expert Q&A): a participant asks sharp, specific
     questions like a reporter; the host answers with analysis
     (20-30s, scene_ids "body_2_...")
   - Body part 3 (deep Q&A): a more provocative follow-up question and
     an insightful answer (15-25s, scene_ids "body_3_...")
   - CTA: host wraps up, participants say goodbye (5-10s, scene_ids
     "cta" or "cta_1", "cta_2")
3. Write each scene's image_prompt in English, portrait orientation,
   and always include the topic as a visual element.
4. Total length: 60-180 seconds, 10-20 scenes, a distinct image_prompt
   per scene.

## Speaker distribution
%s

Respond with a JSON object:
{
  "title": "...",
  "hook_text": "...",
  "cta_text": "...",
  "estimated_duration_sec": 0.0,
  "body_parts": [{"text": "...", "emotion": "...", "key_point": "..."}],
  "scenes": [
    {"scene_id": "...", "text": "...", "duration": 0.0,
     "emotion": "...", "image_prompt": "...", "speaker": "..."}
  ]
}`

const draftQualitySystem = `You are the quality evaluator of a short-form podcast pipeline. Judge
whether this script is good enough to hand to media generation.

Evaluation criteria:
- Does the hook grab attention
- Are the three body parts logically structured
- Does the CTA close naturally
- Is the spoken register consistent
- Is the length right for 1-3 minutes
- Are the per-scene image prompts written in English
- Is the speaker distribution balanced (host 40-60%)
- Does every scene carry a valid speaker field

Respond with a JSON object: {"score": 0.0, "feedback": "..."}`

// scriptResult is the shape the generation call must return.
type scriptResult struct {
	Title             string  `json:"title"`
	HookText          string  `json:"hook_text"`
	CTAText           string  `json:"cta_text"`
	EstimatedDuration float64 `json:"estimated_duration_sec"`
	BodyParts         []struct {
		Text     string `json:"text"`
		Emotion  string `json:"emotion"`
		KeyPoint string `json:"key_point"`
	} `json:"body_parts"`
	Scenes []Scene `json:"scenes"`
}

// DraftStage generates the multi-speaker script with the creative
// model, exports a readable transcript, and self-evaluates with the
// reasoning model. When reviewer feedback is present it revises the
// previous draft instead of starting fresh.
type DraftStage struct {
	Creative  model.ChatModel
	Reasoning model.ChatModel
	News      trend.Searcher
	Roster    []RosterMember
	Threshold float64
	OutputDir string
}

func (d *DraftStage) Run(ctx context.Context, state PipelineState) flow.NodeResult[PipelineState] {
	attempt := state.RetryCounts[StageDraft] + 1

	script, path, quality, err := d.draft(ctx, state, attempt)
	if err != nil {
		script = &ScriptData{Scenes: []Scene{}}
		path = ""
		quality = &QualityAssessment{
			Stage:    StageDraft,
			Passed:   false,
			Score:    0.0,
			Feedback: fmt.Sprintf("Script generation failed: %v. Will retry.", err),
			Attempt:  attempt,
		}
	}

	// A fresh draft always invalidates the previous review verdict.
	return flow.NodeResult[PipelineState]{
		Delta: PipelineState{
			ScriptData:     script,
			ScriptFilePath: path,
			Quality:        quality,
			RetryCounts:    map[string]int{StageDraft: attempt},
			ClearReview:    true,
		},
	}
}

func (d *DraftStage) draft(ctx context.Context, state PipelineState, attempt int) (*ScriptData, string, *QualityAssessment, error) {
	system, labels := d.systemPrompt(state.SelectedSpeakers)
	user := d.userPrompt(ctx, state)

	out, err := d.Creative.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: user},
	}, model.ChatOptions{Temperature: 0.7, JSONOutput: true})
	if err != nil {
		return nil, "", nil, fmt.Errorf("script generation: %w", err)
	}

	var result scriptResult
	if err := json.Unmarshal([]byte(out.Text), &result); err != nil {
		return nil, "", nil, fmt.Errorf("decode script: %w", err)
	}
	if len(result.Scenes) == 0 {
		return nil, "", nil, fmt.Errorf("script has no scenes")
	}

	parts := []string{result.HookText}
	for _, bp := range result.BodyParts {
		parts = append(parts, bp.Text)
	}
	parts = append(parts, result.CTAText)

	script := &ScriptData{
		Title:             result.Title,
		FullScript:        strings.Join(parts, " "),
		Scenes:            result.Scenes,
		Hook:              result.HookText,
		CTA:               result.CTAText,
		EstimatedDuration: result.EstimatedDuration,
	}

	path, err := d.export(state.RunID, script, labels)
	if err != nil {
		return nil, "", nil, err
	}

	score, feedback, err := d.evaluate(ctx, &result)
	if err != nil {
		return nil, "", nil, err
	}

	quality := &QualityAssessment{
		Stage:    StageDraft,
		Passed:   score >= d.Threshold,
		Score:    score,
		Feedback: feedback,
		Attempt:  attempt,
	}
	return script, path, quality, nil
}

// systemPrompt builds the speaker-aware instructions and the mapping
// from speaker tags to display names used in the exported transcript.
func (d *DraftStage) systemPrompt(sel *SpeakerSelection) (string, map[string]string) {
	host := "host"
	var participants []string
	if sel != nil {
		host = sel.Host
		participants = sel.Participants
	}

	byKey := make(map[string]RosterMember, len(d.Roster))
	for _, m := range d.Roster {
		byKey[m.Key] = m
	}
	describe := func(key string) RosterMember {
		if m, ok := byKey[key]; ok {
			return m
		}
		return RosterMember{Key: key, Name: key}
	}

	hostInfo := describe(host)
	labels := map[string]string{"host": hostInfo.Name}
	keys := []string{`"host"`}
	characters := []string{
		fmt.Sprintf("- **host** (%s): explains the topic and leads the conversation. %s.", hostInfo.Name, hostInfo.Description),
	}
	for i, p := range participants {
		info := describe(p)
		tag := fmt.Sprintf("participant_%d", i+1)
		labels[tag] = info.Name
		keys = append(keys, fmt.Sprintf("%q", tag))
		characters = append(characters, fmt.Sprintf("- **%s** (%s): %s. Joins the conversation naturally.", tag, info.Name, info.Description))
	}

	hostShare := "50-60%"
	if len(participants) > 2 {
		hostShare = "40-50%"
	}
	distribution := []string{fmt.Sprintf("- host (%s): %s of all lines", hostInfo.Name, hostShare)}
	for i, p := range participants {
		info := describe(p)
		distribution = append(distribution, fmt.Sprintf("- participant_%d (%s): an even share of the rest", i+1, info.Name))
	}

	prompt := fmt.Sprintf(draftSystemTemplate,
		1+len(participants),
		strings.Join(characters, "\n"),
		strings.Join(keys, ", "),
		strings.Join(distribution, "\n"),
	)
	return prompt, labels
}

func (d *DraftStage) userPrompt(ctx context.Context, state PipelineState) string {
	var topic, category, summaries string
	if state.TrendData != nil {
		topic = state.TrendData.SelectedTopic
		category = state.TrendData.Category
		var lines []string
		for _, ts := range state.TrendData.TopicSummaries {
			lines = append(lines, fmt.Sprintf("- %s: %s", ts.Keyword, ts.Summary))
		}
		summaries = strings.Join(lines, "\n")
	}
	if summaries == "" {
		summaries = "(no summaries)"
	}

	var sb strings.Builder
	if state.HumanFeedback != "" {
		sb.WriteString("**Revise** the short-form podcast script for the trending topic below.\n")
	} else {
		sb.WriteString("Write a short-form podcast script for the trending topic below.\n")
	}
	fmt.Fprintf(&sb, "\n## Topic\n- Selected topic: %s\n- Category: %s\n- Trend summaries:\n%s\n", topic, category, summaries)

	if state.HumanFeedback == "" {
		sb.WriteString("\n## Latest news\n")
		sb.WriteString(d.latestNews(ctx, topic))
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Host persona\n")
	sb.WriteString(personaSection(state.Preferences))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "\n## Image prompt guide\n- Include the topic %q as a visual element in every image_prompt.\n- Describe a portrait (vertical) composition.\n", topic)

	if state.HumanFeedback != "" {
		fmt.Fprintf(&sb, "\n## Revision requests\n%s\n\nRewrite the script with the requested changes applied, keeping the Hook, three-part Body, CTA structure.", state.HumanFeedback)
	} else {
		sb.WriteString("\nWrite the script with the Hook, three-part Body, CTA structure. Every scene must carry a speaker field.")
	}
	return sb.String()
}

// latestNews is best effort: a failed search never fails the draft.
func (d *DraftStage) latestNews(ctx context.Context, topic string) string {
	if d.News == nil || topic == "" {
		return "(no recent news available)"
	}
	items, err := d.News.Search(ctx, topic+" latest news", 5)
	if err != nil || len(items) == 0 {
		return "(no recent news available)"
	}
	var lines []string
	for _, item := range items {
		snippet := item.Snippet
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", item.Title, snippet))
	}
	return strings.Join(lines, "\n")
}

func personaSection(prefs Preferences) string {
	var lines []string
	if prefs.Name != "" {
		lines = append(lines, "- Name / channel: "+prefs.Name)
	}
	if prefs.SpeechStyle != "" {
		lines = append(lines, "- Speech style: "+prefs.SpeechStyle)
	}
	if len(prefs.FillerWords) > 0 {
		lines = append(lines, "- Frequent filler words: "+strings.Join(prefs.FillerWords, ", "))
	}
	if prefs.Tone != "" {
		lines = append(lines, "- Tone: "+prefs.Tone)
	}
	if prefs.TargetAudience != "" {
		lines = append(lines, "- Target audience: "+prefs.TargetAudience)
	}
	if len(lines) == 0 {
		return "(no persona configured, use a generic friendly voice)"
	}
	return strings.Join(lines, "\n")
}

// export writes the human-readable transcript the review gate links to.
func (d *DraftStage) export(runID string, script *ScriptData, labels map[string]string) (string, error) {
	dir := filepath.Join(d.OutputDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create script dir: %w", err)
	}
	path := filepath.Join(dir, "script.txt")

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n# Estimated duration: %.0fs\n\n", script.Title, script.EstimatedDuration)
	for _, scene := range script.Scenes {
		label := labels[scene.Speaker]
		if label == "" {
			label = scene.Speaker
		}
		fmt.Fprintf(&sb, "[%s] (%s) %s\n", scene.SceneID, label, scene.Text)
	}
	sb.WriteString("\n")

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write script file: %w", err)
	}
	return path, nil
}

func (d *DraftStage) evaluate(ctx context.Context, result *scriptResult) (float64, string, error) {
	var body strings.Builder
	for i, bp := range result.BodyParts {
		fmt.Fprintf(&body, "Part %d [%s]: %s\n  Key point: %s\n", i+1, bp.Emotion, bp.Text, bp.KeyPoint)
	}
	var prompts strings.Builder
	for _, scene := range result.Scenes {
		fmt.Fprintf(&prompts, "- %s: %s\n", scene.SceneID, scene.ImagePrompt)
	}

	user := fmt.Sprintf(`Evaluate the quality of this short-form podcast script.

Title: %s
Estimated duration: %.0fs

## Hook
%s

## Body
%s
## CTA
%s

## Per-scene image prompts
%s`, result.Title, result.EstimatedDuration, result.HookText, body.String(), result.CTAText, prompts.String())

	out, err := d.Reasoning.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: draftQualitySystem},
		{Role: model.RoleUser, Content: user},
	}, model.ChatOptions{Temperature: 0.2, JSONOutput: true})
	if err != nil {
		return 0, "", fmt.Errorf("script quality evaluation: %w", err)
	}

	var eval qualityEvaluation
	if err := json.Unmarshal([]byte(out.Text), &eval); err != nil {
		return 0, "", fmt.Errorf("decode script quality evaluation: %w", err)
	}
	return eval.Score, eval.Feedback, nil
}
