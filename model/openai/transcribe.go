package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"podshorts/model"
)

// Transcriber implements model.Transcriber using Whisper.
//
// Verbose JSON output is requested at segment granularity; the segments
// carry start/end offsets relative to the uploaded audio, which is what
// the timeline composer needs.
type Transcriber struct {
	client *openai.Client
}

// NewTranscriber creates a Whisper transcription adapter.
func NewTranscriber(apiKey string) *Transcriber {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Transcriber{client: &client}
}

// verboseTranscription mirrors the verbose_json response shape; the SDK
// return type only surfaces the plain-text fields.
type verboseTranscription struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe implements model.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) ([]model.CaptionSegment, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("openai: open audio for transcription: %w", err)
	}
	defer f.Close()

	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:                   f,
		Model:                  openai.AudioModelWhisper1,
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: transcription: %w", err)
	}

	var verbose verboseTranscription
	if err := json.Unmarshal([]byte(resp.RawJSON()), &verbose); err != nil {
		return nil, fmt.Errorf("openai: parse transcription segments: %w", err)
	}

	segments := make([]model.CaptionSegment, 0, len(verbose.Segments))
	for _, seg := range verbose.Segments {
		segments = append(segments, model.CaptionSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return segments, nil
}
