package openai

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"podshorts/model"
)

// narrationCharsPerSecond approximates spoken Korean/English narration
// pace, used only when no prober is available to measure the file.
const narrationCharsPerSecond = 5.5

// SpeechSynthesizer implements model.SpeechSynthesizer using OpenAI's
// text-to-speech endpoint.
//
// The emotion hint is passed through as a delivery instruction. The
// measured duration comes from the optional prober; without one the
// duration is estimated from the text length.
type SpeechSynthesizer struct {
	client    *openai.Client
	modelName string
	prober    model.AudioProber
}

// NewSpeechSynthesizer creates an OpenAI text-to-speech adapter.
//
// Parameters:
//   - apiKey: OpenAI API key
//   - prober: optional duration prober for the written files (nil falls
//     back to a text-length estimate)
func NewSpeechSynthesizer(apiKey string, prober model.AudioProber) *SpeechSynthesizer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &SpeechSynthesizer{
		client:    &client,
		modelName: "gpt-4o-mini-tts",
		prober:    prober,
	}
}

// Synthesize implements model.SpeechSynthesizer.
func (s *SpeechSynthesizer) Synthesize(ctx context.Context, req model.SpeechRequest) (model.SpeechResult, error) {
	if ctx.Err() != nil {
		return model.SpeechResult{}, ctx.Err()
	}

	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.modelName),
		Input:          req.Text,
		Voice:          openai.AudioSpeechNewParamsVoice(req.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if req.Emotion != "" && req.Emotion != "neutral" {
		params.Instructions = openai.String("Speak in a " + req.Emotion + " tone.")
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return model.SpeechResult{}, fmt.Errorf("openai: speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return model.SpeechResult{}, fmt.Errorf("openai: create audio dir: %w", err)
	}
	f, err := os.Create(req.OutputPath)
	if err != nil {
		return model.SpeechResult{}, fmt.Errorf("openai: create audio file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return model.SpeechResult{}, fmt.Errorf("openai: write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return model.SpeechResult{}, fmt.Errorf("openai: close audio file: %w", err)
	}

	duration := estimateDuration(req.Text)
	if s.prober != nil {
		if d, err := s.prober.Probe(ctx, req.OutputPath); err == nil && d > 0 {
			duration = d
		}
	}

	return model.SpeechResult{Path: req.OutputPath, Duration: duration}, nil
}

// estimateDuration approximates spoken length from the narration text.
func estimateDuration(text string) float64 {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n == 0 {
		return 0
	}
	return float64(n) / narrationCharsPerSecond
}
