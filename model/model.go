// Package model provides generator integration adapters.
//
// The pipeline stages never talk to a provider SDK directly; they consume
// the capability interfaces defined here (chat, speech, image, video,
// transcription). Provider subpackages (openai, anthropic, google) adapt
// the official SDKs to these interfaces, and mock implementations back
// the test suite.
package model

import "context"

// ChatModel defines the interface for LLM chat providers.
//
// This interface abstracts the differences between various LLM providers
// (OpenAI, Anthropic, Google) providing a unified API for chat-based
// interactions.
//
// Implementations should:
//   - Handle provider-specific authentication
//   - Convert standard Message format to provider-specific format
//   - Parse provider responses back to standard ChatOut format
//   - Respect context cancellation and timeouts
//   - Handle retries and rate limiting appropriately
//
// Example usage:
//
//	m := openai.NewChatModel(apiKey, "gpt-4o")
//	messages := []model.Message{
//	    {Role: model.RoleUser, Content: "Summarize today's trends."},
//	}
//	out, err := m.Chat(ctx, messages, model.ChatOptions{JSONOutput: true})
type ChatModel interface {
	// Chat sends messages to the LLM and returns the response.
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (ChatOut, error)
}

// ChatOptions tunes a single chat call.
type ChatOptions struct {
	// Temperature controls sampling randomness. Zero means provider default.
	Temperature float64

	// JSONOutput requests a JSON-object response where the provider
	// supports a native JSON mode. Providers without one rely on prompt
	// instructions instead; callers must still validate the parse.
	JSONOutput bool
}

// Message represents a single message in an LLM conversation.
//
// Typical conversation structure:
//   - System message (optional): sets context and behavior
//   - User messages: input or questions
//   - Assistant messages: LLM responses
type Message struct {
	// Role identifies the message sender.
	// Standard roles: "system", "user", "assistant".
	Role string

	// Content contains the message text.
	Content string
}

// Standard role constants for LLM conversations.
const (
	// RoleSystem indicates a system message that sets context or instructions.
	RoleSystem = "system"

	// RoleUser indicates a message from the human user.
	RoleUser = "user"

	// RoleAssistant indicates a response from the LLM.
	RoleAssistant = "assistant"
)

// ChatOut represents the output from an LLM chat completion.
type ChatOut struct {
	// Text contains the LLM's generated response. When JSONOutput was
	// requested this is a JSON object document.
	Text string
}

// SpeechSynthesizer converts narration text into an audio file.
type SpeechSynthesizer interface {
	// Synthesize renders the request's text with the given voice and
	// writes the audio to req.OutputPath.
	Synthesize(ctx context.Context, req SpeechRequest) (SpeechResult, error)
}

// SpeechRequest describes a single text-to-speech call.
type SpeechRequest struct {
	// Text is the narration to render.
	Text string

	// Voice is the provider voice identifier for the speaker.
	Voice string

	// Emotion is a delivery hint ("neutral", "excited", ...). Providers
	// that cannot express it ignore it.
	Emotion string

	// OutputPath is where the audio file is written.
	OutputPath string
}

// SpeechResult reports the rendered audio.
type SpeechResult struct {
	// Path is the written audio file.
	Path string

	// Duration is the measured audio length in seconds.
	Duration float64
}

// ImageSynthesizer generates a still image from a text prompt.
type ImageSynthesizer interface {
	// Generate creates an image and writes it to req.OutputPath,
	// returning the written path.
	Generate(ctx context.Context, req ImageRequest) (string, error)
}

// ImageRequest describes a single image generation call.
type ImageRequest struct {
	// Prompt is the generation directive (English, scene-specific).
	Prompt string

	// Aspect selects the frame shape ("portrait" or "landscape").
	Aspect string

	// OutputPath is where the image file is written.
	OutputPath string
}

// VideoSynthesizer generates a short video clip from a text prompt.
type VideoSynthesizer interface {
	// Generate creates a clip and writes it to req.OutputPath,
	// returning the written path.
	Generate(ctx context.Context, req VideoRequest) (string, error)
}

// VideoRequest describes a single video generation call.
type VideoRequest struct {
	// Prompt is the generation directive.
	Prompt string

	// Duration is the requested clip length in seconds. Providers round
	// to their supported lengths.
	Duration float64

	// OutputPath is where the clip file is written.
	OutputPath string
}

// Transcriber converts an audio file into time-stamped caption segments.
//
// Segment ordering is not guaranteed; consumers that need a stable order
// must sort.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]CaptionSegment, error)
}

// CaptionSegment is one transcribed span of the audio.
type CaptionSegment struct {
	// Start is the segment's start offset in seconds.
	Start float64

	// End is the segment's end offset in seconds.
	End float64

	// Text is the transcribed content.
	Text string
}

// AudioProber measures the duration of an existing audio file. Used for
// caller-provided recordings, where no synthesizer reported a duration.
type AudioProber interface {
	Probe(ctx context.Context, path string) (float64, error)
}
