package model

import (
	"context"
	"sync"
)

// MockChatModel is a test implementation of ChatModel.
//
// Use MockChatModel in tests to verify pipeline behavior without making
// actual LLM API calls. It provides:
//   - Configurable responses
//   - Call history tracking
//   - Error injection
//   - Thread-safe operation
//
// Example usage:
//
//	mock := &MockChatModel{
//	    Responses: []ChatOut{
//	        {Text: `{"score": 0.9}`},
//	        {Text: `{"score": 0.4}`},
//	    },
//	}
//	out, err := mock.Chat(ctx, messages, ChatOptions{})
//	// Returns the first response, then the second on subsequent calls
type MockChatModel struct {
	// Responses contains the sequence of responses to return.
	// Each call to Chat() returns the next response in order.
	// If all responses are consumed, the last response repeats.
	Responses []ChatOut

	// Err, if set, will be returned by Chat() instead of a response.
	Err error

	// Calls tracks the history of all Chat() invocations.
	Calls []MockChatCall

	mu        sync.Mutex
	callIndex int
}

// MockChatCall records a single invocation of Chat().
type MockChatCall struct {
	Messages []Message
	Opts     ChatOptions
}

// Chat implements the ChatModel interface.
//
// Always records the call in Calls history regardless of success/failure.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message, opts ChatOptions) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockChatCall{
		Messages: messages,
		Opts:     opts,
	})

	if m.Err != nil {
		return ChatOut{}, m.Err
	}

	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1 // repeat last response
	} else {
		m.callIndex++
	}

	return m.Responses[idx], nil
}

// Reset clears the call history and resets the response index.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of times Chat() has been called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}

// MockSpeechSynthesizer is a test implementation of SpeechSynthesizer.
//
// It reports synthetic durations without writing any file. Durations are
// taken from DurationFor keyed by voice, falling back to Duration.
// FailFor injects per-voice failures for partial-fan-out tests.
type MockSpeechSynthesizer struct {
	// Duration is the default reported duration in seconds.
	Duration float64

	// DurationFor overrides Duration per voice identifier.
	DurationFor map[string]float64

	// Err, if set, fails every call.
	Err error

	// FailFor fails calls whose request text matches a key.
	FailFor map[string]error

	mu    sync.Mutex
	Calls []SpeechRequest
}

// Synthesize implements SpeechSynthesizer.
func (m *MockSpeechSynthesizer) Synthesize(ctx context.Context, req SpeechRequest) (SpeechResult, error) {
	if ctx.Err() != nil {
		return SpeechResult{}, ctx.Err()
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()

	if m.Err != nil {
		return SpeechResult{}, m.Err
	}
	if err, ok := m.FailFor[req.Text]; ok {
		return SpeechResult{}, err
	}

	d := m.Duration
	if v, ok := m.DurationFor[req.Voice]; ok {
		d = v
	}
	if d == 0 {
		d = 1.0
	}

	return SpeechResult{Path: req.OutputPath, Duration: d}, nil
}

// CallCount returns the number of Synthesize calls so far.
func (m *MockSpeechSynthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockImageSynthesizer is a test implementation of ImageSynthesizer.
type MockImageSynthesizer struct {
	// Err, if set, fails every call.
	Err error

	// FailFor fails calls whose prompt matches a key.
	FailFor map[string]error

	mu    sync.Mutex
	Calls []ImageRequest
}

// Generate implements ImageSynthesizer.
func (m *MockImageSynthesizer) Generate(ctx context.Context, req ImageRequest) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if err, ok := m.FailFor[req.Prompt]; ok {
		return "", err
	}
	return req.OutputPath, nil
}

// CallCount returns the number of Generate calls so far.
func (m *MockImageSynthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockVideoSynthesizer is a test implementation of VideoSynthesizer.
type MockVideoSynthesizer struct {
	// Err, if set, fails every call.
	Err error

	mu    sync.Mutex
	Calls []VideoRequest
}

// Generate implements VideoSynthesizer.
func (m *MockVideoSynthesizer) Generate(ctx context.Context, req VideoRequest) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	return req.OutputPath, nil
}

// CallCount returns the number of Generate calls so far.
func (m *MockVideoSynthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockTranscriber is a test implementation of Transcriber.
type MockTranscriber struct {
	// Segments is returned by every Transcribe call.
	Segments []CaptionSegment

	// Err, if set, fails every call.
	Err error

	mu    sync.Mutex
	Calls []string
}

// Transcribe implements Transcriber.
func (m *MockTranscriber) Transcribe(ctx context.Context, audioPath string) ([]CaptionSegment, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, audioPath)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return m.Segments, nil
}

// MockAudioProber is a test implementation of AudioProber.
type MockAudioProber struct {
	// Durations maps path to reported duration.
	Durations map[string]float64

	// Err, if set, fails every call.
	Err error
}

// Probe implements AudioProber.
func (m *MockAudioProber) Probe(ctx context.Context, path string) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	if d, ok := m.Durations[path]; ok {
		return d, nil
	}
	return 1.0, nil
}
