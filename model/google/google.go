// Package google adapts the Gemini SDK to the model.ChatModel
// interface. Wired as the alternate reasoning provider.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"podshorts/model"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "gemini-1.5-flash"

// ChatModel implements model.ChatModel for Google's Gemini API.
type ChatModel struct {
	client    *genai.Client
	modelName string
}

// NewChatModel creates a Gemini ChatModel.
//
// Parameters:
//   - apiKey: Google API key
//   - modelName: model to use. Empty string uses DefaultModel.
//
// Call Close when the model is no longer needed.
func NewChatModel(ctx context.Context, apiKey, modelName string) (*ChatModel, error) {
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}

	return &ChatModel{
		client:    client,
		modelName: modelName,
	}, nil
}

// Close releases the underlying client.
func (m *ChatModel) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, opts model.ChatOptions) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	gm := m.client.GenerativeModel(m.modelName)
	if opts.Temperature != 0 {
		t := float32(opts.Temperature)
		gm.Temperature = &t
	}
	if opts.JSONOutput {
		gm.ResponseMIMEType = "application/json"
	}

	// Gemini takes the system prompt out of band; the rest of the
	// conversation is flattened into ordered text parts.
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			gm.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(msg.Content)},
			}
			continue
		}
		parts = append(parts, genai.Text(msg.Content))
	}
	if len(parts) == 0 {
		return model.ChatOut{}, errors.New("google: no user content to send")
	}

	resp, err := gm.GenerateContent(ctx, parts...)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google: chat: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.ChatOut{}, errors.New("google: empty candidate response")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return model.ChatOut{}, errors.New("google: candidate contained no text")
	}

	return model.ChatOut{Text: text}, nil
}
