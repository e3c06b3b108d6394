// Package anthropic adapts the official Anthropic Go SDK to the
// model.ChatModel interface. The pipeline uses Claude for the creative
// drafting stage.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"podshorts/model"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "claude-sonnet-4-20250514"

// ChatModel implements model.ChatModel for Anthropic's Messages API.
//
// Claude has no native JSON mode; when JSONOutput is requested the
// adapter appends an instruction to respond with a bare JSON object.
// Callers must still validate the parse.
type ChatModel struct {
	client    *anthropic.Client
	modelName string
	maxTokens int64
}

// NewChatModel creates an Anthropic ChatModel.
//
// Parameters:
//   - apiKey: Anthropic API key
//   - modelName: model to use. Empty string uses DefaultModel.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &ChatModel{
		client:    &client,
		modelName: modelName,
		maxTokens: 4096,
	}
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, opts model.ChatOptions) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: m.maxTokens,
	}
	if opts.Temperature != 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	var system string
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			// The Messages API takes the system prompt out of band.
			system = msg.Content
		case model.RoleAssistant:
			params.Messages = append(params.Messages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if opts.JSONOutput {
		system += "\n\nRespond ONLY with a valid JSON object. No markdown, no explanation."
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("anthropic: chat: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return model.ChatOut{}, errors.New("anthropic: empty message response")
	}

	return model.ChatOut{Text: text}, nil
}
