// Package openai adapts the official OpenAI Go SDK to the model
// interfaces: chat, speech synthesis, image generation, and
// transcription.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"podshorts/model"
)

// DefaultChatModel is used when no model name is given.
const DefaultChatModel = "gpt-4o"

// ChatModel implements model.ChatModel for OpenAI's API.
//
// Provides access to OpenAI chat models with:
//   - Automatic retry logic for transient errors
//   - Rate limit handling with backoff
//   - Native JSON-object response mode
//   - Context cancellation
//
// Example usage:
//
//	m := openai.NewChatModel(os.Getenv("OPENAI_API_KEY"), "gpt-4o")
//	out, err := m.Chat(ctx, messages, model.ChatOptions{JSONOutput: true})
type ChatModel struct {
	client     *openai.Client
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

// NewChatModel creates a new OpenAI ChatModel.
//
// Parameters:
//   - apiKey: OpenAI API key
//   - modelName: model to use (e.g. "gpt-4o"). Empty string uses DefaultChatModel.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultChatModel
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &ChatModel{
		client:     &client,
		modelName:  modelName,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Chat implements the model.ChatModel interface.
//
// Sends messages to OpenAI's Chat Completions API and returns the
// response. Automatically retries on transient errors; rate limit waits
// grow with the attempt number.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, opts model.ChatOptions) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.modelName),
		Messages: convertMessages(messages),
	}
	if opts.Temperature != 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.JSONOutput {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: openai.Ptr(shared.NewResponseFormatJSONObjectParam()),
		}
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		completion, err := m.client.Chat.Completions.New(ctx, params)
		if err == nil {
			if len(completion.Choices) == 0 {
				return model.ChatOut{}, errors.New("openai: empty completion response")
			}
			return model.ChatOut{Text: completion.Choices[0].Message.Content}, nil
		}

		lastErr = err
		if !isTransientError(err) {
			return model.ChatOut{}, err
		}
		if attempt >= m.maxRetries {
			break
		}

		delay := m.retryDelay
		if isRateLimitError(err) {
			delay = m.retryDelay * time.Duration(attempt+1)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.ChatOut{}, ctx.Err()
		}
	}

	return model.ChatOut{}, fmt.Errorf("openai: chat failed after %d retries: %w", m.maxRetries, lastErr)
}

// convertMessages maps model.Message values onto the SDK's message unions.
func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		case model.RoleAssistant:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		default:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		}
	}
	return out
}

// isTransientError determines if an error should trigger a retry.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	msgLower := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"network",
		"connection",
		"temporary",
		"rate limit",
		"429",
		"503",
		"502",
		"500",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msgLower, pattern) {
			return true
		}
	}
	return false
}

// isRateLimitError checks if error indicates rate limiting.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msgLower := strings.ToLower(err.Error())
	return strings.Contains(msgLower, "rate limit") ||
		strings.Contains(msgLower, "429") ||
		strings.Contains(msgLower, "too many requests")
}
