package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"podshorts/model"
)

// ImageSynthesizer implements model.ImageSynthesizer using DALL-E 3.
//
// The aspect hint selects between the portrait and landscape DALL-E
// sizes; anything unrecognized falls back to portrait, the shape short
// vertical video wants.
type ImageSynthesizer struct {
	client *openai.Client
}

// NewImageSynthesizer creates a DALL-E 3 image adapter.
func NewImageSynthesizer(apiKey string) *ImageSynthesizer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &ImageSynthesizer{client: &client}
}

// Generate implements model.ImageSynthesizer.
func (s *ImageSynthesizer) Generate(ctx context.Context, req model.ImageRequest) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	size := openai.ImageGenerateParamsSize1024x1792
	if req.Aspect == "landscape" {
		size = openai.ImageGenerateParamsSize1792x1024
	}

	resp, err := s.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModelDallE3,
		Size:           size,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		N:              openai.Int(1),
	})
	if err != nil {
		return "", fmt.Errorf("openai: image generation: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", errors.New("openai: image generation returned no data")
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return "", fmt.Errorf("openai: decode image payload: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return "", fmt.Errorf("openai: create image dir: %w", err)
	}
	if err := os.WriteFile(req.OutputPath, raw, 0o644); err != nil {
		return "", fmt.Errorf("openai: write image file: %w", err)
	}

	return req.OutputPath, nil
}
