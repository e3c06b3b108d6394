// Package luma generates short video clips with the Luma Dream
// Machine API.
package luma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"podshorts/model"
)

const (
	apiBase      = "https://api.lumalabs.ai/dream-machine/v1"
	defaultModel = "ray-2"

	pollInterval = 5 * time.Second
	pollTimeout  = 5 * time.Minute
)

// VideoSynthesizer implements model.VideoSynthesizer against Luma.
type VideoSynthesizer struct {
	apiKey    string
	modelName string
	client    *http.Client
}

var _ model.VideoSynthesizer = (*VideoSynthesizer)(nil)

// NewVideoSynthesizer creates a client with the default model.
func NewVideoSynthesizer(apiKey string) *VideoSynthesizer {
	return &VideoSynthesizer{
		apiKey:    apiKey,
		modelName: defaultModel,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

type generationRequest struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio"`
	Resolution  string `json:"resolution"`
	Duration    string `json:"duration"`
}

type generation struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason"`
	Assets        struct {
		Video string `json:"video"`
	} `json:"assets"`
}

// Generate submits a generation, polls until it completes, and
// downloads the clip to the requested path. Duration is snapped to the
// API's supported lengths (5s or 9s).
func (v *VideoSynthesizer) Generate(ctx context.Context, req model.VideoRequest) (string, error) {
	duration := "5s"
	if req.Duration > 7.0 {
		duration = "9s"
	}

	gen, err := v.create(ctx, generationRequest{
		Prompt:      req.Prompt,
		Model:       v.modelName,
		AspectRatio: "9:16",
		Resolution:  "1080p",
		Duration:    duration,
	})
	if err != nil {
		return "", err
	}

	gen, err = v.await(ctx, gen.ID)
	if err != nil {
		return "", err
	}
	if gen.Assets.Video == "" {
		return "", fmt.Errorf("luma generation %s completed without a video URL", gen.ID)
	}

	if err := v.download(ctx, gen.Assets.Video, req.OutputPath); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

func (v *VideoSynthesizer) create(ctx context.Context, genReq generationRequest) (*generation, error) {
	body, err := json.Marshal(genReq)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return v.do(req)
}

func (v *VideoSynthesizer) await(ctx context.Context, id string) (*generation, error) {
	deadline := time.Now().Add(pollTimeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/generations/"+id, nil)
		if err != nil {
			return nil, err
		}
		gen, err := v.do(req)
		if err != nil {
			return nil, err
		}
		switch gen.State {
		case "completed":
			return gen, nil
		case "failed":
			return nil, fmt.Errorf("luma generation failed: %s", gen.FailureReason)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("luma generation timed out after %s (id=%s)", pollTimeout, id)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (v *VideoSynthesizer) do(req *http.Request) (*generation, error) {
	req.Header.Set("Authorization", "Bearer "+v.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("luma api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("luma api: status %d", resp.StatusCode)
	}

	var gen generation
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, fmt.Errorf("decode luma response: %w", err)
	}
	return &gen, nil
}

func (v *VideoSynthesizer) download(ctx context.Context, url, output string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download video: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write video: %w", err)
	}
	return f.Close()
}
