package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"podshorts/blob"
	"podshorts/flow"
	"podshorts/flow/emit"
	"podshorts/flow/store"
	"podshorts/model"
	"podshorts/model/anthropic"
	"podshorts/model/google"
	"podshorts/model/luma"
	"podshorts/model/openai"
	"podshorts/pipeline"
	"podshorts/render"
	"podshorts/trend"
)

// buildService wires the full pipeline from the config file and
// provider API keys in the environment. Every command goes through
// here, so a status check on a fresh process sees the same store a
// previous start wrote to.
func buildService(configPath string) (*pipeline.Service, error) {
	cfg, err := pipeline.Load(configPath)
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	emitter := emit.NewLogEmitter(os.Stderr, cfg.LogJSON)
	metrics := flow.NewPrometheusMetrics(prometheus.NewRegistry())

	stages, err := buildStages(cfg, emitter)
	if err != nil {
		return nil, err
	}

	engine, err := pipeline.BuildGraph(cfg, st, emitter, metrics, stages)
	if err != nil {
		return nil, err
	}

	return pipeline.NewService(engine, cfg), nil
}

func openStore(cfg pipeline.Config) (store.Store[pipeline.PipelineState], error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemStore[pipeline.PipelineState](), nil
	case "sqlite":
		return store.NewSQLiteStore[pipeline.PipelineState](cfg.StoreDSN)
	case "mysql":
		return store.NewMySQLStore[pipeline.PipelineState](cfg.StoreDSN)
	default:
		return nil, fmt.Errorf("unknown store_driver %q (want memory, sqlite, or mysql)", cfg.StoreDriver)
	}
}

func buildStages(cfg pipeline.Config, emitter emit.Emitter) (pipeline.Stages, error) {
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" {
		return pipeline.Stages{}, fmt.Errorf("OPENAI_API_KEY is required")
	}

	ffm := render.NewFFmpeg()
	reasoning := openai.NewChatModel(openaiKey, cfg.ReasoningModel)

	// The creative model writes scripts; prefer Anthropic, then
	// Gemini, then fall back to the reasoning model.
	var creative model.ChatModel = reasoning
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		creative = anthropic.NewChatModel(key, cfg.CreativeModel)
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		gm, err := google.NewChatModel(context.Background(), key, cfg.CreativeModel)
		if err != nil {
			return pipeline.Stages{}, fmt.Errorf("gemini chat model: %w", err)
		}
		creative = gm
	}

	tavily := trend.NewTavily(os.Getenv("TAVILY_API_KEY"))
	sources := []trend.Source{tavily, trend.NewGoogleTrends(cfg.TrendGeo)}

	// Hook videos are optional; without a Luma key the assembler
	// skips them and the hook scene falls back to its image.
	var video model.VideoSynthesizer
	if key := os.Getenv("LUMA_API_KEY"); key != "" {
		video = luma.NewVideoSynthesizer(key)
	}

	var publishStore blob.Store
	if conn := os.Getenv("AZURE_STORAGE_CONNECTION_STRING"); conn != "" {
		azStore, err := blob.NewAzureStore(conn, cfg.BlobContainer)
		if err != nil {
			return pipeline.Stages{}, fmt.Errorf("azure blob store: %w", err)
		}
		publishStore = azStore
	} else {
		publishStore = blob.NewFileStore(filepath.Join(cfg.OutputDir, "published"))
	}

	return pipeline.Stages{
		Research: &pipeline.ResearchStage{
			Chat:      reasoning,
			Sources:   sources,
			Threshold: cfg.QualityThreshold,
		},
		Draft: &pipeline.DraftStage{
			Creative:  creative,
			Reasoning: reasoning,
			News:      tavily,
			Roster:    cfg.Roster,
			Threshold: cfg.QualityThreshold,
			OutputDir: cfg.OutputDir,
		},
		Media: &pipeline.MediaStage{
			Speech: openai.NewSpeechSynthesizer(openaiKey, ffm),
			Image:  openai.NewImageSynthesizer(openaiKey),
			Prober: ffm,
			Joiner: ffm,
			Chat:   reasoning,
			Cfg:    cfg,
		},
		Assemble: &pipeline.AssembleStage{
			Transcriber: openai.NewTranscriber(openaiKey),
			Video:       video,
			Renderer:    ffm,
			Cfg:         cfg,
		},
		Publish: &pipeline.PublishStage{
			Store:   publishStore,
			Emitter: emitter,
		},
	}, nil
}

// printStatus writes one run's status as indented JSON.
func printStatus(w io.Writer, st pipeline.RunStatus) error {
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}
