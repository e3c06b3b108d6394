package pipeline

import (
	"context"
	"fmt"

	"podshorts/flow"
	"podshorts/flow/emit"
	"podshorts/flow/store"
)

// Stages holds the five generator-backed nodes. Tests substitute
// scripted fakes here; the gates and the terminal node are fixed.
type Stages struct {
	Research flow.Node[PipelineState]
	Draft    flow.Node[PipelineState]
	Media    flow.Node[PipelineState]
	Assemble flow.Node[PipelineState]
	Publish  flow.Node[PipelineState]
}

// BuildGraph assembles the fixed pipeline topology on a flow engine:
//
//	research → topic_gate → speaker_gate → draft → review_gate →
//	audio_choice_gate → media → hook_gate → assemble → publish
//
// Quality-gated stages route through Decide; gates route through
// their Resume. The failed node terminates exhausted runs.
func BuildGraph(cfg Config, st store.Store[PipelineState], emitter emit.Emitter, metrics *flow.PrometheusMetrics, stages Stages) (*flow.Engine[PipelineState], error) {
	engine := flow.New(Reduce, st, emitter, flow.Options{MaxSteps: cfg.MaxSteps})
	if metrics != nil {
		engine.WithMetrics(metrics)
	}

	nodes := map[string]flow.Node[PipelineState]{
		StageResearch:        stages.Research,
		StageTopicGate:       &TopicGate{},
		StageSpeakerGate:     &SpeakerGate{Roster: cfg.Roster, DefaultHost: cfg.DefaultHost},
		StageDraft:           stages.Draft,
		StageReviewGate:      &ReviewGate{},
		StageAudioChoiceGate: &AudioChoiceGate{},
		StageMedia:           stages.Media,
		StageHookGate:        &HookGate{},
		StageAssemble:        stages.Assemble,
		StagePublish:         stages.Publish,
		StageFailed:          flow.NodeFunc[PipelineState](failRun),
	}
	for id, node := range nodes {
		if node == nil {
			return nil, fmt.Errorf("stage %s has no node", id)
		}
		if err := engine.Add(id, node); err != nil {
			return nil, err
		}
	}

	// Each quality-gated stage carries forward, retries itself, or
	// fails out, in that edge order.
	for _, stage := range []string{StageResearch, StageDraft, StageMedia, StageAssemble} {
		if err := connectGated(engine, cfg, stage); err != nil {
			return nil, err
		}
	}

	if err := engine.StartAt(StageResearch); err != nil {
		return nil, err
	}
	return engine, nil
}

func connectGated(engine *flow.Engine[PipelineState], cfg Config, stage string) error {
	next := successor[stage]
	targets := []string{next, stage}
	exhausted := Decide(stage, &QualityAssessment{}, map[string]int{stage: cfg.MaxRetries}, cfg.MaxRetries)
	if exhausted != next {
		targets = append(targets, exhausted)
	}
	for _, to := range targets {
		if err := engine.Connect(stage, to, routesTo(cfg, stage, to)); err != nil {
			return err
		}
	}
	return nil
}

func routesTo(cfg Config, stage, to string) flow.Predicate[PipelineState] {
	return func(s PipelineState) bool {
		return Decide(stage, s.Quality, s.RetryCounts, cfg.MaxRetries) == to
	}
}

// failRun records why the run ended and stops it.
func failRun(ctx context.Context, state PipelineState) flow.NodeResult[PipelineState] {
	msg := "retry budget exhausted"
	if state.Quality != nil {
		msg = fmt.Sprintf("stage %s exhausted its retry budget: %s", state.Quality.Stage, state.Quality.Feedback)
	}
	return flow.NodeResult[PipelineState]{
		Delta: PipelineState{Error: msg},
		Route: flow.Stop(),
	}
}
