package pipeline

import (
	"context"
	"path"

	"podshorts/blob"
	"podshorts/flow"
	"podshorts/flow/emit"
)

// PublishStage uploads the final artifacts to the blob store and swaps
// the local paths for durable URLs. Publishing is best effort: with no
// store configured it skips, and an upload failure never fails the run
// because the local files remain valid.
type PublishStage struct {
	Store   blob.Store
	Emitter emit.Emitter
}

func (p *PublishStage) Run(ctx context.Context, state PipelineState) flow.NodeResult[PipelineState] {
	done := flow.NodeResult[PipelineState]{Route: flow.Stop()}

	if p.Store == nil {
		p.emit(state.RunID, "publish_skipped", map[string]any{"reason": "no blob store configured"})
		return done
	}
	if state.EditorOutput == nil {
		p.emit(state.RunID, "publish_skipped", map[string]any{"reason": "no editor output"})
		return done
	}

	out := *state.EditorOutput
	uploads := []struct {
		local *string
		name  string
	}{
		{&out.FinalVideoPath, "final_video"},
		{&out.CaptionSRTPath, "captions"},
		{&out.ThumbnailPath, "thumbnail"},
	}

	for _, up := range uploads {
		if *up.local == "" {
			continue
		}
		key := state.RunID + "/" + path.Base(*up.local)
		url, err := p.Store.Upload(ctx, key, *up.local)
		if err != nil {
			p.emit(state.RunID, "publish_failed", map[string]any{
				"artifact": up.name,
				"error":    err.Error(),
			})
			return done
		}
		*up.local = url
	}

	p.emit(state.RunID, "publish_complete", map[string]any{
		"video_url": out.FinalVideoPath,
	})
	return flow.NodeResult[PipelineState]{
		Delta: PipelineState{EditorOutput: &out},
		Route: flow.Stop(),
	}
}

func (p *PublishStage) emit(runID, msg string, meta map[string]any) {
	if p.Emitter == nil {
		return
	}
	p.Emitter.Emit(emit.Event{RunID: runID, NodeID: StagePublish, Msg: msg, Meta: meta})
}
