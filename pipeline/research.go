package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"podshorts/flow"
	"podshorts/model"
	"podshorts/trend"
)

const researchAnalysisSystem = `You are a trend analysis expert. Analyze the given raw trend data,
explain why each keyword is trending, and recommend the topic best
suited for a short-form podcast episode (1-3 minutes).

Evaluation criteria:
- Public interest and buzz
- How engaging the topic is in short-form podcast format
- Whether there is enough context and story material
- Whether the topic can be compressed into 1-3 minutes

Categories: technology, entertainment, society, economy, sports,
politics, culture, science, health, education.

Respond with a JSON object:
{
  "analyses": [
    {"keyword": "...", "why_trending": "...", "summary": "...",
     "source": "...", "category": "...", "relevance_score": 0.0}
  ],
  "recommended_topic": "...",
  "recommended_category": "...",
  "reasoning": "..."
}`

const researchQualitySystem = `You are the quality evaluator of a short-form podcast pipeline.
Judge whether this trend analysis is good enough to hand to the
scriptwriter.

Evaluation criteria:
- Is the recommended topic actually trending and likely to draw interest
- Does the analysis include enough context and background
- Is there enough material for a 1-3 minute script

Respond with a JSON object: {"score": 0.0, "feedback": "..."}`

// trendAnalysis is the shape the analysis call must return.
type trendAnalysis struct {
	Analyses []struct {
		Keyword        string  `json:"keyword"`
		WhyTrending    string  `json:"why_trending"`
		Summary        string  `json:"summary"`
		Source         string  `json:"source"`
		Category       string  `json:"category"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"analyses"`
	RecommendedTopic    string `json:"recommended_topic"`
	RecommendedCategory string `json:"recommended_category"`
	Reasoning           string `json:"reasoning"`
}

// qualityEvaluation is the shape every self-evaluation call returns.
type qualityEvaluation struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// ResearchStage pulls trending topics from the configured sources,
// analyzes them with the reasoning model, and filters by the owner's
// preferred categories.
type ResearchStage struct {
	Chat      model.ChatModel
	Sources   []trend.Source
	Threshold float64
}

func (r *ResearchStage) Run(ctx context.Context, state PipelineState) flow.NodeResult[PipelineState] {
	attempt := state.RetryCounts[StageResearch] + 1

	trend, quality, err := r.research(ctx, state, attempt)
	if err != nil {
		trend = &TrendData{
			Keywords:       []string{},
			TopicSummaries: []TopicSummary{},
		}
		quality = &QualityAssessment{
			Stage:    StageResearch,
			Passed:   false,
			Score:    0.0,
			Feedback: fmt.Sprintf("Trend research failed: %v. Will retry.", err),
			Attempt:  attempt,
		}
	}

	return flow.NodeResult[PipelineState]{
		Delta: PipelineState{
			TrendData:   trend,
			Quality:     quality,
			RetryCounts: map[string]int{StageResearch: attempt},
		},
	}
}

func (r *ResearchStage) research(ctx context.Context, state PipelineState, attempt int) (*TrendData, *QualityAssessment, error) {
	raw, err := r.collect(ctx)
	if err != nil {
		return nil, nil, err
	}

	analysis, err := r.analyze(ctx, raw)
	if err != nil {
		return nil, nil, err
	}
	if len(analysis.Analyses) == 0 {
		return nil, nil, fmt.Errorf("analysis returned no keywords")
	}

	filterByCategories(analysis, state.Preferences.Categories)

	trend := &TrendData{
		SelectedTopic: analysis.RecommendedTopic,
		Category:      analysis.RecommendedCategory,
	}
	for _, a := range analysis.Analyses {
		trend.Keywords = append(trend.Keywords, a.Keyword)
		trend.TopicSummaries = append(trend.TopicSummaries, TopicSummary{
			Keyword:       a.Keyword,
			Summary:       strings.TrimSpace(a.WhyTrending + " " + a.Summary),
			Source:        a.Source,
			TrendingScore: a.RelevanceScore,
		})
	}

	score, feedback, err := r.evaluate(ctx, analysis)
	if err != nil {
		return nil, nil, err
	}

	quality := &QualityAssessment{
		Stage:    StageResearch,
		Passed:   score >= r.Threshold,
		Score:    score,
		Feedback: feedback,
		Attempt:  attempt,
	}
	return trend, quality, nil
}

type sourceResult struct {
	Name  string
	Items []trend.Item
}

// collect fetches every source in parallel. A single failing source
// fails the attempt; the retry budget absorbs transient outages.
func (r *ResearchStage) collect(ctx context.Context) ([]sourceResult, error) {
	results := make([]sourceResult, len(r.Sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range r.Sources {
		g.Go(func() error {
			items, err := src.Fetch(gctx)
			if err != nil {
				return fmt.Errorf("source %s: %w", src.Name(), err)
			}
			results[i] = sourceResult{Name: src.Name(), Items: items}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, res := range results {
		total += len(res.Items)
	}
	if total == 0 {
		return nil, fmt.Errorf("all trend sources returned empty results")
	}
	return results, nil
}

func (r *ResearchStage) analyze(ctx context.Context, raw []sourceResult) (*trendAnalysis, error) {
	var sb strings.Builder
	sb.WriteString("Below is today's raw trend data. Analyze each keyword and recommend the best topic for a short-form podcast.\n")
	for _, res := range raw {
		fmt.Fprintf(&sb, "\n## %s\n", res.Name)
		if len(res.Items) == 0 {
			sb.WriteString("(no results)\n")
			continue
		}
		for _, item := range res.Items {
			if item.Title != "" {
				snippet := item.Snippet
				if len(snippet) > 200 {
					snippet = snippet[:200]
				}
				fmt.Fprintf(&sb, "- [%s](%s): %s\n", item.Title, item.URL, snippet)
			} else {
				fmt.Fprintf(&sb, "- %s\n", item.Keyword)
			}
		}
	}

	out, err := r.Chat.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: researchAnalysisSystem},
		{Role: model.RoleUser, Content: sb.String()},
	}, model.ChatOptions{Temperature: 0.3, JSONOutput: true})
	if err != nil {
		return nil, fmt.Errorf("trend analysis: %w", err)
	}

	var analysis trendAnalysis
	if err := json.Unmarshal([]byte(out.Text), &analysis); err != nil {
		return nil, fmt.Errorf("decode trend analysis: %w", err)
	}
	return &analysis, nil
}

// filterByCategories narrows the analysis to the owner's preferred
// categories and re-picks the recommendation from the filtered set.
// When nothing matches, the full result stands.
func filterByCategories(analysis *trendAnalysis, categories []string) {
	if len(categories) == 0 {
		return
	}
	preferred := make(map[string]bool, len(categories))
	for _, c := range categories {
		preferred[c] = true
	}

	filtered := analysis.Analyses[:0:0]
	for _, a := range analysis.Analyses {
		if preferred[a.Category] {
			filtered = append(filtered, a)
		}
	}
	if len(filtered) == 0 {
		return
	}

	best := filtered[0]
	for _, a := range filtered[1:] {
		if a.RelevanceScore > best.RelevanceScore {
			best = a
		}
	}
	analysis.Analyses = filtered
	analysis.RecommendedTopic = best.Keyword
	analysis.RecommendedCategory = best.Category
}

func (r *ResearchStage) evaluate(ctx context.Context, analysis *trendAnalysis) (float64, string, error) {
	var sb strings.Builder
	sb.WriteString("Evaluate the quality of this trend analysis.\n\n")
	fmt.Fprintf(&sb, "Recommended topic: %s\n", analysis.RecommendedTopic)
	fmt.Fprintf(&sb, "Category: %s\n", analysis.RecommendedCategory)
	fmt.Fprintf(&sb, "Reasoning: %s\n\nPer-keyword analysis:\n", analysis.Reasoning)
	for _, a := range analysis.Analyses {
		fmt.Fprintf(&sb, "- %s (%s, relevance: %.2f): %s\n", a.Keyword, a.Category, a.RelevanceScore, a.WhyTrending)
	}

	out, err := r.Chat.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: researchQualitySystem},
		{Role: model.RoleUser, Content: sb.String()},
	}, model.ChatOptions{JSONOutput: true})
	if err != nil {
		return 0, "", fmt.Errorf("quality evaluation: %w", err)
	}

	var eval qualityEvaluation
	if err := json.Unmarshal([]byte(out.Text), &eval); err != nil {
		return 0, "", fmt.Errorf("decode quality evaluation: %w", err)
	}
	return eval.Score, eval.Feedback, nil
}
