// Package trend supplies raw trending material: keyword feeds and news
// search results the research stage analyzes.
package trend

import "context"

// Item is one raw result. News-style sources fill Title/URL/Snippet;
// keyword feeds fill only Keyword.
type Item struct {
	Keyword string `json:"keyword"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Source supplies trending material for analysis. Sources degrade
// gracefully: a provider outage yields an empty result, not an error,
// so the pipeline can proceed on the remaining sources.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Item, error)
}

// Searcher finds recent coverage of a specific topic.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Item, error)
}
