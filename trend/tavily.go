package trend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily queries the Tavily search API. It doubles as a trend Source
// (fixed news queries) and a Searcher (topic lookups for the draft).
type Tavily struct {
	apiKey   string
	client   *http.Client
	queries  []string
	endpoint string
}

// NewTavily creates a client. queries are the fixed searches Fetch
// runs; when empty a default news-trend pair is used.
func NewTavily(apiKey string, queries ...string) *Tavily {
	if len(queries) == 0 {
		queries = []string{"today's trending topics", "today's popular news stories"}
	}
	return &Tavily{
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
		queries:  queries,
		endpoint: tavilyEndpoint,
	}
}

func (t *Tavily) Name() string { return "tavily" }

// Fetch runs the configured queries in parallel and deduplicates by
// URL. Errors degrade to an empty result.
func (t *Tavily) Fetch(ctx context.Context) ([]Item, error) {
	if t.apiKey == "" {
		return nil, nil
	}

	batches := make([][]Item, len(t.queries))
	var wg sync.WaitGroup
	for i, q := range t.queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := t.search(ctx, q, "news", 5)
			if err == nil {
				batches[i] = items
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	var items []Item
	for _, batch := range batches {
		for _, item := range batch {
			if seen[item.URL] {
				continue
			}
			seen[item.URL] = true
			items = append(items, item)
		}
	}
	return items, nil
}

// Search implements Searcher for topic-specific news lookups.
func (t *Tavily) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("tavily: no api key configured")
	}
	return t.search(ctx, query, "general", limit)
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	Topic       string `json:"topic"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (t *Tavily) search(ctx context.Context, query, topic string, limit int) ([]Item, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:      t.apiKey,
		Query:       query,
		Topic:       topic,
		MaxResults:  limit,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily search: status %d", resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	items := make([]Item, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		items = append(items, Item{Title: r.Title, URL: r.URL, Snippet: r.Content, Keyword: r.Title})
	}
	return items, nil
}
