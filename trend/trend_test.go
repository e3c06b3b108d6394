package trend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTavily(t *testing.T) {
	ctx := context.Background()

	t.Run("fetch merges queries and dedupes by URL", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req tavilyRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad request body: %v", err)
			}
			if req.APIKey != "key" || req.Topic != "news" {
				t.Errorf("unexpected request: %+v", req)
			}

			// Both queries return the shared story; each adds one of
			// its own.
			own := "https://example.com/" + req.Query
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]string{
					{"title": "Shared story", "url": "https://example.com/shared", "content": "s"},
					{"title": "Own story", "url": own, "content": "o"},
				},
			})
		}))
		defer srv.Close()

		tav := NewTavily("key", "q1", "q2")
		tav.endpoint = srv.URL

		items, err := tav.Fetch(ctx)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("expected 3 deduplicated items, got %d: %+v", len(items), items)
		}
		seen := map[string]bool{}
		for _, it := range items {
			if seen[it.URL] {
				t.Errorf("duplicate URL survived: %s", it.URL)
			}
			seen[it.URL] = true
			if it.Keyword == "" || it.Snippet == "" {
				t.Errorf("item fields not mapped: %+v", it)
			}
		}
	})

	t.Run("fetch without key degrades to empty", func(t *testing.T) {
		items, err := NewTavily("").Fetch(ctx)
		if err != nil || items != nil {
			t.Errorf("expected (nil, nil), got (%v, %v)", items, err)
		}
	})

	t.Run("fetch swallows provider errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "over quota", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		tav := NewTavily("key")
		tav.endpoint = srv.URL

		items, err := tav.Fetch(ctx)
		if err != nil {
			t.Fatalf("Fetch must not propagate provider errors, got %v", err)
		}
		if len(items) != 0 {
			t.Errorf("expected no items, got %+v", items)
		}
	})

	t.Run("search without key is an error", func(t *testing.T) {
		if _, err := NewTavily("").Search(ctx, "ai", 5); err == nil {
			t.Error("expected error for missing key")
		}
	})

	t.Run("search propagates provider errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		tav := NewTavily("key")
		tav.endpoint = srv.URL

		if _, err := tav.Search(ctx, "ai", 5); err == nil {
			t.Error("expected error from failing provider")
		}
	})
}

func TestGoogleTrends(t *testing.T) {
	ctx := context.Background()

	t.Run("parses feed titles into keywords", func(t *testing.T) {
		const feed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item><title>solar eclipse</title></item>
<item><title>  ai chips  </title></item>
<item><title></title></item>
</channel></rss>`

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("geo"); got != "KR" {
				t.Errorf("geo = %q, want KR", got)
			}
			w.Write([]byte(feed))
		}))
		defer srv.Close()

		g := NewGoogleTrends("KR")
		g.feedURL = srv.URL + "/trending/rss?geo=%s"

		items, err := g.Fetch(ctx)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 keywords, got %+v", items)
		}
		if items[0].Keyword != "solar eclipse" || items[1].Keyword != "ai chips" {
			t.Errorf("keywords not trimmed or ordered: %+v", items)
		}
	})

	t.Run("feed errors degrade to empty", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		g := NewGoogleTrends("US")
		g.feedURL = srv.URL + "?geo=%s"

		items, err := g.Fetch(ctx)
		if err != nil || items != nil {
			t.Errorf("expected (nil, nil), got (%v, %v)", items, err)
		}
	})
}
