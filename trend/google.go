package trend

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const googleTrendsRSS = "https://trends.google.com/trending/rss?geo=%s"

// GoogleTrends reads the daily trending-searches RSS feed for a
// region.
type GoogleTrends struct {
	geo     string
	client  *http.Client
	feedURL string
}

// NewGoogleTrends creates a feed reader for the given region code
// (e.g. "US", "KR").
func NewGoogleTrends(geo string) *GoogleTrends {
	if geo == "" {
		geo = "US"
	}
	return &GoogleTrends{
		geo:     geo,
		client:  &http.Client{Timeout: 10 * time.Second},
		feedURL: googleTrendsRSS,
	}
}

func (g *GoogleTrends) Name() string { return "google_trends" }

type trendsFeed struct {
	Items []struct {
		Title string `xml:"title"`
	} `xml:"channel>item"`
}

// Fetch returns the currently trending search keywords. Errors degrade
// to an empty result so the remaining sources can carry the attempt.
func (g *GoogleTrends) Fetch(ctx context.Context) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(g.feedURL, g.geo), nil)
	if err != nil {
		return nil, nil
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var feed trendsFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, nil
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		if kw := strings.TrimSpace(it.Title); kw != "" {
			items = append(items, Item{Keyword: kw})
		}
	}
	return items, nil
}
