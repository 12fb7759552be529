package tools

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"zeek-gateway/internal/config"
	"zeek-gateway/internal/models"
	"zeek-gateway/internal/upstream"
)

const (
	searchTimeout = 10 * time.Second

	braveSearchURL = "https://api.search.brave.com/res/v1/web/search"
	duckDuckGoURL  = "https://api.duckduckgo.com/"

	defaultMaxResults = 5
	maxResultsCeiling = 10
)

// Search walks a fixed chain of engines and returns the first source
// yielding at least one result: configured SearXNG instances, Brave when a
// key is present, and finally DuckDuckGo instant answers.
type Search struct {
	client *upstream.Client
	cfg    config.SearchConfig
	bases  []string
}

// NewSearch constructs the search dispatcher.
func NewSearch(client *upstream.Client, cfg config.Config) *Search {
	return &Search{
		client: client,
		cfg:    cfg.Search,
		bases:  cfg.SearxBases(),
	}
}

// ClampMax normalizes the requested result count to the allowed range.
func ClampMax(max int) int {
	if max < 1 || max > maxResultsCeiling {
		return defaultMaxResults
	}
	return max
}

// Run executes the fallback chain for the query. An empty final result set
// is a success, not an error.
func (s *Search) Run(ctx context.Context, q string, max int) (*models.SearchEnvelope, error) {
	max = ClampMax(max)

	for _, base := range s.bases {
		if items := s.searx(ctx, base, q, max); len(items) > 0 {
			return &models.SearchEnvelope{Items: items}, nil
		}
	}

	if s.cfg.BraveAPIKey != "" {
		if items := s.brave(ctx, q, max); len(items) > 0 {
			return &models.SearchEnvelope{Items: items}, nil
		}
	}

	return s.duckDuckGo(ctx, q, max)
}

func (s *Search) searx(ctx context.Context, base, q string, max int) []models.SearchItem {
	query := url.Values{}
	query.Set("q", q)
	query.Set("format", "json")
	query.Set("language", "en")
	query.Set("safesearch", "1")
	query.Set("categories", "general")

	resp, err := s.client.Get(ctx, searchTimeout, base+"/search", query, map[string]string{"Accept": "application/json"})
	if err != nil || resp.Status != http.StatusOK || !resp.IsJSON() {
		return nil
	}

	results := gjson.GetBytes(resp.Body, "results").Array()
	if len(results) > max {
		results = results[:max]
	}

	return lo.Map(results, func(d gjson.Result, _ int) models.SearchItem {
		title := d.Get("title").String()
		if title == "" {
			title = d.Get("url").String()
		}
		snippet := d.Get("content").String()
		if snippet == "" {
			snippet = d.Get("pretty_url").String()
		}
		return models.SearchItem{
			Title:   title,
			URL:     d.Get("url").String(),
			Snippet: snippet,
		}
	})
}

func (s *Search) brave(ctx context.Context, q string, max int) []models.SearchItem {
	query := url.Values{}
	query.Set("q", q)
	query.Set("count", strconv.Itoa(max))

	headers := map[string]string{
		"Accept":               "application/json",
		"X-Subscription-Token": s.cfg.BraveAPIKey,
	}

	resp, err := s.client.Get(ctx, searchTimeout, braveSearchURL, query, headers)
	if err != nil || resp.Status != http.StatusOK || !resp.IsJSON() {
		return nil
	}

	results := gjson.GetBytes(resp.Body, "web.results").Array()
	if len(results) > max {
		results = results[:max]
	}

	return lo.Map(results, func(d gjson.Result, _ int) models.SearchItem {
		title := d.Get("title").String()
		if title == "" {
			title = d.Get("url").String()
		}
		return models.SearchItem{
			Title:   title,
			URL:     d.Get("url").String(),
			Snippet: d.Get("description").String(),
		}
	})
}

// duckDuckGo is the keyless last resort. Zero instant-answer items still
// produce an empty item list rather than an error.
func (s *Search) duckDuckGo(ctx context.Context, q string, max int) (*models.SearchEnvelope, error) {
	query := url.Values{}
	query.Set("q", q)
	query.Set("format", "json")
	query.Set("no_redirect", "1")
	query.Set("no_html", "1")

	resp, err := s.client.Get(ctx, searchTimeout, duckDuckGoURL, query, nil)
	if err != nil {
		return nil, &models.APIError{
			Status:  http.StatusBadGateway,
			Code:    "search_upstream",
			Message: "Search upstream error: " + err.Error(),
		}
	}
	if resp.Status != http.StatusOK {
		return nil, &models.APIError{
			Status:  resp.Status,
			Code:    "search_error",
			Message: "Search failed",
		}
	}

	data := gjson.ParseBytes(resp.Body)
	items := make([]models.SearchItem, 0, max)

	if abstract := data.Get("AbstractText"); abstract.String() != "" && data.Get("AbstractURL").String() != "" {
		title := data.Get("Heading").String()
		if title == "" {
			title = data.Get("AbstractURL").String()
		}
		items = append(items, models.SearchItem{
			Title:   title,
			URL:     data.Get("AbstractURL").String(),
			Snippet: abstract.String(),
		})
	}

	for _, rt := range data.Get("RelatedTopics").Array() {
		if len(items) >= max {
			break
		}
		text, first := rt.Get("Text").String(), rt.Get("FirstURL").String()
		if text == "" || first == "" {
			continue
		}
		title := text
		if len(title) > 80 {
			title = title[:80]
		}
		items = append(items, models.SearchItem{Title: title, URL: first, Snippet: text})
	}

	if len(items) > max {
		items = items[:max]
	}
	return &models.SearchEnvelope{Items: items}, nil
}
