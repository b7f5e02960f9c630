// Package search provides web search clients for the research loop. Tavily
// is the primary engine; Brave is available as an alternative. Both return
// ranked research.SearchResult records capped at 10 per call.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/smallnest/deepresearch/research"
)

// DefaultMaxResults caps results per search call.
const DefaultMaxResults = 10

// TavilyClient queries the Tavily search API.
type TavilyClient struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	HTTPClient *http.Client
}

var _ research.SearchClient = (*TavilyClient)(nil)

// TavilyOption configures the Tavily client.
type TavilyOption func(*TavilyClient)

// WithTavilyBaseURL overrides the API endpoint, mainly for tests.
func WithTavilyBaseURL(baseURL string) TavilyOption {
	return func(c *TavilyClient) {
		c.BaseURL = baseURL
	}
}

// WithTavilyMaxResults sets the per-call result cap (1-20).
func WithTavilyMaxResults(n int) TavilyOption {
	return func(c *TavilyClient) {
		if n < 1 {
			n = 1
		}
		if n > 20 {
			n = 20
		}
		c.MaxResults = n
	}
}

// NewTavilyClient creates a Tavily search client. If apiKey is empty, it
// tries the TAVILY_API_KEY environment variable.
func NewTavilyClient(apiKey string, opts ...TavilyOption) (*TavilyClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("TAVILY_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("TAVILY_API_KEY not set")
	}

	c := &TavilyClient{
		APIKey:     apiKey,
		BaseURL:    "https://api.tavily.com/search",
		MaxResults: DefaultMaxResults,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type tavilyResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
	Answer  string         `json:"answer"`
}

// SearchWeb executes a single search query.
func (c *TavilyClient) SearchWeb(ctx context.Context, query string) ([]research.SearchResult, error) {
	reqBody := map[string]any{
		"api_key":      c.APIKey,
		"query":        query,
		"search_depth": "basic",
		"max_results":  c.MaxResults,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("tavily: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily: api status %d", resp.StatusCode)
	}

	var body tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	results := make([]research.SearchResult, 0, len(body.Results))
	for _, r := range body.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, research.SearchResult{
			URL:           r.URL,
			Title:         r.Title,
			Snippet:       r.Content,
			PublishedDate: r.PublishedDate,
			Source:        "tavily",
			Relevance:     r.Score,
		})
		if len(results) >= c.MaxResults {
			break
		}
	}
	return results, nil
}
