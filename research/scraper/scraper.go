// Package scraper fetches candidate URLs and extracts readable text.
// Web pages are fetched directly (or through an external scraping service
// when configured); PDF and DOCX documents are routed to a converter
// endpoint. Fan-out is bounded by a semaphore and every URL gets its own
// timeout, so one slow host never stalls an iteration.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/smallnest/deepresearch/log"
	"github.com/smallnest/deepresearch/research"
)

const (
	// DefaultConcurrency bounds parallel fetches when not configured.
	DefaultConcurrency = 5
	// DefaultPerURLTimeout is the fetch budget for a single URL.
	DefaultPerURLTimeout = 30 * time.Second
	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 1 << 20

	userAgent = "Mozilla/5.0 (compatible; deepresearch/1.0)"
)

// Scraper implements research.Scraper.
type Scraper struct {
	// ConverterBaseURL is the document conversion endpoint for PDF/DOCX
	// URLs. Empty means document URLs fail with an explanatory error.
	ConverterBaseURL string

	// ScrapeServiceURL is an optional external scraping service for web
	// URLs. Empty means pages are fetched and extracted directly.
	ScrapeServiceURL string

	Concurrency   int
	PerURLTimeout time.Duration
	TopKChunks    int
	HTTPClient    *http.Client
	Logger        log.Logger
}

var _ research.Scraper = (*Scraper)(nil)

// Option configures the scraper.
type Option func(*Scraper)

// WithConverter sets the document converter endpoint.
func WithConverter(baseURL string) Option {
	return func(s *Scraper) { s.ConverterBaseURL = baseURL }
}

// WithScrapeService sets the external web scraping service endpoint.
func WithScrapeService(baseURL string) Option {
	return func(s *Scraper) { s.ScrapeServiceURL = baseURL }
}

// WithConcurrency bounds the fetch fan-out.
func WithConcurrency(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.Concurrency = n
		}
	}
}

// WithPerURLTimeout sets the per-URL fetch budget.
func WithPerURLTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.PerURLTimeout = d
		}
	}
}

// WithTopKChunks sets how many query-relevant chunks are kept per source.
func WithTopKChunks(k int) Option {
	return func(s *Scraper) {
		if k > 0 {
			s.TopKChunks = k
		}
	}
}

// WithLogger sets the scraper's logger.
func WithLogger(l log.Logger) Option {
	return func(s *Scraper) { s.Logger = l }
}

// New creates a scraper with the given options.
func New(opts ...Option) *Scraper {
	s := &Scraper{
		Concurrency:   DefaultConcurrency,
		PerURLTimeout: DefaultPerURLTimeout,
		TopKChunks:    5,
		HTTPClient:    &http.Client{},
		Logger:        log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScrapeAll fetches every URL concurrently and returns one ScrapeResult per
// URL, in input order. It never returns an error; failures are recorded on
// the per-URL records.
func (s *Scraper) ScrapeAll(ctx context.Context, urls []string, query string) []research.ScrapeResult {
	results := make([]research.ScrapeResult, len(urls))
	sem := make(chan struct{}, s.Concurrency)

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = research.ScrapeResult{URL: u, Success: false, Error: "cancelled"}
				return
			}

			results[i] = s.scrapeOne(ctx, u, query)
		}(i, u)
	}
	wg.Wait()

	return results
}

// scrapeOne fetches a single URL with its own timeout.
func (s *Scraper) scrapeOne(ctx context.Context, rawURL, query string) research.ScrapeResult {
	ctx, cancel := context.WithTimeout(ctx, s.PerURLTimeout)
	defer cancel()

	var (
		text, title string
		err         error
	)

	urlType := DetectURLType(rawURL)
	if urlType.isDocument() {
		text, title, err = s.convertDocument(ctx, rawURL)
	} else if s.ScrapeServiceURL != "" {
		text, title, err = s.scrapeViaService(ctx, rawURL)
	} else {
		text, title, err = s.fetchAndExtract(ctx, rawURL)
	}

	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "timeout"
		}
		s.Logger.Warn("scrape failed for %s: %s", rawURL, msg)
		return research.ScrapeResult{URL: rawURL, Success: false, Error: msg}
	}

	if text == "" {
		return research.ScrapeResult{URL: rawURL, Success: false, Error: "no readable content"}
	}

	return research.ScrapeResult{
		URL:              rawURL,
		Success:          true,
		Title:            title,
		ProcessedContent: text,
		RelevantChunks:   rankRelevantChunks(text, query, s.TopKChunks),
	}
}

// fetchAndExtract fetches a web page directly and extracts readable text.
func (s *Scraper) fetchAndExtract(ctx context.Context, rawURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", fmt.Errorf("read body: %w", err)
	}

	return extractReadableTextChecked(string(body))
}

func extractReadableTextChecked(html string) (string, string, error) {
	text, title, err := extractReadableText(html)
	if err != nil {
		return "", "", fmt.Errorf("extract: %w", err)
	}
	return text, title, nil
}

type scrapeServiceResponse struct {
	Success  bool   `json:"success"`
	Markdown string `json:"markdown"`
	Text     string `json:"text"`
	Title    string `json:"title"`
	Error    string `json:"error"`
}

// scrapeViaService delegates web scraping to the configured service.
func (s *Scraper) scrapeViaService(ctx context.Context, rawURL string) (string, string, error) {
	endpoint := fmt.Sprintf("%s?url=%s", s.ScrapeServiceURL, url.QueryEscape(rawURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", fmt.Errorf("scrape service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("scrape service status %d", resp.StatusCode)
	}

	var body scrapeServiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("scrape service decode: %w", err)
	}
	if !body.Success {
		if body.Error != "" {
			return "", "", fmt.Errorf("scrape service: %s", body.Error)
		}
		return "", "", fmt.Errorf("scrape service reported failure")
	}

	text := body.Markdown
	if text == "" {
		text = body.Text
	}
	return text, body.Title, nil
}

type converterResponse struct {
	Text     string         `json:"text"`
	Title    string         `json:"title"`
	Metadata map[string]any `json:"metadata"`
}

// convertDocument routes a PDF/DOCX URL through the converter endpoint.
func (s *Scraper) convertDocument(ctx context.Context, rawURL string) (string, string, error) {
	if s.ConverterBaseURL == "" {
		return "", "", fmt.Errorf("no converter configured for document URL")
	}

	endpoint := fmt.Sprintf("%s?url=%s", s.ConverterBaseURL, url.QueryEscape(rawURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", fmt.Errorf("converter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("converter status %d", resp.StatusCode)
	}

	var body converterResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("converter decode: %w", err)
	}
	return body.Text, body.Title, nil
}
