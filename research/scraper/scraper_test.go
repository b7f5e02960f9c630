package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Consensus Algorithms</title></head>
<body>
<nav>home | about</nav>
<h1>Consensus Algorithms</h1>
<p>Raft is a consensus algorithm designed to be understandable. It separates leader election from log replication.</p>
<p>Paxos is an older family of protocols for solving consensus in a network of unreliable processors.</p>
<script>trackVisitor();</script>
<footer>copyright</footer>
</body>
</html>`

func TestDetectURLType(t *testing.T) {
	tests := []struct {
		url  string
		want URLType
	}{
		{"https://example.com/paper.pdf", TypePDF},
		{"https://example.com/paper.PDF", TypePDF},
		{"https://arxiv.org/pdf/2104.01234", TypePDF},
		{"https://example.com/report.docx", TypeDOCX},
		{"https://example.com/page.html", TypeHTML},
		{"https://example.com/article", TypeWeb},
		{"://bad", TypeWeb},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectURLType(tt.url), "url %s", tt.url)
	}
}

func TestScrapeAllExtractsReadableText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	s := New(WithTopKChunks(2))
	results := s.ScrapeAll(context.Background(), []string{server.URL}, "raft leader election")

	require.Len(t, results, 1)
	r := results[0]
	require.True(t, r.Success, "error: %s", r.Error)
	assert.Equal(t, "Consensus Algorithms", r.Title)
	assert.Contains(t, r.ProcessedContent, "leader election")
	assert.NotContains(t, r.ProcessedContent, "trackVisitor")
	require.NotEmpty(t, r.RelevantChunks)
	assert.Contains(t, r.RelevantChunks[0], "Raft")
}

func TestScrapeAllPerURLTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(samplePage))
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer fast.Close()

	s := New(WithPerURLTimeout(50 * time.Millisecond))
	results := s.ScrapeAll(context.Background(), []string{slow.URL, fast.URL}, "q")

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Equal(t, "timeout", results[0].Error)
	assert.Empty(t, results[0].ProcessedContent)
	assert.True(t, results[1].Success)
}

func TestScrapeAllBoundsConcurrency(t *testing.T) {
	var inFlight, peak int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	urls := make([]string, 8)
	for i := range urls {
		urls[i] = server.URL + "/" + string(rune('a'+i))
	}

	s := New(WithConcurrency(2))
	s.ScrapeAll(context.Background(), urls, "q")

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestScrapeAllHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	s := New()
	results := s.ScrapeAll(context.Background(), []string{server.URL}, "q")

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "403")
}

func TestScrapeRoutesDocumentsToConverter(t *testing.T) {
	converter := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://example.com/paper.pdf", r.URL.Query().Get("url"))
		json.NewEncoder(w).Encode(map[string]any{
			"text":  "Extracted PDF body with enough text to index.",
			"title": "A Paper",
		})
	}))
	defer converter.Close()

	s := New(WithConverter(converter.URL))
	results := s.ScrapeAll(context.Background(), []string{"https://example.com/paper.pdf"}, "q")

	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	assert.Equal(t, "A Paper", results[0].Title)
	assert.Contains(t, results[0].ProcessedContent, "Extracted PDF body")
}

func TestScrapeDocumentWithoutConverterFails(t *testing.T) {
	s := New()
	results := s.ScrapeAll(context.Background(), []string{"https://example.com/paper.pdf"}, "q")

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "converter")
}

func TestScrapeViaService(t *testing.T) {
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success":  true,
			"markdown": "# Page\n\nService-extracted content.",
			"title":    "Page",
		})
	}))
	defer service.Close()

	s := New(WithScrapeService(service.URL))
	results := s.ScrapeAll(context.Background(), []string{"https://example.com/article"}, "q")

	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	assert.Contains(t, results[0].ProcessedContent, "Service-extracted content")
}

func TestRankRelevantChunks(t *testing.T) {
	content := "Alpha paragraph about databases and consistency guarantees in distributed systems.\n\n" +
		"Beta paragraph about cooking recipes and seasonal ingredients for the home chef.\n\n" +
		"Gamma paragraph about consistency models, quorum reads and distributed consensus."

	chunks := rankRelevantChunks(content, "distributed consistency", 2)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "Alpha")
	assert.Contains(t, chunks[1], "Gamma")
	for _, c := range chunks {
		assert.NotContains(t, c, "cooking")
	}
}
