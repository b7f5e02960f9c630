package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTavilySearchWeb(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cap theorem", req["query"])

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "CAP theorem", "url": "https://en.wikipedia.org/wiki/CAP_theorem", "content": "In theoretical computer science...", "score": 0.97},
				{"title": "Brewer's conjecture", "url": "https://example.com/brewer", "content": "The conjecture...", "score": 0.8},
				{"title": "missing url", "url": "", "content": "dropped"},
			},
		})
	}))
	defer server.Close()

	client, err := NewTavilyClient("test-key", WithTavilyBaseURL(server.URL))
	require.NoError(t, err)

	results, err := client.SearchWeb(context.Background(), "cap theorem")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://en.wikipedia.org/wiki/CAP_theorem", results[0].URL)
	assert.Equal(t, "tavily", results[0].Source)
	assert.InDelta(t, 0.97, results[0].Relevance, 1e-9)
}

func TestTavilySearchWebCapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var results []map[string]any
		for i := 0; i < 25; i++ {
			results = append(results, map[string]any{
				"title": "t", "url": "https://example.com/" + string(rune('a'+i)), "content": "c",
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer server.Close()

	client, err := NewTavilyClient("test-key", WithTavilyBaseURL(server.URL), WithTavilyMaxResults(3))
	require.NoError(t, err)

	results, err := client.SearchWeb(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestTavilySearchWebAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewTavilyClient("test-key", WithTavilyBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.SearchWeb(context.Background(), "q")
	assert.ErrorContains(t, err, "status 429")
}

func TestNewTavilyClientRequiresKey(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")
	_, err := NewTavilyClient("")
	assert.Error(t, err)
}

func TestBraveSearchWeb(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "raft consensus", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.Header.Get("X-Subscription-Token"))

		json.NewEncoder(w).Encode(map[string]any{
			"web": map[string]any{
				"results": []map[string]any{
					{"title": "Raft", "url": "https://raft.github.io", "description": "An understandable consensus algorithm"},
				},
			},
		})
	}))
	defer server.Close()

	client, err := NewBraveClient("test-key", WithBraveBaseURL(server.URL))
	require.NoError(t, err)

	results, err := client.SearchWeb(context.Background(), "raft consensus")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://raft.github.io", results[0].URL)
	assert.Equal(t, "brave", results[0].Source)
}

func TestBraveSearchWebAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewBraveClient("bad-key", WithBraveBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.SearchWeb(context.Background(), "q")
	assert.ErrorContains(t, err, "status 401")
}
