package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFirecrawl points a client with tight poll settings at srv.
func newTestFirecrawl(srv *httptest.Server) *FirecrawlClient {
	c := NewFirecrawlClient("test-key")
	c.BaseURL = srv.URL
	c.PollInterval = time.Millisecond
	c.MaxPollAttempts = 5
	return c
}

func TestFirecrawl_CompletedJob(t *testing.T) {
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/crawl":
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "https://docs.example.com", req["url"])
			assert.NotNil(t, req["scrapeOptions"])

			json.NewEncoder(w).Encode(map[string]string{"id": "job-1"})

		case r.Method == http.MethodGet && r.URL.Path == "/crawl/job-1":
			if polls.Add(1) < 3 {
				json.NewEncoder(w).Encode(map[string]any{"status": "scraping"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status": "completed",
				"data": []map[string]string{
					{"url": "https://docs.example.com/a", "markdown": "# Page A"},
					{"url": "https://docs.example.com/b", "markdown": "# Page B"},
				},
			})

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	pages, err := newTestFirecrawl(srv).Crawl(context.Background(), "https://docs.example.com")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "# Page A", pages[0].Markdown)
	assert.GreaterOrEqual(t, polls.Load(), int64(3), "client must poll until completion")
}

func TestFirecrawl_FailedJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"id": "job-2"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "failed", "error": "blocked by robots.txt"})
	}))
	defer srv.Close()

	_, err := newTestFirecrawl(srv).Crawl(context.Background(), "https://docs.example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCrawlFailed))
}

func TestFirecrawl_PollCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"id": "job-3"})
			return
		}
		// Never completes.
		json.NewEncoder(w).Encode(map[string]any{"status": "queued"})
	}))
	defer srv.Close()

	_, err := newTestFirecrawl(srv).Crawl(context.Background(), "https://docs.example.com")
	require.Error(t, err, "a stuck job must hit the poll ceiling, not block forever")
	assert.True(t, errors.Is(err, ErrCrawlFailed))
	assert.Contains(t, err.Error(), "did not complete")
}

func TestFirecrawl_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"id": "job-4"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "completed", "data": []any{}})
	}))
	defer srv.Close()

	_, err := newTestFirecrawl(srv).Crawl(context.Background(), "https://docs.example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCrawlFailed))
}

func TestFirecrawl_MissingCredential(t *testing.T) {
	c := NewFirecrawlClient("")
	_, err := c.Crawl(context.Background(), "https://docs.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credential")
}
