package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
)

const (
	defaultFirecrawlBase = "https://api.firecrawl.dev/v1"

	// The docs crawl is long-running: poll on a fixed interval with a
	// hard attempt ceiling (~5 minutes) so a stuck job can never block
	// the action forever.
	defaultPollInterval    = 5 * time.Second
	defaultMaxPollAttempts = 60

	// defaultPageLimit bounds how many documentation pages one crawl
	// job may scrape.
	defaultPageLimit = 50
)

// ErrCrawlFailed is returned when the provider reports the job failed
// or produced no pages.
var ErrCrawlFailed = errors.New("documentation crawl failed")

// CrawledPage is one scraped documentation page.
type CrawledPage struct {
	URL      string
	Markdown string
}

// FirecrawlClient speaks the crawl provider's submit-then-poll
// protocol: POST /crawl returns a job id, GET /crawl/{id} is polled
// until the job completes or fails.
type FirecrawlClient struct {
	BaseURL string
	APIKey  string

	PollInterval    time.Duration
	MaxPollAttempts uint64

	client *http.Client
}

// NewFirecrawlClient creates a client. An empty apiKey is allowed;
// Crawl will fail fast, and callers degrade the feature gracefully.
func NewFirecrawlClient(apiKey string) *FirecrawlClient {
	return &FirecrawlClient{
		BaseURL:         defaultFirecrawlBase,
		APIKey:          apiKey,
		PollInterval:    defaultPollInterval,
		MaxPollAttempts: defaultMaxPollAttempts,
		client:          &http.Client{Timeout: 30 * time.Second},
	}
}

// crawlRequest is the job submission payload.
type crawlRequest struct {
	URL           string        `json:"url"`
	Limit         int           `json:"limit"`
	ScrapeOptions scrapeOptions `json:"scrapeOptions"`
	IncludePaths  []string      `json:"includePaths,omitempty"`
	ExcludePaths  []string      `json:"excludePaths,omitempty"`
}

type scrapeOptions struct {
	Formats []string `json:"formats"`
}

// Crawl submits a documentation crawl for url and blocks until the job
// completes, fails, or the poll ceiling is reached.
func (c *FirecrawlClient) Crawl(ctx context.Context, url string) ([]CrawledPage, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("firecrawl credential not configured")
	}

	jobID, err := c.submit(ctx, url)
	if err != nil {
		return nil, err
	}

	pages, err := c.awaitJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: job %s returned no pages", ErrCrawlFailed, jobID)
	}
	return pages, nil
}

func (c *FirecrawlClient) submit(ctx context.Context, url string) (string, error) {
	payload, err := json.Marshal(crawlRequest{
		URL:           url,
		Limit:         defaultPageLimit,
		ScrapeOptions: scrapeOptions{Formats: []string{"markdown"}},
		// Keep the crawl on documentation-like sections and away from
		// marketing pages.
		IncludePaths: []string{"docs", "reference", "api"},
		ExcludePaths: []string{"blog", "pricing", "careers", "legal"},
	})
	if err != nil {
		return "", fmt.Errorf("encoding crawl request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/crawl", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building crawl request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting crawl job: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading crawl response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("crawl submit returned HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	jobID := gjson.GetBytes(body, "id").String()
	if jobID == "" {
		return "", fmt.Errorf("crawl submit response missing job id")
	}
	return jobID, nil
}

// errJobRunning signals the poll loop to keep waiting.
var errJobRunning = errors.New("crawl job still running")

// awaitJob polls the job status endpoint on a constant interval until
// completion. A reported failure is permanent; transient HTTP errors
// retry within the same attempt budget.
func (c *FirecrawlClient) awaitJob(ctx context.Context, jobID string) ([]CrawledPage, error) {
	var pages []CrawledPage

	operation := func() error {
		status, result, err := c.pollOnce(ctx, jobID)
		if err != nil {
			return err // transient; retried on the next tick
		}
		switch status {
		case "completed":
			pages = result
			return nil
		case "failed":
			return backoff.Permanent(fmt.Errorf("%w: provider reported failure for job %s", ErrCrawlFailed, jobID))
		default:
			// queued, scraping, ...
			return fmt.Errorf("%w: status %q", errJobRunning, status)
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.PollInterval), c.MaxPollAttempts),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, errJobRunning) {
			return nil, fmt.Errorf("%w: job %s did not complete within %d polls", ErrCrawlFailed, jobID, c.MaxPollAttempts)
		}
		return nil, err
	}
	return pages, nil
}

func (c *FirecrawlClient) pollOnce(ctx context.Context, jobID string) (string, []CrawledPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/crawl/"+jobID, nil)
	if err != nil {
		return "", nil, fmt.Errorf("building status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("polling crawl job: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("reading status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("crawl status returned HTTP %d", resp.StatusCode)
	}

	parsed := gjson.ParseBytes(body)
	status := parsed.Get("status").String()
	if status == "failed" {
		return status, nil, nil
	}

	var pages []CrawledPage
	parsed.Get("data").ForEach(func(_, page gjson.Result) bool {
		md := page.Get("markdown").String()
		if md != "" {
			pages = append(pages, CrawledPage{
				URL:      page.Get("url").String(),
				Markdown: md,
			})
		}
		return true
	})

	return status, pages, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
