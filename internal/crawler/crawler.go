// Package crawler turns third-party API documentation into normalized
// CrawledAPISpec snapshots. It prefers a published OpenAPI document and
// falls back to crawling the docs site and mining the markdown with
// layered regex heuristics.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/isyncso/apidiag/internal/registry"
	"github.com/isyncso/apidiag/internal/types"
)

// Crawler produces specification snapshots for registered APIs.
type Crawler struct {
	registry  *registry.Registry
	firecrawl *FirecrawlClient
	client    *http.Client
	now       func() time.Time
}

// New creates a crawler. firecrawl may be a client with no credential;
// the docs-crawl path then fails fast while the OpenAPI path still
// works.
func New(reg *registry.Registry, firecrawl *FirecrawlClient) *Crawler {
	return &Crawler{
		registry:  reg,
		firecrawl: firecrawl,
		client:    &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

// Crawl builds one CrawledAPISpec for apiID. The caller persists it;
// a failed crawl never produces a partial snapshot.
func (c *Crawler) Crawl(ctx context.Context, apiID string) (*types.CrawledAPISpec, error) {
	entry, ok := c.registry.Entry(apiID)
	if !ok {
		return nil, fmt.Errorf("unknown api %q", apiID)
	}

	spec := &types.CrawledAPISpec{
		APIID:     apiID,
		CrawledAt: c.now().UTC(),
	}

	// Preferred path: a published OpenAPI document. Failures fall
	// through to the docs crawl rather than surfacing.
	if entry.OpenAPIURL != "" {
		endpoints, version, err := c.fetchOpenAPI(ctx, entry.OpenAPIURL)
		if err == nil && len(endpoints) > 0 {
			spec.Endpoints = endpoints
			spec.Version = version
			spec.SourceURLs = []string{entry.OpenAPIURL}
			return spec, nil
		}
		if err != nil {
			slog.Debug("openapi fetch failed, falling back to docs crawl",
				"api", apiID, "url", entry.OpenAPIURL, "error", err)
		}
	}

	if entry.DocsURL == "" {
		return nil, fmt.Errorf("api %q has neither a usable openapi document nor a docs url", apiID)
	}

	pages, err := c.firecrawl.Crawl(ctx, entry.DocsURL)
	if err != nil {
		return nil, fmt.Errorf("crawling docs for %q: %w", apiID, err)
	}

	var markdown strings.Builder
	for _, page := range pages {
		markdown.WriteString(page.Markdown)
		markdown.WriteString("\n\n")
		spec.SourceURLs = append(spec.SourceURLs, page.URL)
	}

	combined := markdown.String()
	spec.RawMarkdown = combined
	spec.Endpoints = extractEndpoints(combined)
	spec.Schemas = extractSchemas(combined)
	spec.Version = extractVersion(combined)

	slog.Info("docs crawl complete",
		"api", apiID,
		"pages", len(pages),
		"endpoints", len(spec.Endpoints),
		"schemas", len(spec.Schemas))

	return spec, nil
}
