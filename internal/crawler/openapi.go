package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/isyncso/apidiag/internal/types"
)

// recognizedVerbs are the HTTP methods the pipeline reasons about.
var recognizedVerbs = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// fetchOpenAPI downloads and parses an OpenAPI document into endpoint
// specs. Extraction is intentionally shallow: paths and verbs only, no
// field-level schema walking. Any failure is returned to the caller,
// which treats it as "no spec" and falls through to the docs crawl.
func (c *Crawler) fetchOpenAPI(ctx context.Context, url string) ([]types.EndpointSpec, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building openapi request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching openapi document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("openapi fetch returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, "", fmt.Errorf("reading openapi document: %w", err)
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, "", fmt.Errorf("parsing openapi document: %w", err)
	}
	if doc.Paths == nil {
		return nil, "", fmt.Errorf("openapi document has no paths")
	}

	var endpoints []types.EndpointSpec
	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for p := range pathMap {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		item := pathMap[path]
		if item == nil {
			continue
		}
		for verb, op := range item.Operations() {
			if op == nil || !recognizedVerbs[verb] {
				continue
			}
			desc := op.Summary
			if desc == "" {
				desc = op.Description
			}
			endpoints = append(endpoints, types.EndpointSpec{
				Method:      verb,
				Path:        path,
				Description: desc,
				Deprecated:  op.Deprecated,
			})
		}
	}

	var version string
	if doc.Info != nil {
		version = doc.Info.Version
	}

	return endpoints, version, nil
}
