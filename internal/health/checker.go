package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/isyncso/apidiag/internal/registry"
	"github.com/isyncso/apidiag/internal/types"
)

const (
	// probeTimeout bounds a single probe request.
	probeTimeout = 10 * time.Second

	// maxConcurrentChecks bounds CheckAll parallelism. Checks are
	// independent and read-only against external services.
	maxConcurrentChecks = 4
)

// Checker runs connectivity probes for registered APIs.
type Checker struct {
	registry *registry.Registry
	probes   map[string]Probe
	client   *http.Client
	limiter  *rate.Limiter

	// getenv is swappable so tests can control credentials.
	getenv func(string) string
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient overrides the HTTP client used for probes.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) { c.client = client }
}

// WithEnv overrides credential lookup.
func WithEnv(getenv func(string) string) Option {
	return func(c *Checker) { c.getenv = getenv }
}

// WithProbe registers or replaces the probe for one API.
func WithProbe(p Probe) Option {
	return func(c *Checker) { c.probes[p.APIID()] = p }
}

// NewChecker creates a checker with the shipped probe set.
func NewChecker(reg *registry.Registry, opts ...Option) *Checker {
	c := &Checker{
		registry: reg,
		probes:   make(map[string]Probe),
		client:   &http.Client{Timeout: probeTimeout},
		// Pace probes so a full sweep doesn't burst against providers.
		limiter: rate.NewLimiter(rate.Limit(10), maxConcurrentChecks),
		getenv:  os.Getenv,
	}
	for _, p := range defaultProbes() {
		c.probes[p.APIID()] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckAPI probes one API and classifies the outcome. It never returns
// an error for probe failures; failures are captured in the result.
func (c *Checker) CheckAPI(ctx context.Context, apiID string) (types.HealthCheck, error) {
	entry, ok := c.registry.Entry(apiID)
	if !ok {
		return types.HealthCheck{}, fmt.Errorf("unknown api %q", apiID)
	}

	result := types.HealthCheck{
		APIID:     apiID,
		AuthValid: true,
		CheckedAt: time.Now().UTC(),
	}

	credential := c.getenv(entry.EnvironmentKey)
	if credential == "" {
		result.Status = types.HealthDown
		result.AuthValid = false
		result.Error = fmt.Sprintf("%s not set", entry.EnvironmentKey)
		return result, nil
	}

	probe, ok := c.probes[apiID]
	if !ok {
		result.Status = types.HealthDown
		result.Error = fmt.Sprintf("no probe registered for %q", apiID)
		return result, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		result.Status = types.HealthDown
		result.Error = err.Error()
		return result, nil
	}

	req, err := probe.Request(ctx, credential)
	if err != nil {
		result.Status = types.HealthDown
		result.Error = fmt.Sprintf("building probe request: %v", err)
		return result, nil
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	result.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		// Timeout, DNS failure, connection refused. Captured, not thrown.
		result.Status = types.HealthDown
		result.Error = err.Error()
		return result, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		result.Status = types.HealthDown
		result.AuthValid = false
		result.Error = fmt.Sprintf("authentication rejected (HTTP %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		// A previously-known-good path vanished: the API moved under us.
		result.Status = types.HealthDegraded
		result.EndpointChanged = true
		result.Error = fmt.Sprintf("probe path not found (HTTP %d)", resp.StatusCode)
	default:
		// Any other response, including 400, proves reachability.
		result.Status = types.HealthHealthy
	}

	return result, nil
}

// CheckAll probes every active entry with bounded parallelism. A
// failing probe never fails the batch.
func (c *Checker) CheckAll(ctx context.Context) []types.HealthCheck {
	entries := c.registry.ActiveEntries()
	results := make([]types.HealthCheck, len(entries))

	sem := semaphore.NewWeighted(maxConcurrentChecks)
	var wg sync.WaitGroup
	for i, entry := range entries {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = types.HealthCheck{
				APIID:     entry.ID,
				Status:    types.HealthDown,
				Error:     err.Error(),
				CheckedAt: time.Now().UTC(),
			}
			continue
		}
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			defer sem.Release(1)
			check, err := c.CheckAPI(ctx, id)
			if err != nil {
				// Unknown id cannot happen for active entries; log and degrade.
				slog.Warn("health check failed", "api", id, "error", err)
				check = types.HealthCheck{
					APIID:     id,
					Status:    types.HealthDown,
					Error:     err.Error(),
					CheckedAt: time.Now().UTC(),
				}
			}
			results[i] = check
		}(i, entry.ID)
	}
	wg.Wait()

	return results
}
