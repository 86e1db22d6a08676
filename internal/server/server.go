// Package server exposes the diagnostics pipeline over HTTP as a
// single action-dispatch endpoint. Every response, success or failure,
// uses the same {success, message, data} envelope.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/julienschmidt/httprouter"

	"github.com/isyncso/apidiag/internal/crawler"
	"github.com/isyncso/apidiag/internal/detector"
	"github.com/isyncso/apidiag/internal/fixer"
	"github.com/isyncso/apidiag/internal/health"
	"github.com/isyncso/apidiag/internal/registry"
	"github.com/isyncso/apidiag/internal/scanner"
	"github.com/isyncso/apidiag/internal/storage"
	"github.com/isyncso/apidiag/internal/types"
)

// Config wires the pipeline components into a server. Registry and
// Store are required. Crawler is optional: without a crawl provider
// credential the crawl action reports a business failure instead.
type Config struct {
	Registry *registry.Registry
	Checker  *health.Checker
	Crawler  *crawler.Crawler
	Scanner  *scanner.Scanner
	Detector *detector.Detector
	Fixer    *fixer.Fixer
	Store    storage.Store
}

// Server dispatches diagnostics actions.
type Server struct {
	registry *registry.Registry
	checker  *health.Checker
	crawler  *crawler.Crawler
	scanner  *scanner.Scanner
	detector *detector.Detector
	fixer    *fixer.Fixer
	store    storage.Store

	// Per-API crawl serialization so concurrent crawl requests for the
	// same API cannot race their spec upserts.
	crawlMu    sync.Mutex
	crawlLocks map[string]*sync.Mutex
}

// New creates a server from wired components.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Checker == nil {
		cfg.Checker = health.NewChecker(cfg.Registry)
	}
	if cfg.Scanner == nil {
		cfg.Scanner = scanner.New(cfg.Registry, "")
	}
	if cfg.Detector == nil {
		cfg.Detector = detector.New(cfg.Registry)
	}
	if cfg.Fixer == nil {
		cfg.Fixer = fixer.New(nil)
	}

	return &Server{
		registry:   cfg.Registry,
		checker:    cfg.Checker,
		crawler:    cfg.Crawler,
		scanner:    cfg.Scanner,
		detector:   cfg.Detector,
		fixer:      cfg.Fixer,
		store:      cfg.Store,
		crawlLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Handler returns the HTTP handler for the diagnostics endpoint.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodPost, "/api-diagnostics", s.handleDiagnostics)
	return router
}

// response is the fixed envelope for every action outcome.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type request struct {
	Action     string         `json:"action"`
	APIID      string         `json:"apiId"`
	MismatchID string         `json:"mismatchId"`
	Options    requestOptions `json:"options"`
}

type requestOptions struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in diagnostics action", "panic", rec)
			writeJSON(w, http.StatusInternalServerError, response{
				Success: false,
				Message: fmt.Sprintf("internal error: %v", rec),
			})
		}
	}()

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}

	slog.Info("diagnostics action", "action", req.Action, "api", req.APIID)

	switch req.Action {
	case "healthCheck":
		s.handleHealthCheck(w, r, req)
	case "healthCheckAll":
		s.handleHealthCheckAll(w, r)
	case "crawl":
		s.handleCrawl(w, r, req)
	case "scan":
		s.handleScan(w, r, req)
	case "detect":
		s.handleDetect(w, r, req)
	case "generateFix":
		s.handleGenerateFix(w, r, req)
	case "status":
		s.handleStatus(w, r, req)
	default:
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: fmt.Sprintf("unknown action %q", req.Action),
		})
	}
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request, req request) {
	if req.APIID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: "apiId is required for healthCheck",
		})
		return
	}

	check, err := s.checker.CheckAPI(r.Context(), req.APIID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: fmt.Sprintf("%s is %s", req.APIID, check.Status),
		Data:    check,
	})
}

func (s *Server) handleHealthCheckAll(w http.ResponseWriter, r *http.Request) {
	checks := s.checker.CheckAll(r.Context())

	healthy := 0
	for _, c := range checks {
		if c.Status == types.HealthHealthy {
			healthy++
		}
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: fmt.Sprintf("%d/%d APIs healthy", healthy, len(checks)),
		Data: map[string]any{
			"checks":  checks,
			"healthy": healthy,
			"total":   len(checks),
		},
	})
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request, req request) {
	if req.APIID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: "apiId is required for crawl",
		})
		return
	}
	if _, ok := s.registry.Entry(req.APIID); !ok {
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: fmt.Sprintf("unknown api %q", req.APIID),
		})
		return
	}
	if s.crawler == nil {
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: "crawl provider is not configured",
		})
		return
	}

	lock := s.crawlLock(req.APIID)
	lock.Lock()
	defer lock.Unlock()

	spec, err := s.crawler.Crawl(r.Context(), req.APIID)
	if err != nil {
		// Failed crawls never upsert; stored state stays untouched.
		writeJSON(w, http.StatusInternalServerError, response{
			Success: false,
			Message: fmt.Sprintf("crawl failed for %s: %v", req.APIID, err),
		})
		return
	}

	if err := s.store.UpsertSpec(r.Context(), spec); err != nil {
		writeJSON(w, http.StatusInternalServerError, response{
			Success: false,
			Message: fmt.Sprintf("storing spec for %s: %v", req.APIID, err),
		})
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: fmt.Sprintf("crawled %s: %d endpoints, %d schemas", req.APIID, len(spec.Endpoints), len(spec.Schemas)),
		Data:    spec,
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request, req request) {
	usages, err := s.scanner.Scan(r.Context(), req.APIID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{
			Success: false,
			Message: fmt.Sprintf("scan failed: %v", err),
		})
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: fmt.Sprintf("found %d API usages", len(usages)),
		Data: map[string]any{
			"usages": usages,
			"count":  len(usages),
		},
	})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request, req request) {
	usages, err := s.scanner.Scan(r.Context(), req.APIID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{
			Success: false,
			Message: fmt.Sprintf("scan failed: %v", err),
		})
		return
	}

	stored, err := s.store.ListSpecs(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{
			Success: false,
			Message: fmt.Sprintf("loading stored specs: %v", err),
		})
		return
	}
	specs := make(map[string]*types.CrawledAPISpec, len(stored))
	for _, spec := range stored {
		specs[spec.APIID] = spec
	}

	mismatches := s.detector.Detect(specs, usages)
	for i := range mismatches {
		if err := s.store.UpsertMismatch(r.Context(), &mismatches[i]); err != nil {
			writeJSON(w, http.StatusInternalServerError, response{
				Success: false,
				Message: fmt.Sprintf("storing mismatch %s: %v", mismatches[i].ID, err),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: fmt.Sprintf("detected %d mismatches across %d usages", len(mismatches), len(usages)),
		Data: map[string]any{
			"mismatches": mismatches,
			"summary":    summarize(mismatches),
		},
	})
}

func (s *Server) handleGenerateFix(w http.ResponseWriter, r *http.Request, req request) {
	if req.MismatchID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: "mismatchId is required for generateFix",
		})
		return
	}

	mismatch, err := s.store.GetMismatch(r.Context(), req.MismatchID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{
			Success: false,
			Message: fmt.Sprintf("loading mismatch: %v", err),
		})
		return
	}
	if mismatch == nil {
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: fmt.Sprintf("mismatch %q not found", req.MismatchID),
		})
		return
	}

	fix, err := s.fixer.GenerateFix(r.Context(), mismatch)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{
			Success: false,
			Message: fmt.Sprintf("generating fix: %v", err),
		})
		return
	}
	if fix == nil {
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: fmt.Sprintf("mismatch %s is not auto-fixable", mismatch.ID),
		})
		return
	}

	mismatch.SuggestedFix = fix
	mismatch.Status = types.StatusFixGenerated
	if err := s.store.UpsertMismatch(r.Context(), mismatch); err != nil {
		writeJSON(w, http.StatusInternalServerError, response{
			Success: false,
			Message: fmt.Sprintf("storing mismatch: %v", err),
		})
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: fmt.Sprintf("fix generated for %s (confidence %.2f)", mismatch.ID, fix.Confidence),
		Data: map[string]any{
			"mismatch": mismatch,
			"fix":      fix,
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, req request) {
	status := types.MismatchStatus(req.Options.Status)
	if status == "" {
		status = types.StatusOpen
	}
	if !status.IsValid() {
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: fmt.Sprintf("invalid status filter %q", req.Options.Status),
		})
		return
	}

	specs, err := s.store.ListSpecs(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{
			Success: false,
			Message: fmt.Sprintf("loading stored specs: %v", err),
		})
		return
	}

	mismatches, err := s.store.ListMismatches(r.Context(), storage.MismatchFilter{
		Status: status,
		APIID:  req.APIID,
		Limit:  req.Options.Limit,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{
			Success: false,
			Message: fmt.Sprintf("loading mismatches: %v", err),
		})
		return
	}

	report := buildReport(s.registry, specs, mismatches)

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: fmt.Sprintf("%d %s mismatches across %d crawled APIs", len(mismatches), status, len(specs)),
		Data: map[string]any{
			"report":     report,
			"summary":    summarizePointers(mismatches),
			"specs":      len(specs),
			"mismatches": mismatches,
		},
	})
}

func (s *Server) crawlLock(apiID string) *sync.Mutex {
	s.crawlMu.Lock()
	defer s.crawlMu.Unlock()
	lock, ok := s.crawlLocks[apiID]
	if !ok {
		lock = &sync.Mutex{}
		s.crawlLocks[apiID] = lock
	}
	return lock
}

func writeJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
