package server

import (
	"fmt"
	"sort"
	"strings"

	"github.com/isyncso/apidiag/internal/registry"
	"github.com/isyncso/apidiag/internal/types"
)

// mismatchSummary aggregates counts for the detect and status actions.
type mismatchSummary struct {
	Total       int            `json:"total"`
	BySeverity  map[string]int `json:"by_severity"`
	ByAPI       map[string]int `json:"by_api"`
	AutoFixable int            `json:"auto_fixable"`
}

func summarize(mismatches []types.APIMismatch) mismatchSummary {
	s := mismatchSummary{
		Total:      len(mismatches),
		BySeverity: make(map[string]int),
		ByAPI:      make(map[string]int),
	}
	for _, m := range mismatches {
		s.BySeverity[string(m.Severity)]++
		s.ByAPI[m.APIID]++
		if m.AutoFixable {
			s.AutoFixable++
		}
	}
	return s
}

func summarizePointers(mismatches []*types.APIMismatch) mismatchSummary {
	flat := make([]types.APIMismatch, len(mismatches))
	for i, m := range mismatches {
		flat[i] = *m
	}
	return summarize(flat)
}

// buildReport renders a human-readable status report. Callers surface
// it verbatim in terminals and dashboards.
func buildReport(reg *registry.Registry, specs []*types.CrawledAPISpec, mismatches []*types.APIMismatch) string {
	var b strings.Builder

	b.WriteString("API Diagnostics Status\n")
	b.WriteString("======================\n\n")

	crawled := make(map[string]*types.CrawledAPISpec, len(specs))
	for _, spec := range specs {
		crawled[spec.APIID] = spec
	}

	b.WriteString("Crawled specifications:\n")
	entries := reg.ActiveEntries()
	for _, entry := range entries {
		if spec, ok := crawled[entry.ID]; ok {
			fmt.Fprintf(&b, "  %-12s %3d endpoints, %2d schemas (crawled %s)\n",
				entry.ID, len(spec.Endpoints), len(spec.Schemas),
				spec.CrawledAt.Format("2006-01-02 15:04"))
		} else {
			fmt.Fprintf(&b, "  %-12s not crawled\n", entry.ID)
		}
	}

	summary := summarizePointers(mismatches)
	fmt.Fprintf(&b, "\nMismatches: %d total, %d auto-fixable\n", summary.Total, summary.AutoFixable)

	severities := make([]string, 0, len(summary.BySeverity))
	for sev := range summary.BySeverity {
		severities = append(severities, sev)
	}
	sort.Strings(severities)
	for _, sev := range severities {
		fmt.Fprintf(&b, "  %-10s %d\n", sev, summary.BySeverity[sev])
	}

	apis := make([]string, 0, len(summary.ByAPI))
	for api := range summary.ByAPI {
		apis = append(apis, api)
	}
	sort.Strings(apis)
	if len(apis) > 0 {
		b.WriteString("\nBy API:\n")
		for _, api := range apis {
			fmt.Fprintf(&b, "  %-12s %d\n", api, summary.ByAPI[api])
		}
	}

	return b.String()
}
