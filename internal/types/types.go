// Package types defines the shared data model for the API diagnostics
// pipeline: registry entries, crawled specifications, implementation
// usages, detected mismatches, and proposed code fixes.
package types

import (
	"fmt"
	"time"
)

// APIRegistryEntry is the static configuration for one external API.
// Entries are loaded once at process start and never mutated.
type APIRegistryEntry struct {
	ID             string   `json:"id" yaml:"id"`
	DisplayName    string   `json:"display_name" yaml:"display_name"`
	BaseURLs       []string `json:"base_urls" yaml:"base_urls"`
	DocsURL        string   `json:"docs_url,omitempty" yaml:"docs_url"`
	OpenAPIURL     string   `json:"openapi_url,omitempty" yaml:"openapi_url"`
	EnvironmentKey string   `json:"environment_key" yaml:"environment_key"`
	Files          []string `json:"files" yaml:"files"`
	Active         bool     `json:"active" yaml:"active"`
}

// EndpointSpec describes one documented operation of an external API.
type EndpointSpec struct {
	Method         string   `json:"method"`
	Path           string   `json:"path"`
	Description    string   `json:"description,omitempty"`
	RequiredFields []string `json:"required_fields,omitempty"`
	OptionalFields []string `json:"optional_fields,omitempty"`
	Deprecated     bool     `json:"deprecated,omitempty"`
	SuccessorPath  string   `json:"successor_path,omitempty"`
}

// FieldType classifies a schema field by its JSON runtime type.
type FieldType string

const (
	FieldObject  FieldType = "object"
	FieldArray   FieldType = "array"
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldNull    FieldType = "null"
)

// FieldSpec describes one schema field. Name uses dotted paths for
// nested fields (e.g. "billing.address").
type FieldSpec struct {
	Name          string    `json:"name"`
	Type          FieldType `json:"type"`
	Required      bool      `json:"required"`
	Example       any       `json:"example,omitempty"`
	Deprecated    bool      `json:"deprecated,omitempty"`
	SuccessorName string    `json:"successor_name,omitempty"`
}

// SchemaSpec groups fields under a schema name. Names are synthetic
// when the schema was recovered from documentation examples.
type SchemaSpec struct {
	Name   string      `json:"name"`
	Fields []FieldSpec `json:"fields"`
}

// CrawledAPISpec is a snapshot of an API's documented shape at a point
// in time. One current snapshot per API is persisted; recrawling
// replaces it.
type CrawledAPISpec struct {
	APIID       string         `json:"api_id"`
	Version     string         `json:"version,omitempty"`
	CrawledAt   time.Time      `json:"crawled_at"`
	Endpoints   []EndpointSpec `json:"endpoints"`
	Schemas     []SchemaSpec   `json:"schemas"`
	RawMarkdown string         `json:"raw_markdown,omitempty"`
	SourceURLs  []string       `json:"source_urls,omitempty"`
}

// FindEndpoint returns the endpoint matching method and an
// already-normalized path, if any.
func (s *CrawledAPISpec) FindEndpoint(method, normalizedPath string) (EndpointSpec, bool) {
	for _, ep := range s.Endpoints {
		if ep.Method == method && NormalizePath(ep.Path) == normalizedPath {
			return ep, true
		}
	}
	return EndpointSpec{}, false
}

// ImplementationUsage is one observed call site in the project's own
// source code. Usages are recomputed on every scan and never persisted;
// only mismatches derived from them are.
type ImplementationUsage struct {
	FilePath     string            `json:"file_path"`
	FunctionName string            `json:"function_name,omitempty"`
	LineNumber   int               `json:"line_number"`
	APIID        string            `json:"api_id"`
	EndpointPath string            `json:"endpoint_path"`
	Method       string            `json:"method"`
	UsedFields   []string          `json:"used_fields,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	RawCode      string            `json:"raw_code,omitempty"`
}

// Severity ranks how urgent a mismatch is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// IsValid checks if the severity value is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// MismatchType categorizes what kind of discrepancy was detected.
type MismatchType string

const (
	MismatchEndpointNotFound     MismatchType = "endpoint_not_found"
	MismatchEndpointDeprecated   MismatchType = "endpoint_deprecated"
	MismatchFieldRenamed         MismatchType = "field_renamed"
	MismatchFieldRemoved         MismatchType = "field_removed"
	MismatchFieldRequiredChanged MismatchType = "field_required_changed"
)

// IsValid checks if the mismatch type value is valid
func (t MismatchType) IsValid() bool {
	switch t {
	case MismatchEndpointNotFound, MismatchEndpointDeprecated,
		MismatchFieldRenamed, MismatchFieldRemoved, MismatchFieldRequiredChanged:
		return true
	}
	return false
}

// MismatchStatus tracks a mismatch through its lifecycle.
// Transitions: open → fix_generated → resolved/dismissed. The resolved
// and dismissed transitions are driven externally.
type MismatchStatus string

const (
	StatusOpen         MismatchStatus = "open"
	StatusFixGenerated MismatchStatus = "fix_generated"
	StatusResolved     MismatchStatus = "resolved"
	StatusDismissed    MismatchStatus = "dismissed"
)

// IsValid checks if the status value is valid
func (s MismatchStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusFixGenerated, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// APIMismatch is a detected discrepancy between an implementation call
// site and the API's live specification (or static migration tables).
type APIMismatch struct {
	ID             string              `json:"id"`
	APIID          string              `json:"api_id"`
	Severity       Severity            `json:"severity"`
	Type           MismatchType        `json:"type"`
	Description    string              `json:"description"`
	Implementation ImplementationUsage `json:"implementation"`
	Expected       any                 `json:"expected,omitempty"`
	AutoFixable    bool                `json:"auto_fixable"`
	SuggestedFix   *CodeFix            `json:"suggested_fix,omitempty"`
	Status         MismatchStatus      `json:"status"`
	DetectedAt     time.Time           `json:"detected_at"`
}

// Validate checks the mismatch's internal consistency.
func (m *APIMismatch) Validate() error {
	if m.APIID == "" {
		return fmt.Errorf("api_id is required")
	}
	if m.Implementation.APIID != m.APIID {
		return fmt.Errorf("implementation api_id %q does not match mismatch api_id %q",
			m.Implementation.APIID, m.APIID)
	}
	if !m.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", m.Severity)
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid mismatch type: %s", m.Type)
	}
	if !m.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", m.Status)
	}
	if m.AutoFixable && m.SuggestedFix == nil {
		return fmt.Errorf("auto-fixable mismatch must carry a suggested fix")
	}
	return nil
}

// CodeFix is a proposed patch. Fixes are never applied automatically;
// they are surfaced to a human or a separate apply step.
type CodeFix struct {
	FilePath             string  `json:"file_path"`
	LineStart            int     `json:"line_start"`
	LineEnd              int     `json:"line_end"`
	OriginalCode         string  `json:"original_code"`
	FixedCode            string  `json:"fixed_code"`
	Diff                 string  `json:"diff,omitempty"`
	Confidence           float64 `json:"confidence"`
	RequiresManualReview bool    `json:"requires_manual_review"`
	Description          string  `json:"description,omitempty"`
}

// HealthStatus summarizes a connectivity probe outcome.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

// HealthCheck is the result of probing one external API.
type HealthCheck struct {
	APIID           string       `json:"api_id"`
	Status          HealthStatus `json:"status"`
	LatencyMS       int64        `json:"latency_ms"`
	AuthValid       bool         `json:"auth_valid"`
	EndpointChanged bool         `json:"endpoint_changed,omitempty"`
	Error           string       `json:"error,omitempty"`
	CheckedAt       time.Time    `json:"checked_at"`
}
