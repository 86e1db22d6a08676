// Package detector compares implementation usages against crawled API
// specifications and the registry's static migration tables, producing
// APIMismatch records. Detection is a pure function of its inputs: it
// never mutates specifications or usages and touches no external state.
package detector

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/isyncso/apidiag/internal/registry"
	"github.com/isyncso/apidiag/internal/types"
)

// Confidence levels for deterministic substitution fixes.
const (
	migrationFixConfidence  = 0.95
	successorFixConfidence  = 0.9
	renameFixConfidence     = 0.85
	deprecatedFixConfidence = 0.8
)

// Detector detects discrepancies between usages and specifications.
type Detector struct {
	registry *registry.Registry
	now      func() time.Time
}

// New creates a detector backed by the registry's static tables.
func New(reg *registry.Registry) *Detector {
	return &Detector{registry: reg, now: time.Now}
}

// Detect produces mismatches for every usage. A missing specification
// for a usage's API limits detection to the static tables; it is not
// itself an error.
func (d *Detector) Detect(specs map[string]*types.CrawledAPISpec, usages []types.ImplementationUsage) []types.APIMismatch {
	var mismatches []types.APIMismatch

	for _, usage := range usages {
		spec := specs[usage.APIID]
		if spec == nil {
			mismatches = append(mismatches, d.detectStatic(usage)...)
			continue
		}
		mismatches = append(mismatches, d.detectAgainstSpec(spec, usage)...)
	}

	return mismatches
}

// detectStatic consults only the known-migration and known-rename
// tables. Absence of a live spec limits detection power; it raises no
// mismatch by itself.
func (d *Detector) detectStatic(usage types.ImplementationUsage) []types.APIMismatch {
	var out []types.APIMismatch

	if successor, ok := d.registry.EndpointMigration(usage.APIID, usage.EndpointPath); ok {
		out = append(out, d.endpointMigrationMismatch(usage, successor))
	}

	for _, field := range usage.UsedFields {
		if renamed, ok := d.registry.FieldRename(usage.APIID, field); ok {
			out = append(out, d.fieldRenameMismatch(usage, field, renamed, types.SeverityCritical, renameFixConfidence,
				fmt.Sprintf("Field %q was renamed to %q in the %s API", field, renamed, usage.APIID)))
		}
	}

	return out
}

func (d *Detector) detectAgainstSpec(spec *types.CrawledAPISpec, usage types.ImplementationUsage) []types.APIMismatch {
	normalized := types.NormalizePath(usage.EndpointPath)

	endpoint, found := spec.FindEndpoint(usage.Method, normalized)
	if !found {
		return d.detectMissingEndpoint(spec, usage)
	}

	if endpoint.Deprecated {
		return []types.APIMismatch{d.deprecatedEndpointMismatch(usage, endpoint)}
	}

	return d.detectFieldMismatches(spec, endpoint, usage)
}

// detectMissingEndpoint handles a usage whose endpoint the spec does
// not document. The static migration table wins outright; otherwise a
// fuzzy search over same-method endpoints may propose a successor.
func (d *Detector) detectMissingEndpoint(spec *types.CrawledAPISpec, usage types.ImplementationUsage) []types.APIMismatch {
	if successor, ok := d.registry.EndpointMigration(usage.APIID, usage.EndpointPath); ok {
		return []types.APIMismatch{d.endpointMigrationMismatch(usage, successor)}
	}

	var best types.EndpointSpec
	bestScore := 0.0
	for _, candidate := range spec.Endpoints {
		if candidate.Method != usage.Method {
			continue
		}
		if score := endpointSimilarity(usage.EndpointPath, candidate.Path); score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	if bestScore > endpointCandidateThreshold {
		fix := d.substitutionFix(usage, usage.EndpointPath, best.Path, bestScore,
			fmt.Sprintf("Replace endpoint %s with its likely successor %s", usage.EndpointPath, best.Path))
		m := d.newMismatch(usage, types.SeverityCritical, types.MismatchEndpointNotFound,
			fmt.Sprintf("Endpoint %s %s is not in the current %s specification; %s is the most similar documented endpoint (score %.2f)",
				usage.Method, usage.EndpointPath, usage.APIID, best.Path, bestScore))
		m.Expected = best
		m.AutoFixable = true
		m.SuggestedFix = fix
		return []types.APIMismatch{m}
	}

	// Nothing concrete to suggest: report without a fix.
	m := d.newMismatch(usage, types.SeverityCritical, types.MismatchEndpointNotFound,
		fmt.Sprintf("Endpoint %s %s is not in the current %s specification and no similar endpoint was found",
			usage.Method, usage.EndpointPath, usage.APIID))
	return []types.APIMismatch{m}
}

func (d *Detector) deprecatedEndpointMismatch(usage types.ImplementationUsage, endpoint types.EndpointSpec) types.APIMismatch {
	m := d.newMismatch(usage, types.SeverityWarning, types.MismatchEndpointDeprecated,
		fmt.Sprintf("Endpoint %s %s is deprecated in the %s API", usage.Method, usage.EndpointPath, usage.APIID))
	m.Expected = endpoint

	if endpoint.SuccessorPath != "" {
		m.AutoFixable = true
		m.SuggestedFix = d.substitutionFix(usage, usage.EndpointPath, endpoint.SuccessorPath, successorFixConfidence,
			fmt.Sprintf("Replace deprecated endpoint %s with %s", usage.EndpointPath, endpoint.SuccessorPath))
	}
	return m
}

// detectFieldMismatches checks every referenced field against the
// static rename table and the spec's schemas, then flags documented
// required fields the implementation never sends.
func (d *Detector) detectFieldMismatches(spec *types.CrawledAPISpec, endpoint types.EndpointSpec, usage types.ImplementationUsage) []types.APIMismatch {
	var out []types.APIMismatch

	for _, field := range usage.UsedFields {
		// The static table wins even when the spec still lists the old
		// name: upstream docs routinely lag their own deprecations.
		if renamed, ok := d.registry.FieldRename(usage.APIID, field); ok {
			out = append(out, d.fieldRenameMismatch(usage, field, renamed, types.SeverityCritical, renameFixConfidence,
				fmt.Sprintf("Field %q was renamed to %q in the %s API", field, renamed, usage.APIID)))
			continue
		}

		specField, found := findField(spec, field)
		if found {
			if specField.Deprecated {
				if specField.SuccessorName != "" {
					out = append(out, d.fieldRenameMismatch(usage, field, specField.SuccessorName,
						types.SeverityWarning, deprecatedFixConfidence,
						fmt.Sprintf("Field %q is deprecated; the specification names %q as its successor", field, specField.SuccessorName)))
				} else {
					m := d.newMismatch(usage, types.SeverityWarning, types.MismatchFieldRemoved,
						fmt.Sprintf("Field %q is deprecated in the %s specification with no documented successor", field, usage.APIID))
					m.Expected = specField
					out = append(out, m)
				}
			}
			continue
		}

		if candidate, ok := fuzzyFindField(spec, field); ok {
			m := d.fieldRenameMismatch(usage, field, candidate.Name, types.SeverityWarning, fieldSimilarityThreshold,
				fmt.Sprintf("Field %q is not in the %s specification; %q looks like its current name", field, usage.APIID, candidate.Name))
			m.Expected = candidate
			out = append(out, m)
		}
		// Absent with no plausible match: stay silent. A field we cannot
		// map to anything is more likely an extraction gap than a break.
	}

	used := make(map[string]bool, len(usage.UsedFields))
	for _, f := range usage.UsedFields {
		used[f] = true
	}
	for _, required := range endpoint.RequiredFields {
		if !used[required] {
			m := d.newMismatch(usage, types.SeverityWarning, types.MismatchFieldRequiredChanged,
				fmt.Sprintf("Required field %q is never sent to %s %s; supplying it needs human judgment",
					required, usage.Method, usage.EndpointPath))
			m.Expected = endpoint
			out = append(out, m)
		}
	}

	return out
}

// findField searches the spec's schemas for an exact field-name match,
// tolerating nesting by also comparing last dotted segments.
func findField(spec *types.CrawledAPISpec, name string) (types.FieldSpec, bool) {
	for _, schema := range spec.Schemas {
		for _, field := range schema.Fields {
			if field.Name == name || lastSegment(field.Name) == name {
				return field, true
			}
		}
	}
	return types.FieldSpec{}, false
}

func fuzzyFindField(spec *types.CrawledAPISpec, name string) (types.FieldSpec, bool) {
	for _, schema := range spec.Schemas {
		for _, field := range schema.Fields {
			if fieldSimilar(name, lastSegment(field.Name)) {
				return field, true
			}
		}
	}
	return types.FieldSpec{}, false
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func (d *Detector) endpointMigrationMismatch(usage types.ImplementationUsage, successor string) types.APIMismatch {
	m := d.newMismatch(usage, types.SeverityCritical, types.MismatchEndpointNotFound,
		fmt.Sprintf("Endpoint %s moved to %s in the %s API", usage.EndpointPath, successor, usage.APIID))
	m.AutoFixable = true
	m.SuggestedFix = d.substitutionFix(usage, usage.EndpointPath, successor, migrationFixConfidence,
		fmt.Sprintf("Replace endpoint %s with %s", usage.EndpointPath, successor))
	return m
}

func (d *Detector) fieldRenameMismatch(usage types.ImplementationUsage, field, renamed string, severity types.Severity, confidence float64, description string) types.APIMismatch {
	m := d.newMismatch(usage, severity, types.MismatchFieldRenamed, description)
	m.AutoFixable = true
	m.SuggestedFix = d.substitutionFix(usage, field, renamed, confidence,
		fmt.Sprintf("Rename field %q to %q", field, renamed))
	return m
}

// substitutionFix proposes replacing one token of the call site.
func (d *Detector) substitutionFix(usage types.ImplementationUsage, original, fixed string, confidence float64, description string) *types.CodeFix {
	lineEnd := usage.LineNumber + types.CountLines(usage.RawCode) - 1
	return &types.CodeFix{
		FilePath:             usage.FilePath,
		LineStart:            usage.LineNumber,
		LineEnd:              lineEnd,
		OriginalCode:         original,
		FixedCode:            fixed,
		Diff:                 types.UnifiedDiff(usage.FilePath, original, fixed, usage.LineNumber),
		Confidence:           confidence,
		RequiresManualReview: confidence < renameFixConfidence,
		Description:          description,
	}
}

func (d *Detector) newMismatch(usage types.ImplementationUsage, severity types.Severity, typ types.MismatchType, description string) types.APIMismatch {
	now := d.now().UTC()
	return types.APIMismatch{
		ID:             fmt.Sprintf("mm-%d-%s", now.UnixNano(), uuid.NewString()[:8]),
		APIID:          usage.APIID,
		Severity:       severity,
		Type:           typ,
		Description:    description,
		Implementation: usage,
		Status:         types.StatusOpen,
		DetectedAt:     now,
	}
}
