package crawler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/isyncso/apidiag/internal/types"
)

// Pre-compiled extraction patterns. Documentation is unstructured
// prose, so extraction is layered regex heuristics with generous
// context windows and conservative defaults: empty lists beat guesses,
// because downstream detection has a static fallback table anyway.
var (
	// METHOD /path tokens, e.g. "POST /v1/prospects/match".
	endpointRegex = regexp.MustCompile(`\b(GET|POST|PUT|PATCH|DELETE)\s+(/[A-Za-z0-9_\-{}:./]*[A-Za-z0-9_\-{}])`)

	// curl examples are a secondary endpoint-discovery signal:
	// curl -X POST 'https://api.example.com/v1/things'
	curlRegex = regexp.MustCompile(`-X\s+(GET|POST|PUT|PATCH|DELETE)\s+['"]?(https?://[^\s'"]+)['"]?`)

	// Field mentions near an endpoint: "required: `email`" or
	// "`email` (required)". Same shapes for optional.
	requiredFieldRegex = regexp.MustCompile("(?i)required:\\s*`([a-zA-Z_][a-zA-Z0-9_.]*)`|`([a-zA-Z_][a-zA-Z0-9_.]*)`\\s*\\((?:required)\\)")
	optionalFieldRegex = regexp.MustCompile("(?i)optional:\\s*`([a-zA-Z_][a-zA-Z0-9_.]*)`|`([a-zA-Z_][a-zA-Z0-9_.]*)`\\s*\\((?:optional)\\)")

	// Deprecation markers inside an endpoint's context window.
	deprecatedRegex = regexp.MustCompile(`(?i)\bdeprecated\b`)

	// Fenced code blocks; JSON ones feed schema extraction.
	fencedBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\n(.*?)\n\\s*```")

	// Version strings like v2 or v2.1 anywhere in the docs.
	versionRegex = regexp.MustCompile(`\bv(\d+(?:\.\d+)?)\b`)

	sentenceSplitRegex = regexp.MustCompile(`[.!?]\s`)
)

// Context window sizes around an endpoint hit. Descriptions tend to
// precede the token; field lists follow it.
const (
	contextBefore = 200
	contextAfter  = 500

	// minDescriptionLength filters out fragments like "e.g." when
	// hunting for an endpoint's inline description.
	minDescriptionLength = 20
)

// assetExtensions marks path-like tokens that are really static assets.
var assetExtensions = []string{".js", ".css", ".html", ".png", ".svg", ".ico"}

// extractEndpoints scans markdown for documented endpoints.
func extractEndpoints(markdown string) []types.EndpointSpec {
	var endpoints []types.EndpointSpec

	for _, loc := range endpointRegex.FindAllStringSubmatchIndex(markdown, -1) {
		method := markdown[loc[2]:loc[3]]
		path := markdown[loc[4]:loc[5]]
		if isAssetPath(path) {
			continue
		}

		window := contextWindow(markdown, loc[0], loc[1])
		endpoints = append(endpoints, types.EndpointSpec{
			Method:         method,
			Path:           path,
			Description:    extractDescription(window),
			RequiredFields: extractFieldNames(requiredFieldRegex, window),
			OptionalFields: extractFieldNames(optionalFieldRegex, window),
			Deprecated:     deprecatedRegex.MatchString(window),
		})
	}

	// curl examples catch endpoints the prose never spells out.
	for _, m := range curlRegex.FindAllStringSubmatch(markdown, -1) {
		path := urlPath(m[2])
		if path == "" || isAssetPath(path) {
			continue
		}
		endpoints = append(endpoints, types.EndpointSpec{
			Method: m[1],
			Path:   path,
		})
	}

	return dedupeEndpoints(endpoints)
}

// contextWindow slices the text surrounding a match, clamped to the
// document bounds.
func contextWindow(text string, start, end int) string {
	lo := start - contextBefore
	if lo < 0 {
		lo = 0
	}
	hi := end + contextAfter
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

// extractDescription returns the first sufficiently long sentence in
// the context window, stripped of markdown noise.
func extractDescription(window string) string {
	for _, sentence := range sentenceSplitRegex.Split(window, -1) {
		s := strings.TrimSpace(strings.Trim(sentence, "#*`>- \n"))
		s = strings.ReplaceAll(s, "\n", " ")
		if len(s) >= minDescriptionLength && !strings.HasPrefix(s, "http") {
			return s
		}
	}
	return ""
}

func extractFieldNames(pattern *regexp.Regexp, window string) []string {
	seen := make(map[string]bool)
	var fields []string
	for _, m := range pattern.FindAllStringSubmatch(window, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if name != "" && !seen[name] {
			seen[name] = true
			fields = append(fields, name)
		}
	}
	return fields
}

func isAssetPath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// urlPath strips scheme, host, and query from a full URL, returning
// just the path component.
func urlPath(raw string) string {
	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return ""
	}
	path := rest[slash:]
	if q := strings.IndexAny(path, "?#"); q >= 0 {
		path = path[:q]
	}
	if path == "/" {
		return ""
	}
	return path
}

// dedupeEndpoints collapses duplicates by (method, normalized path),
// keeping the more descriptive entry and merging field lists.
func dedupeEndpoints(endpoints []types.EndpointSpec) []types.EndpointSpec {
	type key struct{ method, path string }
	index := make(map[key]int)
	var out []types.EndpointSpec

	for _, ep := range endpoints {
		k := key{ep.Method, types.NormalizePath(ep.Path)}
		i, exists := index[k]
		if !exists {
			index[k] = len(out)
			out = append(out, ep)
			continue
		}

		survivor := &out[i]
		if len(ep.Description) > len(survivor.Description) {
			survivor.Description = ep.Description
		}
		survivor.RequiredFields = mergeFields(survivor.RequiredFields, ep.RequiredFields)
		survivor.OptionalFields = mergeFields(survivor.OptionalFields, ep.OptionalFields)
		survivor.Deprecated = survivor.Deprecated || ep.Deprecated
	}

	return out
}

func mergeFields(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := a
	for _, f := range a {
		seen[f] = true
	}
	for _, f := range b {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// extractSchemas parses fenced JSON blocks into synthetic schemas.
// Required is left false throughout: an example payload alone cannot
// say which fields are mandatory.
func extractSchemas(markdown string) []types.SchemaSpec {
	var schemas []types.SchemaSpec
	count := 0

	for _, m := range fencedBlockRegex.FindAllStringSubmatch(markdown, -1) {
		block := strings.TrimSpace(m[1])
		if !strings.HasPrefix(block, "{") || !gjson.Valid(block) {
			continue
		}
		parsed := gjson.Parse(block)
		if !parsed.IsObject() {
			continue
		}

		fields := flattenFields(parsed, "")
		if len(fields) == 0 {
			continue
		}
		count++
		schemas = append(schemas, types.SchemaSpec{
			Name:   schemaName(count),
			Fields: fields,
		})
	}

	return dedupeSchemas(schemas)
}

func schemaName(n int) string {
	return fmt.Sprintf("example_schema_%d", n)
}

// flattenFields emits FieldSpecs for an object's top-level keys plus
// one level of nested-object keys (dotted names).
func flattenFields(obj gjson.Result, prefix string) []types.FieldSpec {
	var fields []types.FieldSpec

	obj.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if prefix != "" {
			name = prefix + "." + name
		}
		fields = append(fields, types.FieldSpec{
			Name:    name,
			Type:    jsonType(value),
			Example: value.Value(),
		})
		if prefix == "" && value.IsObject() {
			fields = append(fields, flattenFields(value, name)...)
		}
		return true
	})

	return fields
}

func jsonType(v gjson.Result) types.FieldType {
	switch {
	case v.IsObject():
		return types.FieldObject
	case v.IsArray():
		return types.FieldArray
	case v.Type == gjson.String:
		return types.FieldString
	case v.Type == gjson.Number:
		return types.FieldNumber
	case v.Type == gjson.True || v.Type == gjson.False:
		return types.FieldBoolean
	default:
		return types.FieldNull
	}
}

// dedupeSchemas collapses schemas with identical field-name sets.
// Names are synthetic in this path, so the field set is the identity.
func dedupeSchemas(schemas []types.SchemaSpec) []types.SchemaSpec {
	seen := make(map[string]bool)
	var out []types.SchemaSpec

	for _, s := range schemas {
		names := make([]string, 0, len(s.Fields))
		for _, f := range s.Fields {
			names = append(names, f.Name)
		}
		sort.Strings(names)
		sig := strings.Join(names, "\x00")
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, s)
	}

	return out
}

// extractVersion pulls a best-effort version string from the docs.
func extractVersion(markdown string) string {
	m := versionRegex.FindStringSubmatch(markdown)
	if m == nil {
		return ""
	}
	return "v" + m[1]
}
