// Package scanner statically extracts ImplementationUsage records from
// the project's registered source files. Extraction is lexical pattern
// matching over source text; no AST or type checker is involved, which
// keeps it language-tolerant across the TypeScript functions it scans.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/isyncso/apidiag/internal/registry"
	"github.com/isyncso/apidiag/internal/types"
)

// Pre-compiled call-shape patterns.
var (
	// const API_BASE = 'https://api.example.com'
	baseURLConstRegex = regexp.MustCompile(`const\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*['"` + "`" + `](https?://[^'"` + "`" + `]+)['"` + "`" + `]`)

	// fetch('https://api.example.com/v1/things', ...)
	literalFetchRegex = regexp.MustCompile(`\bfetch\(\s*['"` + "`" + `](https?://[^'"` + "`" + `$]+)['"` + "`" + `]`)

	// fetch(`${API_BASE}/v1/things`, ...)
	templateFetchRegex = regexp.MustCompile(`\bfetch\(\s*` + "`" + `\$\{([A-Za-z_$][A-Za-z0-9_$]*)\}([^` + "`" + `]*)` + "`")

	// fetch(API_BASE + '/v1/things', ...)
	concatFetchRegex = regexp.MustCompile(`\bfetch\(\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*\+\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`)

	// method: 'POST' inside the fetch options object.
	methodOptionRegex = regexp.MustCompile(`method:\s*['"` + "`" + `](GET|POST|PUT|PATCH|DELETE)['"` + "`" + `]`)

	// JSON.stringify({ ... }) marks the request body.
	stringifyRegex = regexp.MustCompile(`JSON\.stringify\(\s*\{`)

	// headers: { ... } block inside the options object.
	headersRegex = regexp.MustCompile(`headers:\s*\{`)

	// Static header pair: 'Content-Type': 'application/json'. Values
	// with interpolation are skipped by a separate check.
	headerPairRegex = regexp.MustCompile(`['"]?([A-Za-z][A-Za-z0-9-]*)['"]?\s*:\s*(['"` + "`" + `])((?:[^'"` + "`" + `\\]|\\.)*)(['"` + "`" + `])`)

	// Enclosing-function shapes, tried nearest-first walking backwards:
	// function handleOrder(  |  const handleOrder = (...) =>  |  handleOrder: (...) =>
	namedFunctionRegex = regexp.MustCompile(`function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)
	arrowConstRegex    = regexp.MustCompile(`(?:const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:async\s+)?\(`)
	methodPropRegex    = regexp.MustCompile(`([A-Za-z_$][A-Za-z0-9_$]*)\s*:\s*(?:async\s+)?\(`)
)

// fetchOptionKeys are fetch-option keywords that are never request
// body fields.
var fetchOptionKeys = map[string]bool{
	"method":  true,
	"headers": true,
	"body":    true,
	"signal":  true,
}

// Scanner extracts call-site usages from registered implementation
// files.
type Scanner struct {
	registry *registry.Registry

	// Root is prepended to the registry's relative file paths.
	Root string
}

// New creates a scanner reading files under root.
func New(reg *registry.Registry, root string) *Scanner {
	return &Scanner{registry: reg, Root: root}
}

// Scan extracts usages from every file the registry associates with an
// API. apiFilter narrows the result to one API id when non-empty.
// Unreadable files are logged and skipped; they never abort the scan.
func (s *Scanner) Scan(ctx context.Context, apiFilter string) ([]types.ImplementationUsage, error) {
	var usages []types.ImplementationUsage
	scanned := make(map[string]bool)

	for _, entry := range s.registry.ActiveEntries() {
		if apiFilter != "" && entry.ID != apiFilter {
			continue
		}
		for _, file := range entry.Files {
			if err := ctx.Err(); err != nil {
				return usages, err
			}
			if scanned[file] {
				continue
			}
			scanned[file] = true

			src, err := os.ReadFile(filepath.Join(s.Root, file))
			if err != nil {
				slog.Warn("skipping unreadable source file", "file", file, "error", err)
				continue
			}
			usages = append(usages, s.ScanFile(file, string(src), apiFilter)...)
		}
	}

	return usages, nil
}

// ScanFile extracts usages from one file's source text. A file
// contributing zero usages is not an error.
func (s *Scanner) ScanFile(filePath, src, apiFilter string) []types.ImplementationUsage {
	baseURLs := collectBaseURLs(src)

	type hit struct {
		offset int
		url    string
	}
	var hits []hit

	for _, loc := range literalFetchRegex.FindAllStringSubmatchIndex(src, -1) {
		hits = append(hits, hit{offset: loc[0], url: src[loc[2]:loc[3]]})
	}
	for _, loc := range templateFetchRegex.FindAllStringSubmatchIndex(src, -1) {
		base, ok := baseURLs[src[loc[2]:loc[3]]]
		if !ok {
			continue
		}
		hits = append(hits, hit{offset: loc[0], url: base + src[loc[4]:loc[5]]})
	}
	for _, loc := range concatFetchRegex.FindAllStringSubmatchIndex(src, -1) {
		base, ok := baseURLs[src[loc[2]:loc[3]]]
		if !ok {
			continue
		}
		hits = append(hits, hit{offset: loc[0], url: base + src[loc[4]:loc[5]]})
	}

	var usages []types.ImplementationUsage
	for _, h := range hits {
		apiID, ok := s.registry.IdentifyAPI(h.url)
		if !ok {
			continue
		}
		if apiFilter != "" && apiID != apiFilter {
			continue
		}

		raw := callContext(src, h.offset)
		usage := types.ImplementationUsage{
			FilePath:     filePath,
			FunctionName: enclosingFunction(src, h.offset),
			LineNumber:   lineNumber(src, h.offset),
			APIID:        apiID,
			EndpointPath: urlPath(h.url),
			Method:       extractMethod(raw),
			UsedFields:   extractBodyFields(raw),
			Headers:      extractHeaders(raw),
			RawCode:      raw,
		}
		usages = append(usages, usage)
	}

	return usages
}

// collectBaseURLs maps statically-declared const names to URL values.
func collectBaseURLs(src string) map[string]string {
	urls := make(map[string]string)
	for _, m := range baseURLConstRegex.FindAllStringSubmatch(src, -1) {
		urls[m[1]] = strings.TrimSuffix(m[2], "/")
	}
	return urls
}

// urlPath strips scheme, host, and query from a full URL.
func urlPath(raw string) string {
	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "/"
	}
	path := rest[slash:]
	if q := strings.IndexAny(path, "?#"); q >= 0 {
		path = path[:q]
	}
	return path
}

// extractMethod pulls the HTTP method from the fetch options; fetch
// defaults to GET when no method option is present.
func extractMethod(callText string) string {
	if m := methodOptionRegex.FindStringSubmatch(callText); m != nil {
		return m[1]
	}
	return "GET"
}

// extractBodyFields returns the top-level keys of a
// JSON.stringify({...}) body, excluding fetch-option keywords.
func extractBodyFields(callText string) []string {
	loc := stringifyRegex.FindStringIndex(callText)
	if loc == nil {
		return nil
	}

	obj := balancedBraces(callText, loc[0])
	if obj == "" {
		return nil
	}

	var fields []string
	for _, key := range topLevelKeys(obj) {
		if !fetchOptionKeys[key] {
			fields = append(fields, key)
		}
	}
	return fields
}

// extractHeaders returns header pairs whose values are static string
// literals. Anything interpolated is skipped: a computed value tells
// us nothing reliable about the wire shape.
func extractHeaders(callText string) map[string]string {
	loc := headersRegex.FindStringIndex(callText)
	if loc == nil {
		return nil
	}

	block := balancedBraces(callText, loc[0])
	if block == "" {
		return nil
	}

	headers := make(map[string]string)
	for _, m := range headerPairRegex.FindAllStringSubmatch(block, -1) {
		value := m[3]
		if m[2] == "`" && strings.Contains(value, "${") {
			continue
		}
		headers[m[1]] = value
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// enclosingFunction walks backwards from offset for the nearest
// function declaration shape. Best-effort and purely lexical.
func enclosingFunction(src string, offset int) string {
	before := src[:offset]

	best := -1
	name := ""
	for _, re := range []*regexp.Regexp{namedFunctionRegex, arrowConstRegex, methodPropRegex} {
		matches := re.FindAllStringSubmatchIndex(before, -1)
		if len(matches) == 0 {
			continue
		}
		last := matches[len(matches)-1]
		if last[0] > best {
			best = last[0]
			name = before[last[2]:last[3]]
		}
	}
	return name
}

// lineNumber converts a byte offset to a 1-based line number.
func lineNumber(src string, offset int) int {
	return strings.Count(src[:offset], "\n") + 1
}

// String describes the scanner's coverage for logs.
func (s *Scanner) String() string {
	return fmt.Sprintf("scanner(root=%s)", s.Root)
}
