package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isyncso/apidiag/internal/registry"
	"github.com/isyncso/apidiag/internal/types"
)

func testRegistry() *registry.Registry {
	return registry.NewFromEntries([]types.APIRegistryEntry{
		{ID: "acme", BaseURLs: []string{"https://api.acme.com"}, Files: []string{"f.ts"}, Active: true},
		{ID: "other", BaseURLs: []string{"https://api.other.com"}, Files: []string{"g.ts"}, Active: true},
	}, nil, nil)
}

const literalSource = `// order service
async function createWidget(name, qty) {
  const response = await fetch('https://api.acme.com/v1/widgets/create', {
    method: 'POST',
    headers: {
      'Content-Type': 'application/json',
      'Authorization': ` + "`Bearer ${apiKey}`" + `,
      'X-Client': 'sync-studio'
    },
    body: JSON.stringify({ name, qty, sku: buildSku(name), options: { color: 'red' } })
  });
  return response.json();
}
`

func TestScanFile_LiteralURL(t *testing.T) {
	s := New(testRegistry(), "")
	usages := s.ScanFile("f.ts", literalSource, "")
	require.Len(t, usages, 1)

	u := usages[0]
	assert.Equal(t, "acme", u.APIID)
	assert.Equal(t, "/v1/widgets/create", u.EndpointPath)
	assert.Equal(t, "POST", u.Method)
	assert.Equal(t, "f.ts", u.FilePath)
	assert.Equal(t, "createWidget", u.FunctionName)
	assert.Equal(t, 3, u.LineNumber)

	// Top-level body keys only; nested object keys are not fields.
	assert.ElementsMatch(t, []string{"name", "qty", "sku", "options"}, u.UsedFields)
	assert.NotContains(t, u.UsedFields, "color")

	// Static headers only; the interpolated Authorization is skipped.
	assert.Equal(t, "application/json", u.Headers["Content-Type"])
	assert.Equal(t, "sync-studio", u.Headers["X-Client"])
	assert.NotContains(t, u.Headers, "Authorization")

	// The call context is captured through the balanced-paren scan and
	// stops at the fetch call's closing paren.
	assert.Contains(t, u.RawCode, "JSON.stringify")
	assert.Contains(t, u.RawCode, "buildSku(name)")
	assert.NotContains(t, u.RawCode, "return")
}

const templateSource = `const ACME_BASE = 'https://api.acme.com';
const IGNORED = 'not a url';

export const matchProspect = async (email) => {
  const res = await fetch(` + "`${ACME_BASE}/v1/prospects/match`" + `, {
    method: 'POST',
    body: JSON.stringify({ email })
  });
  return res;
};

const lookup = {
  search: (q) => fetch(ACME_BASE + '/v1/search?q=acme')
};
`

func TestScanFile_TemplateAndConcat(t *testing.T) {
	s := New(testRegistry(), "")
	usages := s.ScanFile("f.ts", templateSource, "")
	require.Len(t, usages, 2)

	match := usages[0]
	assert.Equal(t, "/v1/prospects/match", match.EndpointPath)
	assert.Equal(t, "POST", match.Method)
	assert.Equal(t, []string{"email"}, match.UsedFields, "shorthand properties count as fields")
	assert.Equal(t, "matchProspect", match.FunctionName)

	search := usages[1]
	assert.Equal(t, "/v1/search", search.EndpointPath, "query strings are stripped")
	assert.Equal(t, "GET", search.Method, "fetch defaults to GET")
	assert.Equal(t, "search", search.FunctionName)
}

func TestScanFile_UnknownHostSkipped(t *testing.T) {
	src := `fetch('https://api.unknown.dev/v1/x', { method: 'POST' })`
	s := New(testRegistry(), "")
	assert.Empty(t, s.ScanFile("f.ts", src, ""))
}

func TestScanFile_APIFilter(t *testing.T) {
	src := `fetch('https://api.acme.com/v1/a'); fetch('https://api.other.com/v1/b');`
	s := New(testRegistry(), "")

	usages := s.ScanFile("f.ts", src, "other")
	require.Len(t, usages, 1)
	assert.Equal(t, "other", usages[0].APIID)
}

func TestScanFile_ParensInsideStrings(t *testing.T) {
	src := `fetch('https://api.acme.com/v1/log', {
  method: 'POST',
  body: JSON.stringify({ message: 'call failed :( (retrying)', level: 'warn' })
})`
	s := New(testRegistry(), "")
	usages := s.ScanFile("f.ts", src, "")
	require.Len(t, usages, 1)
	assert.ElementsMatch(t, []string{"message", "level"}, usages[0].UsedFields)
	assert.Contains(t, usages[0].RawCode, "level: 'warn'")
}

func TestScanFile_NoMatches(t *testing.T) {
	s := New(testRegistry(), "")
	assert.Empty(t, s.ScanFile("f.ts", "export const x = 1;\n", ""))
	assert.Empty(t, s.ScanFile("f.ts", "", ""))
}

func TestScan_MissingFileSkipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.ts"),
		[]byte(`fetch('https://api.acme.com/v1/widgets')`), 0644))
	// g.ts intentionally absent.

	s := New(testRegistry(), dir)
	usages, err := s.Scan(context.Background(), "")
	require.NoError(t, err, "a missing file must not fail the scan")
	require.Len(t, usages, 1)
	assert.Equal(t, "acme", usages[0].APIID)
}

func TestTopLevelKeys(t *testing.T) {
	keys := topLevelKeys(`{ name, qty: 2, 'meta': { a: 1 }, tags: ['x'], fn: call(a, b) }`)
	assert.Equal(t, []string{"name", "qty", "meta", "tags", "fn"}, keys)

	assert.Empty(t, topLevelKeys(""))
	assert.Empty(t, topLevelKeys(`{}`))
	assert.Empty(t, topLevelKeys(`{ ...spread }`))
}

func TestLineNumber(t *testing.T) {
	src := "a\nb\nc fetch('https://api.acme.com/v1/x')"
	assert.Equal(t, 3, lineNumber(src, len("a\nb\nc ")))
	assert.Equal(t, 1, lineNumber(src, 0))
}
