package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isyncso/apidiag/internal/health"
	"github.com/isyncso/apidiag/internal/registry"
	"github.com/isyncso/apidiag/internal/scanner"
	"github.com/isyncso/apidiag/internal/storage"
	"github.com/isyncso/apidiag/internal/storage/sqlite"
	"github.com/isyncso/apidiag/internal/types"
)

func testRegistry() *registry.Registry {
	return registry.NewFromEntries(
		[]types.APIRegistryEntry{
			{
				ID:             "acme",
				BaseURLs:       []string{"https://api.acme.com"},
				EnvironmentKey: "ACME_API_KEY",
				Files:          []string{"f.ts"},
				Active:         true,
			},
		},
		map[string]map[string]string{
			"acme": {"contact_id": "prospect_id"},
		},
		map[string]map[string]string{
			"acme": {"/v1/widgets/create": "/v1/widgets/new"},
		},
	)
}

// newTestServer wires a server around an in-memory store and a source
// tree under a temp dir. The health checker sees no credentials, so no
// probe ever leaves the process.
func newTestServer(t *testing.T, sources map[string]string) (*Server, *sqlite.Store) {
	t.Helper()

	dir := t.TempDir()
	for name, content := range sources {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := testRegistry()
	srv, err := New(Config{
		Registry: reg,
		Checker:  health.NewChecker(reg, health.WithEnv(func(string) string { return "" })),
		Scanner:  scanner.New(reg, dir),
		Store:    store,
	})
	require.NoError(t, err)
	return srv, store
}

func listOpenFilter() storage.MismatchFilter {
	return storage.MismatchFilter{Status: types.StatusOpen}
}

func postAction(t *testing.T, srv *Server, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api-diagnostics", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "every response must be the envelope")
	return rec, resp
}

func TestUnknownAction(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := postAction(t, srv, `{"action": "reboot"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "reboot")
}

func TestInvalidBody(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := postAction(t, srv, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}

func TestHealthCheck_RequiresAPIID(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := postAction(t, srv, `{"action": "healthCheck"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "apiId")
}

func TestHealthCheck_UnknownAPI(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := postAction(t, srv, `{"action": "healthCheck", "apiId": "nope"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}

func TestHealthCheck_MissingCredentialIsStillSuccess(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := postAction(t, srv, `{"action": "healthCheck", "apiId": "acme"}`)

	// A down API is a successful diagnosis, not a failed action.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "down")
}

func TestHealthCheckAll(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := postAction(t, srv, `{"action": "healthCheckAll"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(0), data["healthy"])
}

func TestCrawl_WithoutProviderIsBusinessFailure(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := postAction(t, srv, `{"action": "crawl", "apiId": "acme"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "crawl provider")
}

func TestCrawl_UnknownAPI(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := postAction(t, srv, `{"action": "crawl", "apiId": "nope"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}

const widgetSource = `async function createWidget(name) {
  return fetch('https://api.acme.com/v1/widgets/create', {
    method: 'POST',
    body: JSON.stringify({ name })
  });
}
`

func TestScan(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"f.ts": widgetSource})
	rec, resp := postAction(t, srv, `{"action": "scan"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["count"])
}

func TestDetect_PersistsMismatches(t *testing.T) {
	srv, store := newTestServer(t, map[string]string{"f.ts": widgetSource})
	rec, resp := postAction(t, srv, `{"action": "detect"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	// No spec is stored, but the static migration table catches the
	// moved widgets endpoint.
	stored, err := store.ListMismatches(t.Context(), listOpenFilter())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, types.MismatchEndpointNotFound, stored[0].Type)
	assert.Equal(t, "/v1/widgets/new", stored[0].SuggestedFix.FixedCode)
}

func TestGenerateFix_FlowAdvancesStatus(t *testing.T) {
	srv, store := newTestServer(t, map[string]string{"f.ts": widgetSource})

	_, detectResp := postAction(t, srv, `{"action": "detect"}`)
	require.True(t, detectResp.Success)

	stored, err := store.ListMismatches(t.Context(), listOpenFilter())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	id := stored[0].ID

	rec, resp := postAction(t, srv, `{"action": "generateFix", "mismatchId": "`+id+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	updated, err := store.GetMismatch(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFixGenerated, updated.Status)
}

func TestGenerateFix_MissingID(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := postAction(t, srv, `{"action": "generateFix"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}

func TestGenerateFix_UnknownID(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := postAction(t, srv, `{"action": "generateFix", "mismatchId": "mm-missing"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "not found")
}

func TestStatus_Report(t *testing.T) {
	srv, store := newTestServer(t, map[string]string{"f.ts": widgetSource})

	require.NoError(t, store.UpsertSpec(t.Context(), &types.CrawledAPISpec{
		APIID:     "acme",
		Version:   "3",
		CrawledAt: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
		Endpoints: []types.EndpointSpec{{Method: "POST", Path: "/v1/widgets/new"}},
	}))
	_, detectResp := postAction(t, srv, `{"action": "detect"}`)
	require.True(t, detectResp.Success)

	rec, resp := postAction(t, srv, `{"action": "status"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	report := data["report"].(string)
	assert.Contains(t, report, "acme")
	assert.Contains(t, report, "1 endpoints")
	assert.Contains(t, report, "auto-fixable")
}

func TestStatus_InvalidFilter(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := postAction(t, srv, `{"action": "status", "options": {"status": "sideways"}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}
