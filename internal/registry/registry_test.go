package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isyncso/apidiag/internal/types"
)

func TestEntryLookup(t *testing.T) {
	r := New()

	e, ok := r.Entry("surfe")
	require.True(t, ok)
	assert.Equal(t, "SURFE_API_KEY", e.EnvironmentKey)
	assert.NotEmpty(t, e.Files)

	_, ok = r.Entry("nonexistent")
	assert.False(t, ok)
}

func TestActiveEntries(t *testing.T) {
	r := NewFromEntries([]types.APIRegistryEntry{
		{ID: "a", Active: true},
		{ID: "b", Active: false},
		{ID: "c", Active: true},
	}, nil, nil)

	active := r.ActiveEntries()
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].ID)
	assert.Equal(t, "c", active[1].ID)
}

func TestIdentifyAPI(t *testing.T) {
	r := New()

	tests := []struct {
		url    string
		wantID string
		wantOK bool
	}{
		{"https://api.together.xyz/v1/chat/completions", "together", true},
		{"https://api.together.ai/v1/models", "together", true},
		{"https://api.surfe.com/v1/prospects/match", "surfe", true},
		{"https://api.bol.com/retailer/orders", "bolcom", true},
		{"http://api.groq.com/openai/v1/models", "groq", true},
		{"https://api.together.xyz.evil.com/v1", "", false},
		{"https://example.com/api", "", false},
		{"not a url", "", false},
	}

	for _, tt := range tests {
		id, ok := r.IdentifyAPI(tt.url)
		assert.Equal(t, tt.wantOK, ok, "url %q", tt.url)
		assert.Equal(t, tt.wantID, id, "url %q", tt.url)
	}
}

func TestFieldRename(t *testing.T) {
	r := New()

	renamed, ok := r.FieldRename("surfe", "contact_id")
	require.True(t, ok)
	assert.Equal(t, "prospect_id", renamed)

	_, ok = r.FieldRename("surfe", "email")
	assert.False(t, ok)

	_, ok = r.FieldRename("unknown-api", "contact_id")
	assert.False(t, ok)
}

func TestEndpointMigration(t *testing.T) {
	r := New()

	to, ok := r.EndpointMigration("surfe", "/v1/contacts/match")
	require.True(t, ok)
	assert.Equal(t, "/v1/prospects/match", to)

	// Lookup normalizes the input path.
	to, ok = r.EndpointMigration("surfe", "/V1/Contacts/Match/")
	require.True(t, ok)
	assert.Equal(t, "/v1/prospects/match", to)

	_, ok = r.EndpointMigration("surfe", "/v1/prospects/match")
	assert.False(t, ok)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	content := `
apis:
  - id: acme
    display_name: Acme
    base_urls: ["https://api.acme.com"]
    environment_key: ACME_API_KEY
    files: ["f.ts"]
    active: true
field_renames:
  acme:
    qty: quantity
endpoint_migrations:
  acme:
    /v1/widgets/create: /v1/widgets/new
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r, err := Load(path)
	require.NoError(t, err)

	e, ok := r.Entry("acme")
	require.True(t, ok)
	assert.Equal(t, "ACME_API_KEY", e.EnvironmentKey)

	id, ok := r.IdentifyAPI("https://api.acme.com/v1/widgets/create")
	require.True(t, ok)
	assert.Equal(t, "acme", id)

	to, ok := r.EndpointMigration("acme", "/v1/widgets/create")
	require.True(t, ok)
	assert.Equal(t, "/v1/widgets/new", to)
}

func TestLoadYAML_Empty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apis: []\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
