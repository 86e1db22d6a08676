package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already normal", "/v1/prospects/match", "/v1/prospects/match"},
		{"uppercase", "/V1/Prospects/Match", "/v1/prospects/match"},
		{"trailing slash", "/v1/widgets/", "/v1/widgets"},
		{"duplicate slashes", "/v1//widgets///new", "/v1/widgets/new"},
		{"missing leading slash", "v1/widgets", "/v1/widgets"},
		{"bare slash", "/", "/"},
		{"empty", "", "/"},
		{"whitespace", "  /v1/models  ", "/v1/models"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}

func TestNormalizePath_Idempotent(t *testing.T) {
	paths := []string{
		"/v1/prospects/match",
		"/V1//Widgets/",
		"v2/contacts",
		"///",
		"",
	}
	for _, p := range paths {
		once := NormalizePath(p)
		assert.Equal(t, once, NormalizePath(once), "normalization must be idempotent for %q", p)
	}
}

func TestPathSegments(t *testing.T) {
	assert.Equal(t, []string{"v1", "widgets", "new"}, PathSegments("/v1/widgets/new/"))
	assert.Nil(t, PathSegments("/"))
}

func TestMismatchValidate(t *testing.T) {
	valid := APIMismatch{
		ID:       "mm-1",
		APIID:    "acme",
		Severity: SeverityCritical,
		Type:     MismatchEndpointNotFound,
		Implementation: ImplementationUsage{
			APIID:        "acme",
			EndpointPath: "/v1/widgets/create",
			Method:       "POST",
		},
		Status:     StatusOpen,
		DetectedAt: time.Now(),
	}
	require.NoError(t, valid.Validate())

	crossed := valid
	crossed.Implementation.APIID = "other"
	assert.Error(t, crossed.Validate())

	fixless := valid
	fixless.AutoFixable = true
	assert.Error(t, fixless.Validate(), "auto-fixable mismatch without a fix must fail validation")
	fixless.SuggestedFix = &CodeFix{FixedCode: "/v1/widgets/new"}
	assert.NoError(t, fixless.Validate())

	badStatus := valid
	badStatus.Status = "reopened"
	assert.Error(t, badStatus.Validate())
}

func TestFindEndpoint(t *testing.T) {
	spec := CrawledAPISpec{
		APIID: "acme",
		Endpoints: []EndpointSpec{
			{Method: "POST", Path: "/v1/Widgets/New/"},
			{Method: "GET", Path: "/v1/widgets"},
		},
	}

	ep, ok := spec.FindEndpoint("POST", "/v1/widgets/new")
	require.True(t, ok)
	assert.Equal(t, "/v1/Widgets/New/", ep.Path)

	_, ok = spec.FindEndpoint("DELETE", "/v1/widgets/new")
	assert.False(t, ok)
}
