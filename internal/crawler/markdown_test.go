package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isyncso/apidiag/internal/types"
)

const sampleDocs = "# Prospects API\n\n" +
	"Matches a person to an enriched prospect record using their work email.\n\n" +
	"POST /v1/prospects/match\n\n" +
	"Request body fields: required: `email`, and `first_name` (required). " +
	"You may also send `company_domain` (optional).\n\n" +
	"```json\n" +
	"{\n" +
	"  \"email\": \"ada@example.com\",\n" +
	"  \"first_name\": \"Ada\",\n" +
	"  \"score\": 0.92,\n" +
	"  \"verified\": true,\n" +
	"  \"tags\": [\"engineering\"],\n" +
	"  \"company\": {\"domain\": \"example.com\", \"size\": 120}\n" +
	"}\n" +
	"```\n\n" +
	"The response mirrors the request and adds enrichment data gathered from public\n" +
	"sources. Enrichment coverage varies by region; records without a verified work\n" +
	"email return a partial prospect object. Responses are cached for twenty-four\n" +
	"hours, so repeated lookups for the same person do not consume additional\n" +
	"credits. Rate limits apply per workspace and reset hourly; exceeding them\n" +
	"returns a retry-after header you should honor before submitting more lookups.\n\n" +
	"## Legacy\n\n" +
	"This endpoint is deprecated, use the match endpoint instead.\n\n" +
	"GET /v1/contacts/search\n\n" +
	"## Examples\n\n" +
	"curl -X DELETE 'https://api.surfe.com/v1/prospects/pr_123'\n\n" +
	"See also GET /assets/app.js for the browser bundle.\n"

func findEndpoint(t *testing.T, eps []types.EndpointSpec, method, path string) types.EndpointSpec {
	t.Helper()
	for _, ep := range eps {
		if ep.Method == method && types.NormalizePath(ep.Path) == types.NormalizePath(path) {
			return ep
		}
	}
	t.Fatalf("endpoint %s %s not extracted", method, path)
	return types.EndpointSpec{}
}

func TestExtractEndpoints(t *testing.T) {
	endpoints := extractEndpoints(sampleDocs)

	match := findEndpoint(t, endpoints, "POST", "/v1/prospects/match")
	assert.Contains(t, match.Description, "Matches a person")
	assert.ElementsMatch(t, []string{"email", "first_name"}, match.RequiredFields)
	assert.Equal(t, []string{"company_domain"}, match.OptionalFields)
	assert.False(t, match.Deprecated)

	legacy := findEndpoint(t, endpoints, "GET", "/v1/contacts/search")
	assert.True(t, legacy.Deprecated, "deprecation marker in the context window must be picked up")

	// curl examples are a secondary discovery signal.
	findEndpoint(t, endpoints, "DELETE", "/v1/prospects/pr_123")
}

func TestExtractEndpoints_FiltersAssetPaths(t *testing.T) {
	endpoints := extractEndpoints(sampleDocs)
	for _, ep := range endpoints {
		assert.NotContains(t, ep.Path, ".js")
	}
}

func TestExtractEndpoints_Dedupe(t *testing.T) {
	docs := "POST /v1/widgets\n\nCreates a widget with the given attributes and returns it. " +
		"required: `name`\n\n" +
		"Later in the docs: POST /v1/widgets/ needs `sku` (required).\n"

	endpoints := extractEndpoints(docs)
	require.Len(t, endpoints, 1, "same (method, normalized path) must collapse")
	assert.ElementsMatch(t, []string{"name", "sku"}, endpoints[0].RequiredFields)
	assert.NotEmpty(t, endpoints[0].Description)
}

func TestExtractSchemas(t *testing.T) {
	schemas := extractSchemas(sampleDocs)
	require.Len(t, schemas, 1)

	byName := map[string]types.FieldSpec{}
	for _, f := range schemas[0].Fields {
		byName[f.Name] = f
	}

	assert.Equal(t, types.FieldString, byName["email"].Type)
	assert.Equal(t, types.FieldNumber, byName["score"].Type)
	assert.Equal(t, types.FieldBoolean, byName["verified"].Type)
	assert.Equal(t, types.FieldArray, byName["tags"].Type)
	assert.Equal(t, types.FieldObject, byName["company"].Type)

	// One level of nesting is flattened with dotted names.
	assert.Equal(t, types.FieldString, byName["company.domain"].Type)
	assert.Equal(t, types.FieldNumber, byName["company.size"].Type)

	for _, f := range schemas[0].Fields {
		assert.False(t, f.Required, "required is unknowable from an example payload")
	}
}

func TestExtractSchemas_SkipsInvalidJSON(t *testing.T) {
	docs := "```json\n{not json at all\n```\n\n```\n[1, 2, 3]\n```\n"
	assert.Empty(t, extractSchemas(docs))
}

func TestExtractSchemas_DedupeByFieldSet(t *testing.T) {
	docs := "```json\n{\"a\": 1, \"b\": 2}\n```\n\n" +
		"```json\n{\"b\": 9, \"a\": 7}\n```\n\n" +
		"```json\n{\"a\": 1, \"c\": 2}\n```\n"

	schemas := extractSchemas(docs)
	assert.Len(t, schemas, 2, "identical field-name sets collapse")
}

func TestExtractVersion(t *testing.T) {
	assert.Equal(t, "v2", extractVersion("Welcome to API v2 docs"))
	assert.Equal(t, "v1.5", extractVersion("release v1.5 notes"))
	assert.Equal(t, "", extractVersion("no version here"))
}

func TestURLPath(t *testing.T) {
	assert.Equal(t, "/v1/things", urlPath("https://api.example.com/v1/things?x=1"))
	assert.Equal(t, "", urlPath("https://api.example.com"))
	assert.Equal(t, "", urlPath("https://api.example.com/"))
}
