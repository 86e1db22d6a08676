package registry

import "github.com/isyncso/apidiag/internal/types"

// builtinEntries is the shipped API table. Files are relative to the
// scanner's source root (the supabase functions tree in production).
var builtinEntries = []types.APIRegistryEntry{
	{
		ID:             "together",
		DisplayName:    "Together AI",
		BaseURLs:       []string{"https://api.together.xyz", "https://api.together.ai"},
		DocsURL:        "https://docs.together.ai/docs",
		OpenAPIURL:     "https://api.together.xyz/openapi.json",
		EnvironmentKey: "TOGETHER_API_KEY",
		Files: []string{
			"supabase/functions/generate-user-profile/index.ts",
			"supabase/functions/generate-verbal-identity/index.ts",
			"supabase/functions/research-product/index.ts",
		},
		Active: true,
	},
	{
		ID:             "groq",
		DisplayName:    "Groq",
		BaseURLs:       []string{"https://api.groq.com"},
		DocsURL:        "https://console.groq.com/docs",
		EnvironmentKey: "GROQ_API_KEY",
		Files: []string{
			"supabase/functions/process-order-email/index.ts",
			"supabase/functions/smart-import-invoice/index.ts",
		},
		Active: true,
	},
	{
		ID:             "surfe",
		DisplayName:    "Surfe",
		BaseURLs:       []string{"https://api.surfe.com"},
		DocsURL:        "https://developers.surfe.com",
		EnvironmentKey: "SURFE_API_KEY",
		Files: []string{
			"supabase/functions/generateCandidateIntelligence/index.ts",
			"supabase/functions/research-supplier/index.ts",
		},
		Active: true,
	},
	{
		ID:             "tavily",
		DisplayName:    "Tavily Search",
		BaseURLs:       []string{"https://api.tavily.com"},
		DocsURL:        "https://docs.tavily.com",
		EnvironmentKey: "TAVILY_API_KEY",
		Files: []string{
			"supabase/functions/research-product/index.ts",
			"supabase/functions/reach-seo-scan/index.ts",
		},
		Active: true,
	},
	{
		ID:             "bolcom",
		DisplayName:    "bol.com Retailer API",
		BaseURLs:       []string{"https://api.bol.com"},
		DocsURL:        "https://api.bol.com/retailer/public/redoc/v10",
		OpenAPIURL:     "https://api.bol.com/retailer/public/apispec/v10",
		EnvironmentKey: "BOL_CLIENT_SECRET",
		Files: []string{
			"supabase/functions/bolcom-api/index.ts",
			"supabase/functions/sync-studio-publish-bol/index.ts",
		},
		Active: true,
	},
	{
		ID:             "twilio",
		DisplayName:    "Twilio",
		BaseURLs:       []string{"https://api.twilio.com", "https://voice.twilio.com"},
		DocsURL:        "https://www.twilio.com/docs/usage/api",
		EnvironmentKey: "TWILIO_AUTH_TOKEN",
		Files: []string{
			"supabase/functions/twilio-numbers/index.ts",
			"supabase/functions/voice-webhook/index.ts",
		},
		Active: true,
	},
}

// builtinFieldRenames records upstream field renames we know about from
// provider changelogs, independent of any crawled specification.
var builtinFieldRenames = map[string]map[string]string{
	"surfe": {
		"contact_id":   "prospect_id",
		"company_name": "organization_name",
		"linkedin_url": "linkedin",
	},
	"bolcom": {
		"ean": "gtin",
	},
}

// builtinEndpointMigrations records upstream endpoint moves. Keys are
// normalized by the registry builder.
var builtinEndpointMigrations = map[string]map[string]string{
	"surfe": {
		"/v1/contacts/match":  "/v1/prospects/match",
		"/v1/contacts/enrich": "/v1/prospects/enrich",
	},
	"together": {
		"/v1/complete": "/v1/chat/completions",
	},
	"bolcom": {
		"/retailer/offers/export": "/retailer/offers/export/csv",
	},
}
