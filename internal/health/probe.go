// Package health probes the connectivity of registered external APIs.
//
// Each provider's quirks live in its own Probe implementation; the
// Checker owns the shared classification of outcomes. Probes are
// registered in a map at startup so adding a provider never grows a
// dispatch switch.
package health

import (
	"context"
	"net/http"
	"strings"
)

// Probe builds the minimal, side-effect-free request used to verify one
// API is reachable and the configured credential is accepted.
type Probe interface {
	// APIID returns the registry id this probe covers.
	APIID() string

	// Request constructs the probe request. It must not perform it.
	Request(ctx context.Context, credential string) (*http.Request, error)
}

// bearerProbe issues a GET against a known-cheap path with a Bearer
// token. Covers the OpenAI-compatible providers (models list is free).
type bearerProbe struct {
	apiID string
	url   string
}

func (p *bearerProbe) APIID() string { return p.apiID }

func (p *bearerProbe) Request(ctx context.Context, credential string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	return req, nil
}

// postProbe issues a deliberately-minimal POST. Used for APIs with no
// free read endpoint: a 400 response still proves the endpoint exists
// and the credential was accepted.
type postProbe struct {
	apiID string
	url   string
	body  string
}

func (p *postProbe) APIID() string { return p.apiID }

func (p *postProbe) Request(ctx context.Context, credential string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, strings.NewReader(p.body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// basicAuthProbe issues a GET with HTTP basic auth. Twilio's API keys
// are account-sid/token pairs; the credential holds "sid:token".
type basicAuthProbe struct {
	apiID string
	url   string
}

func (p *basicAuthProbe) APIID() string { return p.apiID }

func (p *basicAuthProbe) Request(ctx context.Context, credential string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	user, pass, found := strings.Cut(credential, ":")
	if found {
		req.SetBasicAuth(user, pass)
	} else {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	return req, nil
}

// defaultProbes returns the shipped probe set, one per built-in
// registry entry.
func defaultProbes() []Probe {
	return []Probe{
		&bearerProbe{apiID: "together", url: "https://api.together.xyz/v1/models"},
		&bearerProbe{apiID: "groq", url: "https://api.groq.com/openai/v1/models"},
		// An empty match body draws a 400 that still proves reachability.
		&postProbe{apiID: "surfe", url: "https://api.surfe.com/v1/prospects/match", body: "{}"},
		&postProbe{apiID: "tavily", url: "https://api.tavily.com/search", body: "{}"},
		&bearerProbe{apiID: "bolcom", url: "https://api.bol.com/retailer/orders?page=1"},
		&basicAuthProbe{apiID: "twilio", url: "https://api.twilio.com/2010-04-01/Accounts.json?PageSize=1"},
	}
}
