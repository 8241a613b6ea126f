package provider

import (
	"fmt"
	"net/http"
	"net/url"
)

// DefaultRelayURL is the ScraperAPI endpoint
const DefaultRelayURL = "http://api.scraperapi.com"

// Relay is an http.RoundTripper that sends every request through a ScraperAPI style relay.
// The target URL travels in the url query parameter, the relay key in api_key.
type Relay struct {
	Endpoint string
	APIKey   string
	Base     http.RoundTripper
}

// NewRelay creates a relay transport. An empty endpoint selects DefaultRelayURL.
func NewRelay(endpoint, apiKey string) *Relay {
	if endpoint == "" {
		endpoint = DefaultRelayURL
	}
	return &Relay{Endpoint: endpoint, APIKey: apiKey}
}

// RoundTrip implements http.RoundTripper
func (r *Relay) RoundTrip(req *http.Request) (*http.Response, error) {
	endpoint, err := url.Parse(r.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid relay endpoint: %w", err)
	}

	q := endpoint.Query()
	q.Set("api_key", r.APIKey)
	q.Set("url", req.URL.String())
	if len(req.Header) > 0 {
		q.Set("keep_headers", "true")
	}
	endpoint.RawQuery = q.Encode()

	out := req.Clone(req.Context())
	out.URL = endpoint
	out.Host = endpoint.Host

	base := r.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(out)
}
