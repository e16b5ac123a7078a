// Package geo resolves request IPs to coarse country labels. Lookups are
// best-effort: a failed or slow lookup yields "Unknown" and never an error,
// because geolocation must not block or fail the redirect path.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	// CountryUnknown is returned for any lookup failure.
	CountryUnknown = "Unknown"
	// CountryLocal is returned for loopback addresses without a lookup.
	CountryLocal = "Local"

	defaultBaseURL = "https://ipinfo.io"
	lookupTimeout  = 2 * time.Second
)

// Resolver maps an IP address to a country label.
type Resolver interface {
	Country(ctx context.Context, ip string) string
}

// HTTPResolver queries an ipinfo.io-style endpoint:
// GET {base}/{ip}/json -> {"country": "US", ...}.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

func NewHTTPResolver() *HTTPResolver {
	return NewHTTPResolverWithBaseURL(defaultBaseURL)
}

// NewHTTPResolverWithBaseURL points the resolver at a custom endpoint,
// used by tests and self-hosted lookup services.
func NewHTTPResolverWithBaseURL(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: lookupTimeout},
	}
}

func (r *HTTPResolver) Country(ctx context.Context, ip string) string {
	if isLocal(ip) {
		return CountryLocal
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/json", r.baseURL, ip), nil)
	if err != nil {
		return CountryUnknown
	}

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Debug("geo lookup failed", "ip", ip, "err", err)
		return CountryUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Debug("geo lookup non-200", "ip", ip, "status", resp.StatusCode)
		return CountryUnknown
	}

	var payload struct {
		Country string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		slog.Debug("geo lookup bad payload", "ip", ip, "err", err)
		return CountryUnknown
	}
	if payload.Country == "" {
		return CountryUnknown
	}
	return payload.Country
}

func isLocal(ip string) bool {
	switch ip {
	case "127.0.0.1", "localhost", "::1":
		return true
	}
	return false
}
