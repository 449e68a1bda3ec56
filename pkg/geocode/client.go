// Package geocode resolves French place names to coordinates and postal
// codes via the Base Adresse Nationale (primary) and OSM Nominatim
// (fallback), and reverse-geocodes points to street addresses.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client geocodes free-text place names.
type Client interface {
	// Geocode returns the best match for query. An unmatched result is not
	// an error.
	Geocode(ctx context.Context, query string) (*Result, error)

	// Reverse returns the closest address to a point.
	Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error)
}

// Result holds the geocoding output for a query.
type Result struct {
	Latitude   float64
	Longitude  float64
	PostalCode string
	CityCode   string // INSEE code when the provider knows it
	City       string
	Label      string
	Score      float64
	Source     string // "ban" or "nominatim"
	Matched    bool
}

// ReverseResult holds the address closest to a point.
type ReverseResult struct {
	Label       string `json:"label"`
	HouseNumber string `json:"housenumber"`
	Street      string `json:"street"`
	PostalCode  string `json:"postcode"`
	City        string `json:"city"`
	Distance    float64
}

// Option configures a provider.
type Option func(*httpSettings)

type httpSettings struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *httpSettings) {
		s.httpClient = hc
	}
}

// WithBaseURL overrides the provider's API root.
func WithBaseURL(u string) Option {
	return func(s *httpSettings) {
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header (required by Nominatim).
func WithUserAgent(ua string) Option {
	return func(s *httpSettings) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithRateLimit sets requests per second.
func WithRateLimit(rps float64) Option {
	return func(s *httpSettings) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

func newSettings(baseURL string, rps float64, opts []Option) httpSettings {
	s := httpSettings{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		userAgent:  "dpe-search/1.0",
		limiter:    rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
