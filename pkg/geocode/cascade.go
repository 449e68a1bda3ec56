package geocode

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, query string) (*Result, error)
	Available() bool
}

// Reverser is implemented by providers that can reverse-geocode.
type Reverser interface {
	Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error)
}

// CascadeClient tries geocode providers in order until one matches.
type CascadeClient struct {
	providers []Provider
}

var _ Client = (*CascadeClient)(nil)

// NewCascadeClient creates a CascadeClient that tries providers in order.
func NewCascadeClient(providers ...Provider) *CascadeClient {
	return &CascadeClient{providers: providers}
}

// NewDefaultClient wires BAN first and Nominatim as fallback.
func NewDefaultClient(ban *BANProvider, nominatim *NominatimProvider) *CascadeClient {
	return NewCascadeClient(ban, nominatim)
}

// Geocode implements Client. Provider errors are logged and skipped; when
// every provider misses the result is unmatched with a nil error.
func (c *CascadeClient) Geocode(ctx context.Context, query string) (*Result, error) {
	var lastResult *Result
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Geocode(ctx, query)
		if err != nil {
			zap.L().Debug("geocode cascade: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.String("query", query),
				zap.Error(err),
			)
			continue
		}
		if result != nil && result.Matched {
			return result, nil
		}
		if result != nil {
			lastResult = result
		}
	}

	noMatch := &Result{Matched: false, Source: "cascade"}
	if lastResult != nil {
		noMatch.Source = lastResult.Source
		noMatch.Score = lastResult.Score
	}
	return noMatch, nil
}

// Reverse implements Client using the first provider that supports it.
func (c *CascadeClient) Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	for _, p := range c.providers {
		r, ok := p.(Reverser)
		if !ok || !p.Available() {
			continue
		}
		return r.Reverse(ctx, lat, lon)
	}
	return nil, eris.New("geocode: no provider supports reverse geocoding")
}
