package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dpe-search/internal/resilience"
)

// DefaultNominatimURL is the public OSM Nominatim instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

type nominatimResult struct {
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	DisplayName string           `json:"display_name"`
	Importance  float64          `json:"importance"`
	Address     nominatimAddress `json:"address"`
}

type nominatimAddress struct {
	Postcode     string `json:"postcode"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
}

func (a nominatimAddress) place() string {
	for _, s := range []string{a.City, a.Town, a.Village, a.Municipality} {
		if s != "" {
			return s
		}
	}
	return ""
}

// NominatimProvider geocodes through OSM Nominatim, limited to France.
type NominatimProvider struct {
	s httpSettings
}

// NewNominatimProvider creates a Nominatim provider. The public instance
// allows 1 req/s.
func NewNominatimProvider(opts ...Option) *NominatimProvider {
	return &NominatimProvider{s: newSettings(DefaultNominatimURL, 1, opts)}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Available implements Provider.
func (p *NominatimProvider) Available() bool { return p.s.baseURL != "" }

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return &Result{Matched: false, Source: "nominatim"}, nil
	}
	if err := p.s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	reqURL := strings.TrimRight(p.s.baseURL, "/") + "/search?" + url.Values{
		"q":              {q},
		"format":         {"jsonv2"},
		"limit":          {"1"},
		"countrycodes":   {"fr"},
		"addressdetails": {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", p.s.userAgent)

	resp, err := p.s.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: nominatim request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("geocode: nominatim", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(results) == 0 {
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	r := results[0]
	lat, errLat := strconv.ParseFloat(r.Lat, 64)
	lon, errLon := strconv.ParseFloat(r.Lon, 64)
	if errLat != nil || errLon != nil {
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	return &Result{
		Latitude:   lat,
		Longitude:  lon,
		PostalCode: firstPostcode(r.Address.Postcode),
		City:       r.Address.place(),
		Label:      r.DisplayName,
		Score:      r.Importance,
		Source:     "nominatim",
		Matched:    true,
	}, nil
}

// Nominatim sometimes returns "75001;75002" for multi-code places.
func firstPostcode(s string) string {
	if i := strings.IndexAny(s, ";,"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
