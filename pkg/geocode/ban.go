package geocode

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dpe-search/internal/resilience"
)

// DefaultBANURL is the Base Adresse Nationale API root.
const DefaultBANURL = "https://api-adresse.data.gouv.fr"

// banMinScore is the relevance below which a BAN hit counts as a miss.
const banMinScore = 0.4

// BANProvider geocodes communes through the Base Adresse Nationale.
type BANProvider struct {
	s httpSettings
}

// NewBANProvider creates a BAN provider. BAN allows 50 req/s per IP.
func NewBANProvider(opts ...Option) *BANProvider {
	return &BANProvider{s: newSettings(DefaultBANURL, 40, opts)}
}

// Name implements Provider.
func (p *BANProvider) Name() string { return "ban" }

// Available implements Provider.
func (p *BANProvider) Available() bool { return p.s.baseURL != "" }

// Geocode implements Provider. Queries are restricted to municipalities.
func (p *BANProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	q := strings.TrimSpace(query)
	if len(q) < 3 {
		return &Result{Matched: false, Source: "ban"}, nil
	}

	params := url.Values{
		"q":     {q},
		"type":  {"municipality"},
		"limit": {"1"},
	}
	fc, err := p.get(ctx, "/search/", params)
	if err != nil {
		return nil, err
	}

	f, pt, ok := firstPoint(fc)
	if !ok {
		return &Result{Matched: false, Source: "ban"}, nil
	}
	score := f.Properties.MustFloat64("score", 0)
	if score < banMinScore {
		return &Result{Matched: false, Source: "ban", Score: score}, nil
	}

	return &Result{
		Latitude:   pt.Lat(),
		Longitude:  pt.Lon(),
		PostalCode: f.Properties.MustString("postcode", ""),
		CityCode:   f.Properties.MustString("citycode", ""),
		City:       f.Properties.MustString("city", ""),
		Label:      f.Properties.MustString("label", ""),
		Score:      score,
		Source:     "ban",
		Matched:    true,
	}, nil
}

// Reverse returns the closest BAN address to a point.
func (p *BANProvider) Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	params := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', 6, 64)},
		"limit": {"1"},
	}
	fc, err := p.get(ctx, "/reverse/", params)
	if err != nil {
		return nil, err
	}

	f, _, ok := firstPoint(fc)
	if !ok {
		return nil, nil
	}
	return &ReverseResult{
		Label:       f.Properties.MustString("label", ""),
		HouseNumber: f.Properties.MustString("housenumber", ""),
		Street:      f.Properties.MustString("street", ""),
		PostalCode:  f.Properties.MustString("postcode", ""),
		City:        f.Properties.MustString("city", ""),
		Distance:    f.Properties.MustFloat64("distance", 0),
	}, nil
}

func (p *BANProvider) get(ctx context.Context, path string, params url.Values) (*geojson.FeatureCollection, error) {
	if err := p.s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: ban rate limit")
	}

	reqURL := strings.TrimRight(p.s.baseURL, "/") + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: ban build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.s.userAgent)

	resp, err := p.s.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: ban request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("geocode: ban", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: ban read body")
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: ban parse response")
	}
	return fc, nil
}

func firstPoint(fc *geojson.FeatureCollection) (*geojson.Feature, orb.Point, bool) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, orb.Point{}, false
	}
	f := fc.Features[0]
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return nil, orb.Point{}, false
	}
	return f, pt, true
}
