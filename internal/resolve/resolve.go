// Package resolve turns a postal code or commune name into the geography a
// search is scoped to.
package resolve

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dpe-search/internal/geo"
	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/internal/refdata"
	"github.com/sells-group/dpe-search/pkg/geocode"
)

// SourceRefData marks coordinates taken from the reference data.
const SourceRefData = "refdata"

// RefData is the reference lookup service the resolver reads.
type RefData interface {
	Department(ctx context.Context, code string) (*refdata.Department, error)
	ForPostalCode(ctx context.Context, pc string) (*refdata.Department, error)
	Loaded() []*refdata.Department
}

// Geocoder resolves free text when the reference data cannot.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*geocode.Result, error)
}

// Resolver maps commune input to coordinates. It is safe for concurrent use.
type Resolver struct {
	ref      RefData
	geocoder Geocoder
}

// New creates a Resolver. geocoder may be nil.
func New(ref RefData, geocoder Geocoder) *Resolver {
	return &Resolver{ref: ref, geocoder: geocoder}
}

// Resolve returns the coordinates for a postal code or commune name, or nil
// when no source can place it. Coordinates are never invented. An error is
// returned only when ctx is done.
func (r *Resolver) Resolve(ctx context.Context, input string) (*model.CommuneCoordinates, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	var coords *model.CommuneCoordinates
	if model.IsPostalCode(input) {
		coords = r.resolvePostalCode(ctx, input)
	} else {
		coords = r.resolveName(ctx, input)
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "resolve: cancelled")
	}
	return coords, nil
}

func (r *Resolver) resolvePostalCode(ctx context.Context, pc string) *model.CommuneCoordinates {
	if coords := r.fromPostalCode(ctx, pc); coords != nil {
		return coords
	}

	// Postal code missing from the reference data: geocode its text.
	res := r.geocode(ctx, pc)
	if res == nil {
		return nil
	}
	coords := fromGeocoder(res)
	coords.PostalCode = pc
	return coords
}

func (r *Resolver) resolveName(ctx context.Context, name string) *model.CommuneCoordinates {
	loaded := r.ref.Loaded()
	for _, find := range []func(*refdata.Department, string) *refdata.Commune{
		(*refdata.Department).FindExact,
		(*refdata.Department).FindContaining,
	} {
		for _, d := range loaded {
			if c := find(d, name); c != nil {
				if coords := communeShape(d, c, ""); coords != nil {
					return coords
				}
			}
		}
	}

	res := r.geocode(ctx, name)
	if res == nil {
		return nil
	}

	// Re-resolve through the reference data so radius and town hall
	// precision are kept.
	if res.PostalCode != "" {
		if d := r.department(ctx, res.PostalCode); d != nil {
			if c := pickCommune(d, res, name); c != nil {
				if coords := communeShape(d, c, res.PostalCode); coords != nil {
					return coords
				}
			}
		}
		if coords := r.fromPostalCode(ctx, res.PostalCode); coords != nil {
			return coords
		}
	}
	return fromGeocoder(res)
}

// fromPostalCode builds the single- or multi-commune shape for pc.
func (r *Resolver) fromPostalCode(ctx context.Context, pc string) *model.CommuneCoordinates {
	d := r.department(ctx, pc)
	if d == nil {
		return nil
	}
	communes := d.CommunesFor(pc)
	switch len(communes) {
	case 0:
		return nil
	case 1:
		return communeShape(d, communes[0], pc)
	default:
		return groupShape(d, pc, communes)
	}
}

func (r *Resolver) department(ctx context.Context, pc string) *refdata.Department {
	d, err := r.ref.ForPostalCode(ctx, pc)
	if err != nil {
		if !errors.Is(err, refdata.ErrNotFound) {
			zap.L().Warn("resolve: reference data unavailable",
				zap.String("postal_code", pc),
				zap.Error(err),
			)
		}
		return nil
	}
	return d
}

func (r *Resolver) geocode(ctx context.Context, query string) *geocode.Result {
	if r.geocoder == nil {
		return nil
	}
	res, err := r.geocoder.Geocode(ctx, query)
	if err != nil {
		zap.L().Warn("resolve: geocoder failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	if res == nil || !res.Matched {
		zap.L().Debug("resolve: geocoder found no match", zap.String("query", query))
		return nil
	}
	return res
}

// pickCommune finds the geocoded commune in d, by INSEE code first.
func pickCommune(d *refdata.Department, res *geocode.Result, name string) *refdata.Commune {
	if res.CityCode != "" {
		if c := d.Commune(res.CityCode); c != nil {
			return c
		}
	}
	for _, c := range d.CommunesFor(res.PostalCode) {
		if geo.NameMatches(c.Name, name) || (res.City != "" && geo.NameMatches(c.Name, res.City)) {
			return c
		}
	}
	return nil
}

// communeShape describes a single commune. It returns nil when the commune
// has no coordinates.
func communeShape(d *refdata.Department, c *refdata.Commune, pc string) *model.CommuneCoordinates {
	p, ok := c.Point()
	if !ok {
		return nil
	}
	if pc == "" && len(c.PostalCodes) > 0 {
		pc = c.PostalCodes[0]
	}
	return &model.CommuneCoordinates{
		Point:      p,
		Centre:     c.Centre,
		Mairie:     c.Mairie,
		Radius:     c.Radius,
		PostalCode: pc,
		InseeCode:  c.Insee,
		Name:       c.Name,
		Department: d.Code,
		Source:     SourceRefData,
	}
}

// groupShape describes a postal code shared by several communes: radius 0
// and a coverage radius around the group centre.
func groupShape(d *refdata.Department, pc string, communes []*refdata.Commune) *model.CommuneCoordinates {
	g, _ := d.Group(pc)

	var points []model.Point
	var radii []float64
	names := make([]string, 0, len(communes))
	for _, c := range communes {
		names = append(names, c.Name)
		if p, ok := c.Point(); ok {
			points = append(points, p)
			radii = append(radii, c.Radius)
		}
	}

	var centre model.Point
	switch {
	case g.Centre != nil:
		centre = *g.Centre
	default:
		var ok bool
		if centre, ok = geo.Centroid(points); !ok {
			return nil
		}
	}
	coverage := g.CoverageRadius
	if coverage == 0 {
		coverage = geo.CoverageRadiusKM(centre, points, radii)
	}

	return &model.CommuneCoordinates{
		Point:          centre,
		Centre:         &centre,
		Radius:         0,
		CoverageRadius: coverage,
		IsMultiCommune: true,
		AllPostalCodes: d.PostalCodesFor(pc),
		CommuneCount:   len(communes),
		PostalCode:     pc,
		Name:           strings.Join(names, ", "),
		Department:     d.Code,
		Source:         SourceRefData,
	}
}

// fromGeocoder uses the geocoder's own point with no radius.
func fromGeocoder(res *geocode.Result) *model.CommuneCoordinates {
	p := model.Point{Lat: res.Latitude, Lon: res.Longitude}
	dept, _ := refdata.DepartmentForPostalCode(res.PostalCode)
	return &model.CommuneCoordinates{
		Point:      p,
		Centre:     &p,
		PostalCode: res.PostalCode,
		InseeCode:  res.CityCode,
		Name:       res.City,
		Department: dept,
		Source:     res.Source,
	}
}
