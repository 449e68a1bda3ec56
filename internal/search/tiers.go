// Package search runs the tiered DPE search: progressively relaxed queries
// against the current dataset, a legacy-dataset fallback, and the merge of
// both into one ranked list.
package search

import (
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dpe-search/internal/dpe"
	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/pkg/ademe"
)

// Tier is one step of the relaxation schedule.
type Tier struct {
	Name model.Tier `yaml:"name"`
	// RadiusKM is added to the commune's own radius or coverage.
	RadiusKM float64 `yaml:"radius_km"`
	// SurfaceUnits is an absolute surface tolerance in m², used when it
	// exceeds SurfacePct.
	SurfaceUnits float64 `yaml:"surface_units"`
	SurfacePct   float64 `yaml:"surface_pct"`
	EnergyPct    float64 `yaml:"energy_pct"`
	GESPct       float64 `yaml:"ges_pct"`
	Size         int     `yaml:"size"`
}

// FuzzyTier is the last-resort department-wide scan.
type FuzzyTier struct {
	// RadiusKM is the straight-line post-filter around the reference point.
	RadiusKM float64 `yaml:"radius_km"`
	// EnergyPcts × GESPcts is the grid of tolerances tried in order.
	EnergyPcts []float64 `yaml:"energy_pcts"`
	GESPcts    []float64 `yaml:"ges_pcts"`
	Size       int       `yaml:"size"`
}

// Schedule is the ordered tier list plus the fuzzy fallback.
type Schedule struct {
	Tiers []Tier    `yaml:"tiers"`
	Fuzzy FuzzyTier `yaml:"fuzzy"`
	// LegacyStops are the pool sizes at which the legacy search stops
	// after its first and second tiers.
	LegacyStops []int `yaml:"legacy_stops"`
}

// DefaultSchedule returns the production relaxation schedule.
func DefaultSchedule() Schedule {
	return Schedule{
		Tiers: []Tier{
			{Name: model.TierStrict, RadiusKM: 5, SurfaceUnits: 1, Size: 20},
			{Name: model.TierExpanded, RadiusKM: 15, SurfacePct: 15, EnergyPct: 5, GESPct: 5, Size: 30},
			{Name: model.TierRegional, RadiusKM: 30, SurfacePct: 35, EnergyPct: 10, GESPct: 10, Size: 50},
		},
		Fuzzy: FuzzyTier{
			RadiusKM:   25,
			EnergyPcts: []float64{5, 10},
			GESPcts:    []float64{10, 20},
			Size:       50,
		},
		LegacyStops: []int{10, 20},
	}
}

// LoadSchedule reads a schedule from a YAML file with a top-level "search"
// key. Sections missing from the file keep their defaults.
func LoadSchedule(path string) (Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schedule{}, eris.Wrapf(err, "search: read tiers %s", path)
	}

	var wrapper struct {
		Search Schedule `yaml:"search"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Schedule{}, eris.Wrap(err, "search: parse tiers")
	}

	s := wrapper.Search
	def := DefaultSchedule()
	if len(s.Tiers) == 0 {
		s.Tiers = def.Tiers
	}
	if s.Fuzzy.RadiusKM == 0 {
		s.Fuzzy.RadiusKM = def.Fuzzy.RadiusKM
	}
	if len(s.Fuzzy.EnergyPcts) == 0 {
		s.Fuzzy.EnergyPcts = def.Fuzzy.EnergyPcts
	}
	if len(s.Fuzzy.GESPcts) == 0 {
		s.Fuzzy.GESPcts = def.Fuzzy.GESPcts
	}
	if s.Fuzzy.Size == 0 {
		s.Fuzzy.Size = def.Fuzzy.Size
	}
	if len(s.LegacyStops) == 0 {
		s.LegacyStops = def.LegacyStops
	}

	if err := s.Validate(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// Validate checks that every tier is strictly wider than the one before.
func (s Schedule) Validate() error {
	if len(s.Tiers) == 0 {
		return eris.New("search: schedule has no tiers")
	}
	for i, t := range s.Tiers {
		if t.Name == "" {
			return eris.Errorf("search: tier %d has no name", i)
		}
		if t.Size <= 0 {
			return eris.Errorf("search: tier %s size must be > 0", t.Name)
		}
		if i == 0 {
			continue
		}
		prev := s.Tiers[i-1]
		if t.RadiusKM <= prev.RadiusKM {
			return eris.Errorf("search: tier %s radius must exceed tier %s", t.Name, prev.Name)
		}
		if t.SurfacePct < prev.SurfacePct || t.EnergyPct < prev.EnergyPct || t.GESPct < prev.GESPct {
			return eris.Errorf("search: tier %s tolerances must not narrow", t.Name)
		}
	}
	if s.Fuzzy.RadiusKM <= 0 || s.Fuzzy.Size <= 0 {
		return eris.New("search: fuzzy radius and size must be > 0")
	}
	return nil
}

// clauses builds the criteria part of a filter (everything but location).
func clauses(f dpe.Fields, req model.SearchRequest, surfaceUnits, surfacePct, energyPct, gesPct float64) []ademe.Expr {
	var out []ademe.Expr

	switch req.EnergyMode() {
	case model.ModeClass:
		out = append(out, ademe.Quoted(f.EnergyClass, string(req.EnergyClass)))
	case model.ModeValue:
		out = append(out, numericClause(f.Consumption, req.Consumption, 0, energyPct))
	}
	switch req.GESMode() {
	case model.ModeClass:
		out = append(out, ademe.Quoted(f.GESClass, string(req.GESClass)))
	case model.ModeValue:
		out = append(out, numericClause(f.GES, req.GES, 0, gesPct))
	}

	if req.BuildingType != "" {
		out = append(out, ademe.AnyOf(f.BuildingType, f.BuildingValues(req.BuildingType)...))
	}
	if req.Surface != nil && (surfaceUnits > 0 || surfacePct > 0) {
		out = append(out, numericClause(f.Surface, req.Surface, surfaceUnits, surfacePct))
	}
	return out
}

// numericClause renders a comparison with a tolerance: the larger of units
// and pct percent of the value. No tolerance on an equality yields an exact
// term; < and > become open ranges widened by the tolerance.
func numericClause(field string, c *model.Comparison, units, pct float64) ademe.Expr {
	if c == nil {
		return ""
	}
	tol := math.Max(units, c.Value*pct/100)

	switch c.Op {
	case model.OpLT:
		upper := c.Value + tol
		return ademe.Range(field, nil, &upper)
	case model.OpGT:
		lower := math.Max(0, c.Value-tol)
		return ademe.Range(field, &lower, nil)
	default:
		if tol == 0 {
			return ademe.Term(field, ademe.FormatNumber(c.Value))
		}
		return ademe.Between(field, math.Max(0, c.Value-tol), c.Value+tol)
	}
}

// tierQuery builds a current-dataset query. Postal-code input uses an exact
// postal clause on the first tier; otherwise the tier searches a circle of
// the tier radius plus the commune's radius. Without coordinates the postal
// clause is used throughout.
func tierQuery(f dpe.Fields, t Tier, first bool, req model.SearchRequest, coords *model.CommuneCoordinates) ademe.Query {
	filter := clauses(f, req, t.SurfaceUnits, t.SurfacePct, t.EnergyPct, t.GESPct)
	q := ademe.Query{Size: t.Size, Sort: f.Sort, Select: f.Select}

	postal := []string{req.Commune}
	if coords != nil && len(coords.PostalCodes()) > 0 {
		postal = coords.PostalCodes()
	}

	switch {
	case coords == nil || coords.Point.IsZero():
		filter = append([]ademe.Expr{ademe.AnyOf(f.PostalCode, postal...)}, filter...)
	case first && req.IsPostalCode():
		filter = append([]ademe.Expr{ademe.AnyOf(f.PostalCode, postal...)}, filter...)
	default:
		q.Geo = ademe.KM(coords.Lat, coords.Lon, t.RadiusKM+coords.SearchRadius())
	}
	q.Filter = ademe.And(filter...)
	return q
}

// fuzzyQueries builds the department-scoped variation grid. Identical
// variations (no value criteria) collapse into one query.
func fuzzyQueries(f dpe.Fields, ft FuzzyTier, req model.SearchRequest, department string) []ademe.Query {
	var out []ademe.Query
	seen := make(map[ademe.Expr]bool)
	for _, e := range ft.EnergyPcts {
		for _, g := range ft.GESPcts {
			filter := append([]ademe.Expr{ademe.Quoted(f.Department, department)},
				clauses(f, req, 0, 0, e, g)...)
			expr := ademe.And(filter...)
			if seen[expr] {
				continue
			}
			seen[expr] = true
			out = append(out, ademe.Query{Filter: expr, Size: ft.Size, Sort: f.Sort, Select: f.Select})
		}
	}
	return out
}

// legacyQuery builds a legacy-dataset query scoped by INSEE codes.
func legacyQuery(f dpe.Fields, t Tier, req model.SearchRequest, insee []string) ademe.Query {
	filter := append([]ademe.Expr{ademe.AnyOf(f.Insee, insee...)},
		clauses(f, req, t.SurfaceUnits, t.SurfacePct, t.EnergyPct, t.GESPct)...)
	return ademe.Query{Filter: ademe.And(filter...), Size: t.Size, Sort: f.Sort, Select: f.Select}
}
