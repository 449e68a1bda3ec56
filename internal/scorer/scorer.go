package scorer

import (
	"fmt"
	"math"
	"strconv"

	"github.com/sells-group/dpe-search/internal/dpe"
	"github.com/sells-group/dpe-search/internal/geo"
	"github.com/sells-group/dpe-search/internal/model"
)

// Result is the outcome of scoring one record.
type Result struct {
	Score   int
	Reasons []string
}

// Scorer scores records with a fixed set of weights. It holds no other
// state and is safe for concurrent use.
type Scorer struct {
	w Weights
}

// New creates a Scorer.
func New(w Weights) *Scorer {
	return &Scorer{w: w}
}

// Default is a Scorer using DefaultWeights.
var Default = New(DefaultWeights())

// Score scores rec against req with the default weights.
func Score(rec dpe.Record, req model.SearchRequest, loc *model.CommuneCoordinates) Result {
	return Default.Score(rec, req, loc)
}

// Score returns the match score and reasons for rec. The score is an
// integer in [0, 100]. When any axis is searched by class the additive
// class-mode formula applies; otherwise surface dominates and consumption
// and GES gaps act as multipliers.
func (s *Scorer) Score(rec dpe.Record, req model.SearchRequest, loc *model.CommuneCoordinates) Result {
	var reasons []string
	add := func(r string) {
		if r != "" {
			reasons = append(reasons, r)
		}
	}

	base := 0.0
	if ok, reason := s.locationMatch(rec, req, loc); ok {
		base += s.w.Location
		add(reason)
	}

	surfacePts, overflow, reason := s.surface(rec, req)
	base += surfacePts
	add(reason)

	mult := 1.0
	switch req.EnergyMode() {
	case model.ModeClass:
		pts, reason := classPoints(s.w.EnergyClassSteps, req.EnergyClass, rec.EnergyClass, "Classe énergie")
		base += pts
		add(reason)
	case model.ModeValue:
		m, reason := s.valueMultiplier(req.Consumption, rec.Consumption, "Consommation", "kWh/m²/an")
		mult *= m
		add(reason)
	}
	switch req.GESMode() {
	case model.ModeClass:
		pts, reason := classPoints(s.w.GESClassSteps, req.GESClass, rec.GESClass, "Classe GES")
		base += pts
		add(reason)
	case model.ModeValue:
		m, reason := s.valueMultiplier(req.GES, rec.GES, "Émissions GES", "kgCO2/m²/an")
		mult *= m
		add(reason)
	}

	total := base * mult
	if overflow {
		total *= s.w.OverflowFactor
	}
	if reasons == nil {
		reasons = []string{}
	}
	return Result{Score: clamp(total), Reasons: reasons}
}

func (s *Scorer) locationMatch(rec dpe.Record, req model.SearchRequest, loc *model.CommuneCoordinates) (bool, string) {
	if rec.PostalCode != "" {
		if req.IsPostalCode() && rec.PostalCode == req.Commune {
			return true, "Code postal identique (" + rec.PostalCode + ")"
		}
		if loc != nil {
			if rec.PostalCode == loc.PostalCode {
				return true, "Code postal identique (" + rec.PostalCode + ")"
			}
			for _, pc := range loc.AllPostalCodes {
				if rec.PostalCode == pc {
					return true, "Code postal de la zone (" + rec.PostalCode + ")"
				}
			}
		}
	}
	if rec.Commune != "" {
		if !req.IsPostalCode() && geo.NameMatches(rec.Commune, req.Commune) {
			return true, "Commune correspondante (" + rec.Commune + ")"
		}
		if loc != nil && geo.NameMatches(rec.Commune, loc.Name) {
			return true, "Commune correspondante (" + rec.Commune + ")"
		}
	}
	return false, ""
}

// surface returns the surface points, whether the gap reached 100 %, and a
// reason.
func (s *Scorer) surface(rec dpe.Record, req model.SearchRequest) (float64, bool, string) {
	if req.Surface == nil || rec.Surface == nil {
		return 0, false, ""
	}
	dev := req.Surface.Deviation(*rec.Surface)
	pct := percentGap(dev, req.Surface.Value)
	classMode := req.ClassMode()

	full := s.w.ValueSurface
	if classMode {
		full = s.w.ClassSurface
	}
	if dev <= s.w.ExactSurfaceUnits {
		if req.Surface.Op != model.OpEQ && dev == 0 {
			return full, false, "Surface conforme (" + req.Surface.String() + " m²)"
		}
		return full, false, "Surface identique (" + formatValue(*rec.Surface) + " m²)"
	}

	reason := fmt.Sprintf("Surface : écart de %s %% (%s m²)", formatValue(math.Min(pct, 999)), formatValue(*rec.Surface))
	if pct >= 100 {
		if classMode {
			return math.Max(0, s.classSurfaceAt(pct)), true, reason
		}
		return 0, true, reason
	}
	if classMode {
		return s.classSurfaceAt(pct), false, reason
	}
	// The band floors the linear decay so credit never rises with the gap.
	switch {
	case pct <= 90:
		return math.Max(s.w.ValueSurface-pct, s.w.ValueSurfaceBand), false, reason
	default:
		return s.w.ValueSurfaceBand * (100 - pct) / 10, false, reason
	}
}

func (s *Scorer) classSurfaceAt(pct float64) float64 {
	drop := (s.w.ClassSurface - s.w.ClassSurfaceAt100) * pct / 100
	return math.Max(0, s.w.ClassSurface-drop)
}

// valueMultiplier maps the gap between a requested and a recorded value to
// a penalty factor. A record without the value gets the floor.
func (s *Scorer) valueMultiplier(want *model.Comparison, got *float64, label, unit string) (float64, string) {
	if want == nil {
		return 1, ""
	}
	if got == nil {
		return s.w.MultFloor, label + " non renseignée"
	}

	dev := want.Deviation(*got)
	d := math.Round(dev)
	m := s.Multiplier(d)
	switch {
	case d == 0 && want.Op != model.OpEQ:
		return m, label + " conforme (" + want.String() + " " + unit + ")"
	case d == 0:
		return m, label + " identique (" + formatValue(*got) + " " + unit + ")"
	default:
		return m, fmt.Sprintf("%s : écart de %s %s (%s)", label, formatValue(d), unit, formatValue(*got))
	}
}

// Multiplier returns the penalty factor for a gap of d whole units.
func (s *Scorer) Multiplier(d float64) float64 {
	switch {
	case math.IsNaN(d):
		return s.w.MultFloor
	case d <= 0:
		return 1
	case d <= 1:
		return s.w.MultOneUnit
	case d <= 9:
		return s.w.MultOneUnit - (d-2)*(s.w.MultOneUnit-s.w.MultNineUnit)/7
	default:
		return math.Max(s.w.MultFloor, s.w.MultNineUnit-s.w.MultFarSlope*(d-9))
	}
}

func classPoints(steps [5]float64, want model.Class, got, label string) (float64, string) {
	n := want.Steps(model.Class(got))
	switch {
	case n < 0:
		return 0, ""
	case n == 0:
		return steps[0], label + " identique (" + got + ")"
	case n < len(steps):
		pts := steps[n]
		if n == 1 {
			return pts, fmt.Sprintf("%s proche (%s, %d cran)", label, got, n)
		}
		return pts, fmt.Sprintf("%s différente (%s, %d crans)", label, got, n)
	default:
		return steps[len(steps)-1], fmt.Sprintf("%s différente (%s, %d crans)", label, got, n)
	}
}

// percentGap returns dev as a percentage of ref. A zero reference makes any
// gap a full overflow.
func percentGap(dev, ref float64) float64 {
	if ref <= 0 {
		if dev == 0 {
			return 0
		}
		return 100
	}
	return dev / ref * 100
}

func clamp(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	r := math.Round(v)
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	default:
		return int(r)
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
