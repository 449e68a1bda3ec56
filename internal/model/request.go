// Package model holds the request, geography and result types shared by the
// search engine, the CLI and the HTTP API.
package model

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidRequest is returned when search criteria cannot be parsed or
// combine mutually exclusive fields.
var ErrInvalidRequest = eris.New("model: invalid search request")

var postalCodeRe = regexp.MustCompile(`^\d{5}$`)

// IsPostalCode reports whether s is a 5-digit French postal code.
func IsPostalCode(s string) bool {
	return postalCodeRe.MatchString(strings.TrimSpace(s))
}

// Op is the comparison operator attached to a numeric criterion.
type Op string

const (
	OpEQ Op = "="
	OpLT Op = "<"
	OpGT Op = ">"
)

// Comparison is a numeric criterion such as "150", "<150" or ">150".
type Comparison struct {
	Op    Op      `json:"op"`
	Value float64 `json:"value"`
}

// ParseComparison parses a raw criterion. Commas are accepted as decimal
// separators. An empty string yields nil.
func ParseComparison(raw string) (*Comparison, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	op := OpEQ
	switch {
	case strings.HasPrefix(s, "<"):
		op = OpLT
		s = s[1:]
	case strings.HasPrefix(s, ">"):
		op = OpGT
		s = s[1:]
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "=")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidRequest, "parse %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, eris.Wrapf(ErrInvalidRequest, "non-finite value %q", raw)
	}
	if v < 0 {
		return nil, eris.Wrapf(ErrInvalidRequest, "negative value %q", raw)
	}
	return &Comparison{Op: op, Value: v}, nil
}

// Exact returns a criterion matching v exactly.
func Exact(v float64) *Comparison {
	return &Comparison{Op: OpEQ, Value: v}
}

// Satisfied reports whether v satisfies a < or > criterion. Equality
// criteria are never "satisfied" this way; callers measure a deviation.
func (c Comparison) Satisfied(v float64) bool {
	switch c.Op {
	case OpLT:
		return v <= c.Value
	case OpGT:
		return v >= c.Value
	default:
		return false
	}
}

// Deviation returns the absolute distance between v and the criterion. A
// satisfied < or > criterion has no deviation.
func (c Comparison) Deviation(v float64) float64 {
	if c.Satisfied(v) {
		return 0
	}
	d := v - c.Value
	if d < 0 {
		d = -d
	}
	return d
}

func (c Comparison) String() string {
	v := strconv.FormatFloat(c.Value, 'f', -1, 64)
	if c.Op == OpEQ {
		return v
	}
	return string(c.Op) + v
}

// Class is an energy or GES label on the A–G scale.
type Class string

const classScale = "ABCDEFG"

// ParseClass upper-cases and validates a label. An empty string yields "".
func ParseClass(raw string) (Class, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", nil
	}
	if len(s) != 1 || !strings.Contains(classScale, s) {
		return "", eris.Wrapf(ErrInvalidRequest, "class %q", raw)
	}
	return Class(s), nil
}

// Valid reports whether c is one of A–G.
func (c Class) Valid() bool {
	return len(c) == 1 && strings.Contains(classScale, string(c))
}

// Steps returns the number of steps between two labels, or -1 when either
// label is not on the scale.
func (c Class) Steps(other Class) int {
	if !c.Valid() || !other.Valid() {
		return -1
	}
	d := strings.Index(classScale, string(c)) - strings.Index(classScale, string(other))
	if d < 0 {
		d = -d
	}
	return d
}

// BuildingType is the closed set of property types a search can ask for.
type BuildingType string

const (
	BuildingHouse     BuildingType = "house"
	BuildingApartment BuildingType = "apartment"
	BuildingOther     BuildingType = "other"
)

// ParseBuildingType accepts French and English spellings.
func ParseBuildingType(raw string) (BuildingType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", nil
	case "house", "maison":
		return BuildingHouse, nil
	case "apartment", "appartement", "flat":
		return BuildingApartment, nil
	case "other", "autre", "immeuble", "building":
		return BuildingOther, nil
	default:
		return "", eris.Wrapf(ErrInvalidRequest, "building type %q", raw)
	}
}

// Mode tells how one axis (energy or GES) is scored.
type Mode int

const (
	ModeNone Mode = iota
	ModeValue
	ModeClass
)

// RawRequest is the untyped form of a search as it arrives from the CLI
// or the HTTP API.
type RawRequest struct {
	Commune             string `json:"commune"`
	SurfaceHabitable    string `json:"surfaceHabitable,omitempty"`
	ConsommationEnergie string `json:"consommationEnergie,omitempty"`
	EnergyClass         string `json:"energyClass,omitempty"`
	EmissionGES         string `json:"emissionGES,omitempty"`
	GESClass            string `json:"gesClass,omitempty"`
	TypeBien            string `json:"typeBien,omitempty"`
}

// SearchRequest is a validated set of search criteria. It is built once per
// search by NewSearchRequest and never mutated afterwards.
type SearchRequest struct {
	Commune      string       `json:"commune"`
	Surface      *Comparison  `json:"surfaceHabitable,omitempty"`
	Consumption  *Comparison  `json:"consommationEnergie,omitempty"`
	EnergyClass  Class        `json:"energyClass,omitempty"`
	GES          *Comparison  `json:"emissionGES,omitempty"`
	GESClass     Class        `json:"gesClass,omitempty"`
	BuildingType BuildingType `json:"typeBien,omitempty"`
}

// NewSearchRequest parses and validates raw criteria. At most one of
// consumption/energy class and one of GES value/GES class may be set.
func NewSearchRequest(raw RawRequest) (SearchRequest, error) {
	var req SearchRequest
	var err error

	req.Commune = strings.TrimSpace(raw.Commune)
	if req.Surface, err = ParseComparison(raw.SurfaceHabitable); err != nil {
		return SearchRequest{}, eris.Wrap(err, "surfaceHabitable")
	}
	if req.Consumption, err = ParseComparison(raw.ConsommationEnergie); err != nil {
		return SearchRequest{}, eris.Wrap(err, "consommationEnergie")
	}
	if req.EnergyClass, err = ParseClass(raw.EnergyClass); err != nil {
		return SearchRequest{}, eris.Wrap(err, "energyClass")
	}
	if req.GES, err = ParseComparison(raw.EmissionGES); err != nil {
		return SearchRequest{}, eris.Wrap(err, "emissionGES")
	}
	if req.GESClass, err = ParseClass(raw.GESClass); err != nil {
		return SearchRequest{}, eris.Wrap(err, "gesClass")
	}
	if req.BuildingType, err = ParseBuildingType(raw.TypeBien); err != nil {
		return SearchRequest{}, eris.Wrap(err, "typeBien")
	}

	if err := req.Validate(); err != nil {
		return SearchRequest{}, err
	}
	return req, nil
}

// Validate checks the per-axis exclusivity invariant.
func (r SearchRequest) Validate() error {
	if r.Consumption != nil && r.EnergyClass != "" {
		return eris.Wrap(ErrInvalidRequest, "consommationEnergie and energyClass are mutually exclusive")
	}
	if r.GES != nil && r.GESClass != "" {
		return eris.Wrap(ErrInvalidRequest, "emissionGES and gesClass are mutually exclusive")
	}
	if r.EnergyClass != "" && !r.EnergyClass.Valid() {
		return eris.Wrapf(ErrInvalidRequest, "energyClass %q", r.EnergyClass)
	}
	if r.GESClass != "" && !r.GESClass.Valid() {
		return eris.Wrapf(ErrInvalidRequest, "gesClass %q", r.GESClass)
	}
	return nil
}

// IsPostalCode reports whether the commune input is a plain postal code.
func (r SearchRequest) IsPostalCode() bool {
	return IsPostalCode(r.Commune)
}

// EnergyMode returns how the energy axis is scored.
func (r SearchRequest) EnergyMode() Mode {
	switch {
	case r.EnergyClass != "":
		return ModeClass
	case r.Consumption != nil:
		return ModeValue
	default:
		return ModeNone
	}
}

// GESMode returns how the GES axis is scored.
func (r SearchRequest) GESMode() Mode {
	switch {
	case r.GESClass != "":
		return ModeClass
	case r.GES != nil:
		return ModeValue
	default:
		return ModeNone
	}
}

// ClassMode reports whether any axis is searched by label, which switches
// scoring to the additive class-based formula.
func (r SearchRequest) ClassMode() bool {
	return r.EnergyMode() == ModeClass || r.GESMode() == ModeClass
}
