package model

// Tier names one step of the progressive-relaxation search.
type Tier string

const (
	TierStrict   Tier = "strict"
	TierExpanded Tier = "expanded"
	TierRegional Tier = "regional"
	TierFuzzy    Tier = "fuzzy"
)

// Result is the unified output schema for a record from either dataset.
// One Result is built from exactly one raw record.
type Result struct {
	ID                  string   `json:"numeroDPE"`
	Address             string   `json:"address"`
	PostalCode          string   `json:"postalCode"`
	Commune             string   `json:"commune"`
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
	ConsommationEnergie *float64 `json:"consommationEnergie,omitempty"`
	EnergyClass         string   `json:"energyClass,omitempty"`
	EmissionGES         *float64 `json:"emissionGES,omitempty"`
	GESClass            string   `json:"gesClass,omitempty"`
	TypeBien            string   `json:"typeBien,omitempty"`
	Etage               string   `json:"etage,omitempty"`
	SurfaceHabitable    *float64 `json:"surfaceHabitable,omitempty"`
	AnneeConstruction   string   `json:"anneeConstruction,omitempty"`
	DateEtablissement   string   `json:"dateEtablissement,omitempty"`

	MatchScore   int      `json:"matchScore"`
	MatchReasons []string `json:"matchReasons"`
	Distance     *float64 `json:"distance,omitempty"`
	Tier         Tier     `json:"tier,omitempty"`

	IsLegacyData      bool `json:"isLegacyData"`
	HasIncompleteData bool `json:"hasIncompleteData"`
}

// HasCoordinates reports whether the result can be placed on a map.
func (r *Result) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Location returns the result's point. Callers check HasCoordinates first.
func (r *Result) Location() Point {
	if !r.HasCoordinates() {
		return Point{}
	}
	return Point{Lat: *r.Latitude, Lon: *r.Longitude}
}
