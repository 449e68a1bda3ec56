package dpe

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/dpe-search/internal/geo"
)

// CurrentRecord is a raw row of the post-2021 dataset.
type CurrentRecord struct {
	NumeroDPE         string     `json:"numero_dpe"`
	AdresseBAN        string     `json:"adresse_ban"`
	AdresseBrut       string     `json:"adresse_brut"`
	CodePostal        FlexString `json:"code_postal_ban"`
	Commune           string     `json:"nom_commune_ban"`
	CodeInsee         FlexString `json:"code_insee_ban"`
	CodeDepartement   FlexString `json:"code_departement_ban"`
	GeoPoint          string     `json:"_geopoint"`
	Consommation      FlexFloat  `json:"conso_5_usages_par_m2_ep"`
	EtiquetteDPE      string     `json:"etiquette_dpe"`
	EmissionGES       FlexFloat  `json:"emission_ges_5_usages_par_m2"`
	EtiquetteGES      string     `json:"etiquette_ges"`
	TypeBatiment      string     `json:"type_batiment"`
	SurfaceHabitable  FlexFloat  `json:"surface_habitable_logement"`
	AnneeConstruction FlexString `json:"annee_construction"`
	Etage             FlexString `json:"numero_etage_appartement"`
	Complement        string     `json:"complement_adresse_logement"`
	DateEtablissement string     `json:"date_etablissement_dpe"`
	InternalID        string     `json:"_id"`
}

// LegacyRecord is a raw row of the pre-2021 dataset.
type LegacyRecord struct {
	NumeroDPE         string     `json:"numero_dpe"`
	GeoAdresse        string     `json:"geo_adresse"`
	NumeroRue         FlexString `json:"numero_rue"`
	TypeVoie          string     `json:"type_voie"`
	NomRue            string     `json:"nom_rue"`
	CodePostal        FlexString `json:"code_postal"`
	Commune           string     `json:"commune"`
	CodeInsee         FlexString `json:"code_insee_commune_actualise"`
	Latitude          FlexFloat  `json:"latitude"`
	Longitude         FlexFloat  `json:"longitude"`
	Consommation      FlexFloat  `json:"consommation_energie"`
	ClasseConso       string     `json:"classe_consommation_energie"`
	EstimationGES     FlexFloat  `json:"estimation_ges"`
	ClasseGES         string     `json:"classe_estimation_ges"`
	TypeBatiment      string     `json:"tr002_type_batiment_description"`
	SurfaceThermique  FlexFloat  `json:"surface_thermique_lot"`
	AnneeConstruction FlexString `json:"annee_construction"`
	DateEtablissement string     `json:"date_etablissement_dpe"`
	InternalID        string     `json:"_id"`
}

// FromCurrent converts a current-dataset row.
func FromCurrent(raw CurrentRecord) Record {
	r := Record{
		Dataset:      Current,
		NumeroDPE:    strings.TrimSpace(raw.NumeroDPE),
		InternalID:   raw.InternalID,
		Address:      compositeAddress(raw.AdresseBAN, raw.AdresseBrut),
		PostalCode:   string(raw.CodePostal),
		Commune:      strings.TrimSpace(raw.Commune),
		Insee:        string(raw.CodeInsee),
		Department:   string(raw.CodeDepartement),
		Consumption:  raw.Consommation.Ptr(),
		EnergyClass:  normalizeClass(raw.EtiquetteDPE),
		GES:          raw.EmissionGES.Ptr(),
		GESClass:     normalizeClass(raw.EtiquetteGES),
		BuildingType: NormalizeBuildingType(raw.TypeBatiment),
		Surface:      raw.SurfaceHabitable.Ptr(),
		Floor:        floor(string(raw.Etage), raw.Complement),
		YearBuilt:    string(raw.AnneeConstruction),
		Date:         raw.DateEtablissement,
	}
	r.Lat, r.Lon = ParseGeoPoint(raw.GeoPoint)
	return r
}

// FromLegacy converts a legacy-dataset row.
func FromLegacy(raw LegacyRecord) Record {
	street := joinNonEmpty(string(raw.NumeroRue), raw.TypeVoie, raw.NomRue)
	return Record{
		Dataset:      Legacy,
		NumeroDPE:    strings.TrimSpace(raw.NumeroDPE),
		InternalID:   raw.InternalID,
		Address:      compositeAddress(raw.GeoAdresse, street),
		PostalCode:   string(raw.CodePostal),
		Commune:      strings.TrimSpace(raw.Commune),
		Insee:        string(raw.CodeInsee),
		Lat:          validCoordinate(raw.Latitude, 90),
		Lon:          validCoordinate(raw.Longitude, 180),
		Consumption:  raw.Consommation.Ptr(),
		EnergyClass:  normalizeClass(raw.ClasseConso),
		GES:          raw.EstimationGES.Ptr(),
		GESClass:     normalizeClass(raw.ClasseGES),
		BuildingType: NormalizeBuildingType(raw.TypeBatiment),
		Surface:      raw.SurfaceThermique.Ptr(),
		YearBuilt:    string(raw.AnneeConstruction),
		Date:         raw.DateEtablissement,
	}
}

// Decode converts raw rows of a dataset, skipping rows that do not decode.
func Decode(ds Dataset, raws []json.RawMessage) []Record {
	out := make([]Record, 0, len(raws))
	for i, msg := range raws {
		var rec Record
		var err error
		if ds == Legacy {
			var raw LegacyRecord
			if err = json.Unmarshal(msg, &raw); err == nil {
				rec = FromLegacy(raw)
			}
		} else {
			var raw CurrentRecord
			if err = json.Unmarshal(msg, &raw); err == nil {
				rec = FromCurrent(raw)
			}
		}
		if err != nil {
			zap.L().Debug("dpe: skipping undecodable row",
				zap.String("dataset", string(ds)),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		out = append(out, rec)
	}
	return out
}

// ParseGeoPoint parses a "lat,lon" string.
func ParseGeoPoint(s string) (*float64, *float64) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return nil, nil
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, nil
	}
	return &lat, &lon
}

// NormalizeBuildingType maps raw building descriptions onto maison,
// appartement or immeuble. Unknown values are returned lower-cased.
func NormalizeBuildingType(raw string) string {
	n := geo.NormalizeName(raw)
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "maison"):
		return TypeHouse
	case strings.HasPrefix(n, "appartement"):
		return TypeApartment
	case strings.HasPrefix(n, "immeuble"), strings.Contains(n, "collectif"):
		return TypeBuilding
	default:
		return n
	}
}

var houseNumberRe = regexp.MustCompile(`(?i)^\s*(\d+\s*(?:bis|ter|quater|[a-d])?)\b`)

// compositeAddress returns primary, prefixed with secondary's house number
// when primary has none. An empty primary falls back to secondary.
func compositeAddress(primary, secondary string) string {
	primary = strings.TrimSpace(primary)
	secondary = strings.TrimSpace(secondary)
	if primary == "" {
		return secondary
	}
	if houseNumberRe.MatchString(primary) {
		return primary
	}
	m := houseNumberRe.FindStringSubmatch(secondary)
	if m == nil {
		return primary
	}
	return strings.TrimSpace(m[1]) + " " + primary
}

func floor(etage, complement string) string {
	if etage != "" {
		return etage
	}
	return strings.TrimSpace(complement)
}

func normalizeClass(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 1 || s < "A" || s > "G" {
		return ""
	}
	return s
}

func validCoordinate(f FlexFloat, limit float64) *float64 {
	if !f.Valid || f.Value < -limit || f.Value > limit {
		return nil
	}
	return f.Ptr()
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
