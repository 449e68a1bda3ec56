// Package dpe decodes raw registry rows from the current and legacy DPE
// datasets into one canonical Record. Nothing outside this package knows
// the datasets' field names.
package dpe

import (
	"strings"

	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/pkg/ademe"
)

// Dataset identifies which registry a record came from.
type Dataset string

const (
	Current Dataset = "current"
	Legacy  Dataset = "legacy"
)

// Canonical building categories, as the current dataset spells them.
const (
	TypeHouse     = "maison"
	TypeApartment = "appartement"
	TypeBuilding  = "immeuble"
)

// Record is a registry row in dataset-independent form. It is never
// mutated after decoding.
type Record struct {
	Dataset    Dataset
	NumeroDPE  string
	InternalID string

	Address    string
	PostalCode string
	Commune    string
	Insee      string
	Department string
	Lat        *float64
	Lon        *float64

	Consumption *float64
	EnergyClass string
	GES         *float64
	GESClass    string

	BuildingType string
	Surface      *float64
	Floor        string
	YearBuilt    string
	Date         string
}

// ID is the deduplication key: the DPE number, else the dataset's internal
// id, else a structural key built from the record's content.
func (r Record) ID() string {
	if r.NumeroDPE != "" {
		return r.NumeroDPE
	}
	if r.InternalID != "" {
		return string(r.Dataset) + ":" + r.InternalID
	}
	return strings.Join([]string{
		string(r.Dataset),
		strings.ToLower(strings.TrimSpace(r.Address)),
		r.PostalCode,
		formatOptional(r.Surface),
		formatOptional(r.Consumption),
	}, "|")
}

// Point returns the record's coordinates when both are present.
func (r Record) Point() (model.Point, bool) {
	if r.Lat == nil || r.Lon == nil {
		return model.Point{}, false
	}
	return model.Point{Lat: *r.Lat, Lon: *r.Lon}, true
}

// HasAddress reports whether the record carries a street address.
func (r Record) HasAddress() bool {
	return strings.TrimSpace(r.Address) != ""
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return ademe.FormatNumber(*v)
}
