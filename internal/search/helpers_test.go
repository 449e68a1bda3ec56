package search

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/internal/refdata"
	"github.com/sells-group/dpe-search/pkg/ademe"
	"github.com/sells-group/dpe-search/pkg/geocode"
)

type registryCall struct {
	Dataset string
	Query   ademe.Query
}

// fakeRegistry answers Lines with a handler and records every call.
type fakeRegistry struct {
	mu      sync.Mutex
	calls   []registryCall
	handler func(dataset string, q ademe.Query, n int) ([]json.RawMessage, error)
}

func (f *fakeRegistry) Lines(_ context.Context, dataset string, q ademe.Query) ([]json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, registryCall{Dataset: dataset, Query: q})
	n := 0
	for _, c := range f.calls {
		if c.Dataset == dataset {
			n++
		}
	}
	f.mu.Unlock()
	if f.handler == nil {
		return nil, nil
	}
	return f.handler(dataset, q, n)
}

func (f *fakeRegistry) callsFor(dataset string) []registryCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []registryCall
	for _, c := range f.calls {
		if c.Dataset == dataset {
			out = append(out, c)
		}
	}
	return out
}

// byDataset returns rows per dataset regardless of the query.
func byDataset(current, legacy []json.RawMessage) func(string, ademe.Query, int) ([]json.RawMessage, error) {
	return func(dataset string, _ ademe.Query, _ int) ([]json.RawMessage, error) {
		if dataset == DefaultConfig().LegacyDataset {
			return legacy, nil
		}
		return current, nil
	}
}

type fakeResolver struct {
	coords   *model.CommuneCoordinates
	communes []refdata.Commune
	err      error
}

func (r *fakeResolver) Resolve(_ context.Context, _ string) (*model.CommuneCoordinates, error) {
	return r.coords, r.err
}

func (r *fakeResolver) ResolveInsee(_ context.Context, _ string) ([]refdata.Commune, error) {
	return r.communes, r.err
}

type fakeReverser struct {
	mu    sync.Mutex
	label string
	err   error
	calls int
}

func (f *fakeReverser) Reverse(_ context.Context, _, _ float64) (*geocode.ReverseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &geocode.ReverseResult{Label: f.label}, nil
}

type row map[string]any

func currentRow(id string, lat, lon, surface, conso float64, class string) row {
	return row{
		"numero_dpe":                   id,
		"adresse_ban":                  "12 Rue de Rivoli 75001 Paris",
		"code_postal_ban":              "75001",
		"nom_commune_ban":              "Paris",
		"code_insee_ban":               "75101",
		"code_departement_ban":         "75",
		"_geopoint":                    ademe.FormatNumber(lat) + "," + ademe.FormatNumber(lon),
		"conso_5_usages_par_m2_ep":     conso,
		"etiquette_dpe":                class,
		"emission_ges_5_usages_par_m2": 30,
		"etiquette_ges":                "E",
		"type_batiment":                "appartement",
		"surface_habitable_logement":   surface,
		"date_etablissement_dpe":       "2024-01-15",
	}
}

func legacyRow(id string, surface, conso float64) row {
	return row{
		"numero_dpe":                      id,
		"geo_adresse":                     "3 Rue du Louvre 75001 Paris",
		"code_postal":                     "75001",
		"commune":                         "PARIS",
		"code_insee_commune_actualise":    "75101",
		"latitude":                        48.861,
		"longitude":                       2.341,
		"consommation_energie":            conso,
		"classe_consommation_energie":     "D",
		"estimation_ges":                  25,
		"classe_estimation_ges":           "E",
		"tr002_type_batiment_description": "Appartement",
		"surface_thermique_lot":           surface,
	}
}

func rows(rs ...row) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(rs))
	for _, r := range rs {
		b, err := json.Marshal(r)
		if err != nil {
			panic(err)
		}
		out = append(out, b)
	}
	return out
}

func paris1() *model.CommuneCoordinates {
	mairie := model.Point{Lat: 48.8603, Lon: 2.3412}
	centre := model.Point{Lat: 48.8625, Lon: 2.3364}
	return &model.CommuneCoordinates{
		Point:      centre,
		Centre:     &centre,
		Mairie:     &mairie,
		Radius:     1.2,
		PostalCode: "75001",
		InseeCode:  "75101",
		Name:       "Paris 1er Arrondissement",
		Department: "75",
		Source:     "refdata",
	}
}

func ptr(v float64) *float64 { return &v }
