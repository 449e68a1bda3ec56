package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dpe-search/internal/dpe"
	"github.com/sells-group/dpe-search/internal/model"
)

func request(t *testing.T, raw model.RawRequest) model.SearchRequest {
	t.Helper()
	req, err := model.NewSearchRequest(raw)
	require.NoError(t, err)
	return req
}

func TestDefaultSchedule(t *testing.T) {
	s := DefaultSchedule()
	require.NoError(t, s.Validate())
	require.Len(t, s.Tiers, 3)
	assert.Equal(t, model.TierStrict, s.Tiers[0].Name)
	assert.Equal(t, model.TierRegional, s.Tiers[2].Name)
	assert.Equal(t, 25.0, s.Fuzzy.RadiusKM)
}

func TestSchedule_ValidateRejectsNarrowing(t *testing.T) {
	s := DefaultSchedule()
	s.Tiers[1].RadiusKM = 5
	assert.ErrorContains(t, s.Validate(), "radius must exceed")

	s = DefaultSchedule()
	s.Tiers[2].SurfacePct = 10
	assert.ErrorContains(t, s.Validate(), "must not narrow")

	s = DefaultSchedule()
	s.Tiers[0].Size = 0
	assert.ErrorContains(t, s.Validate(), "size must be > 0")

	assert.Error(t, Schedule{}.Validate())
}

func TestNumericClause(t *testing.T) {
	tests := []struct {
		name  string
		c     *model.Comparison
		units float64
		pct   float64
		want  string
	}{
		{"nil", nil, 0, 10, ""},
		{"exact", model.Exact(150), 0, 0, "f:150"},
		{"units", model.Exact(75), 1, 0, "f:[74 TO 76]"},
		{"pct", model.Exact(100), 0, 15, "f:[85 TO 115]"},
		{"larger of units and pct", model.Exact(10), 1, 5, "f:[9 TO 11]"},
		{"less than", &model.Comparison{Op: model.OpLT, Value: 200}, 0, 0, "f:[* TO 200]"},
		{"less than widened", &model.Comparison{Op: model.OpLT, Value: 200}, 0, 10, "f:[* TO 220]"},
		{"greater than", &model.Comparison{Op: model.OpGT, Value: 50}, 0, 10, "f:[45 TO *]"},
		{"lower bound clamped", model.Exact(0.5), 1, 0, "f:[0 TO 1.5]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(numericClause("f", tt.c, tt.units, tt.pct)))
		})
	}
}

func TestTierQuery_StrictPostalCode(t *testing.T) {
	f := dpe.FieldsFor(dpe.Current)
	req := request(t, model.RawRequest{Commune: "75001", SurfaceHabitable: "75", ConsommationEnergie: "150"})
	s := DefaultSchedule()

	q := tierQuery(f, s.Tiers[0], true, req, paris1())
	assert.Nil(t, q.Geo)
	assert.Equal(t,
		`code_postal_ban:"75001" AND conso_5_usages_par_m2_ep:150 AND surface_habitable_logement:[74 TO 76]`,
		string(q.Filter))
	assert.Equal(t, 20, q.Size)
	assert.Equal(t, "-date_etablissement_dpe", q.Sort)
}

func TestTierQuery_EscalationWidens(t *testing.T) {
	f := dpe.FieldsFor(dpe.Current)
	req := request(t, model.RawRequest{Commune: "75001", SurfaceHabitable: "75", ConsommationEnergie: "150"})
	s := DefaultSchedule()

	q := tierQuery(f, s.Tiers[1], false, req, paris1())
	require.NotNil(t, q.Geo)
	assert.Equal(t, 16200, q.Geo.Meters, "tier radius plus commune radius")
	assert.NotContains(t, string(q.Filter), "code_postal_ban")
	assert.Contains(t, string(q.Filter), "conso_5_usages_par_m2_ep:[142.5 TO 157.5]")
	assert.Contains(t, string(q.Filter), "surface_habitable_logement:[63.75 TO 86.25]")
	assert.Equal(t, 30, q.Size)

	q = tierQuery(f, s.Tiers[2], false, req, paris1())
	assert.Equal(t, 31200, q.Geo.Meters)
	assert.Contains(t, string(q.Filter), "conso_5_usages_par_m2_ep:[135 TO 165]")
}

func TestTierQuery_NameUsesGeoFromStrict(t *testing.T) {
	f := dpe.FieldsFor(dpe.Current)
	req := model.SearchRequest{Commune: "Paris", EnergyClass: "D", BuildingType: model.BuildingHouse}

	q := tierQuery(f, DefaultSchedule().Tiers[0], true, req, paris1())
	require.NotNil(t, q.Geo)
	assert.Equal(t, 6200, q.Geo.Meters)
	assert.Equal(t, `etiquette_dpe:"D" AND type_batiment:("maison" OR "immeuble")`, string(q.Filter))
}

func TestTierQuery_MultiCommuneCoverage(t *testing.T) {
	f := dpe.FieldsFor(dpe.Current)
	coords := &model.CommuneCoordinates{
		Point:          model.Point{Lat: 45.653, Lon: 4.784},
		IsMultiCommune: true,
		CoverageRadius: 3.5,
		AllPostalCodes: []string{"69390", "69391"},
		PostalCode:     "69390",
	}
	req := model.SearchRequest{Commune: "69390"}

	q := tierQuery(f, DefaultSchedule().Tiers[0], true, req, coords)
	assert.Equal(t, `code_postal_ban:("69390" OR "69391")`, string(q.Filter))

	q = tierQuery(f, DefaultSchedule().Tiers[1], false, req, coords)
	assert.Equal(t, 18500, q.Geo.Meters)
}

func TestTierQuery_NoCoordinatesUsesPostalCode(t *testing.T) {
	f := dpe.FieldsFor(dpe.Current)
	req := model.SearchRequest{Commune: "75001", BuildingType: model.BuildingOther}

	for i, tier := range DefaultSchedule().Tiers {
		q := tierQuery(f, tier, i == 0, req, nil)
		assert.Nil(t, q.Geo)
		assert.Equal(t, `code_postal_ban:"75001"`, string(q.Filter))
	}
}

func TestFuzzyQueries(t *testing.T) {
	f := dpe.FieldsFor(dpe.Current)
	ft := DefaultSchedule().Fuzzy

	req := model.SearchRequest{Commune: "Paris", Consumption: model.Exact(200), GES: model.Exact(40)}
	qs := fuzzyQueries(f, ft, req, "75")
	require.Len(t, qs, 4)
	assert.Equal(t,
		`code_departement_ban:"75" AND conso_5_usages_par_m2_ep:[190 TO 210] AND emission_ges_5_usages_par_m2:[36 TO 44]`,
		string(qs[0].Filter))
	assert.Contains(t, string(qs[3].Filter), "conso_5_usages_par_m2_ep:[180 TO 220]")
	assert.Contains(t, string(qs[3].Filter), "emission_ges_5_usages_par_m2:[32 TO 48]")
	assert.Nil(t, qs[0].Geo)
	assert.Equal(t, 50, qs[0].Size)

	// Without value criteria every variation is the same query.
	qs = fuzzyQueries(f, ft, model.SearchRequest{Commune: "Paris", EnergyClass: "C"}, "75")
	assert.Len(t, qs, 1)
}

func TestLegacyQuery(t *testing.T) {
	f := dpe.FieldsFor(dpe.Legacy)
	req := model.SearchRequest{Commune: "75001", Surface: model.Exact(50), BuildingType: model.BuildingApartment}

	q := legacyQuery(f, DefaultSchedule().Tiers[0], req, []string{"75101"})
	assert.Equal(t,
		`code_insee_commune_actualise:"75101" AND tr002_type_batiment_description:("Appartement" OR "Logement collectif") AND surface_thermique_lot:[49 TO 51]`,
		string(q.Filter))
	assert.Nil(t, q.Geo)
}

func TestLoadSchedule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  fuzzy:
    radius_km: 40
  legacy_stops: [5, 15]
`), 0o644))

	s, err := LoadSchedule(path)
	require.NoError(t, err)
	assert.Equal(t, 40.0, s.Fuzzy.RadiusKM)
	assert.Equal(t, []int{5, 15}, s.LegacyStops)
	assert.Equal(t, DefaultSchedule().Tiers, s.Tiers)
	assert.Equal(t, 50, s.Fuzzy.Size)
}

func TestLoadSchedule_CustomTiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  tiers:
    - name: strict
      radius_km: 2
      surface_units: 2
      size: 10
    - name: regional
      radius_km: 50
      surface_pct: 40
      energy_pct: 15
      ges_pct: 15
      size: 100
`), 0o644))

	s, err := LoadSchedule(path)
	require.NoError(t, err)
	require.Len(t, s.Tiers, 2)
	assert.Equal(t, model.TierRegional, s.Tiers[1].Name)
	assert.Equal(t, 100, s.Tiers[1].Size)
}

func TestLoadSchedule_Errors(t *testing.T) {
	_, err := LoadSchedule(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "search: read tiers")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("search: [unclosed"), 0o644))
	_, err = LoadSchedule(bad)
	assert.ErrorContains(t, err, "search: parse tiers")

	narrowing := filepath.Join(t.TempDir(), "narrow.yaml")
	require.NoError(t, os.WriteFile(narrowing, []byte(`
search:
  tiers:
    - {name: strict, radius_km: 10, size: 10}
    - {name: expanded, radius_km: 5, size: 10}
`), 0o644))
	_, err = LoadSchedule(narrowing)
	assert.ErrorContains(t, err, "radius must exceed")
}
