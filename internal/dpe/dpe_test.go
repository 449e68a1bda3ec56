package dpe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dpe-search/internal/model"
)

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
	}{
		{`150`, 150, true},
		{`150.5`, 150.5, true},
		{`"150"`, 150, true},
		{`"150,5"`, 150.5, true},
		{`""`, 0, false},
		{`"n/a"`, 0, false},
		{`null`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f FlexFloat
			require.NoError(t, json.Unmarshal([]byte(tt.in), &f))
			assert.Equal(t, tt.valid, f.Valid)
			assert.Equal(t, tt.want, f.Value)
			if !tt.valid {
				assert.Nil(t, f.Ptr())
			}
		})
	}
}

func TestFlexString(t *testing.T) {
	var s struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1975, "b": " 3 ", "c": null}`), &s))
	assert.Equal(t, FlexString("1975"), s.A)
	assert.Equal(t, FlexString("3"), s.B)
	assert.Equal(t, FlexString(""), s.C)
}

func TestParseGeoPoint(t *testing.T) {
	lat, lon := ParseGeoPoint("48.8566, 2.3522")
	require.NotNil(t, lat)
	require.NotNil(t, lon)
	assert.InDelta(t, 48.8566, *lat, 1e-9)
	assert.InDelta(t, 2.3522, *lon, 1e-9)

	for _, bad := range []string{"", "48.8", "abc,def", "95,2"} {
		lat, lon := ParseGeoPoint(bad)
		assert.Nil(t, lat, bad)
		assert.Nil(t, lon, bad)
	}
}

func TestNormalizeBuildingType(t *testing.T) {
	assert.Equal(t, TypeHouse, NormalizeBuildingType("Maison"))
	assert.Equal(t, TypeApartment, NormalizeBuildingType("appartement"))
	assert.Equal(t, TypeBuilding, NormalizeBuildingType("immeuble"))
	assert.Equal(t, TypeBuilding, NormalizeBuildingType("Logement collectif"))
	assert.Equal(t, TypeBuilding, NormalizeBuildingType("Bâtiment collectif à usage principal d'habitation"))
	assert.Equal(t, "local commercial", NormalizeBuildingType("Local commercial"))
	assert.Equal(t, "", NormalizeBuildingType(""))
}

func TestCompositeAddress(t *testing.T) {
	tests := []struct {
		name, primary, secondary, want string
	}{
		{"primary has number", "12 Rue de la Paix 75002 Paris", "12 rue de la paix", "12 Rue de la Paix 75002 Paris"},
		{"secondary number added", "Rue de la Paix 75002 Paris", "12 rue de la paix", "12 Rue de la Paix 75002 Paris"},
		{"bis suffix", "Rue Oberkampf 75011 Paris", "3bis rue oberkampf", "3bis Rue Oberkampf 75011 Paris"},
		{"no number anywhere", "Rue de la Paix 75002 Paris", "rue de la paix", "Rue de la Paix 75002 Paris"},
		{"empty primary", "", "8 avenue Foch", "8 avenue Foch"},
		{"avenue not a suffix", "Avenue Foch 75116 Paris", "8 avenue Foch", "8 Avenue Foch 75116 Paris"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compositeAddress(tt.primary, tt.secondary))
		})
	}
}

const currentRow = `{
	"numero_dpe": "2375E0123456X",
	"adresse_ban": "Rue de Rivoli 75001 Paris",
	"adresse_brut": "24 rue de rivoli",
	"code_postal_ban": "75001",
	"nom_commune_ban": "Paris",
	"code_insee_ban": "75101",
	"code_departement_ban": "75",
	"_geopoint": "48.8589,2.3469",
	"conso_5_usages_par_m2_ep": 150,
	"etiquette_dpe": "d",
	"emission_ges_5_usages_par_m2": "32,5",
	"etiquette_ges": "E",
	"type_batiment": "appartement",
	"surface_habitable_logement": 75,
	"annee_construction": 1930,
	"numero_etage_appartement": 3,
	"date_etablissement_dpe": "2024-03-12",
	"_id": "abc123"
}`

func TestFromCurrent(t *testing.T) {
	var raw CurrentRecord
	require.NoError(t, json.Unmarshal([]byte(currentRow), &raw))
	r := FromCurrent(raw)

	assert.Equal(t, Current, r.Dataset)
	assert.Equal(t, "2375E0123456X", r.ID())
	assert.Equal(t, "24 Rue de Rivoli 75001 Paris", r.Address)
	assert.Equal(t, "75001", r.PostalCode)
	assert.Equal(t, "75101", r.Insee)
	assert.Equal(t, "75", r.Department)
	require.NotNil(t, r.Consumption)
	assert.Equal(t, 150.0, *r.Consumption)
	assert.Equal(t, "D", r.EnergyClass)
	require.NotNil(t, r.GES)
	assert.Equal(t, 32.5, *r.GES)
	assert.Equal(t, TypeApartment, r.BuildingType)
	assert.Equal(t, "3", r.Floor)
	assert.Equal(t, "1930", r.YearBuilt)

	p, ok := r.Point()
	require.True(t, ok)
	assert.InDelta(t, 48.8589, p.Lat, 1e-9)
}

func TestFromLegacy(t *testing.T) {
	var raw LegacyRecord
	require.NoError(t, json.Unmarshal([]byte(`{
		"numero_dpe": "1375V1000001A",
		"geo_adresse": "Rue Saint-Honoré 75001 Paris",
		"numero_rue": "15",
		"type_voie": "rue",
		"nom_rue": "saint-honoré",
		"code_postal": 75001,
		"commune": "PARIS 1ER",
		"code_insee_commune_actualise": "75101",
		"latitude": 48.86,
		"longitude": "2.34",
		"consommation_energie": 230.4,
		"classe_consommation_energie": "E",
		"estimation_ges": 12,
		"classe_estimation_ges": "C",
		"tr002_type_batiment_description": "Logement collectif",
		"surface_thermique_lot": "64,5"
	}`), &raw))
	r := FromLegacy(raw)

	assert.Equal(t, Legacy, r.Dataset)
	assert.Equal(t, "15 Rue Saint-Honoré 75001 Paris", r.Address)
	assert.Equal(t, "75001", r.PostalCode)
	assert.Equal(t, TypeBuilding, r.BuildingType)
	require.NotNil(t, r.Surface)
	assert.Equal(t, 64.5, *r.Surface)
	_, ok := r.Point()
	assert.True(t, ok)
}

func TestFromLegacy_StreetFallbackAndBadCoordinates(t *testing.T) {
	r := FromLegacy(LegacyRecord{
		NumeroRue: "4",
		TypeVoie:  "impasse",
		NomRue:    "des Lilas",
		Latitude:  FlexFloat{Value: 0, Valid: true},
		Longitude: FlexFloat{Value: 999, Valid: true},
	})
	assert.Equal(t, "4 impasse des Lilas", r.Address)
	assert.Nil(t, r.Lon)
	_, ok := r.Point()
	assert.False(t, ok)
}

func TestRecordID_Fallbacks(t *testing.T) {
	surface := 75.0
	assert.Equal(t, "legacy:xyz", Record{Dataset: Legacy, InternalID: "xyz"}.ID())
	assert.Equal(t, "current|12 rue x|75001|75|",
		Record{Dataset: Current, Address: " 12 Rue X ", PostalCode: "75001", Surface: &surface}.ID())
}

func TestDecode_SkipsBadRows(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(currentRow),
		json.RawMessage(`"not an object"`),
		json.RawMessage(`{"numero_dpe": "B", "conso_5_usages_par_m2_ep": true}`),
		json.RawMessage(`{"numero_dpe": "C"}`),
	}
	recs := Decode(Current, raws)
	require.Len(t, recs, 2)
	assert.Equal(t, "2375E0123456X", recs[0].ID())
	assert.Equal(t, "C", recs[1].ID())
}

func TestFieldsFor(t *testing.T) {
	cur := FieldsFor(Current)
	leg := FieldsFor(Legacy)

	assert.Equal(t, "conso_5_usages_par_m2_ep", cur.Consumption)
	assert.Equal(t, "consommation_energie", leg.Consumption)
	assert.NotEqual(t, cur.BuildingType, leg.BuildingType)
	assert.Equal(t, []string{TypeHouse, TypeBuilding}, cur.BuildingValues(model.BuildingHouse))
	assert.Empty(t, cur.BuildingValues(model.BuildingOther))
	assert.Equal(t, []string{"Maison", "Logement collectif"}, leg.BuildingValues(model.BuildingHouse))
	assert.Equal(t, []string{"Appartement", "Logement collectif"}, leg.BuildingValues(model.BuildingApartment))
	assert.Equal(t, TypeBuilding, NormalizeBuildingType(leg.BuildingValues(model.BuildingHouse)[1]))
	assert.Contains(t, cur.Select, "_geopoint")
	assert.Contains(t, leg.Select, "latitude")
}
