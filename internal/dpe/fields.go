package dpe

import "github.com/sells-group/dpe-search/internal/model"

// Fields names the columns a dataset exposes for each search criterion.
type Fields struct {
	ID           string
	PostalCode   string
	Insee        string
	Department   string
	Consumption  string
	EnergyClass  string
	GES          string
	GESClass     string
	BuildingType string
	Surface      string

	// Sort is the registry sort directive, newest diagnostics first.
	Sort string
	// Select lists the columns decoded by the dataset's adapter.
	Select []string

	buildingValues map[model.BuildingType][]string
}

// BuildingValues returns the raw building-type values a requested type
// matches. Collective buildings match both houses and apartments because
// mixed-use records cannot be told apart by type alone.
func (f Fields) BuildingValues(t model.BuildingType) []string {
	return f.buildingValues[t]
}

var currentFields = Fields{
	ID:           "numero_dpe",
	PostalCode:   "code_postal_ban",
	Insee:        "code_insee_ban",
	Department:   "code_departement_ban",
	Consumption:  "conso_5_usages_par_m2_ep",
	EnergyClass:  "etiquette_dpe",
	GES:          "emission_ges_5_usages_par_m2",
	GESClass:     "etiquette_ges",
	BuildingType: "type_batiment",
	Surface:      "surface_habitable_logement",
	Sort:         "-date_etablissement_dpe",
	Select: []string{
		"numero_dpe", "adresse_ban", "adresse_brut", "code_postal_ban",
		"nom_commune_ban", "code_insee_ban", "code_departement_ban", "_geopoint",
		"conso_5_usages_par_m2_ep", "etiquette_dpe", "emission_ges_5_usages_par_m2",
		"etiquette_ges", "type_batiment", "surface_habitable_logement",
		"annee_construction", "numero_etage_appartement",
		"complement_adresse_logement", "date_etablissement_dpe", "_id",
	},
	buildingValues: map[model.BuildingType][]string{
		model.BuildingHouse:     {TypeHouse, TypeBuilding},
		model.BuildingApartment: {TypeApartment, TypeBuilding},
	},
}

var legacyFields = Fields{
	ID:           "numero_dpe",
	PostalCode:   "code_postal",
	Insee:        "code_insee_commune_actualise",
	Consumption:  "consommation_energie",
	EnergyClass:  "classe_consommation_energie",
	GES:          "estimation_ges",
	GESClass:     "classe_estimation_ges",
	BuildingType: "tr002_type_batiment_description",
	Surface:      "surface_thermique_lot",
	Sort:         "-date_etablissement_dpe",
	Select: []string{
		"numero_dpe", "geo_adresse", "numero_rue", "type_voie", "nom_rue",
		"code_postal", "commune", "code_insee_commune_actualise",
		"latitude", "longitude", "consommation_energie",
		"classe_consommation_energie", "estimation_ges", "classe_estimation_ges",
		"tr002_type_batiment_description", "surface_thermique_lot",
		"annee_construction", "date_etablissement_dpe", "_id",
	},
	buildingValues: map[model.BuildingType][]string{
		model.BuildingHouse:     {"Maison", "Logement collectif"},
		model.BuildingApartment: {"Appartement", "Logement collectif"},
	},
}

// FieldsFor returns the field catalogue for a dataset.
func FieldsFor(ds Dataset) Fields {
	if ds == Legacy {
		return legacyFields
	}
	return currentFields
}
