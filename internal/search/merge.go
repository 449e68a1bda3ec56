package search

import (
	"math"
	"sort"

	"github.com/sells-group/dpe-search/internal/dpe"
	"github.com/sells-group/dpe-search/internal/geo"
	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/internal/scorer"
)

const (
	// scoreTieWindow is the score gap within which distance decides order.
	scoreTieWindow = 5
	// surfaceFilterPct, surfaceFilterMin and surfaceFilterKeep drive the
	// post-query surface filter.
	surfaceFilterPct  = 25
	surfaceFilterMin  = 5
	surfaceFilterKeep = 3
)

// IncompleteReason is the only reason attached to a legacy record that
// lacks an address or coordinates.
const IncompleteReason = "Données incomplètes : adresse ou coordonnées manquantes"

// MapRecord builds the unified result for one record: scored against req,
// with the distance from the commune's reference point when both ends have
// coordinates.
func MapRecord(sc *scorer.Scorer, rec dpe.Record, req model.SearchRequest, coords *model.CommuneCoordinates, tier model.Tier) model.Result {
	res := model.Result{
		ID:                  rec.ID(),
		Address:             rec.Address,
		PostalCode:          rec.PostalCode,
		Commune:             rec.Commune,
		Latitude:            rec.Lat,
		Longitude:           rec.Lon,
		ConsommationEnergie: rec.Consumption,
		EnergyClass:         rec.EnergyClass,
		EmissionGES:         rec.GES,
		GESClass:            rec.GESClass,
		TypeBien:            rec.BuildingType,
		Etage:               rec.Floor,
		SurfaceHabitable:    rec.Surface,
		AnneeConstruction:   rec.YearBuilt,
		DateEtablissement:   rec.Date,
		Tier:                tier,
		IsLegacyData:        rec.Dataset == dpe.Legacy,
	}

	if coords != nil {
		if p, ok := rec.Point(); ok {
			d := math.Round(geo.DistanceKM(coords.ReferencePoint(), p)*100) / 100
			res.Distance = &d
		}
	}

	if res.IsLegacyData && (!rec.HasAddress() || !res.HasCoordinates()) {
		res.HasIncompleteData = true
		res.MatchScore = 0
		res.MatchReasons = []string{IncompleteReason}
		return res
	}

	scored := sc.Score(rec, req, coords)
	res.MatchScore = scored.Score
	res.MatchReasons = scored.Reasons
	if res.MatchReasons == nil {
		res.MatchReasons = []string{}
	}
	return res
}

// Dedupe keeps the first result seen for each ID.
func Dedupe(results []model.Result) []model.Result {
	seen := make(map[string]bool, len(results))
	out := make([]model.Result, 0, len(results))
	for _, r := range results {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

// Merge appends legacy results after current ones, dropping any legacy
// result whose ID is already present.
func Merge(current, legacy []model.Result) []model.Result {
	all := make([]model.Result, 0, len(current)+len(legacy))
	all = append(all, current...)
	all = append(all, legacy...)
	return Dedupe(all)
}

// SortResults orders results by score, highest first. Scores within five
// points of each other are ordered by distance, nearest first, when both
// distances are known. The sort is stable.
func SortResults(results []model.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		gap := a.MatchScore - b.MatchScore
		if gap > scoreTieWindow || gap < -scoreTieWindow {
			return gap > 0
		}
		if a.Distance != nil && b.Distance != nil && *a.Distance != *b.Distance {
			return *a.Distance < *b.Distance
		}
		return gap > 0
	})
}

// PostFilterSurface narrows an exact-surface search to results within 25 %
// of the requested surface. It only applies to more than five results and
// is skipped when it would leave fewer than three.
func PostFilterSurface(results []model.Result, req model.SearchRequest) []model.Result {
	if req.Surface == nil || req.Surface.Op != model.OpEQ || req.Surface.Value <= 0 {
		return results
	}
	if len(results) <= surfaceFilterMin {
		return results
	}

	want := req.Surface.Value
	kept := make([]model.Result, 0, len(results))
	for _, r := range results {
		if r.SurfaceHabitable == nil {
			continue
		}
		if math.Abs(*r.SurfaceHabitable-want)/want*100 <= surfaceFilterPct {
			kept = append(kept, r)
		}
	}
	if len(kept) < surfaceFilterKeep {
		return results
	}
	return kept
}

// Cap truncates results to at most n entries.
func Cap(results []model.Result, n int) []model.Result {
	if n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}

// WithinRadius keeps results within km of p. Results without coordinates
// are dropped.
func WithinRadius(results []model.Result, p model.Point, km float64) []model.Result {
	out := make([]model.Result, 0, len(results))
	for _, r := range results {
		if !r.HasCoordinates() {
			continue
		}
		if geo.WithinKM(p, r.Location(), km) {
			out = append(out, r)
		}
	}
	return out
}

// BestScore returns the highest score in results, or -1 when empty.
func BestScore(results []model.Result) int {
	best := -1
	for _, r := range results {
		if r.MatchScore > best {
			best = r.MatchScore
		}
	}
	return best
}
