package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/dpe-search/internal/dpe"
	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/internal/refdata"
	"github.com/sells-group/dpe-search/internal/scorer"
	"github.com/sells-group/dpe-search/pkg/ademe"
)

// Outcome is the result of a current-dataset search.
type Outcome struct {
	Results []model.Result
	// Tier is the tier that produced Results, empty when nothing matched.
	Tier model.Tier
}

// CurrentSearcher runs the tier schedule against the current dataset.
type CurrentSearcher struct {
	registry ademe.Registry
	dataset  string
	schedule Schedule
	scorer   *scorer.Scorer
	fields   dpe.Fields
}

// NewCurrentSearcher creates a CurrentSearcher for the named dataset.
func NewCurrentSearcher(registry ademe.Registry, dataset string, schedule Schedule, sc *scorer.Scorer) *CurrentSearcher {
	if sc == nil {
		sc = scorer.Default
	}
	return &CurrentSearcher{
		registry: registry,
		dataset:  dataset,
		schedule: schedule,
		scorer:   sc,
		fields:   dpe.FieldsFor(dpe.Current),
	}
}

// Search runs each tier in order and stops at the first one returning
// records, then falls back to the fuzzy department scan. Registry failures
// count as an empty tier. Free text that did not resolve is never queried.
func (s *CurrentSearcher) Search(ctx context.Context, req model.SearchRequest, coords *model.CommuneCoordinates) Outcome {
	if coords == nil && !req.IsPostalCode() {
		return Outcome{}
	}

	for i, t := range s.schedule.Tiers {
		if ctx.Err() != nil {
			return Outcome{}
		}
		q := tierQuery(s.fields, t, i == 0, req, coords)
		recs := s.fetch(ctx, q, t.Name)
		if len(recs) == 0 {
			continue
		}
		return Outcome{Results: s.finish(recs, req, coords, t.Name), Tier: t.Name}
	}

	if results := s.fuzzy(ctx, req, coords); len(results) > 0 {
		return Outcome{Results: results, Tier: model.TierFuzzy}
	}
	return Outcome{}
}

// fuzzy scans the whole department with widening value tolerances and
// keeps only records near the reference point.
func (s *CurrentSearcher) fuzzy(ctx context.Context, req model.SearchRequest, coords *model.CommuneCoordinates) []model.Result {
	if coords == nil || coords.Point.IsZero() {
		return nil
	}
	dept := coords.Department
	if dept == "" {
		if dept, _ = refdata.DepartmentForPostalCode(coords.PostalCode); dept == "" {
			dept, _ = refdata.DepartmentForPostalCode(req.Commune)
		}
	}
	if dept == "" {
		return nil
	}

	ref := coords.ReferencePoint()
	for _, q := range fuzzyQueries(s.fields, s.schedule.Fuzzy, req, dept) {
		if ctx.Err() != nil {
			return nil
		}
		recs := s.fetch(ctx, q, model.TierFuzzy)
		if len(recs) == 0 {
			continue
		}
		results := make([]model.Result, 0, len(recs))
		for _, rec := range recs {
			results = append(results, MapRecord(s.scorer, rec, req, coords, model.TierFuzzy))
		}
		results = WithinRadius(results, ref, s.schedule.Fuzzy.RadiusKM)
		if len(results) == 0 {
			continue
		}
		results = Dedupe(results)
		SortResults(results)
		return PostFilterSurface(results, req)
	}
	return nil
}

func (s *CurrentSearcher) fetch(ctx context.Context, q ademe.Query, tier model.Tier) []dpe.Record {
	raws, err := s.registry.Lines(ctx, s.dataset, q)
	if err != nil {
		zap.L().Warn("search: tier failed",
			zap.String("dataset", s.dataset),
			zap.String("tier", string(tier)),
			zap.Error(err),
		)
		return nil
	}
	recs := dpe.Decode(dpe.Current, raws)
	zap.L().Debug("search: tier done",
		zap.String("dataset", s.dataset),
		zap.String("tier", string(tier)),
		zap.Int("count", len(recs)),
	)
	return recs
}

func (s *CurrentSearcher) finish(recs []dpe.Record, req model.SearchRequest, coords *model.CommuneCoordinates, tier model.Tier) []model.Result {
	results := make([]model.Result, 0, len(recs))
	for _, rec := range recs {
		results = append(results, MapRecord(s.scorer, rec, req, coords, tier))
	}
	results = Dedupe(results)
	SortResults(results)
	return PostFilterSurface(results, req)
}
