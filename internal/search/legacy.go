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

// InseeResolver scopes a legacy search to INSEE codes.
type InseeResolver interface {
	ResolveInsee(ctx context.Context, input string) ([]refdata.Commune, error)
}

// LegacySearcher queries the pre-2021 dataset, which has no usable
// coordinates to search by and is scoped by INSEE code instead.
type LegacySearcher struct {
	registry ademe.Registry
	dataset  string
	schedule Schedule
	scorer   *scorer.Scorer
	resolver InseeResolver
	fields   dpe.Fields
}

// NewLegacySearcher creates a LegacySearcher for the named dataset.
func NewLegacySearcher(registry ademe.Registry, dataset string, schedule Schedule, sc *scorer.Scorer, resolver InseeResolver) *LegacySearcher {
	if sc == nil {
		sc = scorer.Default
	}
	return &LegacySearcher{
		registry: registry,
		dataset:  dataset,
		schedule: schedule,
		scorer:   sc,
		resolver: resolver,
		fields:   dpe.FieldsFor(dpe.Legacy),
	}
}

// Search accumulates a deduplicated pool across the tiers, stopping early
// once the pool is large enough. Results are sorted but not capped.
func (s *LegacySearcher) Search(ctx context.Context, req model.SearchRequest, coords *model.CommuneCoordinates) ([]model.Result, error) {
	communes, err := s.resolver.ResolveInsee(ctx, req.Commune)
	if err != nil {
		return nil, err
	}
	insee := make([]string, 0, len(communes))
	for _, c := range communes {
		insee = append(insee, c.Insee)
	}
	if len(insee) == 0 {
		zap.L().Debug("search: legacy scope unresolved", zap.String("commune", req.Commune))
		return nil, nil
	}

	var pool []model.Result
	seen := make(map[string]bool)
	for i, t := range s.schedule.Tiers {
		if ctx.Err() != nil {
			break
		}
		q := legacyQuery(s.fields, t, req, insee)
		raws, err := s.registry.Lines(ctx, s.dataset, q)
		if err != nil {
			zap.L().Warn("search: legacy tier failed",
				zap.String("dataset", s.dataset),
				zap.String("tier", string(t.Name)),
				zap.Error(err),
			)
			continue
		}
		for _, rec := range dpe.Decode(dpe.Legacy, raws) {
			res := MapRecord(s.scorer, rec, req, coords, t.Name)
			if seen[res.ID] {
				continue
			}
			seen[res.ID] = true
			pool = append(pool, res)
		}
		if i < len(s.schedule.LegacyStops) && len(pool) >= s.schedule.LegacyStops[i] {
			break
		}
	}

	SortResults(pool)
	return pool, nil
}
