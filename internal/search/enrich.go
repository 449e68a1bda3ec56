package search

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/pkg/geocode"
)

// Reverser looks up the street address at a point.
type Reverser interface {
	Reverse(ctx context.Context, lat, lon float64) (*geocode.ReverseResult, error)
}

var streetNumberRe = regexp.MustCompile(`^\s*\d+`)

// needsAddress reports whether the result lacks a numbered street address.
func needsAddress(r model.Result) bool {
	return r.HasCoordinates() && !streetNumberRe.MatchString(r.Address)
}

// Enrich reverse-geocodes the first top results that have coordinates but
// no full street address, at most concurrency at a time. A failed lookup
// leaves its result unchanged.
func Enrich(ctx context.Context, rev Reverser, results []model.Result, top, concurrency int) {
	if rev == nil || top <= 0 {
		return
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range results {
		if i >= top {
			break
		}
		if !needsAddress(results[i]) {
			continue
		}
		r := &results[i]
		g.Go(func() error {
			rr, err := rev.Reverse(gctx, *r.Latitude, *r.Longitude)
			if err != nil {
				zap.L().Debug("search: reverse geocode failed", zap.String("numero_dpe", r.ID), zap.Error(err))
				return nil
			}
			if rr == nil || strings.TrimSpace(rr.Label) == "" {
				return nil
			}
			r.Address = rr.Label
			return nil
		})
	}
	_ = g.Wait()
}
