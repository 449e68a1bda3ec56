package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/internal/scorer"
	"github.com/sells-group/dpe-search/pkg/ademe"
)

// ErrUnavailable is returned when a search cannot complete for reasons
// other than "no match".
var ErrUnavailable = eris.New("search: service unavailable")

// Resolver is the commune resolution the service depends on.
type Resolver interface {
	Resolve(ctx context.Context, input string) (*model.CommuneCoordinates, error)
	InseeResolver
}

// Config tunes the search service.
type Config struct {
	CurrentDataset    string
	LegacyDataset     string
	MaxResults        int
	LegacyThreshold   int
	EnrichTop         int
	EnrichConcurrency int
	Schedule          Schedule
	Weights           scorer.Weights
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		CurrentDataset:    "dpe03existant",
		LegacyDataset:     "dpe-france",
		MaxResults:        20,
		LegacyThreshold:   90,
		EnrichTop:         3,
		EnrichConcurrency: 3,
		Schedule:          DefaultSchedule(),
		Weights:           scorer.DefaultWeights(),
	}
}

// Response is the outcome of one search.
type Response struct {
	ID         string                    `json:"id"`
	Commune    *model.CommuneCoordinates `json:"commune,omitempty"`
	Tier       model.Tier                `json:"tier,omitempty"`
	Results    []model.Result            `json:"results"`
	LegacyUsed bool                      `json:"legacyUsed"`
}

// Service runs complete searches. It keeps no per-call state and is safe
// for concurrent use.
type Service struct {
	resolver Resolver
	reverser Reverser
	current  *CurrentSearcher
	legacy   *LegacySearcher
	cfg      Config
}

// NewService wires a Service. reverser may be nil to disable enrichment.
func NewService(registry ademe.Registry, resolver Resolver, reverser Reverser, cfg Config) *Service {
	sc := scorer.New(cfg.Weights)
	return &Service{
		resolver: resolver,
		reverser: reverser,
		current:  NewCurrentSearcher(registry, cfg.CurrentDataset, cfg.Schedule, sc),
		legacy:   NewLegacySearcher(registry, cfg.LegacyDataset, cfg.Schedule, sc, resolver),
		cfg:      cfg,
	}
}

// Search resolves the commune, runs the current-dataset tiers, falls back
// to the legacy dataset when no current result is a strong match, then
// merges, ranks, caps and enriches. No match is an empty result list.
func (s *Service) Search(ctx context.Context, req model.SearchRequest) (resp *Response, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	log := zap.L().With(zap.String("search_id", id), zap.String("commune", req.Commune))

	defer func() {
		if r := recover(); r != nil {
			log.Error("search: panic", zap.Any("panic", r))
			resp, err = nil, eris.Wrap(ErrUnavailable, fmt.Sprint(r))
		}
	}()

	coords, err := s.resolver.Resolve(ctx, req.Commune)
	if err != nil {
		return nil, unavailable(err, "resolve")
	}
	if coords == nil {
		log.Info("search: commune unresolved")
	}

	out := s.current.Search(ctx, req, coords)
	log.Info("search: current dataset done",
		zap.String("tier", string(out.Tier)),
		zap.Int("count", len(out.Results)),
	)

	resp = &Response{ID: id, Commune: coords, Tier: out.Tier}
	results := out.Results

	if BestScore(results) < s.cfg.LegacyThreshold {
		legacy, err := s.legacy.Search(ctx, req, coords)
		if err != nil {
			return nil, unavailable(err, "legacy")
		}
		if len(legacy) > 0 {
			resp.LegacyUsed = true
			log.Info("search: legacy dataset done", zap.Int("count", len(legacy)))
		}
		results = Merge(results, legacy)
	}

	SortResults(results)
	results = Cap(results, s.cfg.MaxResults)
	Enrich(ctx, s.reverser, results, s.cfg.EnrichTop, s.cfg.EnrichConcurrency)

	if results == nil {
		results = []model.Result{}
	}
	resp.Results = results
	return resp, nil
}

// Resolve exposes commune resolution on its own.
func (s *Service) Resolve(ctx context.Context, input string) (*model.CommuneCoordinates, error) {
	coords, err := s.resolver.Resolve(ctx, input)
	if err != nil {
		return nil, unavailable(err, "resolve")
	}
	return coords, nil
}

// unavailable maps an internal failure to ErrUnavailable, keeping context
// cancellation visible to callers.
func unavailable(err error, step string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrapf(err, "search: %s", step)
	}
	return eris.Wrapf(ErrUnavailable, "%s: %v", step, err)
}
