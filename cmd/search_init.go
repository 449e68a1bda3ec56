package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dpe-search/internal/refdata"
	"github.com/sells-group/dpe-search/internal/resolve"
	"github.com/sells-group/dpe-search/internal/search"
	"github.com/sells-group/dpe-search/internal/store"
	"github.com/sells-group/dpe-search/pkg/ademe"
	"github.com/sells-group/dpe-search/pkg/geocode"
)

// searchEnv holds the initialized clients and services needed by the
// search/resolve/serve commands.
type searchEnv struct {
	Service  *search.Service
	Resolver *resolve.Resolver
	RefData  *refdata.Store
	Cache    *store.SQLiteStore // may be nil

	closers []func()
}

// Close releases resources held by the search environment.
func (se *searchEnv) Close() {
	for i := len(se.closers) - 1; i >= 0; i-- {
		se.closers[i]()
	}
}

// initSearch wires reference data, geocoders, the registry client and the
// search service. Callers should defer env.Close().
func initSearch(ctx context.Context, mode string) (*searchEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &searchEnv{}
	loader, err := initRefLoader(ctx, env)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.RefData = refdata.NewStore(loader, refdata.NewMemoryCache())

	ban := geocode.NewBANProvider(
		geocode.WithBaseURL(cfg.Geocode.BANURL),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
	)
	nominatim := geocode.NewNominatimProvider(
		geocode.WithBaseURL(cfg.Geocode.NominatimURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithRateLimit(1),
	)
	geocoder := geocode.NewDefaultClient(ban, nominatim)
	env.Resolver = resolve.New(env.RefData, geocoder)

	registry := ademe.New(
		ademe.WithBaseURL(cfg.Registry.BaseURL),
		ademe.WithRateLimit(cfg.Registry.RateLimit),
		ademe.WithRetry(cfg.Registry.Retry()),
		ademe.WithBreaker(cfg.Registry.Breaker()),
		ademe.WithTimeout(time.Duration(cfg.Registry.TimeoutSecs)*time.Second),
	)

	searchCfg, err := buildSearchConfig()
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Service = search.NewService(registry, env.Resolver, geocoder, searchCfg)

	return env, nil
}

// buildSearchConfig maps the search section onto the service config,
// loading the tier schedule file when one is configured.
func buildSearchConfig() (search.Config, error) {
	sc := search.DefaultConfig()
	sc.CurrentDataset = cfg.Registry.CurrentDataset
	sc.LegacyDataset = cfg.Registry.LegacyDataset
	sc.MaxResults = cfg.Search.MaxResults
	sc.LegacyThreshold = cfg.Search.LegacyThreshold
	sc.EnrichTop = cfg.Search.EnrichTop
	sc.EnrichConcurrency = cfg.Search.EnrichConcurrency

	if cfg.Search.TiersFile != "" {
		schedule, err := search.LoadSchedule(cfg.Search.TiersFile)
		if err != nil {
			return search.Config{}, err
		}
		sc.Schedule = schedule
	}
	if cfg.Search.FuzzyRadiusKM > 0 {
		sc.Schedule.Fuzzy.RadiusKM = cfg.Search.FuzzyRadiusKM
	}
	return sc, nil
}

// initRefLoader builds the department loader for the configured source,
// wrapped in the SQLite cache when a cache path is set.
func initRefLoader(ctx context.Context, env *searchEnv) (refdata.Loader, error) {
	var loader refdata.Loader
	switch cfg.RefData.Source {
	case "file":
		loader = refdata.NewFileLoader(cfg.RefData.Dir)
	case "http":
		loader = refdata.NewHTTPLoader(cfg.RefData.BaseURL)
	case "postgres":
		pg, err := refdata.NewPostgresLoader(ctx, cfg.RefData.DatabaseURL)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, pg.Close)
		loader = pg
	default:
		return nil, eris.Errorf("unsupported refdata source: %s", cfg.RefData.Source)
	}

	if cfg.RefData.CachePath == "" {
		return loader, nil
	}
	st, err := openCache(ctx)
	if err != nil {
		zap.L().Warn("refdata cache unavailable", zap.String("path", cfg.RefData.CachePath), zap.Error(err))
		return loader, nil
	}
	env.Cache = st
	env.closers = append(env.closers, func() { _ = st.Close() })
	return store.NewCachedLoader(st, loader, cacheTTL()), nil
}

func openCache(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.RefData.CachePath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate cache")
	}
	return st, nil
}

func cacheTTL() time.Duration {
	if cfg.RefData.CacheTTLHours <= 0 {
		return store.DefaultTTL
	}
	return time.Duration(cfg.RefData.CacheTTLHours) * time.Hour
}
