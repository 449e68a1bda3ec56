package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dpe-search/internal/refdata"
)

// DefaultTTL is how long a cached department stays fresh.
const DefaultTTL = 7 * 24 * time.Hour

// CachedLoader reads departments from SQLite and falls back to another
// Loader on a miss, writing the result through.
type CachedLoader struct {
	store *SQLiteStore
	next  refdata.Loader
	ttl   time.Duration
}

var _ refdata.Loader = (*CachedLoader)(nil)

// NewCachedLoader wraps next with the SQLite cache. A non-positive ttl uses
// DefaultTTL.
func NewCachedLoader(st *SQLiteStore, next refdata.Loader, ttl time.Duration) *CachedLoader {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedLoader{store: st, next: next, ttl: ttl}
}

// Load implements refdata.Loader. Cache read and write failures are logged
// and never fail the load.
func (l *CachedLoader) Load(ctx context.Context, code string) (*refdata.Department, error) {
	d, err := l.store.GetDepartment(ctx, code)
	switch {
	case err != nil:
		zap.L().Warn("store: department cache read failed", zap.String("department", code), zap.Error(err))
	case d != nil:
		zap.L().Debug("store: department cache hit", zap.String("department", code))
		return d, nil
	}

	d, err = l.next.Load(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := l.store.PutDepartment(ctx, d, l.ttl); err != nil {
		zap.L().Warn("store: department cache write failed", zap.String("department", code), zap.Error(err))
	}
	return d, nil
}
