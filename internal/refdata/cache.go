package refdata

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache holds departments that have already been loaded.
type Cache interface {
	// GetOrLoad returns the cached department or loads it with l. Concurrent
	// callers for the same code share a single load. Failures are not cached.
	GetOrLoad(ctx context.Context, code string, l Loader) (*Department, error)

	// Loaded returns the departments cached so far, ordered by code.
	Loaded() []*Department
}

// MemoryCache is an in-process Cache. Entries are published only once fully
// built, so readers never observe a partial department.
type MemoryCache struct {
	mu    sync.RWMutex
	depts map[string]*Department
	group singleflight.Group
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{depts: make(map[string]*Department)}
}

// GetOrLoad implements Cache.
func (c *MemoryCache) GetOrLoad(ctx context.Context, code string, l Loader) (*Department, error) {
	if d := c.get(code); d != nil {
		return d, nil
	}

	v, err, shared := c.group.Do(code, func() (any, error) {
		if d := c.get(code); d != nil {
			return d, nil
		}
		d, err := l.Load(ctx, code)
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, eris.Wrapf(ErrNotFound, "department %s", code)
		}
		d.Prepare()

		c.mu.Lock()
		c.depts[code] = d
		c.mu.Unlock()

		zap.L().Debug("refdata: department loaded",
			zap.String("department", code),
			zap.Int("communes", len(d.Communes)),
		)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		zap.L().Debug("refdata: shared department load", zap.String("department", code))
	}
	return v.(*Department), nil
}

// Loaded implements Cache.
func (c *MemoryCache) Loaded() []*Department {
	c.mu.RLock()
	out := make([]*Department, 0, len(c.depts))
	for _, d := range c.depts {
		out = append(out, d)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (c *MemoryCache) get(code string) *Department {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.depts[code]
}
