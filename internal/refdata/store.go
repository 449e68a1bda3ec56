package refdata

import (
	"context"

	"github.com/rotisserie/eris"
)

// Store pairs a Loader with a Cache. It is the lookup service the commune
// resolver is built on.
type Store struct {
	loader Loader
	cache  Cache
}

// NewStore creates a Store. A nil cache gets a fresh MemoryCache.
func NewStore(loader Loader, cache Cache) *Store {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Store{loader: loader, cache: cache}
}

// Department returns the reference data for a division code.
func (s *Store) Department(ctx context.Context, code string) (*Department, error) {
	if code == "" {
		return nil, eris.Wrap(ErrNotFound, "empty department code")
	}
	return s.cache.GetOrLoad(ctx, code, s.loader)
}

// ForPostalCode returns the department owning pc.
func (s *Store) ForPostalCode(ctx context.Context, pc string) (*Department, error) {
	code, ok := DepartmentForPostalCode(pc)
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "postal code %q", pc)
	}
	return s.Department(ctx, code)
}

// Loaded returns the departments already in the cache.
func (s *Store) Loaded() []*Department {
	return s.cache.Loaded()
}
