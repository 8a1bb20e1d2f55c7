package tenant

import (
	"context"
	"time"

	"github.com/leeforge/bot/cache"
)

// CachedStore fronts another Store with a TTL cache. Saves write through
// and refresh the cached copy.
type CachedStore struct {
	next  Store
	cache *cache.TTL[*Overrides]
}

func NewCachedStore(next Store, ttl time.Duration) *CachedStore {
	return &CachedStore{next: next, cache: cache.NewTTL[*Overrides](ttl, ttl)}
}

func (s *CachedStore) Load(ctx context.Context, tenantID string) (*Overrides, error) {
	if o, ok := s.cache.Get(tenantID); ok {
		return o.Clone(), nil
	}
	o, err := s.next.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(tenantID, o.Clone())
	return o, nil
}

func (s *CachedStore) Save(ctx context.Context, o *Overrides) error {
	if err := s.next.Save(ctx, o); err != nil {
		s.cache.Delete(o.TenantID)
		return err
	}
	s.cache.Set(o.TenantID, o.Clone())
	return nil
}

// Close stops the cache sweeper.
func (s *CachedStore) Close() {
	s.cache.Close()
}
