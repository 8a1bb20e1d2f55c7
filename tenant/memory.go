package tenant

import (
	"context"
	"sync"
)

// MemoryStore keeps overrides in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*Overrides
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]*Overrides)}
}

func (s *MemoryStore) Load(_ context.Context, tenantID string) (*Overrides, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenants[tenantID].Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, o *Overrides) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[o.TenantID] = o.Clone()
	return nil
}
