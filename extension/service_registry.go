package extension

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/leeforge/bot/errors"
)

// ServiceRegistry is the shared dependency table modules publish into
// during RegisterDependencies and read from afterwards. Keys are
// "moduleID.serviceName" (e.g. "core.messages", "weather.client").
type ServiceRegistry struct {
	services map[string]any
	mu       sync.RWMutex
}

// NewServiceRegistry creates an empty service registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[string]any)}
}

// ServiceKey builds the registry key for a module-owned service.
func ServiceKey(moduleID, name string) string {
	return moduleID + "." + name
}

// Register stores a service. Returns a conflict error if key already exists.
func (sr *ServiceRegistry) Register(key string, svc any) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if _, exists := sr.services[key]; exists {
		return errors.NewConflict("service", key)
	}
	sr.services[key] = svc
	return nil
}

// MustRegister stores a service, panicking on duplicate.
func (sr *ServiceRegistry) MustRegister(key string, svc any) {
	if err := sr.Register(key, svc); err != nil {
		panic(err)
	}
}

// Has returns true if a service is registered under the given key.
func (sr *ServiceRegistry) Has(key string) bool {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	_, exists := sr.services[key]
	return exists
}

// Keys returns registered keys, sorted. A non-empty moduleID narrows the
// result to that module's services.
func (sr *ServiceRegistry) Keys(moduleID string) []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	keys := make([]string, 0, len(sr.services))
	for k := range sr.services {
		if moduleID != "" && !strings.HasPrefix(k, moduleID+".") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve retrieves a service with compile-time type safety via generics.
func Resolve[T any](sr *ServiceRegistry, key string) (T, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	var zero T
	svc, exists := sr.services[key]
	if !exists {
		return zero, errors.NewNotFound("service", key)
	}

	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("service %q is %T, want %T", key, svc, zero)
	}
	return typed, nil
}

// MustResolve retrieves a service, panicking if not found or wrong type.
func MustResolve[T any](sr *ServiceRegistry, key string) T {
	svc, err := Resolve[T](sr, key)
	if err != nil {
		panic(err)
	}
	return svc
}
