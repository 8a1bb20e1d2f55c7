// Package registry holds the set of loaded modules and their lifecycle state.
package registry

import (
	"strings"
	"sync"

	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/extension"
)

type entry struct {
	module extension.Module
	state  extension.State
}

// Registry is the process-wide list of loaded modules, kept in
// registration order. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	byID    map[string]*entry
}

func New() *Registry {
	return &Registry{byID: make(map[string]*entry)}
}

// Add registers a loaded module. A second module with the same id is refused.
func (r *Registry) Add(m extension.Module) error {
	id := m.Descriptor().ID

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; exists {
		return errors.NewConflict("module", id)
	}
	e := &entry{module: m, state: extension.StateRegistered}
	r.entries = append(r.entries, e)
	r.byID[id] = e
	return nil
}

// Get returns the module with the given id.
func (r *Registry) Get(id string) (extension.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return e.module, true
}

// GetByName returns the first module whose display name matches, ignoring case.
func (r *Registry) GetByName(name string) (extension.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if strings.EqualFold(e.module.Descriptor().Name, name) {
			return e.module, true
		}
	}
	return nil, false
}

// Find resolves an id first, then a display name.
func (r *Registry) Find(idOrName string) (extension.Module, bool) {
	if m, ok := r.Get(idOrName); ok {
		return m, true
	}
	return r.GetByName(idOrName)
}

// All returns the modules in registration order.
func (r *Registry) All() []extension.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]extension.Module, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.module
	}
	return out
}

// Descriptors returns copies of every module descriptor in registration order.
func (r *Registry) Descriptors() []extension.Descriptor {
	modules := r.All()
	out := make([]extension.Descriptor, len(modules))
	for i, m := range modules {
		out[i] = m.Descriptor()
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// State returns the lifecycle state of a module.
func (r *Registry) State(id string) (extension.State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// SetState records a lifecycle transition. Terminal states are sticky.
func (r *Registry) SetState(id string, state extension.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return errors.NewNotFound("module", id)
	}
	if e.state == extension.StateFailed {
		return errors.New(errors.ErrorTypeInvalid, "module "+id+" already failed")
	}
	e.state = state
	return nil
}
