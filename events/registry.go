package events

import (
	"context"
	"sync"

	"github.com/leeforge/bot/extension"
	"go.uber.org/zap"
)

// ModuleGate reports whether a module is enabled for a tenant.
type ModuleGate interface {
	ModuleEnabled(ctx context.Context, tenantID, moduleID string) (bool, error)
}

// Registry binds module event handlers to an event source. Bindings are
// permanent for the life of the process.
type Registry struct {
	source extension.EventSource
	gate   ModuleGate
	logger *zap.Logger

	mu       sync.RWMutex
	bindings []*extension.EventBinding
}

// NewRegistry creates a registry over source. gate may be nil, in which
// case module handlers see every event.
func NewRegistry(source extension.EventSource, gate ModuleGate, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{source: source, gate: gate, logger: logger}
}

// RegisterEvent attaches a module's binding to the source. Events that
// belong to a tenant where the owning module is disabled are skipped.
func (r *Registry) RegisterEvent(binding *extension.EventBinding) {
	r.mu.Lock()
	r.bindings = append(r.bindings, binding)
	r.mu.Unlock()

	moduleID := binding.ModuleID
	handler := binding.Handler
	r.source.Subscribe(binding.Event, func(ctx context.Context, event extension.Event) error {
		if !r.enabled(ctx, event.TenantID, moduleID) {
			return nil
		}
		return handler(ctx, event)
	})
	r.logger.Debug("registered event handler",
		zap.String("module", moduleID),
		zap.String("event", binding.Event))
}

// AddListener attaches a host-level handler that is never tenant filtered.
func (r *Registry) AddListener(event string, handler extension.EventHandler) extension.Subscription {
	return r.source.Subscribe(event, handler)
}

// On is an alias for AddListener.
func (r *Registry) On(event string, handler extension.EventHandler) extension.Subscription {
	return r.AddListener(event, handler)
}

// Bindings returns the registered module bindings in registration order.
func (r *Registry) Bindings(moduleID string) []*extension.EventBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*extension.EventBinding
	for _, b := range r.bindings {
		if moduleID == "" || b.ModuleID == moduleID {
			out = append(out, b)
		}
	}
	return out
}

func (r *Registry) enabled(ctx context.Context, tenantID, moduleID string) bool {
	if r.gate == nil || tenantID == "" {
		return true
	}
	ok, err := r.gate.ModuleEnabled(ctx, tenantID, moduleID)
	if err != nil {
		r.logger.Warn("tenant lookup failed, delivering event",
			zap.String("tenant", tenantID),
			zap.String("module", moduleID),
			zap.Error(err))
		return true
	}
	return ok
}
