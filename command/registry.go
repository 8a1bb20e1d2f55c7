// Package command keeps the registered chat commands and dispatches
// inbound messages to them.
package command

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/extension"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// CoreModuleID is the id of the built-in module whose commands win name clashes.
const CoreModuleID = "core"

// TenantPolicy is what the registry needs to know about tenants.
type TenantPolicy interface {
	DefaultPrefix() string
	Prefix(ctx context.Context, tenantID string) (string, error)
	CommandEnabled(ctx context.Context, tenantID, moduleID, name string) (bool, error)
}

// Filter narrows a lookup. Empty fields do not filter.
type Filter struct {
	TenantID string // drop commands disabled for this tenant
	ModuleID string // only commands of this module
}

// Registry is the process-wide list of commands in registration order.
type Registry struct {
	policy TenantPolicy
	logger *zap.Logger

	mu       sync.RWMutex
	commands []*extension.Command
}

func NewRegistry(policy TenantPolicy, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{policy: policy, logger: logger}
}

// fold normalizes a command name for comparison. Casers are not safe for
// concurrent use, so each call builds its own.
func fold(name string) string {
	return cases.Fold().String(name)
}

// Register adds cmd unless it lacks a module id or name, or the module
// already has a command with the same name in any case.
func (r *Registry) Register(cmd *extension.Command) bool {
	if cmd == nil {
		return false
	}
	if cmd.ModuleID == "" {
		r.logger.Warn("a module attempted to register a command without a module id")
		return false
	}
	if strings.TrimSpace(cmd.Name) == "" {
		r.logger.Warn("module attempted to register an empty command", zap.String("module", cmd.ModuleID))
		return false
	}

	key := fold(cmd.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.commands {
		if existing.ModuleID == cmd.ModuleID && fold(existing.Name) == key {
			r.logger.Debug("skipped registration of duplicate command",
				zap.Error(errors.NewDuplicateCommand(cmd.ModuleID, cmd.Name)))
			return false
		}
	}
	r.commands = append(r.commands, cmd)
	return true
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

func (r *Registry) snapshot(match func(*extension.Command) bool) []*extension.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*extension.Command
	for _, c := range r.commands {
		if match(c) {
			out = append(out, c)
		}
	}
	return out
}

// GetAll returns the commands passing f in registration order.
func (r *Registry) GetAll(ctx context.Context, f Filter) ([]*extension.Command, error) {
	cmds := r.snapshot(func(c *extension.Command) bool {
		return f.ModuleID == "" || c.ModuleID == f.ModuleID
	})
	return r.filterTenant(ctx, f.TenantID, cmds)
}

// Get returns the commands named name passing f, core module first, then
// registration order.
func (r *Registry) Get(ctx context.Context, name string, f Filter) ([]*extension.Command, error) {
	key := fold(name)
	cmds := r.snapshot(func(c *extension.Command) bool {
		return (f.ModuleID == "" || c.ModuleID == f.ModuleID) && fold(c.Name) == key
	})
	slices.SortStableFunc(cmds, func(a, b *extension.Command) int {
		switch {
		case a.ModuleID == CoreModuleID && b.ModuleID != CoreModuleID:
			return -1
		case a.ModuleID != CoreModuleID && b.ModuleID == CoreModuleID:
			return 1
		}
		return 0
	})
	return r.filterTenant(ctx, f.TenantID, cmds)
}

// CommandPrefix returns the tenant's prefix, or the default prefix when
// the tenant has none or tenantID is empty.
func (r *Registry) CommandPrefix(ctx context.Context, tenantID string) (string, error) {
	if r.policy == nil {
		return "", nil
	}
	return r.policy.Prefix(ctx, tenantID)
}

func (r *Registry) filterTenant(ctx context.Context, tenantID string, cmds []*extension.Command) ([]*extension.Command, error) {
	if tenantID == "" || r.policy == nil {
		return cmds, nil
	}
	out := cmds[:0]
	for _, c := range cmds {
		ok, err := r.policy.CommandEnabled(ctx, tenantID, c.ModuleID, c.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}
