// Package tenant resolves per-tenant configuration: command prefix and
// module or command disable switches.
package tenant

import (
	"context"
	"slices"
	"strings"
)

// Overrides is the persisted configuration of one tenant.
type Overrides struct {
	TenantID           string              `json:"tenantId"`
	Prefix             string              `json:"prefix,omitempty"`
	DisabledModules    []string            `json:"disabledModules,omitempty"`
	DisabledCommands   map[string][]string `json:"disabledCommands,omitempty"` // module id -> command names
	WelcomeMessageSent bool                `json:"welcomeMessageSent,omitempty"`
}

// Store loads and saves tenant overrides. Load returns (nil, nil) when the
// tenant has none.
type Store interface {
	Load(ctx context.Context, tenantID string) (*Overrides, error)
	Save(ctx context.Context, o *Overrides) error
}

// Clone returns a deep copy.
func (o *Overrides) Clone() *Overrides {
	if o == nil {
		return nil
	}
	out := *o
	out.DisabledModules = slices.Clone(o.DisabledModules)
	if o.DisabledCommands != nil {
		out.DisabledCommands = make(map[string][]string, len(o.DisabledCommands))
		for module, names := range o.DisabledCommands {
			out.DisabledCommands[module] = slices.Clone(names)
		}
	}
	return &out
}

// ModuleDisabled reports whether moduleID is switched off.
func (o *Overrides) ModuleDisabled(moduleID string) bool {
	return o != nil && slices.Contains(o.DisabledModules, moduleID)
}

// CommandDisabled reports whether the command is switched off on its own.
// Names compare case-insensitively.
func (o *Overrides) CommandDisabled(moduleID, name string) bool {
	if o == nil {
		return false
	}
	return slices.ContainsFunc(o.DisabledCommands[moduleID], func(n string) bool {
		return strings.EqualFold(n, name)
	})
}

func (o *Overrides) setModule(moduleID string, enabled bool) {
	idx := slices.Index(o.DisabledModules, moduleID)
	switch {
	case enabled && idx >= 0:
		o.DisabledModules = slices.Delete(o.DisabledModules, idx, idx+1)
	case !enabled && idx < 0:
		o.DisabledModules = append(o.DisabledModules, moduleID)
	}
}

func (o *Overrides) setCommand(moduleID, name string, enabled bool) {
	names := o.DisabledCommands[moduleID]
	idx := slices.IndexFunc(names, func(n string) bool { return strings.EqualFold(n, name) })
	switch {
	case enabled && idx >= 0:
		names = slices.Delete(names, idx, idx+1)
	case !enabled && idx < 0:
		names = append(names, name)
	default:
		return
	}
	if o.DisabledCommands == nil {
		o.DisabledCommands = make(map[string][]string)
	}
	if len(names) == 0 {
		delete(o.DisabledCommands, moduleID)
		return
	}
	o.DisabledCommands[moduleID] = names
}
