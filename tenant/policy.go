package tenant

import (
	"context"
	"strings"

	"github.com/leeforge/bot/errors"
)

// Policy answers tenant questions from the store on every call. Caching,
// if any, belongs to the Store.
type Policy struct {
	store         Store
	defaultPrefix string
}

func NewPolicy(store Store, defaultPrefix string) *Policy {
	return &Policy{store: store, defaultPrefix: defaultPrefix}
}

// DefaultPrefix is the host-wide command prefix.
func (p *Policy) DefaultPrefix() string {
	return p.defaultPrefix
}

func (p *Policy) load(ctx context.Context, tenantID string) (*Overrides, error) {
	if tenantID == "" {
		return nil, nil
	}
	o, err := p.store.Load(ctx, tenantID)
	if err != nil {
		return nil, errors.NewStorage(err, "failed to load tenant overrides").WithDetail("tenant", tenantID)
	}
	return o, nil
}

// Overrides returns a copy of the tenant's overrides, empty when none are stored.
func (p *Policy) Overrides(ctx context.Context, tenantID string) (*Overrides, error) {
	o, err := p.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return &Overrides{TenantID: tenantID}, nil
	}
	return o.Clone(), nil
}

// Prefix returns the tenant prefix, or the default prefix when the tenant
// has none or tenantID is empty.
func (p *Policy) Prefix(ctx context.Context, tenantID string) (string, error) {
	o, err := p.load(ctx, tenantID)
	if err != nil {
		return p.defaultPrefix, err
	}
	if o == nil || o.Prefix == "" {
		return p.defaultPrefix, nil
	}
	return o.Prefix, nil
}

// ModuleEnabled reports whether moduleID is enabled for the tenant.
func (p *Policy) ModuleEnabled(ctx context.Context, tenantID, moduleID string) (bool, error) {
	o, err := p.load(ctx, tenantID)
	if err != nil {
		return true, err
	}
	return !o.ModuleDisabled(moduleID), nil
}

// CommandEnabled reports whether a command and its module are enabled for the tenant.
func (p *Policy) CommandEnabled(ctx context.Context, tenantID, moduleID, name string) (bool, error) {
	o, err := p.load(ctx, tenantID)
	if err != nil {
		return true, err
	}
	return !o.ModuleDisabled(moduleID) && !o.CommandDisabled(moduleID, name), nil
}

// SetPrefix stores a tenant prefix. An empty prefix restores the default.
func (p *Policy) SetPrefix(ctx context.Context, tenantID, prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if strings.ContainsAny(prefix, " \t\n") {
		return errors.NewInvalid("prefix", prefix, "prefix must not contain whitespace")
	}
	return p.update(ctx, tenantID, func(o *Overrides) { o.Prefix = prefix })
}

// SetModuleEnabled switches a module on or off for the tenant.
func (p *Policy) SetModuleEnabled(ctx context.Context, tenantID, moduleID string, enabled bool) error {
	return p.update(ctx, tenantID, func(o *Overrides) { o.setModule(moduleID, enabled) })
}

// SetCommandEnabled switches a single command on or off for the tenant.
func (p *Policy) SetCommandEnabled(ctx context.Context, tenantID, moduleID, name string, enabled bool) error {
	return p.update(ctx, tenantID, func(o *Overrides) { o.setCommand(moduleID, name, enabled) })
}

// MarkWelcomed records that the tenant received its welcome message.
func (p *Policy) MarkWelcomed(ctx context.Context, tenantID string) error {
	return p.update(ctx, tenantID, func(o *Overrides) { o.WelcomeMessageSent = true })
}

func (p *Policy) update(ctx context.Context, tenantID string, mutate func(o *Overrides)) error {
	if tenantID == "" {
		return errors.NewInvalid("tenant", tenantID, "tenant overrides need a tenant")
	}
	o, err := p.Overrides(ctx, tenantID)
	if err != nil {
		return err
	}
	mutate(o)
	if err := p.store.Save(ctx, o); err != nil {
		return errors.NewStorage(err, "failed to save tenant overrides").WithDetail("tenant", tenantID)
	}
	return nil
}
