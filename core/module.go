// Package core is the compiled-in module every bot starts with: help,
// per-tenant settings and the glue between platform events and the
// command dispatcher.
package core

import (
	"context"
	"sync"

	"github.com/leeforge/bot/command"
	"github.com/leeforge/bot/events"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/registry"
	"github.com/leeforge/bot/tenant"
	"github.com/leeforge/bot/version"
	"go.uber.org/zap"
)

// ModuleID is the id of the core module.
const ModuleID = command.CoreModuleID

// Service keys published during RegisterDependencies.
var (
	TenantsService  = extension.ServiceKey(ModuleID, "tenants")
	CommandsService = extension.ServiceKey(ModuleID, "commands")
)

// Announcer posts unsolicited messages into a tenant, e.g. the welcome text.
type Announcer interface {
	Announce(ctx context.Context, tenantID, text string) error
}

// Options wires the core module to the host.
type Options struct {
	Modules    *registry.Registry
	Commands   *command.Registry
	Dispatcher *command.Dispatcher
	Events     *events.Registry
	Tenants    *tenant.Policy
	Services   *extension.ServiceRegistry

	// Permission guards the tenant settings commands. Nil lets everyone use them.
	Permission extension.PermissionFunc

	// Announcer delivers welcome messages. Nil disables them.
	Announcer Announcer

	// Deleter removes bot messages users react to with a wastebasket.
	// Nil disables reaction deletes.
	Deleter Deleter

	// Invite returns the link that adds the bot to a tenant, once known.
	Invite func() (string, bool)

	// Heart returns a random emoji shortcode for friendly replies.
	Heart func() string

	DefaultNickname    string
	ShowWelcomeMessage bool

	Logger *zap.Logger
}

// Module is the core module.
type Module struct {
	*extension.Base
	opts Options

	diagnostics sync.Once

	mu   sync.RWMutex
	name string // display name learned at login
}

// New creates the core module.
func New(opts Options) *Module {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Heart == nil {
		opts.Heart = func() string { return ":heart:" }
	}
	d := extension.Descriptor{
		ID:            ModuleID,
		Name:          "Core Module",
		Version:       version.Version,
		APIRange:      version.API,
		ContainerName: "core",
		Description:   "The core functionality of the bot: help, prefixes and module switches.",
		Authors:       []string{"leeforge"},
		Website:       "https://github.com/leeforge/bot",
	}
	return &Module{
		Base: extension.NewBase(d, opts.Logger, opts.Services, nil),
		opts: opts,
		name: opts.DefaultNickname,
	}
}

func (m *Module) RegisterDependencies(_ context.Context, services *extension.ServiceRegistry) error {
	if m.opts.Tenants != nil {
		if err := services.Register(TenantsService, m.opts.Tenants); err != nil {
			return err
		}
	}
	if m.opts.Commands != nil {
		if err := services.Register(CommandsService, m.opts.Commands); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) PreInitialize(context.Context) error {
	m.AddCommand(m.helpCommand())
	m.AddCommand(m.setPrefixCommand())
	m.AddCommand(m.toggleCommand(true))
	m.AddCommand(m.toggleCommand(false))
	if m.opts.Invite != nil {
		m.AddCommand(m.inviteCommand())
	}

	if m.opts.Dispatcher != nil {
		m.AddEvent(extension.EventMessage, m.opts.Dispatcher.HandleEvent)
	}
	m.AddEvent(extension.EventReady, m.onReady)
	m.AddEvent(extension.EventTenantJoin, m.onTenantJoin)
	if m.opts.Deleter != nil {
		m.AddEvent(extension.EventReactionAdd, m.onReactionAdd)
	}
	return nil
}

func (m *Module) PostInitialize(context.Context) error {
	m.Logger().Info("initialized core module components",
		zap.Int("commands", len(m.Commands())),
		zap.Int("events", len(m.Events())))
	return nil
}

// DisplayName is the bot's name as users see it.
func (m *Module) DisplayName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.name == "" {
		return "your bot"
	}
	return m.name
}

func (m *Module) setDisplayName(name string) {
	if name == "" || m.opts.DefaultNickname != "" {
		return
	}
	m.mu.Lock()
	m.name = name
	m.mu.Unlock()
}

func (m *Module) prefix(ctx context.Context, tenantID string) string {
	if m.opts.Commands == nil {
		return ""
	}
	p, err := m.opts.Commands.CommandPrefix(ctx, tenantID)
	if err != nil {
		m.Logger().Warn("failed to resolve tenant prefix", zap.String("tenant", tenantID), zap.Error(err))
	}
	return p
}

// adminOnly wraps the configured permission so that direct messages reach
// the handler, which explains why the command needs a tenant.
func (m *Module) adminOnly() extension.PermissionFunc {
	check := m.opts.Permission
	return func(ctx context.Context, inv *extension.Invocation) (bool, error) {
		if inv.Message == nil || inv.Message.Direct() || check == nil {
			return true, nil
		}
		return check(ctx, inv)
	}
}
