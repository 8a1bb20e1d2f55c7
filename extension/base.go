package extension

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Base carries what every module needs and implements Module with no-op
// lifecycle methods. Concrete modules embed *Base and override what they use.
type Base struct {
	descriptor Descriptor
	logger     *zap.Logger
	services   *ServiceRegistry
	config     ConfigProvider

	mu       sync.Mutex
	commands []*Command
	events   []*EventBinding
}

// NewBase creates a Base. A nil logger becomes a no-op logger, a nil
// config becomes EmptyConfig.
func NewBase(d Descriptor, logger *zap.Logger, services *ServiceRegistry, config ConfigProvider) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	if services == nil {
		services = NewServiceRegistry()
	}
	if config == nil {
		config = EmptyConfig()
	}
	return &Base{
		descriptor: d.Clone(),
		logger:     logger,
		services:   services,
		config:     config,
	}
}

func (b *Base) Descriptor() Descriptor { return b.descriptor.Clone() }

// ID is shorthand for Descriptor().ID.
func (b *Base) ID() string { return b.descriptor.ID }

// Logger returns the module-scoped logger.
func (b *Base) Logger() *zap.Logger { return b.logger }

// Sugar returns the module-scoped sugared logger.
func (b *Base) Sugar() *zap.SugaredLogger { return b.logger.Sugar() }

// Services returns the shared service registry.
func (b *Base) Services() *ServiceRegistry { return b.services }

// Config returns the module's scoped configuration.
func (b *Base) Config() ConfigProvider { return b.config }

// AddCommand stamps the module id on cmd and records it.
func (b *Base) AddCommand(cmd *Command) *Command {
	cmd.ModuleID = b.descriptor.ID
	b.mu.Lock()
	b.commands = append(b.commands, cmd)
	b.mu.Unlock()
	return cmd
}

// AddEvent records a handler for the named event.
func (b *Base) AddEvent(event string, handler EventHandler) *EventBinding {
	binding := &EventBinding{ModuleID: b.descriptor.ID, Event: event, Handler: handler}
	b.mu.Lock()
	b.events = append(b.events, binding)
	b.mu.Unlock()
	return binding
}

func (b *Base) Commands() []*Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Command(nil), b.commands...)
}

func (b *Base) Events() []*EventBinding {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*EventBinding(nil), b.events...)
}

func (b *Base) PreInitialize(context.Context) error  { return nil }
func (b *Base) Initialize(context.Context) error     { return nil }
func (b *Base) PostInitialize(context.Context) error { return nil }

var _ Module = (*Base)(nil)
