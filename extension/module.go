package extension

import "context"

// Module is the contract every loaded extension satisfies.
type Module interface {
	Descriptor() Descriptor
	Commands() []*Command
	Events() []*EventBinding

	// PreInitialize builds commands and events without exposing them.
	PreInitialize(ctx context.Context) error
	// Initialize runs right before the module's contributions are registered.
	Initialize(ctx context.Context) error
	// PostInitialize runs after every module initialized.
	PostInitialize(ctx context.Context) error
}

// --- Optional Capability Interfaces ---
// The host detects these via type assertion.

// DependencyRegistrar -- publish services for other modules before PreInitialize.
type DependencyRegistrar interface {
	RegisterDependencies(ctx context.Context, services *ServiceRegistry) error
}

// Factory constructs a module around its Base.
// Shared-object entry points export a symbol named FactorySymbol of this type.
type Factory func(base *Base) (Module, error)

// FactorySymbol is the symbol an entry point must export.
const FactorySymbol = "NewModule"

// Hooks is what interpreted entry points return; nil hooks are no-ops.
type Hooks struct {
	RegisterDependencies func(ctx context.Context, services *ServiceRegistry) error
	PreInitialize        func(ctx context.Context) error
	Initialize           func(ctx context.Context) error
	PostInitialize       func(ctx context.Context) error
}

// WithHooks adapts a Base plus hook functions into a Module.
func WithHooks(base *Base, hooks *Hooks) Module {
	if hooks == nil {
		hooks = &Hooks{}
	}
	return &hookedModule{Base: base, hooks: hooks}
}

type hookedModule struct {
	*Base
	hooks *Hooks
}

func (m *hookedModule) RegisterDependencies(ctx context.Context, services *ServiceRegistry) error {
	if m.hooks.RegisterDependencies == nil {
		return nil
	}
	return m.hooks.RegisterDependencies(ctx, services)
}

func (m *hookedModule) PreInitialize(ctx context.Context) error {
	if m.hooks.PreInitialize == nil {
		return nil
	}
	return m.hooks.PreInitialize(ctx)
}

func (m *hookedModule) Initialize(ctx context.Context) error {
	if m.hooks.Initialize == nil {
		return nil
	}
	return m.hooks.Initialize(ctx)
}

func (m *hookedModule) PostInitialize(ctx context.Context) error {
	if m.hooks.PostInitialize == nil {
		return nil
	}
	return m.hooks.PostInitialize(ctx)
}
