// Package runtime drives loaded modules through their lifecycle and wires
// their contributions into the command and event registries.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leeforge/bot/command"
	"github.com/leeforge/bot/discovery"
	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/events"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/loader"
	"github.com/leeforge/bot/registry"
	"go.uber.org/zap"
)

// Lifecycle phase names, as reported in lifecycle errors.
const (
	PhaseRegisterDependencies = "registerDependencies"
	PhasePreInitialize        = "preInitialize"
	PhaseInitialize           = "initialize"
	PhasePostInitialize       = "postInitialize"
)

const shutdownTimeout = 30 * time.Second

// Platform is the chat platform connection that feeds the event bus.
type Platform interface {
	Open(ctx context.Context) error
	Close() error
}

// StateRecorder receives module counts per lifecycle state.
type StateRecorder interface {
	SetModuleStates(counts map[string]int)
}

// Config holds the collaborators of a Host. Scanner and Loader may be nil
// when only builtin modules are wanted.
type Config struct {
	Modules     *registry.Registry
	Scanner     *discovery.Scanner
	Loader      *loader.Loader
	Commands    *command.Registry
	Events      *events.Registry
	Bus         extension.EventBus
	Services    *extension.ServiceRegistry
	Platform    Platform
	Directories []string

	// Builtins are registered ahead of any scanned module, in order.
	Builtins []extension.Module

	Metrics StateRecorder // optional
	Logger  *zap.Logger
}

// Host runs the three lifecycle phases over every module and then serves
// platform events until stopped.
type Host struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	started  bool
	shutdown bool
}

// NewHost creates a host. Missing registries are created empty.
func NewHost(cfg Config) *Host {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Modules == nil {
		cfg.Modules = registry.New()
	}
	if cfg.Services == nil {
		cfg.Services = extension.NewServiceRegistry()
	}
	return &Host{cfg: cfg, logger: cfg.Logger}
}

// Modules returns the module registry.
func (h *Host) Modules() *registry.Registry {
	return h.cfg.Modules
}

// Start discovers, loads and initializes every module. The first lifecycle
// failure stops orchestration and is returned as a lifecycle AppError; the
// failing module is left in StateFailed.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return errors.New(errors.ErrorTypeInvalid, "host already started")
	}
	h.started = true
	h.mu.Unlock()

	start := time.Now()
	defer h.recordStates()
	if err := h.preInitialize(ctx); err != nil {
		return err
	}
	if err := h.initialize(ctx); err != nil {
		return err
	}
	if err := h.postInitialize(ctx); err != nil {
		return err
	}

	h.logger.Info("host started",
		zap.Int("modules", h.cfg.Modules.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Run starts the host if needed, opens the platform connection and blocks
// until ctx is cancelled, then shuts down.
func (h *Host) Run(ctx context.Context) error {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if !started {
		if err := h.Start(ctx); err != nil {
			return err
		}
	}

	if h.cfg.Platform != nil {
		if err := h.cfg.Platform.Open(ctx); err != nil {
			_ = h.Shutdown(context.Background())
			return fmt.Errorf("open platform: %w", err)
		}
	}

	<-ctx.Done()
	h.logger.Info("stopping host")
	return h.Shutdown(context.Background())
}

// Shutdown closes the platform connection and drains the event bus. It is
// safe to call more than once.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		return nil
	}
	h.shutdown = true
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if h.cfg.Platform != nil {
		if err := h.cfg.Platform.Close(); err != nil {
			h.logger.Warn("platform close failed", zap.Error(err))
		}
	}

	if h.cfg.Bus != nil {
		done := make(chan error, 1)
		go func() { done <- h.cfg.Bus.Close() }()
		select {
		case err := <-done:
			if err != nil {
				h.logger.Warn("event bus close failed", zap.Error(err))
			}
		case <-ctx.Done():
			h.logger.Warn("event bus did not drain in time")
		}
	}

	h.logger.Info("shutdown completed")
	return nil
}

func (h *Host) preInitialize(ctx context.Context) error {
	for _, m := range h.cfg.Builtins {
		if err := h.cfg.Modules.Add(m); err != nil {
			return fmt.Errorf("register builtin module: %w", err)
		}
	}

	if h.cfg.Scanner != nil && h.cfg.Loader != nil {
		found, err := h.cfg.Scanner.Scan(ctx, h.cfg.Directories...)
		if err != nil {
			return fmt.Errorf("scan module directories: %w", err)
		}
		if _, err := h.cfg.Loader.LoadAll(ctx, discovery.Resolve(found, h.logger)); err != nil {
			return fmt.Errorf("load modules: %w", err)
		}
	}

	modules := h.cfg.Modules.All()
	for _, m := range modules {
		registrar, ok := m.(extension.DependencyRegistrar)
		if !ok {
			continue
		}
		err := h.call(ctx, PhaseRegisterDependencies, m, func(ctx context.Context) error {
			return registrar.RegisterDependencies(ctx, h.cfg.Services)
		})
		if err != nil {
			return err
		}
	}

	for _, m := range modules {
		if err := h.call(ctx, PhasePreInitialize, m, m.PreInitialize); err != nil {
			return err
		}
		h.advance(m, extension.StatePreInitialized)
	}
	return nil
}

func (h *Host) initialize(ctx context.Context) error {
	for _, m := range h.cfg.Modules.All() {
		if err := h.call(ctx, PhaseInitialize, m, m.Initialize); err != nil {
			return err
		}
		h.contribute(m)
		h.advance(m, extension.StateInitialized)
	}
	return nil
}

func (h *Host) postInitialize(ctx context.Context) error {
	for _, m := range h.cfg.Modules.All() {
		if err := h.call(ctx, PhasePostInitialize, m, m.PostInitialize); err != nil {
			return err
		}
		h.advance(m, extension.StatePostInitialized)
	}
	return nil
}

// contribute registers a module's commands and event bindings.
func (h *Host) contribute(m extension.Module) {
	id := m.Descriptor().ID
	registered := 0
	if h.cfg.Commands != nil {
		for _, cmd := range m.Commands() {
			if h.cfg.Commands.Register(cmd) {
				registered++
			}
		}
	}
	bound := 0
	if h.cfg.Events != nil {
		for _, b := range m.Events() {
			h.cfg.Events.RegisterEvent(b)
			bound++
		}
	}
	h.logger.Debug("module contributions registered",
		zap.String("module", id),
		zap.Int("commands", registered),
		zap.Int("events", bound),
	)
}

// call runs one lifecycle method. Errors and panics mark the module failed.
func (h *Host) call(ctx context.Context, phase string, m extension.Module, fn func(context.Context) error) (err error) {
	id := m.Descriptor().ID
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r)
		}
		if err == nil {
			return
		}
		if stateErr := h.cfg.Modules.SetState(id, extension.StateFailed); stateErr != nil {
			h.logger.Debug("could not mark module failed", zap.String("module", id), zap.Error(stateErr))
		}
		err = errors.NewLifecycle(phase, id, err)
		h.logger.Error("module lifecycle failed", zap.String("module", id), zap.String("phase", phase), zap.Error(err))
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func (h *Host) recordStates() {
	if h.cfg.Metrics == nil {
		return
	}
	counts := make(map[string]int)
	for _, m := range h.cfg.Modules.All() {
		if state, ok := h.cfg.Modules.State(m.Descriptor().ID); ok {
			counts[state.String()]++
		}
	}
	h.cfg.Metrics.SetModuleStates(counts)
}

func (h *Host) advance(m extension.Module, state extension.State) {
	id := m.Descriptor().ID
	if err := h.cfg.Modules.SetState(id, state); err != nil {
		h.logger.Warn("could not record module state", zap.String("module", id), zap.Error(err))
		return
	}
	h.logger.Debug("module state", zap.String("module", id), zap.Stringer("state", state))
}
