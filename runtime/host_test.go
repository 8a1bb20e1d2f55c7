package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leeforge/bot/command"
	"github.com/leeforge/bot/discovery"
	boterrors "github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/events"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/installer"
	"github.com/leeforge/bot/json"
	"github.com/leeforge/bot/loader"
	"github.com/leeforge/bot/metrics"
	"github.com/leeforge/bot/registry"
	"github.com/leeforge/bot/tenant"
	"github.com/leeforge/bot/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// --- Test Helpers ---

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeModule struct {
	*extension.Base
	rec     *recorder
	fail    map[string]error
	panicOn string
	handled atomic.Int32
}

func newFake(id string, rec *recorder) *fakeModule {
	return &fakeModule{
		Base: extension.NewBase(extension.Descriptor{ID: id, Name: id, Version: "1.0.0"}, nil, nil, nil),
		rec:  rec,
		fail: map[string]error{},
	}
}

func (m *fakeModule) hook(phase string) error {
	m.rec.add(m.ID() + "." + phase)
	if m.panicOn == phase {
		panic(phase + " exploded")
	}
	return m.fail[phase]
}

func (m *fakeModule) RegisterDependencies(_ context.Context, services *extension.ServiceRegistry) error {
	if err := services.Register(extension.ServiceKey(m.ID(), "greeting"), "hello from "+m.ID()); err != nil {
		return err
	}
	return m.hook("register")
}

func (m *fakeModule) PreInitialize(context.Context) error {
	m.AddCommand(&extension.Command{
		Name: "ping",
		Run:  func(context.Context, *extension.Invocation) error { return nil },
	})
	m.AddEvent(extension.EventReady, func(context.Context, extension.Event) error {
		m.handled.Add(1)
		return nil
	})
	return m.hook("pre")
}

func (m *fakeModule) Initialize(context.Context) error     { return m.hook("init") }
func (m *fakeModule) PostInitialize(context.Context) error { return m.hook("post") }

type countingInstaller struct{ calls atomic.Int32 }

func (c *countingInstaller) Install(context.Context, installer.Request) (installer.Result, error) {
	c.calls.Add(1)
	return installer.Result{}, nil
}

type fakePlatform struct {
	opened atomic.Bool
	closed atomic.Bool
}

func (p *fakePlatform) Open(context.Context) error { p.opened.Store(true); return nil }
func (p *fakePlatform) Close() error               { p.closed.Store(true); return nil }

type fixture struct {
	host      *Host
	modules   *registry.Registry
	commands  *command.Registry
	bus       *events.Bus
	installer *countingInstaller
	opened    atomic.Int32
	logs      *observer.ObservedLogs
}

func newFixture(t *testing.T, dirs []string, builtins ...extension.Module) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	compat, err := discovery.NewCompatibility(version.API, version.APIPackage)
	require.NoError(t, err)

	f := &fixture{
		modules:   registry.New(),
		bus:       events.NewBus(16, logger),
		installer: &countingInstaller{},
		logs:      logs,
	}
	t.Cleanup(func() { f.bus.Close() })

	opener := loader.OpenerFunc(func(_ context.Context, _ string, base *extension.Base) (extension.Module, error) {
		f.opened.Add(1)
		return extension.WithHooks(base, nil), nil
	})

	policy := tenant.NewPolicy(tenant.NewMemoryStore(), "!")
	f.commands = command.NewRegistry(policy, logger)
	f.host = NewHost(Config{
		Modules:     f.modules,
		Scanner:     discovery.NewScanner(compat, logger),
		Loader:      loader.New(f.modules, logger, loader.WithInstaller(f.installer), loader.WithOpener(".go", opener)),
		Commands:    f.commands,
		Events:      events.NewRegistry(f.bus, policy, logger),
		Bus:         f.bus,
		Directories: dirs,
		Builtins:    builtins,
		Logger:      logger,
	})
	return f
}

func writeModule(t *testing.T, parent, name, id, ver, apiRange string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(map[string]any{
		"name":         "bot-module-" + id,
		"version":      ver,
		"main":         "module.go",
		"dependencies": map[string]string{version.APIPackage: apiRange},
		"bot-module":   map[string]string{"id": id, "name": id},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, discovery.ManifestName), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "module.go"), []byte("package "+id+"\n"), 0o644))
	return dir
}

// --- Tests ---

func TestStartKeepsHighestVersionAcrossDirectories(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeModule(t, first, "weather", "weather", "1.0.0", "^2.0.0")
	newer := writeModule(t, second, "weather", "weather", "1.2.0", "^2.0.0")

	f := newFixture(t, []string{first, second})
	require.NoError(t, f.host.Start(context.Background()))

	require.Equal(t, 1, f.modules.Len())
	m, ok := f.modules.Get("weather")
	require.True(t, ok)
	assert.Equal(t, "1.2.0", m.Descriptor().Version)
	assert.Equal(t, newer, m.Descriptor().ContainerPath)

	state, _ := f.modules.State("weather")
	assert.Equal(t, extension.StatePostInitialized, state)
}

func TestStartSkipsCandidateWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "half-finished"), 0o755))

	f := newFixture(t, []string{dir})
	require.NoError(t, f.host.Start(context.Background()))

	assert.Equal(t, 0, f.modules.Len())
	warnings := f.logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "half-finished", warnings[0].ContextMap()["candidate"])
}

func TestStartRejectsIncompatibleAPIBeforeLoading(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "future", "future", "1.0.0", "^3.0.0")

	f := newFixture(t, []string{dir})
	require.NoError(t, f.host.Start(context.Background()))

	assert.Equal(t, 0, f.modules.Len())
	assert.Zero(t, f.installer.calls.Load(), "installer must not run")
	assert.Zero(t, f.opened.Load(), "entry point must not be opened")
}

func TestStartRunsPhasesInOrder(t *testing.T) {
	rec := &recorder{}
	a, b := newFake("alpha", rec), newFake("beta", rec)

	f := newFixture(t, nil, a, b)
	require.NoError(t, f.host.Start(context.Background()))

	assert.Equal(t, []string{
		"alpha.register", "beta.register",
		"alpha.pre", "beta.pre",
		"alpha.init", "beta.init",
		"alpha.post", "beta.post",
	}, rec.list())

	for _, id := range []string{"alpha", "beta"} {
		state, ok := f.modules.State(id)
		require.True(t, ok)
		assert.Equal(t, extension.StatePostInitialized, state)
	}

	all, err := f.commands.GetAll(context.Background(), command.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, f.bus.Publish(context.Background(), extension.Event{Name: extension.EventReady}))
	require.NoError(t, f.bus.Close())
	assert.EqualValues(t, 1, a.handled.Load())
	assert.EqualValues(t, 1, b.handled.Load())
}

func TestStartAbortsOnLifecycleError(t *testing.T) {
	rec := &recorder{}
	a, b, c := newFake("alpha", rec), newFake("beta", rec), newFake("gamma", rec)
	b.fail["init"] = errors.New("database unreachable")

	f := newFixture(t, nil, a, b, c)
	err := f.host.Start(context.Background())
	require.Error(t, err)
	assert.True(t, boterrors.IsType(err, boterrors.ErrorTypeLifecycle))
	assert.Contains(t, err.Error(), "database unreachable")

	assert.NotContains(t, rec.list(), "gamma.init")
	assert.NotContains(t, rec.list(), "alpha.post")

	state, _ := f.modules.State("beta")
	assert.Equal(t, extension.StateFailed, state)
	state, _ = f.modules.State("alpha")
	assert.Equal(t, extension.StateInitialized, state)

	all, err := f.commands.GetAll(context.Background(), command.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "alpha", all[0].ModuleID)
}

func TestStartConvertsLifecyclePanic(t *testing.T) {
	rec := &recorder{}
	a := newFake("alpha", rec)
	a.panicOn = "pre"

	f := newFixture(t, nil, a)
	err := f.host.Start(context.Background())
	require.Error(t, err)
	assert.True(t, boterrors.IsType(err, boterrors.ErrorTypeLifecycle))
	assert.Contains(t, err.Error(), "pre exploded")

	state, _ := f.modules.State("alpha")
	assert.Equal(t, extension.StateFailed, state)
}

func TestStartTwiceFails(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.host.Start(context.Background()))
	assert.Error(t, f.host.Start(context.Background()))
}

func TestStartRejectsDuplicateBuiltin(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, nil, newFake("core", rec), newFake("core", rec))
	err := f.host.Start(context.Background())
	require.Error(t, err)
	assert.True(t, boterrors.IsType(err, boterrors.ErrorTypeConflict))
}

func TestRunOpensPlatformUntilCancelled(t *testing.T) {
	platform := &fakePlatform{}
	f := newFixture(t, nil)
	f.host.cfg.Platform = platform

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.host.Run(ctx) }()

	require.Eventually(t, platform.opened.Load, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, platform.closed.Load())
	assert.ErrorIs(t, f.bus.Publish(context.Background(), extension.Event{Name: "late"}), extension.ErrBusClosed)
	require.NoError(t, f.host.Shutdown(context.Background()))
}

func TestStartRecordsModuleStates(t *testing.T) {
	rec := &recorder{}
	a, b := newFake("alpha", rec), newFake("beta", rec)
	b.fail["post"] = errors.New("quota exceeded")

	f := newFixture(t, nil, a, b)
	collector := metrics.NewCollector()
	f.host.cfg.Metrics = collector
	require.Error(t, f.host.Start(context.Background()))

	assert.Equal(t, 1.0, collector.Get("modules", map[string]string{"state": "failed"}).Value)
	assert.Equal(t, 1.0, collector.Get("modules", map[string]string{"state": "post-initialized"}).Value)
}
