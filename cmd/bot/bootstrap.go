package main

import (
	"context"
	stderrors "errors"

	"github.com/leeforge/bot/admin"
	"github.com/leeforge/bot/command"
	"github.com/leeforge/bot/config"
	"github.com/leeforge/bot/core"
	"github.com/leeforge/bot/discord"
	"github.com/leeforge/bot/discovery"
	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/events"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/installer"
	"github.com/leeforge/bot/loader"
	"github.com/leeforge/bot/logging"
	"github.com/leeforge/bot/metrics"
	"github.com/leeforge/bot/permission"
	"github.com/leeforge/bot/redis_client"
	"github.com/leeforge/bot/registry"
	"github.com/leeforge/bot/runtime"
	"github.com/leeforge/bot/tenant"
	"github.com/leeforge/bot/version"
	"go.uber.org/zap"
)

// bot is a fully wired host with the resources it owns.
type bot struct {
	host    *runtime.Host
	admin   *admin.Server // nil when the admin API is disabled
	closers []func() error
}

func (b *bot) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return stderrors.Join(errs...)
}

func newScanner(cfg *config.AppConfig, logger *zap.Logger) (*discovery.Scanner, error) {
	compat, err := discovery.NewCompatibility(version.API, version.APIPackage)
	if err != nil {
		return nil, err
	}
	return discovery.NewScanner(compat, logger, discovery.WithConcurrency(cfg.Discovery.Concurrency)), nil
}

// openTenantStore picks the override store for the configured driver.
// Remote stores sit behind a read cache when CacheTTL is positive.
func openTenantStore(ctx context.Context, cfg config.TenantConfig, logger *zap.Logger) (tenant.Store, []func() error, error) {
	var (
		store   tenant.Store
		closers []func() error
	)
	switch cfg.Driver {
	case "redis":
		client, err := redis_client.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		store = tenant.NewRedisStore(client, cfg.Redis.KeyPrefix)
		closers = append(closers, client.Close)
	case "sqlite":
		s, err := tenant.OpenSQLStore(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		store = s
		closers = append(closers, s.Close)
	default:
		return tenant.NewMemoryStore(), nil, nil
	}

	if cfg.CacheTTL > 0 {
		cached := tenant.NewCachedStore(store, cfg.CacheTTL)
		closers = append(closers, func() error { cached.Close(); return nil })
		store = cached
	}
	logger.Info("tenant store ready", zap.String("driver", cfg.Driver), zap.Duration("cache_ttl", cfg.CacheTTL))
	return store, closers, nil
}

func newInstaller(cfg config.InstallerConfig) (installer.Installer, error) {
	if cfg.Script == "" {
		return installer.Nop{}, nil
	}
	return installer.NewShell(cfg.Script, cfg.Env...)
}

// buildBot wires every component of the host from cfg.
func buildBot(ctx context.Context, cfg *config.AppConfig, logs *logging.Factory) (_ *bot, err error) {
	if cfg.Token == "" {
		return nil, errors.NewInvalid("token", "", "set token in the config file or BOT_TOKEN in the environment")
	}
	logger := logs.GetLogger("host")
	b := &bot{}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	store, closers, err := openTenantStore(ctx, cfg.Tenant, logs.GetLogger("tenant"))
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, closers...)
	policy := tenant.NewPolicy(store, cfg.DefaultPrefix)

	enforcer, err := permission.NewEnforcer(cfg.Permission.PolicyPath, logs.GetLogger("permission"))
	if err != nil {
		return nil, err
	}
	inst, err := newInstaller(cfg.Installer)
	if err != nil {
		return nil, err
	}
	scanner, err := newScanner(cfg, logs.GetLogger("discovery"))
	if err != nil {
		return nil, err
	}

	modules := registry.New()
	services := extension.NewServiceRegistry()
	commands := command.NewRegistry(policy, logs.GetLogger("command"))
	dispatcher := command.NewDispatcher(commands, policy, nil, logs.GetLogger("command"))
	bus := events.NewBus(events.DefaultBufferSize, logs.GetLogger("events"))
	eventRegistry := events.NewRegistry(bus, policy, logs.GetLogger("events"))

	collector := metrics.NewCollector()
	dispatcher.SetRecorder(collector)
	countEvents(eventRegistry, collector)

	platform, err := discord.New(discord.Options{
		Token:           cfg.Token,
		DefaultNickname: cfg.DefaultNickname,
		Debug:           cfg.DeveloperMode,
		Bus:             bus,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	dispatcher.SetReplier(platform)

	ld := loader.New(modules, logs.GetLogger("loader"),
		loader.WithInstaller(inst),
		loader.WithServices(services),
		loader.WithConfig(func(moduleID string) extension.ConfigProvider {
			return extension.NewModuleConfig(cfg.ModuleSettings(moduleID))
		}),
	)

	coreModule := core.New(core.Options{
		Modules:            modules,
		Commands:           commands,
		Dispatcher:         dispatcher,
		Events:             eventRegistry,
		Tenants:            policy,
		Services:           services,
		Permission:         enforcer.Require(),
		Announcer:          platform,
		Deleter:            platform,
		Invite:             platform.InviteURL,
		Heart:              cfg.RandomHeart,
		DefaultNickname:    cfg.DefaultNickname,
		ShowWelcomeMessage: cfg.ShowWelcomeMessage,
		Logger:             logs.GetLogger(core.ModuleID),
	})

	b.host = runtime.NewHost(runtime.Config{
		Modules:     modules,
		Scanner:     scanner,
		Loader:      ld,
		Commands:    commands,
		Events:      eventRegistry,
		Bus:         bus,
		Services:    services,
		Platform:    platform,
		Directories: cfg.ModuleDirectories,
		Builtins:    []extension.Module{coreModule},
		Metrics:     collector,
		Logger:      logger,
	})

	if cfg.Admin.Addr != "" {
		b.admin = admin.New(admin.Options{
			Addr:     cfg.Admin.Addr,
			Modules:  modules,
			Commands: commands,
			Tenants:  policy,
			Metrics:  collector,
			Logger:   logger,
		})
	}
	return b, nil
}

// countEvents feeds every well-known platform event into the collector.
func countEvents(r *events.Registry, collector *metrics.Collector) {
	for _, name := range []string{
		extension.EventMessage,
		extension.EventReady,
		extension.EventTenantJoin,
		extension.EventReactionAdd,
		extension.EventError,
		extension.EventWarn,
	} {
		r.On(name, func(_ context.Context, event extension.Event) error {
			collector.RecordEvent(event.Name)
			return nil
		})
	}
}
