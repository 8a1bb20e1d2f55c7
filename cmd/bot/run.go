package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leeforge/bot/config"
	"github.com/leeforge/bot/env_mode"
	"github.com/leeforge/bot/logging"
	"github.com/leeforge/bot/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load every module and connect to Discord",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, conf, err := config.Load(flags.options())
			if err != nil {
				return err
			}
			logs := logging.NewFactory(cfg.Log)
			defer logs.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, conf, logs)
		},
	}
}

func run(ctx context.Context, cfg *config.AppConfig, conf *config.Config, logs *logging.Factory) error {
	logger := logs.GetLogger("bot")
	for _, msg := range cfg.StartupMessages {
		logger.Info(msg)
	}
	logger.Info("starting bot",
		zap.String("version", version.Version),
		zap.String("api", version.API),
		zap.String("env", string(env_mode.Mode())),
		zap.Strings("config_files", conf.Files()),
		zap.Strings("module_directories", cfg.ModuleDirectories))

	b, err := buildBot(ctx, cfg, logs)
	if err != nil {
		logger.Error("failed to build bot", zap.Error(err))
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to release resources", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.host.Run(gctx) })
	if b.admin != nil {
		g.Go(func() error { return b.admin.Run(gctx) })
	}
	g.Go(func() error {
		if err := conf.Watch(gctx, reloadLogLevel(conf, logs, logger)); err != nil {
			logger.Warn("config watching disabled", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("bot stopped", zap.Error(err))
		return err
	}
	logger.Info("bot stopped")
	return nil
}

// reloadLogLevel applies the log level of a changed configuration. Other
// settings take effect on restart.
func reloadLogLevel(conf *config.Config, logs *logging.Factory, logger *zap.Logger) func(error) {
	return func(err error) {
		if err != nil {
			logger.Warn("failed to reload config", zap.Error(err))
			return
		}
		next := &config.AppConfig{}
		if err := conf.BindWithDefaults(next); err != nil {
			logger.Warn("ignoring invalid config change", zap.Error(err))
			return
		}
		logs.SetLevel(next.Log.Level)
	}
}
