package main

import (
	"github.com/leeforge/bot/config"
	"github.com/leeforge/bot/env_mode"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configDir string
	env       string
}

func (g *globalFlags) options() config.Options {
	opts := config.DefaultOptions()
	if g.configDir != "" {
		opts.BasePath = g.configDir
	}
	return opts
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "bot",
		Short: "A modular chat bot host",
		Long: `bot discovers modules in the configured module directories, loads the
newest compatible version of each and connects them to Discord.

Configuration is read from config.yaml (plus config.<env>.yaml and
config.local.yaml) in the config directory, and from BOT_* environment
variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if flags.env != "" {
				env_mode.SetMode(env_mode.ParseEnv(flags.env))
			}
		},
	}
	root.PersistentFlags().StringVarP(&flags.configDir, "config-dir", "c", "", "directory holding config.yaml (default $CONFIG_PATH or ./config)")
	root.PersistentFlags().StringVarP(&flags.env, "env", "e", "", "environment mode: development, test or production")

	root.AddCommand(newRunCommand(flags))
	root.AddCommand(newModulesCommand(flags))
	root.AddCommand(newVersionCommand())
	return root
}
