package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/leeforge/bot/config"
	"github.com/leeforge/bot/discovery"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newModulesCommand(flags *globalFlags) *cobra.Command {
	var (
		asJSON bool
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "modules [directory...]",
		Short: "List the modules the host would load",
		Long: `modules scans the module directories (or the given ones) and prints the
modules that pass validation. Without --all only the newest version of
each module id is listed, which is what run loads.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(flags.options())
			if err != nil {
				return err
			}
			dirs := args
			if len(dirs) == 0 {
				dirs = cfg.ModuleDirectories
			}
			found, err := listModules(cmd, cfg, dirs, all)
			if err != nil {
				return err
			}
			if asJSON {
				return utils.PrintJSON(cmd.OutOrStdout(), found)
			}
			return printModules(cmd.OutOrStdout(), found)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print descriptors as JSON")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include superseded versions")
	return cmd
}

func listModules(cmd *cobra.Command, cfg *config.AppConfig, dirs []string, all bool) ([]extension.Descriptor, error) {
	scanner, err := newScanner(cfg, zap.NewNop())
	if err != nil {
		return nil, err
	}
	found, err := scanner.Scan(cmd.Context(), dirs...)
	if err != nil {
		return nil, err
	}
	if all {
		return found, nil
	}
	return discovery.Resolve(found, zap.NewNop()), nil
}

func printModules(w io.Writer, found []extension.Descriptor) error {
	if len(found) == 0 {
		_, err := fmt.Fprintln(w, "no modules found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERSION\tAPI\tSOURCE")
	for _, d := range found {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.Version, d.APIRange, d.ContainerPath)
	}
	return tw.Flush()
}
