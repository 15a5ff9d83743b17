// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiln-build/kiln/internal/config"
)

// newConfigCommand creates the `kiln config` command tree.
func newConfigCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect kiln configuration",
		Long: `Inspect kiln configuration.

Configuration is stored in:
  - Linux: ~/.config/kiln/config.cue
  - macOS: ~/Library/Application Support/kiln/config.cue
  - Windows: %APPDATA%\kiln\config.cue

Every setting can be overridden with a KILN_* environment variable,
e.g. KILN_RESOLUTION_CONFLICT_STRATEGY=take-first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show current configuration",
			Args:  cobra.NoArgs,
			RunE: app.run(rootFlags, func(cmd *cobra.Command, _ []string) error {
				return app.showConfig(cmd.Context(), rootFlags)
			}),
		},
		&cobra.Command{
			Use:   "dump",
			Short: "Output the effective configuration as CUE",
			Args:  cobra.NoArgs,
			RunE: app.run(rootFlags, func(cmd *cobra.Command, _ []string) error {
				cfg, err := app.loadConfig(cmd.Context(), rootFlags)
				if err != nil {
					return err
				}
				fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show configuration file path",
			Args:  cobra.NoArgs,
			RunE: app.run(rootFlags, func(_ *cobra.Command, _ []string) error {
				cfgDir, err := config.ConfigDir()
				if err != nil {
					return err
				}
				fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
				fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
				return nil
			}),
		},
	)
	return cfgCmd
}

func (a *App) showConfig(ctx context.Context, rootFlags *rootFlagValues) error {
	loaded, err := config.LoadWithPath(ctx, config.LoadOptions{ConfigFilePath: rootFlags.configPath})
	if err != nil {
		return err
	}
	cfg := loaded.Config

	row := func(indent, key, value string) {
		fmt.Fprintf(a.stdout, "%s%s: %s\n", indent, KeyStyle.Render(key), SuccessStyle.Render(value))
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(a.stdout)
	if loaded.Path != "" {
		fmt.Fprintf(a.stdout, "%s: %s\n", KeyStyle.Render("Config file"), loaded.Path)
	} else {
		fmt.Fprintf(a.stdout, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(a.stdout)

	cacheDir, err := cfg.CacheDirectory()
	if err != nil {
		return err
	}
	row("", "cache_dir", cacheDir)

	fmt.Fprintln(a.stdout)
	fmt.Fprintf(a.stdout, "%s:\n", KeyStyle.Render("repositories"))
	if len(cfg.Repositories) == 0 {
		fmt.Fprintf(a.stdout, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, r := range cfg.Repositories {
		line := fmt.Sprintf("%s (%s)", r.Name, r.Kind)
		if r.Path != "" {
			line += " " + r.Path
		}
		fmt.Fprintf(a.stdout, "  - %s\n", SuccessStyle.Render(line))
	}

	fmt.Fprintln(a.stdout)
	fmt.Fprintf(a.stdout, "%s:\n", KeyStyle.Render("resolution"))
	row("  ", "conflict_strategy", cfg.Resolution.ConflictStrategy)
	row("  ", "parallelism", fmt.Sprint(cfg.Resolution.Parallelism))
	row("  ", "max_passes", fmt.Sprint(cfg.Resolution.MaxPasses))
	row("  ", "fail_on_error", fmt.Sprint(cfg.Resolution.FailOnError))
	row("  ", "default_scopes", strings.Join(cfg.Resolution.DefaultScopes, ", "))

	fmt.Fprintln(a.stdout)
	fmt.Fprintf(a.stdout, "%s:\n", KeyStyle.Render("ui"))
	row("  ", "color_scheme", cfg.UI.ColorScheme.String())
	row("  ", "verbose", fmt.Sprint(cfg.UI.Verbose))
	return nil
}
