// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for kiln.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kiln-build/kiln/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every command.
type rootFlagValues struct {
	configPath  string
	dir         string
	verbose     bool
	metricsFile string
}

// NewRootCommand builds the kiln command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "kiln",
		Short: "Dependency resolution for multi-project builds",
		Long: TitleStyle.Render("kiln") + SubtitleStyle.Render(" - Dependency resolution for multi-project builds") + `

kiln reads the kiln.cue build file of a project, resolves its module
dependencies per scope against the configured repositories and reports
the resulting tree, files and versions.

` + SubtitleStyle.Render("Examples:") + `
  kiln deps tree                  Show the resolved dependency tree
  kiln deps files --scope test    List the files of the test scope
  kiln deps lock --check          Verify kiln.lock.toml is up to date
  kiln coordinate parse a:b:1.0   Explain a coordinate
  kiln config show                Show current configuration`,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return writeMetrics(flags.metricsFile)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	pf.StringVar(&flags.configPath, "config", "", "config file (default is <user config dir>/kiln/config.cue)")
	pf.StringVarP(&flags.dir, "dir", "C", ".", "project directory containing kiln.cue")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "write resolution metrics in Prometheus text format to this file")

	rootCmd.AddCommand(
		newDepsCommand(app, flags),
		newCoordinateCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	rootCmd := NewRootCommand(NewApp(Dependencies{}))
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// run wraps a command handler so failures are reported with their issue.
func (a *App) run(flags *rootFlagValues, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}
		if metricsErr := writeMetrics(flags.metricsFile); metricsErr != nil {
			fmt.Fprintf(a.stderr, "%s %v\n", WarningStyle.Render("Warning:"), metricsErr)
		}
		return reportFailure(cmd, a.stderr, err, flags.verbose, a.issueStyle(cmd, flags))
	}
}

// issueStyle picks the glamour style for rendering issues from the
// configured color scheme.
func (a *App) issueStyle(cmd *cobra.Command, flags *rootFlagValues) string {
	cfg, err := a.loadConfig(cmd.Context(), flags)
	if err != nil {
		return string(config.ColorSchemeAuto)
	}
	return string(cfg.UI.ColorScheme)
}

// writeMetrics dumps the default Prometheus registry to path.
func writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
