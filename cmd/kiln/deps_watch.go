// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiln-build/kiln/internal/watch"
	"github.com/kiln-build/kiln/pkg/scope"
)

func newWatchCommand(app *App, rootFlags *rootFlagValues, flags *depsFlagValues) *cobra.Command {
	var (
		debounce    time.Duration
		clearScreen bool
	)
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-resolve and show the tree whenever a build file changes",
		Long: `Resolve once, then watch every kiln.cue of the build and show the
tree again after each change. Projects added by an edit are watched too.
Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: app.run(rootFlags, func(cmd *cobra.Command, _ []string) error {
			return app.depsWatch(cmd.Context(), rootFlags, flags, debounce, clearScreen)
		}),
	}
	watchCmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before re-resolving (default 500ms)")
	watchCmd.Flags().BoolVar(&clearScreen, "clear", false, "clear the screen before each re-resolution")
	return watchCmd
}

func (a *App) depsWatch(ctx context.Context, rootFlags *rootFlagValues, flags *depsFlagValues, debounce time.Duration, clearScreen bool) error {
	requested, err := scope.ParseAll(flags.scopes)
	if err != nil {
		return err
	}
	s, err := a.openSession(ctx, rootFlags)
	if err != nil {
		return err
	}

	render := func(ctx context.Context) {
		res, err := s.manager.FetchDependencies(ctx, s.scopes(requested)...)
		if res != nil {
			if renderErr := res.RenderTree(a.stdout); renderErr != nil {
				s.logger.Error("render tree", "err", renderErr)
			}
		}
		if err != nil {
			fmt.Fprintf(a.stderr, "%s %s\n", WarningStyle.Render("!"), formatErrorForDisplay(err, rootFlags.verbose))
		}
	}

	render(ctx)
	fmt.Fprintf(a.stdout, "\n%s Watching %d build file(s) (Ctrl+C to stop)...\n\n",
		KeyStyle.Render("→"), len(s.workspace.BuildFiles()))

	var w *watch.Watcher
	w, err = watch.New(watch.Config{
		BaseDir:     s.workspace.Root.Dir(),
		Files:       s.workspace.BuildFiles(),
		Debounce:    debounce,
		ClearScreen: clearScreen,
		Stdout:      a.stdout,
		Logger:      s.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(a.stdout, "%s Detected %d change(s). Re-resolving...\n", KeyStyle.Render("→"), len(changed))
			ws, err := loadWorkspace(ctx, s.workspace.Root.Dir())
			if err != nil {
				fmt.Fprintf(a.stderr, "%s %s\n", WarningStyle.Render("!"), formatErrorForDisplay(err, rootFlags.verbose))
				return nil
			}
			if err := s.reload(ws); err != nil {
				return err
			}
			if err := w.AddFiles(ws.BuildFiles()...); err != nil {
				s.logger.Warn("watch new build files", "err", err)
			}
			render(ctx)
			fmt.Fprintf(a.stdout, "\n%s Watching for changes...\n\n", KeyStyle.Render("→"))
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	return w.Run(ctx)
}
