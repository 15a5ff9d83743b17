// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kiln-build/kiln/internal/lockfile"
	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/scope"
)

// depsFlagValues holds flags shared by the deps subcommands.
type depsFlagValues struct {
	scopes []string
}

func newDepsCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &depsFlagValues{}

	depsCmd := &cobra.Command{
		Use:   "deps",
		Short: "Resolve and inspect project dependencies",
		Long: `Resolve the dependencies declared in kiln.cue.

Scopes default to resolution.default_scopes of the configuration
(compile and runtime unless changed).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	depsCmd.PersistentFlags().StringSliceVarP(&flags.scopes, "scope", "s", nil, "scopes to resolve (repeatable)")

	depsCmd.AddCommand(
		&cobra.Command{
			Use:   "tree",
			Short: "Show the resolved dependency tree",
			Args:  cobra.NoArgs,
			RunE: app.run(rootFlags, func(cmd *cobra.Command, _ []string) error {
				return app.depsTree(cmd.Context(), rootFlags, flags)
			}),
		},
		&cobra.Command{
			Use:   "files",
			Short: "List the files needed by the requested scopes",
			Args:  cobra.NoArgs,
			RunE: app.run(rootFlags, func(cmd *cobra.Command, _ []string) error {
				return app.depsFiles(cmd.Context(), rootFlags, flags)
			}),
		},
		&cobra.Command{
			Use:   "versions",
			Short: "List the selected version of every resolved module",
			Args:  cobra.NoArgs,
			RunE: app.run(rootFlags, func(cmd *cobra.Command, _ []string) error {
				return app.depsVersions(cmd.Context(), rootFlags, flags)
			}),
		},
		newLockCommand(app, rootFlags, flags),
		newWatchCommand(app, rootFlags, flags),
	)
	return depsCmd
}

func newLockCommand(app *App, rootFlags *rootFlagValues, flags *depsFlagValues) *cobra.Command {
	var check bool
	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Write " + lockfile.FileName + ", or verify it with --check",
		Args:  cobra.NoArgs,
		RunE: app.run(rootFlags, func(cmd *cobra.Command, _ []string) error {
			return app.depsLock(cmd.Context(), rootFlags, flags, check)
		}),
	}
	lockCmd.Flags().BoolVar(&check, "check", false, "fail when the lock file does not match a fresh resolution")
	return lockCmd
}

// resolveRequested opens a session and resolves the requested scopes
// through the manager and its failure policy. A result is returned with a
// *resolve.ReportError so callers can still show what was resolved.
func (a *App) resolveRequested(ctx context.Context, rootFlags *rootFlagValues, flags *depsFlagValues) (*session, []scope.Scope, *resolve.Result, error) {
	requested, err := scope.ParseAll(flags.scopes)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := a.openSession(ctx, rootFlags)
	if err != nil {
		return nil, nil, nil, err
	}
	scopes := s.scopes(requested)
	res, err := s.manager.FetchDependencies(ctx, scopes...)
	return s, scopes, res, err
}

func (a *App) depsTree(ctx context.Context, rootFlags *rootFlagValues, flags *depsFlagValues) error {
	_, _, res, err := a.resolveRequested(ctx, rootFlags, flags)
	if res != nil {
		if renderErr := res.RenderTree(a.stdout); renderErr != nil {
			return renderErr
		}
	}
	return err
}

func (a *App) depsFiles(ctx context.Context, rootFlags *rootFlagValues, flags *depsFlagValues) error {
	_, scopes, res, err := a.resolveRequested(ctx, rootFlags, flags)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, s := range scopes {
		files, err := res.Files(s)
		if err != nil {
			return err
		}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				fmt.Fprintln(a.stdout, f)
			}
		}
	}
	return nil
}

func (a *App) depsVersions(ctx context.Context, rootFlags *rootFlagValues, flags *depsFlagValues) error {
	_, _, res, err := a.resolveRequested(ctx, rootFlags, flags)
	if err != nil {
		return err
	}
	versions := res.Versions()
	for _, id := range res.ModuleIDs() {
		fmt.Fprintf(a.stdout, "%s %s\n", id, versions[id])
	}
	return nil
}

func (a *App) depsLock(ctx context.Context, rootFlags *rootFlagValues, flags *depsFlagValues, check bool) error {
	s, scopes, res, err := a.resolveRequested(ctx, rootFlags, flags)
	if err != nil {
		return err
	}
	fresh, err := lockfile.FromResult(res, scopes, a.now())
	if err != nil {
		return err
	}
	path := filepath.Join(s.workspace.Root.Dir(), lockfile.FileName)

	if !check {
		if err := fresh.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s Wrote %s\n", SuccessStyle.Render("✓"), path)
		return nil
	}

	existing, err := lockfile.Load(path)
	if err != nil {
		if errors.Is(err, lockfile.ErrLockFileNotFound) {
			return &ExitError{Code: 1, Err: err}
		}
		return err
	}
	changes := lockfile.Diff(existing, fresh)
	if len(changes) == 0 {
		fmt.Fprintf(a.stdout, "%s %s is up to date\n", SuccessStyle.Render("✓"), lockfile.FileName)
		return nil
	}
	for _, c := range changes {
		fmt.Fprintln(a.stdout, WarningStyle.Render(c.String()))
	}
	return &ExitError{Code: 1, Err: fmt.Errorf("%w: %d change(s)", errLockStale, len(changes))}
}
