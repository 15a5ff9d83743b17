// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kiln-build/kiln/internal/buildfile"
	"github.com/kiln-build/kiln/internal/config"
	"github.com/kiln-build/kiln/internal/issue"
	"github.com/kiln-build/kiln/internal/lockfile"
	"github.com/kiln-build/kiln/internal/repository"
	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/scope"
)

// errLockStale is returned by `kiln deps lock --check` when the lock file
// does not match a fresh resolution.
var errLockStale = errors.New("lock file is out of date")

// classifyError maps a command failure to the catalogued issue explaining
// it. The zero Id means no issue applies.
func classifyError(err error) issue.Id {
	var reportErr *resolve.ReportError
	var actionable *issue.ActionableError
	switch {
	case errors.Is(err, buildfile.ErrBuildFileNotFound):
		return issue.BuildFileNotFoundId
	case errors.Is(err, buildfile.ErrProjectCycle):
		return issue.ProjectCycleId
	case errors.Is(err, scope.ErrScopeCycle):
		return issue.ScopeCycleId
	case errors.Is(err, buildfile.ErrInvalidBuildFile):
		return issue.BuildFileParseErrorId
	case errors.Is(err, coordinate.ErrVersionConflict):
		return issue.VersionConflictId
	case errors.As(err, &reportErr):
		return reportIssue(reportErr.Report)
	case errors.Is(err, errLockStale), errors.Is(err, lockfile.ErrLockFileNotFound):
		return issue.LockFileStaleId
	case errors.Is(err, repository.ErrUnknownKind):
		return issue.RepositoryUnavailableId
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, config.ErrInvalidLoadOptions):
		return issue.ConfigLoadFailedId
	case errors.As(err, &actionable):
		switch actionable.Operation {
		case "load configuration", "validate configuration":
			return issue.ConfigLoadFailedId
		case "open repositories":
			return issue.RepositoryUnavailableId
		}
	}
	return 0
}

// reportIssue picks the issue for the most specific problem of a report.
func reportIssue(r resolve.ErrorReport) issue.Id {
	switch {
	case r.Count(resolve.ProblemConflict) > 0:
		return issue.VersionConflictId
	case r.Count(resolve.ProblemArtifact) > 0 && r.Count(resolve.ProblemUnresolved) == 0:
		return issue.ArtifactUnavailableId
	default:
		return issue.ModuleNotFoundId
	}
}

// formatErrorForDisplay formats an error for user display. Actionable
// errors carry their suggestions, and in verbose mode their error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// reportFailure prints err and the issue explaining it, then silences
// cobra so the error is not printed twice.
func reportFailure(cmd *cobra.Command, w io.Writer, err error, verbose bool, style string) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return err
	}

	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
	if id := classifyError(err); id != 0 {
		if rendered, renderErr := issue.Get(id).Render(style); renderErr == nil {
			fmt.Fprint(w, rendered)
		}
	}

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: 1, Err: err}
}
