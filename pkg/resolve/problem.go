// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/version"
)

const (
	// ProblemUnresolved marks a module without any resolvable version or
	// whose metadata could not be fetched.
	ProblemUnresolved ProblemKind = "unresolved"
	// ProblemConflict marks a version conflict under the fail strategy.
	ProblemConflict ProblemKind = "conflict"
	// ProblemArtifact marks a resolved module whose artifact could not be
	// materialized.
	ProblemArtifact ProblemKind = "artifact"
	// ProblemNotConverged marks a module whose selection kept changing.
	ProblemNotConverged ProblemKind = "not-converged"
)

// ErrResolution is wrapped by ReportError.
var ErrResolution = errors.New("dependency resolution failed")

type (
	// ProblemKind classifies a Problem.
	ProblemKind string

	// Problem is one entry of the error report.
	Problem struct {
		Module           coordinate.ModuleID
		RequestedVersion version.Version
		Kind             ProblemKind
		Message          string
	}

	// ErrorReport aggregates the problems of one resolution.
	ErrorReport struct {
		Problems []Problem
	}

	// ReportError turns a non-empty report into an error.
	ReportError struct {
		Report ErrorReport
	}
)

// ProblemKinds returns every problem kind.
func ProblemKinds() []ProblemKind {
	return []ProblemKind{ProblemUnresolved, ProblemConflict, ProblemArtifact, ProblemNotConverged}
}

func (p Problem) String() string {
	target := p.Module.String()
	if !p.RequestedVersion.IsUnspecified() {
		target += ":" + p.RequestedVersion.String()
	}
	return fmt.Sprintf("%s (%s): %s", target, p.Kind, p.Message)
}

// HasErrors reports whether the report holds any problem.
func (r ErrorReport) HasErrors() bool { return len(r.Problems) > 0 }

// Count returns the number of problems of the given kind.
func (r ErrorReport) Count(kind ProblemKind) int {
	n := 0
	for _, p := range r.Problems {
		if p.Kind == kind {
			n++
		}
	}
	return n
}

func (r ErrorReport) String() string {
	if !r.HasErrors() {
		return "no problems"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d dependency problem(s):", len(r.Problems))
	for _, p := range r.Problems {
		sb.WriteString("\n  - ")
		sb.WriteString(p.String())
	}
	return sb.String()
}

func (e *ReportError) Error() string { return e.Report.String() }

// Unwrap returns ErrResolution.
func (e *ReportError) Unwrap() error { return ErrResolution }
