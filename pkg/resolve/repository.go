// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/depset"
	"github.com/kiln-build/kiln/pkg/version"
)

var (
	// ErrModuleNotFound is returned by a Repository that does not know a
	// module or one of its versions.
	ErrModuleNotFound = errors.New("module not found")

	// ErrArtifactNotFound is returned by Materialize when the module exists
	// but the requested artifact does not.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrNilRepository is returned when an Engine has no repository.
	ErrNilRepository = errors.New("resolve: nil repository")
)

type (
	// Repository answers metadata queries and materializes artifacts.
	// Implementations must be safe for concurrent use; the engine queries
	// sibling modules in parallel.
	Repository interface {
		// ListVersions returns the versions published for a module.
		ListVersions(ctx context.Context, id coordinate.ModuleID) ([]version.Version, error)
		// Describe returns the declared dependencies and artifacts of a
		// coordinate with a concrete version.
		Describe(ctx context.Context, c coordinate.Coordinate) (Descriptor, error)
		// Materialize returns a local path holding the artifact. Repeated
		// calls for the same artifact return the same path.
		Materialize(ctx context.Context, c coordinate.Coordinate, spec coordinate.ArtifactSpec) (string, error)
	}

	// Descriptor is the metadata of one module version.
	Descriptor struct {
		Dependencies depset.DependencySet
		Artifacts    []coordinate.ArtifactSpec
	}

	// NotFoundError reports a module or version unknown to a repository.
	NotFoundError struct {
		Module  coordinate.ModuleID
		Version version.Version
	}
)

func (e *NotFoundError) Error() string {
	if e.Version.IsUnspecified() {
		return "module " + e.Module.String() + " not found"
	}
	return "module " + e.Module.String() + ":" + e.Version.String() + " not found"
}

// Unwrap returns ErrModuleNotFound.
func (e *NotFoundError) Unwrap() error { return ErrModuleNotFound }

// mainArtifacts picks the artifacts materialized when a dependency does not
// select any: the descriptor's artifacts without classifier, or the default
// jar.
func (d Descriptor) mainArtifacts() []coordinate.ArtifactSpec {
	var out []coordinate.ArtifactSpec
	for _, a := range d.Artifacts {
		if a.Classifier == "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return []coordinate.ArtifactSpec{coordinate.Main}
	}
	return out
}
