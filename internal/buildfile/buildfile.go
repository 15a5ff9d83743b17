// SPDX-License-Identifier: MPL-2.0

// Package buildfile loads kiln.cue build files into dependency sets.
//
// A build may span several projects: a project dependency names another
// directory holding its own kiln.cue. Load follows those references, rejects
// cycles between projects and returns the projects in an order where every
// project comes after the projects it depends on.
package buildfile

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/cueutil"
)

// FileName is the name of the build file inside a project directory.
const FileName = "kiln.cue"

//go:embed build_schema.cue
var buildSchema []byte

var (
	// ErrBuildFileNotFound is the sentinel error wrapped by NotFoundError.
	ErrBuildFileNotFound = errors.New("build file not found")
	// ErrInvalidBuildFile is the sentinel error wrapped by InvalidBuildFileError.
	ErrInvalidBuildFile = errors.New("invalid build file")
	// ErrProjectCycle is the sentinel error wrapped by ProjectCycleError.
	ErrProjectCycle = errors.New("project dependency cycle")
)

type (
	// NotFoundError is returned when a project directory has no kiln.cue.
	NotFoundError struct {
		Dir string
		// ReferencedBy is the build file naming Dir as a project, empty for
		// the root.
		ReferencedBy string
	}

	// InvalidBuildFileError is returned when a build file fails to parse,
	// breaks the schema or declares something kiln cannot use.
	InvalidBuildFileError struct {
		Path string
		Err  error
	}

	// ProjectCycleError is returned when projects depend on each other in a
	// loop. Cycle follows "depends on" edges and repeats its first project
	// at the end.
	ProjectCycleError struct {
		Cycle []string
	}

	buildFile struct {
		Module        string            `json:"module,omitempty"`
		Scopes        []scopeEntry      `json:"scopes,omitempty"`
		DefaultScopes []string          `json:"default_scopes,omitempty"`
		Dependencies  []dependencyEntry `json:"dependencies,omitempty"`
		Versions      map[string]string `json:"versions,omitempty"`
		Outputs       []string          `json:"outputs,omitempty"`
	}

	scopeEntry struct {
		Name       string   `json:"name"`
		Extends    []string `json:"extends,omitempty"`
		Transitive bool     `json:"transitive"`
	}

	// dependencyEntry holds one of the three dependency shapes; the schema
	// guarantees exactly one of Module, Files and Project is set.
	dependencyEntry struct {
		Module     string   `json:"module,omitempty"`
		Files      []string `json:"files,omitempty"`
		Project    string   `json:"project,omitempty"`
		Scopes     []string `json:"scopes,omitempty"`
		Exclusions []string `json:"exclusions,omitempty"`
	}
)

func (e *NotFoundError) Error() string {
	if e.ReferencedBy != "" {
		return fmt.Sprintf("no %s in %s (referenced by %s)", FileName, e.Dir, e.ReferencedBy)
	}
	return fmt.Sprintf("no %s in %s", FileName, e.Dir)
}

// Unwrap returns ErrBuildFileNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrBuildFileNotFound }

func (e *InvalidBuildFileError) Error() string {
	return fmt.Sprintf("invalid build file %s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrInvalidBuildFile and the underlying cause.
func (e *InvalidBuildFileError) Unwrap() []error { return []error{ErrInvalidBuildFile, e.Err} }

func (e *ProjectCycleError) Error() string {
	return fmt.Sprintf("project dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrProjectCycle for errors.Is() compatibility.
func (e *ProjectCycleError) Unwrap() error { return ErrProjectCycle }

// parse decodes one build file against the #Build schema.
func parse(data []byte, path string) (*buildFile, error) {
	bf, err := cueutil.Decode[buildFile](buildSchema, data, "#Build", cueutil.WithFilename(path))
	if err != nil {
		return nil, &InvalidBuildFileError{Path: path, Err: err}
	}
	if bf.Module != "" {
		if _, err := coordinate.Parse(bf.Module); err != nil {
			return nil, &InvalidBuildFileError{Path: path, Err: fmt.Errorf("module: %w", err)}
		}
	}
	return bf, nil
}
