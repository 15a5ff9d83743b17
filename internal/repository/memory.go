// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/depset"
	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/version"
)

type (
	// Memory is an in-memory repository. It counts the queries it answers
	// and can be told to fail.
	Memory struct {
		mu        sync.Mutex
		root      string
		modules   map[coordinate.ModuleID]map[version.Version]resolve.Descriptor
		failures  map[coordinate.ModuleID]error
		artifacts map[coordinate.ModuleID]error
		calls     Calls
		described map[coordinate.ModuleID]int
	}

	// Calls counts repository queries.
	Calls struct {
		ListVersions int
		Describe     int
		Materialize  int
	}
)

// NewMemory creates an empty repository. Materialized paths are rooted at
// root.
func NewMemory(root string) *Memory {
	return &Memory{
		root:      root,
		modules:   make(map[coordinate.ModuleID]map[version.Version]resolve.Descriptor),
		failures:  make(map[coordinate.ModuleID]error),
		artifacts: make(map[coordinate.ModuleID]error),
		described: make(map[coordinate.ModuleID]int),
	}
}

// Add publishes c with its declared dependencies and artifacts.
func (m *Memory) Add(c coordinate.Coordinate, deps depset.DependencySet, artifacts ...coordinate.ArtifactSpec) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions, ok := m.modules[c.Module()]
	if !ok {
		versions = make(map[version.Version]resolve.Descriptor)
		m.modules[c.Module()] = versions
	}
	versions[c.Version()] = resolve.Descriptor{Dependencies: deps, Artifacts: slices.Clone(artifacts)}
	return m
}

// Publish is Add for textual coordinates; each dependency is declared in
// the compile scope. It panics on malformed text.
func (m *Memory) Publish(text string, deps ...string) *Memory {
	var set depset.DependencySet
	for _, d := range deps {
		set = set.AndCoordinate(coordinate.MustParse(d), "compile")
	}
	return m.Add(coordinate.MustParse(text), set)
}

// Fail makes every metadata query for id return err.
func (m *Memory) Fail(id coordinate.ModuleID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = err
}

// FailArtifacts makes Materialize return err for id.
func (m *Memory) FailArtifacts(id coordinate.ModuleID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[id] = err
}

// Calls returns the query counters.
func (m *Memory) Calls() Calls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// DescribeCalls returns how many times id was described.
func (m *Memory) DescribeCalls(id coordinate.ModuleID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.described[id]
}

// ResetCalls zeroes the query counters.
func (m *Memory) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = Calls{}
	clear(m.described)
}

// ListVersions implements resolve.Repository.
func (m *Memory) ListVersions(_ context.Context, id coordinate.ModuleID) ([]version.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.ListVersions++
	if err := m.failures[id]; err != nil {
		return nil, err
	}
	versions, ok := m.modules[id]
	if !ok {
		return nil, &resolve.NotFoundError{Module: id}
	}
	out := make([]version.Version, 0, len(versions))
	for v := range versions {
		out = append(out, v)
	}
	version.Sort(out)
	return out, nil
}

// Describe implements resolve.Repository.
func (m *Memory) Describe(_ context.Context, c coordinate.Coordinate) (resolve.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.Describe++
	m.described[c.Module()]++
	if err := m.failures[c.Module()]; err != nil {
		return resolve.Descriptor{}, err
	}
	d, ok := m.modules[c.Module()][c.Version()]
	if !ok {
		return resolve.Descriptor{}, &resolve.NotFoundError{Module: c.Module(), Version: c.Version()}
	}
	return d, nil
}

// Materialize implements resolve.Repository. The returned path is the cache
// path of the artifact under root; no file is written.
func (m *Memory) Materialize(_ context.Context, c coordinate.Coordinate, spec coordinate.ArtifactSpec) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.Materialize++
	if err := m.artifacts[c.Module()]; err != nil {
		return "", err
	}
	d, ok := m.modules[c.Module()][c.Version()]
	if !ok {
		return "", &resolve.NotFoundError{Module: c.Module(), Version: c.Version()}
	}
	if len(d.Artifacts) > 0 && !slices.Contains(d.Artifacts, spec) {
		return "", fmt.Errorf("%s %s: %w", c, spec, resolve.ErrArtifactNotFound)
	}
	path, err := c.CachePath(m.root, spec)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(path), nil
}
