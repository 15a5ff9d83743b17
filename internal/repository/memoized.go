// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/version"
)

// Memoized keeps successful metadata answers of another repository. It
// outlives single resolutions, so a manager resolving several scope sets
// asks the underlying repository once per module.
type Memoized struct {
	next        resolve.Repository
	versions    *lru.Cache[coordinate.ModuleID, []version.Version]
	descriptors *lru.Cache[string, resolve.Descriptor]
}

// NewMemoized wraps next with caches holding up to size entries each.
func NewMemoized(next resolve.Repository, size int) (*Memoized, error) {
	versions, err := lru.New[coordinate.ModuleID, []version.Version](size)
	if err != nil {
		return nil, err
	}
	descriptors, err := lru.New[string, resolve.Descriptor](size)
	if err != nil {
		return nil, err
	}
	return &Memoized{next: next, versions: versions, descriptors: descriptors}, nil
}

// ListVersions implements resolve.Repository.
func (m *Memoized) ListVersions(ctx context.Context, id coordinate.ModuleID) ([]version.Version, error) {
	if vs, ok := m.versions.Get(id); ok {
		return vs, nil
	}
	vs, err := m.next.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	m.versions.Add(id, vs)
	return vs, nil
}

// Describe implements resolve.Repository.
func (m *Memoized) Describe(ctx context.Context, c coordinate.Coordinate) (resolve.Descriptor, error) {
	key := c.Module().String() + ":" + c.Version().String()
	if d, ok := m.descriptors.Get(key); ok {
		return d, nil
	}
	d, err := m.next.Describe(ctx, c)
	if err != nil {
		return resolve.Descriptor{}, err
	}
	m.descriptors.Add(key, d)
	return d, nil
}

// Materialize implements resolve.Repository. Artifacts are not memoized;
// implementations already return existing files.
func (m *Memoized) Materialize(ctx context.Context, c coordinate.Coordinate, spec coordinate.ArtifactSpec) (string, error) {
	return m.next.Materialize(ctx, c, spec)
}

// Purge drops every memoized answer.
func (m *Memoized) Purge() {
	m.versions.Purge()
	m.descriptors.Purge()
}
