// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/version"
)

// Chain queries repositories in order. The first one that knows a module
// answers; "not found" answers fall through to the next.
type Chain struct {
	repos []resolve.Repository
}

// NewChain creates a Chain.
func NewChain(repos ...resolve.Repository) *Chain {
	return &Chain{repos: repos}
}

// ListVersions implements resolve.Repository.
func (c *Chain) ListVersions(ctx context.Context, id coordinate.ModuleID) ([]version.Version, error) {
	for _, r := range c.repos {
		vs, err := r.ListVersions(ctx, id)
		if errors.Is(err, resolve.ErrModuleNotFound) {
			continue
		}
		return vs, err
	}
	return nil, &resolve.NotFoundError{Module: id}
}

// Describe implements resolve.Repository.
func (c *Chain) Describe(ctx context.Context, co coordinate.Coordinate) (resolve.Descriptor, error) {
	for _, r := range c.repos {
		d, err := r.Describe(ctx, co)
		if errors.Is(err, resolve.ErrModuleNotFound) {
			continue
		}
		return d, err
	}
	return resolve.Descriptor{}, &resolve.NotFoundError{Module: co.Module(), Version: co.Version()}
}

// Materialize implements resolve.Repository.
func (c *Chain) Materialize(ctx context.Context, co coordinate.Coordinate, spec coordinate.ArtifactSpec) (string, error) {
	for _, r := range c.repos {
		path, err := r.Materialize(ctx, co, spec)
		if errors.Is(err, resolve.ErrModuleNotFound) || errors.Is(err, resolve.ErrArtifactNotFound) {
			continue
		}
		return path, err
	}
	return "", fmt.Errorf("%s %s: %w", co, spec, resolve.ErrArtifactNotFound)
}
