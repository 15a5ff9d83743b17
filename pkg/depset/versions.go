// SPDX-License-Identifier: MPL-2.0

package depset

import (
	"maps"
	"slices"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/version"
)

// VersionProvider is an immutable moduleId -> version override table. It is
// consulted when a coordinate is about to be resolved, so one table applies
// to direct and transitive dependencies alike.
type VersionProvider struct {
	versions map[coordinate.ModuleID]version.Version
}

// NewVersionProvider builds a provider from a map. The map is copied.
func NewVersionProvider(overrides map[coordinate.ModuleID]version.Version) VersionProvider {
	return VersionProvider{versions: maps.Clone(overrides)}
}

// With returns a copy that also pins id to v.
func (p VersionProvider) With(id coordinate.ModuleID, v version.Version) VersionProvider {
	next := make(map[coordinate.ModuleID]version.Version, len(p.versions)+1)
	maps.Copy(next, p.versions)
	next[id] = v
	return VersionProvider{versions: next}
}

// And merges two providers; entries of the receiver win.
func (p VersionProvider) And(o VersionProvider) VersionProvider {
	if len(o.versions) == 0 {
		return p
	}
	next := make(map[coordinate.ModuleID]version.Version, len(p.versions)+len(o.versions))
	maps.Copy(next, o.versions)
	maps.Copy(next, p.versions)
	return VersionProvider{versions: next}
}

// VersionOf returns the override for id.
func (p VersionProvider) VersionOf(id coordinate.ModuleID) (version.Version, bool) {
	v, ok := p.versions[id]
	return v, ok
}

// Apply returns c with its version replaced by the override for its module,
// if any.
func (p VersionProvider) Apply(c coordinate.Coordinate) coordinate.Coordinate {
	if v, ok := p.versions[c.Module()]; ok {
		return c.WithVersion(v)
	}
	return c
}

// Len returns the number of overrides.
func (p VersionProvider) Len() int { return len(p.versions) }

// Modules returns the overridden module ids, sorted.
func (p VersionProvider) Modules() []coordinate.ModuleID {
	return slices.SortedFunc(maps.Keys(p.versions), coordinate.ModuleID.Compare)
}
