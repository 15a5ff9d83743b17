// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"fmt"

	mm "github.com/Masterminds/semver/v3"
)

// ErrNoMatchingVersion is returned when no published version satisfies a
// dynamic request.
var ErrNoMatchingVersion = errors.New("no matching version")

type (
	// Constraint is a semver range such as "^1.2.0" or ">=1.0 <2.0".
	Constraint struct {
		raw string
		c   *mm.Constraints
	}

	// NoMatchingVersionError reports a dynamic version that could not be
	// concretized.
	NoMatchingVersionError struct {
		Requested Version
		Available int
	}
)

// ParseConstraint parses a semver range.
func ParseConstraint(raw string) (Constraint, error) {
	c, err := mm.NewConstraint(raw)
	if err != nil {
		return Constraint{}, fmt.Errorf("version: parse constraint %q: %w", raw, err)
	}
	return Constraint{raw: raw, c: c}, nil
}

// String returns the constraint text as written.
func (c Constraint) String() string { return c.raw }

// Allows reports whether v satisfies the constraint. Versions that are not
// semver compatible never satisfy a constraint.
func (c Constraint) Allows(v Version) bool {
	if c.c == nil {
		return false
	}
	parsed, err := mm.NewVersion(string(v))
	if err != nil {
		return false
	}
	return c.c.Check(parsed)
}

func (e *NoMatchingVersionError) Error() string {
	return fmt.Sprintf("no published version matches %q (%d candidate(s))", string(e.Requested), e.Available)
}

func (e *NoMatchingVersionError) Unwrap() error { return ErrNoMatchingVersion }

// Admits reports whether a caller that requested v is satisfied by resolved.
// Unspecified and "+" admit anything; ranges admit the versions they allow.
func (v Version) Admits(resolved Version) bool {
	switch {
	case v.IsUnspecified() || v == Highest:
		return true
	case v == resolved:
		return true
	case v.IsDynamic():
		c, err := ParseConstraint(string(v))
		return err == nil && c.Allows(resolved)
	default:
		return false
	}
}

// Select concretizes a dynamic or unspecified request against the published
// versions. "+" and Unspecified pick the highest release, falling back to the
// highest snapshot when nothing else is published. Fixed and snapshot
// requests are returned unchanged.
func Select(requested Version, available []Version) (Version, error) {
	if !requested.IsUnspecified() && !requested.IsDynamic() {
		return requested, nil
	}
	if requested.IsUnspecified() || requested == Highest {
		var best, bestSnapshot Version
		for _, candidate := range available {
			if candidate.IsSnapshot() {
				bestSnapshot = Max(bestSnapshot, candidate)
				continue
			}
			best = Max(best, candidate)
		}
		if !best.IsUnspecified() {
			return best, nil
		}
		if !bestSnapshot.IsUnspecified() {
			return bestSnapshot, nil
		}
		return Unspecified, &NoMatchingVersionError{Requested: requested, Available: len(available)}
	}

	c, err := ParseConstraint(string(requested))
	if err != nil {
		return Unspecified, err
	}
	var best Version
	for _, candidate := range available {
		if c.Allows(candidate) {
			best = Max(best, candidate)
		}
	}
	if best.IsUnspecified() {
		return Unspecified, &NoMatchingVersionError{Requested: requested, Available: len(available)}
	}
	return best, nil
}
