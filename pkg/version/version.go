// SPDX-License-Identifier: MPL-2.0

// Package version models module versions as they appear in coordinates.
//
// A Version is a plain string with three classifications: unspecified (the
// empty string, also written "?"), snapshot (a "-SNAPSHOT" suffix) and fixed.
// Dynamic tokens ("+" or a semver range such as "^1.2") are unresolved markers
// that the resolution engine concretizes against the versions a repository
// publishes.
//
// Ordering uses github.com/Masterminds/semver/v3 when both sides are semver
// compatible and falls back to a segment-wise comparator otherwise, so that
// Maven style versions like "1.0.0.Final" or "31.1-jre" still order sensibly.
package version

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	// Unspecified is the sentinel for "no version requested".
	Unspecified Version = ""
	// Highest requests the highest published release.
	Highest Version = "+"

	unspecifiedAlias = "?"
	snapshotSuffix   = "-snapshot"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

type (
	// Version is a module version. The zero value is Unspecified.
	Version string

	// InvalidVersionError is returned when a version cannot appear in a
	// coordinate or as a repository path segment.
	InvalidVersionError struct {
		Value  Version
		Reason string
	}
)

// Of normalizes raw text into a Version. Surrounding whitespace is trimmed and
// "?" maps to Unspecified.
func Of(raw string) Version {
	trimmed := strings.TrimSpace(raw)
	if trimmed == unspecifiedAlias {
		return Unspecified
	}
	return Version(trimmed)
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q: %s", string(e.Value), e.Reason)
}

func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// String returns the version text.
func (v Version) String() string { return string(v) }

// Validate rejects versions that would break the textual coordinate syntax
// or name a directory outside their module in a file-backed repository.
func (v Version) Validate() error {
	switch {
	case strings.ContainsAny(string(v), ": \t\n"):
		return &InvalidVersionError{Value: v, Reason: "must not contain ':' or whitespace"}
	case strings.ContainsAny(string(v), `/\`):
		return &InvalidVersionError{Value: v, Reason: "must not contain a path separator"}
	case v == "." || v == "..":
		return &InvalidVersionError{Value: v, Reason: "must not be a relative path"}
	}
	return nil
}

// IsUnspecified reports whether no version was requested.
func (v Version) IsUnspecified() bool { return v == Unspecified }

// IsSnapshot reports whether v names a moving development build.
func (v Version) IsSnapshot() bool {
	return strings.HasSuffix(strings.ToLower(string(v)), snapshotSuffix)
}

// IsFixed reports whether v is a concrete release version.
func (v Version) IsFixed() bool {
	return !v.IsUnspecified() && !v.IsSnapshot() && !v.IsDynamic()
}

// IsDynamic reports whether v must be concretized against published versions
// before it can be compared.
func (v Version) IsDynamic() bool {
	if v == Highest {
		return true
	}
	s := string(v)
	if s == "" {
		return false
	}
	if strings.ContainsAny(s[:1], "^~<>=!") {
		return true
	}
	return strings.Contains(s, "*") || strings.Contains(s, "||") || strings.HasSuffix(s, ".x")
}

// Compare returns -1, 0 or 1 when v is lower than, equal to or greater than o.
// Unspecified is lower than every other version.
func (v Version) Compare(o Version) int {
	switch {
	case v == o:
		return 0
	case v.IsUnspecified():
		return -1
	case o.IsUnspecified():
		return 1
	}
	if a, b, ok := semverPair(v, o); ok {
		return a.Compare(b)
	}
	return compareSegments(string(v), string(o))
}

// IsGreaterThan reports whether v orders strictly after o.
func (v Version) IsGreaterThan(o Version) bool { return v.Compare(o) > 0 }

// Max returns the greater of a and b, preferring a on ties.
func Max(a, b Version) Version {
	if b.IsGreaterThan(a) {
		return b
	}
	return a
}

// Min returns the lesser of a and b, preferring a on ties.
func Min(a, b Version) Version {
	if a.IsGreaterThan(b) {
		return b
	}
	return a
}

// Sort orders versions ascending in place.
func Sort(versions []Version) {
	slices.SortStableFunc(versions, Version.Compare)
}
