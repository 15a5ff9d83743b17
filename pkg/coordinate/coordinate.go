// SPDX-License-Identifier: MPL-2.0

package coordinate

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kiln-build/kiln/pkg/version"
)

// validShapes lists the accepted textual forms, quoted in parse errors.
var validShapes = []string{
	"group:name",
	"group:name:version",
	"group:name:classifiers:version",
	"group:name:classifiers:type:version",
	"group:name:classifiers:type:",
}

// ErrUnspecifiedVersion is returned by operations that need a concrete version.
var ErrUnspecifiedVersion = errors.New("coordinate has no version")

type (
	// Coordinate references a module at a version together with the artifacts
	// wanted from it. Values are immutable: every With/And method returns a
	// copy. Coordinates hold a slice, so compare them with Equal and use Key
	// when a map key is needed.
	Coordinate struct {
		module    ModuleID
		version   version.Version
		artifacts []ArtifactSpec
	}

	// ParseError reports malformed coordinate text.
	ParseError struct {
		Text   string
		Reason string
	}
)

// New builds a coordinate. Artifact specs equal to Main alone collapse to the
// implicit main artifact.
func New(module ModuleID, v version.Version, artifacts ...ArtifactSpec) Coordinate {
	return Coordinate{module: module, version: v, artifacts: normalizeSpecs(artifacts)}
}

// Parse reads one of the five textual coordinate shapes.
func Parse(text string) (Coordinate, error) {
	raw := strings.TrimSpace(text)
	parts := strings.Split(raw, ":")

	var (
		classifiers, typ, ver string
		hasArtifacts          bool
	)
	switch len(parts) {
	case 2:
	case 3:
		ver = parts[2]
		if ver == "" {
			return Coordinate{}, &ParseError{Text: text, Reason: "version segment is empty"}
		}
	case 4:
		classifiers, ver = parts[2], parts[3]
		hasArtifacts = true
		if ver == "" {
			return Coordinate{}, &ParseError{Text: text, Reason: "version segment is empty"}
		}
	case 5:
		classifiers, typ, ver = parts[2], parts[3], parts[4]
		hasArtifacts = true
	default:
		return Coordinate{}, &ParseError{Text: text, Reason: fmt.Sprintf("found %d segment(s)", len(parts))}
	}

	module, err := NewModuleID(parts[0], parts[1])
	if err != nil {
		return Coordinate{}, &ParseError{Text: text, Reason: err.Error()}
	}
	v := version.Of(ver)
	if err := v.Validate(); err != nil {
		return Coordinate{}, &ParseError{Text: text, Reason: err.Error()}
	}

	c := Coordinate{module: module, version: v}
	if hasArtifacts {
		c = c.WithClassifiersAndType(classifiers, typ)
	}
	return c, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(text string) Coordinate {
	c, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return c
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid coordinate %q: %s; expected one of %s",
		e.Text, e.Reason, strings.Join(validShapes, ", "))
}

func (e *ParseError) Unwrap() error { return ErrInvalidCoordinate }

// Module returns the module id.
func (c Coordinate) Module() ModuleID { return c.module }

// Version returns the requested version, possibly unspecified or dynamic.
func (c Coordinate) Version() version.Version { return c.version }

// ArtifactSpecs returns the explicitly selected artifacts. An empty result
// means the main artifact.
func (c Coordinate) ArtifactSpecs() []ArtifactSpec { return slices.Clone(c.artifacts) }

// EffectiveArtifactSpecs returns the selected artifacts with the implicit main
// artifact made explicit.
func (c Coordinate) EffectiveArtifactSpecs() []ArtifactSpec {
	if len(c.artifacts) == 0 {
		return []ArtifactSpec{Main}
	}
	return slices.Clone(c.artifacts)
}

// WithVersion returns a copy at version v.
func (c Coordinate) WithVersion(v version.Version) Coordinate {
	c.version = v
	c.artifacts = slices.Clone(c.artifacts)
	return c
}

// WithClassifiers replaces the artifact selection with jar artifacts for the
// given comma separated classifiers.
func (c Coordinate) WithClassifiers(classifiers string) Coordinate {
	return c.WithClassifiersAndType(classifiers, "")
}

// WithClassifiersAndType replaces the artifact selection. An empty entry in
// the comma separated list is the default classifier, so ",mac" selects both
// the main artifact and the mac one.
func (c Coordinate) WithClassifiersAndType(classifiers, typ string) Coordinate {
	var specs []ArtifactSpec
	for _, cls := range strings.Split(classifiers, ",") {
		specs = append(specs, NewArtifactSpec(cls, typ))
	}
	c.artifacts = normalizeSpecs(specs)
	return c
}

// AndClassifier adds a jar artifact with the given classifier.
func (c Coordinate) AndClassifier(classifier string) Coordinate {
	return c.AndClassifierAndType(classifier, DefaultType)
}

// AndClassifierAndType adds an artifact to the selection. When nothing was
// selected yet the main artifact is kept alongside the new one.
func (c Coordinate) AndClassifierAndType(classifier, typ string) Coordinate {
	specs := c.EffectiveArtifactSpecs()
	specs = append(specs, NewArtifactSpec(classifier, typ))
	c.artifacts = normalizeSpecs(specs)
	return c
}

// ResolveConflict settles the version of c against a competing request for
// the same module.
func (c Coordinate) ResolveConflict(other version.Version, strategy ConflictStrategy) (version.Version, error) {
	return ResolveVersionConflict(c.module, c.version, other, strategy)
}

// Equal reports structural equality.
func (c Coordinate) Equal(o Coordinate) bool {
	return c.module == o.module && c.version == o.version && slices.Equal(c.artifacts, o.artifacts)
}

// Key returns a canonical string usable as a map key.
func (c Coordinate) Key() string { return c.String() }

// String renders the coordinate in a form Parse accepts whenever all selected
// artifacts share one type. Mixed types render an annotated, non-parseable form.
func (c Coordinate) String() string {
	var sb strings.Builder
	sb.WriteString(c.module.String())

	if len(c.artifacts) == 0 {
		if !c.version.IsUnspecified() {
			sb.WriteString(":")
			sb.WriteString(c.version.String())
		}
		return sb.String()
	}

	typ := c.artifacts[0].Type
	uniform := true
	classifiers := make([]string, 0, len(c.artifacts))
	for _, a := range c.artifacts {
		uniform = uniform && a.Type == typ
		classifiers = append(classifiers, a.Classifier)
	}

	if !uniform {
		if !c.version.IsUnspecified() {
			sb.WriteString(":")
			sb.WriteString(c.version.String())
		}
		for _, a := range c.artifacts {
			fmt.Fprintf(&sb, " (classifier=%s, type=%s)", a.Classifier, a.Type)
		}
		return sb.String()
	}

	sb.WriteString(":")
	sb.WriteString(strings.Join(classifiers, ","))
	if typ != DefaultType || c.version.IsUnspecified() {
		sb.WriteString(":")
		sb.WriteString(typ)
	}
	sb.WriteString(":")
	sb.WriteString(c.version.String())
	return sb.String()
}

// CacheFileName returns "name-version[-classifier].type" for an artifact of c.
func (c Coordinate) CacheFileName(spec ArtifactSpec) (string, error) {
	if c.version.IsUnspecified() || c.version.IsDynamic() {
		return "", fmt.Errorf("%s: %w", c.module, ErrUnspecifiedVersion)
	}
	if err := c.module.Validate(); err != nil {
		return "", err
	}
	if err := c.version.Validate(); err != nil {
		return "", err
	}
	spec = spec.normalized()
	name := c.module.Name + "-" + c.version.String()
	if spec.Classifier != "" {
		name += "-" + spec.Classifier
	}
	return name + "." + spec.Type, nil
}

// CachePath returns root/group/name/{type}s/name-version[-classifier].type,
// the storage key artifact caches use for (c, spec).
func (c Coordinate) CachePath(root string, spec ArtifactSpec) (string, error) {
	file, err := c.CacheFileName(spec)
	if err != nil {
		return "", err
	}
	spec = spec.normalized()
	return filepath.Join(root, c.module.Group, c.module.Name, spec.Type+"s", file), nil
}

// normalizeSpecs drops duplicates and collapses a lone main artifact to the
// empty selection.
func normalizeSpecs(specs []ArtifactSpec) []ArtifactSpec {
	var out []ArtifactSpec
	for _, s := range specs {
		s = s.normalized()
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	if len(out) == 1 && out[0] == Main {
		return nil
	}
	return out
}
