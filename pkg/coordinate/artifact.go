// SPDX-License-Identifier: MPL-2.0

package coordinate

import "strings"

// DefaultType is the artifact type used when none is given.
const DefaultType = "jar"

// Main is the default artifact of a module: no classifier, type jar.
var Main = ArtifactSpec{Type: DefaultType}

// ArtifactSpec selects one file published for a module version.
type ArtifactSpec struct {
	Classifier string
	Type       string
}

// NewArtifactSpec trims its inputs and defaults an empty type to jar.
func NewArtifactSpec(classifier, typ string) ArtifactSpec {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		typ = DefaultType
	}
	return ArtifactSpec{Classifier: strings.TrimSpace(classifier), Type: typ}
}

// IsMain reports whether the spec selects the default artifact.
func (a ArtifactSpec) IsMain() bool { return a.normalized() == Main }

func (a ArtifactSpec) String() string {
	a = a.normalized()
	if a.Classifier == "" {
		return a.Type
	}
	return a.Classifier + "." + a.Type
}

func (a ArtifactSpec) normalized() ArtifactSpec {
	if a.Type == "" {
		a.Type = DefaultType
	}
	return a
}
