// SPDX-License-Identifier: MPL-2.0

package coordinate

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/kiln-build/kiln/pkg/version"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text      string
		module    ModuleID
		version   version.Version
		artifacts []ArtifactSpec
	}{
		{"org.acme:core", ModuleID{"org.acme", "core"}, "", nil},
		{"org.acme:core:1.2.3", ModuleID{"org.acme", "core"}, "1.2.3", nil},
		{"org.acme:core:?", ModuleID{"org.acme", "core"}, "", nil},
		{"org.acme:core:linux:1.0", ModuleID{"org.acme", "core"}, "1.0", []ArtifactSpec{{"linux", "jar"}}},
		{"org.acme:core:,mac:1.0", ModuleID{"org.acme", "core"}, "1.0", []ArtifactSpec{{"", "jar"}, {"mac", "jar"}}},
		{"org.acme:core::pom:1.0", ModuleID{"org.acme", "core"}, "1.0", []ArtifactSpec{{"", "pom"}}},
		{"org.acme:core:sources:jar:", ModuleID{"org.acme", "core"}, "", []ArtifactSpec{{"sources", "jar"}}},
		{"org.acme:core::jar:2.0", ModuleID{"org.acme", "core"}, "2.0", nil},
		{"org.acme:core: a , b :zip:1", ModuleID{"org.acme", "core"}, "1", []ArtifactSpec{{"a", "zip"}, {"b", "zip"}}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			c, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.text, err)
			}
			if c.Module() != tt.module {
				t.Errorf("Module() = %v, want %v", c.Module(), tt.module)
			}
			if c.Version() != tt.version {
				t.Errorf("Version() = %q, want %q", c.Version(), tt.version)
			}
			if !slices.Equal(c.ArtifactSpecs(), tt.artifacts) {
				t.Errorf("ArtifactSpecs() = %v, want %v", c.ArtifactSpecs(), tt.artifacts)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"justname",
		"g:n:",
		"g:n:cls:",
		":name:1.0",
		"group::1.0",
		"a:b:c:d:e:f",
		"g:n:1 0",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(in)
			if err == nil {
				t.Fatalf("Parse(%q) expected error", in)
			}
			if !errors.Is(err, ErrInvalidCoordinate) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidCoordinate", in, err)
			}
			for _, shape := range validShapes {
				if !strings.Contains(err.Error(), shape) {
					t.Errorf("error %q does not mention shape %q", err, shape)
				}
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"org.acme:core",
		"org.acme:core:1.2.3",
		"org.acme:core:linux:1.0",
		"org.acme:core:,mac:1.0",
		"org.acme:core::pom:1.0",
		"org.acme:core:sources:jar:",
		"org.acme:core:a,b:zip:",
		"org.acme:core::jar:2.0",
		"org.acme:core:cls:1.0-SNAPSHOT",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			t.Parallel()

			first := MustParse(in)
			second, err := Parse(first.String())
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", first.String(), err)
			}
			if !first.Equal(second) {
				t.Errorf("Parse(String()) = %v, want %v", second, first)
			}
			if first.String() != second.String() {
				t.Errorf("String() not idempotent: %q vs %q", first.String(), second.String())
			}
		})
	}
}

func TestStringMixedTypes(t *testing.T) {
	t.Parallel()

	c := MustParse("org.acme:core:1.0").AndClassifierAndType("docs", "zip")
	got := c.String()
	want := "org.acme:core:1.0 (classifier=, type=jar) (classifier=docs, type=zip)"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestImmutability(t *testing.T) {
	t.Parallel()

	base := MustParse("org.acme:core:linux:1.0")
	_ = base.WithVersion("2.0")
	_ = base.AndClassifier("mac")
	_ = base.WithClassifiers("windows")

	if base.String() != "org.acme:core:linux:1.0" {
		t.Errorf("base coordinate mutated: %s", base)
	}

	specs := base.ArtifactSpecs()
	specs[0].Classifier = "changed"
	if base.ArtifactSpecs()[0].Classifier != "linux" {
		t.Error("ArtifactSpecs() exposes internal state")
	}
}

func TestAndClassifierKeepsMain(t *testing.T) {
	t.Parallel()

	c := MustParse("org.acme:core:1.0").AndClassifier("sources")
	want := []ArtifactSpec{Main, {Classifier: "sources", Type: "jar"}}
	if !slices.Equal(c.ArtifactSpecs(), want) {
		t.Errorf("ArtifactSpecs() = %v, want %v", c.ArtifactSpecs(), want)
	}

	again := c.AndClassifier("sources")
	if len(again.ArtifactSpecs()) != 2 {
		t.Errorf("AndClassifier() duplicated an existing spec: %v", again.ArtifactSpecs())
	}
}

func TestCachePath(t *testing.T) {
	t.Parallel()

	c := MustParse("org.acme:core:2.1")
	tests := []struct {
		spec ArtifactSpec
		want string
	}{
		{Main, filepath.Join("/cache", "org.acme", "core", "jars", "core-2.1.jar")},
		{ArtifactSpec{Classifier: "sources"}, filepath.Join("/cache", "org.acme", "core", "jars", "core-2.1-sources.jar")},
		{ArtifactSpec{Type: "pom"}, filepath.Join("/cache", "org.acme", "core", "poms", "core-2.1.pom")},
		{ArtifactSpec{Classifier: "linux", Type: "so"}, filepath.Join("/cache", "org.acme", "core", "sos", "core-2.1-linux.so")},
	}

	seen := make(map[string]bool)
	for _, tt := range tests {
		got, err := c.CachePath("/cache", tt.spec)
		if err != nil {
			t.Fatalf("CachePath(%v) unexpected error: %v", tt.spec, err)
		}
		if got != tt.want {
			t.Errorf("CachePath(%v) = %q, want %q", tt.spec, got, tt.want)
		}
		if seen[got] {
			t.Errorf("CachePath(%v) collides with a previous spec", tt.spec)
		}
		seen[got] = true
	}

	if _, err := MustParse("org.acme:core").CachePath("/cache", Main); !errors.Is(err, ErrUnspecifiedVersion) {
		t.Errorf("CachePath() on unversioned coordinate = %v, want ErrUnspecifiedVersion", err)
	}
}

func TestParseModuleID(t *testing.T) {
	t.Parallel()

	id, err := ParseModuleID("org.acme:core")
	if err != nil {
		t.Fatalf("ParseModuleID() unexpected error: %v", err)
	}
	if id.String() != "org.acme:core" {
		t.Errorf("String() = %q, want %q", id.String(), "org.acme:core")
	}

	for _, bad := range []string{"nocolon", "a:b:c", ":b", "a:", "org/acme:core", "..:core", "org.acme:..", `org.acme:a\b`} {
		if _, err := ParseModuleID(bad); !errors.Is(err, ErrInvalidModuleID) {
			t.Errorf("ParseModuleID(%q) = %v, want ErrInvalidModuleID", bad, err)
		}
	}
}

func TestModuleIDAsMapKey(t *testing.T) {
	t.Parallel()

	m := map[ModuleID]int{}
	m[MustParse("g:n:1.0").Module()]++
	m[MustParse("g:n:2.0").Module()]++
	if len(m) != 1 || m[ModuleID{"g", "n"}] != 2 {
		t.Errorf("module ids with equal parts must share a key, got %v", m)
	}
}
