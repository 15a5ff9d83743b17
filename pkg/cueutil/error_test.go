// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"testing"

	"cuelang.org/go/cue/cuecontext"
)

func TestDocumentError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *DocumentError
		want string
	}{
		{
			"one field",
			&DocumentError{File: "kiln.cue", Fields: []FieldError{{Path: "dependencies[0].scopes[1]", Message: `invalid value "Compile"`}}},
			`kiln.cue: dependencies[0].scopes[1]: invalid value "Compile"`,
		},
		{
			"no path",
			&DocumentError{File: "module.cue", Fields: []FieldError{{Message: "expected '}', found 'EOF'"}}},
			"module.cue: expected '}', found 'EOF'",
		},
		{
			"several",
			&DocumentError{File: "config.cue", Fields: []FieldError{
				{Path: "resolution.parallelism", Message: "invalid value 0 (out of bound >=1)"},
				{Path: "ui.color_scheme", Message: "conflicting values"},
			}},
			"config.cue: 2 problems:\n  resolution.parallelism: invalid value 0 (out of bound >=1)\n  ui.color_scheme: conflicting values",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewDocumentError(t *testing.T) {
	t.Parallel()

	plain := errors.New("disk on fire")
	err := newDocumentError(plain, "kiln.cue")
	if !errors.Is(err, plain) || err.Error() != "kiln.cue: disk on fire" {
		t.Errorf("newDocumentError(plain) = %v", err)
	}

	v := cuecontext.New().CompileString(`x: int & "a"`)
	err = newDocumentError(v.Validate(), "kiln.cue")
	var doc *DocumentError
	if !errors.As(err, &doc) {
		t.Fatalf("newDocumentError(cue) = %T, want *DocumentError", err)
	}
	if len(doc.Fields) == 0 || doc.Fields[0].Path != "x" {
		t.Errorf("Fields = %+v, want a problem at x", doc.Fields)
	}
}

func TestFieldPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		selectors []string
		want      string
	}{
		{nil, ""},
		{[]string{"module"}, "module"},
		{[]string{"resolution", "parallelism"}, "resolution.parallelism"},
		{[]string{"dependencies", "0", "module"}, "dependencies[0].module"},
		{[]string{"dependencies", "3", "exclusions", "12"}, "dependencies[3].exclusions[12]"},
		{[]string{"versions", "org.acme:core"}, "versions.org.acme:core"},
		{[]string{"0"}, "0"},
	}
	for _, tt := range tests {
		if got := fieldPath(tt.selectors); got != tt.want {
			t.Errorf("fieldPath(%q) = %q, want %q", tt.selectors, got, tt.want)
		}
	}
}
