// SPDX-License-Identifier: MPL-2.0

package coordinate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidModuleID is the sentinel error wrapped by InvalidModuleIDError.
	ErrInvalidModuleID = errors.New("invalid module id")
	// ErrInvalidCoordinate is the sentinel error wrapped by ParseError.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

type (
	// ModuleID identifies a module independently of its version. It is
	// comparable and used as a map key throughout the resolver.
	ModuleID struct {
		Group string
		Name  string
	}

	// InvalidModuleIDError is returned when a group or name is empty or
	// contains a separator character.
	InvalidModuleIDError struct {
		Value  ModuleID
		Reason string
	}
)

// NewModuleID builds and validates a ModuleID.
func NewModuleID(group, name string) (ModuleID, error) {
	id := ModuleID{Group: strings.TrimSpace(group), Name: strings.TrimSpace(name)}
	if err := id.Validate(); err != nil {
		return ModuleID{}, err
	}
	return id, nil
}

// ParseModuleID parses the short "group:name" form.
func ParseModuleID(text string) (ModuleID, error) {
	group, name, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok || strings.Contains(name, ":") {
		return ModuleID{}, &InvalidModuleIDError{
			Value:  ModuleID{Group: text},
			Reason: "expected 'group:name'",
		}
	}
	return NewModuleID(group, name)
}

// MustParseModuleID is ParseModuleID for literals known to be valid.
func MustParseModuleID(text string) ModuleID {
	id, err := ParseModuleID(text)
	if err != nil {
		panic(err)
	}
	return id
}

func (e *InvalidModuleIDError) Error() string {
	return fmt.Sprintf("invalid module id %q: %s", e.Value.String(), e.Reason)
}

func (e *InvalidModuleIDError) Unwrap() error { return ErrInvalidModuleID }

// Validate checks that both parts are present and free of separators.
func (id ModuleID) Validate() error {
	switch {
	case id.Group == "":
		return &InvalidModuleIDError{Value: id, Reason: "group must not be empty"}
	case id.Name == "":
		return &InvalidModuleIDError{Value: id, Reason: "name must not be empty"}
	case strings.ContainsAny(id.Group, ": \t"), strings.ContainsAny(id.Name, ": \t"):
		return &InvalidModuleIDError{Value: id, Reason: "must not contain ':' or whitespace"}
	case strings.ContainsAny(id.Group+id.Name, `/\`):
		return &InvalidModuleIDError{Value: id, Reason: "must not contain a path separator"}
	case id.Group == "..", id.Name == "..", id.Group == ".", id.Name == ".":
		return &InvalidModuleIDError{Value: id, Reason: "must not be a relative path"}
	}
	return nil
}

// IsZero reports whether the id is the zero value.
func (id ModuleID) IsZero() bool { return id == ModuleID{} }

func (id ModuleID) String() string {
	if id.Name == "" {
		return id.Group
	}
	return id.Group + ":" + id.Name
}

// Compare orders module ids by group then name.
func (id ModuleID) Compare(o ModuleID) int {
	if c := strings.Compare(id.Group, o.Group); c != 0 {
		return c
	}
	return strings.Compare(id.Name, o.Name)
}
