// SPDX-License-Identifier: MPL-2.0

// Package scope models named dependency usage contexts (compile, runtime,
// test and so on) and the "extends" relation between them.
//
// A dependency declared in scope D is part of a request for scopes R when
// Closure(R) and D intersect. Closure follows "extends" edges, so a request
// for test also sees dependencies declared for runtime and compile.
package scope

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const (
	// Compile is for dependencies needed to compile and run.
	Compile Scope = "compile"
	// Runtime is for dependencies needed only at run time.
	Runtime Scope = "runtime"
	// Provided is for dependencies the execution environment supplies.
	Provided Scope = "provided"
	// Test is for dependencies needed to compile and run tests.
	Test Scope = "test"
)

var (
	// ErrInvalidScope is the sentinel error wrapped by InvalidScopeError.
	ErrInvalidScope = errors.New("invalid scope")
	// ErrUnknownScope is the sentinel error wrapped by UnknownScopeError.
	ErrUnknownScope = errors.New("unknown scope")
	// ErrScopeCycle is the sentinel error wrapped by CycleError.
	ErrScopeCycle = errors.New("cyclic scope hierarchy")

	scopeNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)
)

type (
	// Scope names a dependency usage context.
	Scope string

	// InvalidScopeError is returned when a scope name is malformed.
	InvalidScopeError struct {
		Value Scope
	}

	// UnknownScopeError is returned when a scope is used but never declared.
	UnknownScopeError struct {
		Value Scope
	}

	// CycleError is returned when scope declarations extend each other in a
	// loop.
	CycleError struct {
		Cycle []Scope
	}
)

// Parse validates raw text as a scope name.
func Parse(raw string) (Scope, error) {
	s := Scope(strings.TrimSpace(raw))
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

// ParseAll parses every entry of raw.
func ParseAll(raw []string) ([]Scope, error) {
	out := make([]Scope, 0, len(raw))
	for _, r := range raw {
		s, err := Parse(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (s Scope) String() string { return string(s) }

// Validate checks that the name starts with a letter and uses only letters,
// digits, '.', '_' or '-'.
func (s Scope) Validate() error {
	if !scopeNamePattern.MatchString(string(s)) {
		return &InvalidScopeError{Value: s}
	}
	return nil
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid scope name %q", string(e.Value))
}

func (e *InvalidScopeError) Unwrap() error { return ErrInvalidScope }

func (e *UnknownScopeError) Error() string {
	return fmt.Sprintf("scope %q is not declared", string(e.Value))
}

func (e *UnknownScopeError) Unwrap() error { return ErrUnknownScope }

func (e *CycleError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, s := range e.Cycle {
		names[i] = string(s)
	}
	return "cyclic scope hierarchy: " + strings.Join(names, " extends ")
}

func (e *CycleError) Unwrap() error { return ErrScopeCycle }

// Set is an ordered collection of distinct scopes.
type Set struct {
	items []Scope
}

// NewSet builds a Set, keeping the first occurrence of each scope.
func NewSet(scopes ...Scope) Set {
	var s Set
	for _, sc := range scopes {
		s = s.With(sc)
	}
	return s
}

// With returns a copy of s that also holds sc.
func (s Set) With(sc Scope) Set {
	if s.Contains(sc) {
		return s
	}
	items := make([]Scope, len(s.items), len(s.items)+1)
	copy(items, s.items)
	return Set{items: append(items, sc)}
}

// Union returns the scopes of s followed by the new scopes of o.
func (s Set) Union(o Set) Set {
	out := s
	for _, sc := range o.items {
		out = out.With(sc)
	}
	return out
}

// Contains reports membership.
func (s Set) Contains(sc Scope) bool { return slices.Contains(s.items, sc) }

// Intersects reports whether any scope in scopes belongs to s.
func (s Set) Intersects(scopes []Scope) bool {
	return slices.ContainsFunc(scopes, s.Contains)
}

// Len returns the number of scopes.
func (s Set) Len() int { return len(s.items) }

// IsEmpty reports whether the set holds no scope.
func (s Set) IsEmpty() bool { return len(s.items) == 0 }

// Slice returns the scopes in insertion order.
func (s Set) Slice() []Scope { return slices.Clone(s.items) }

// Equal reports whether both sets hold the same scopes, in any order.
func (s Set) Equal(o Set) bool { return s.Key() == o.Key() }

// Key returns an order independent identity for the set, suitable as a cache
// key.
func (s Set) Key() string {
	names := make([]string, len(s.items))
	for i, sc := range s.items {
		names[i] = string(sc)
	}
	slices.Sort(names)
	return strings.Join(names, ",")
}

func (s Set) String() string {
	names := make([]string, len(s.items))
	for i, sc := range s.items {
		names[i] = string(sc)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
