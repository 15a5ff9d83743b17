// SPDX-License-Identifier: MPL-2.0

package coordinate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kiln-build/kiln/pkg/version"
)

const (
	// TakeFirst keeps the version seen first in traversal order.
	TakeFirst ConflictStrategy = "take-first"
	// TakeHighest keeps the greater version.
	TakeHighest ConflictStrategy = "take-highest"
	// TakeLowest keeps the lesser version.
	TakeLowest ConflictStrategy = "take-lowest"
	// Fail rejects two different fixed versions of the same module.
	Fail ConflictStrategy = "fail"
)

var (
	// ErrVersionConflict is the sentinel error wrapped by ConflictError.
	ErrVersionConflict = errors.New("version conflict")
	// ErrInvalidConflictStrategy is the sentinel error wrapped by InvalidConflictStrategyError.
	ErrInvalidConflictStrategy = errors.New("invalid conflict strategy")
)

type (
	// ConflictStrategy decides between two versions requested for one module.
	ConflictStrategy string

	// InvalidConflictStrategyError is returned when a ConflictStrategy value is
	// not recognized. It wraps ErrInvalidConflictStrategy for errors.Is().
	InvalidConflictStrategyError struct {
		Value ConflictStrategy
	}

	// ConflictError reports two fixed versions that the Fail strategy refuses
	// to reconcile.
	ConflictError struct {
		Module   ModuleID
		Versions []version.Version
	}
)

// ConflictStrategies lists the recognized strategies.
func ConflictStrategies() []ConflictStrategy {
	return []ConflictStrategy{TakeFirst, TakeHighest, TakeLowest, Fail}
}

// ParseConflictStrategy accepts the canonical spelling as well as upper case
// and underscore variants such as "TAKE_HIGHEST".
func ParseConflictStrategy(raw string) (ConflictStrategy, error) {
	s := ConflictStrategy(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-"))
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

func (s ConflictStrategy) String() string { return string(s) }

// Validate returns an error if the strategy is not recognized.
func (s ConflictStrategy) Validate() error {
	switch s {
	case TakeFirst, TakeHighest, TakeLowest, Fail:
		return nil
	default:
		return &InvalidConflictStrategyError{Value: s}
	}
}

func (e *InvalidConflictStrategyError) Error() string {
	return fmt.Sprintf("invalid conflict strategy %q (valid: take-first, take-highest, take-lowest, fail)", string(e.Value))
}

func (e *InvalidConflictStrategyError) Unwrap() error { return ErrInvalidConflictStrategy }

func (e *ConflictError) Error() string {
	vs := make([]string, len(e.Versions))
	for i, v := range e.Versions {
		vs[i] = v.String()
	}
	return fmt.Sprintf("version conflict on %s: %s", e.Module, strings.Join(vs, " vs "))
}

func (e *ConflictError) Unwrap() error { return ErrVersionConflict }

// ResolveVersionConflict picks the version of module that wins between self
// (seen first) and other. The rules apply in order:
//
//  1. an unspecified side yields to the other one
//  2. Fail rejects two fixed releases that do not order equal
//  3. a release beats a snapshot under every strategy
//  4. TakeFirst keeps self, TakeHighest and TakeLowest compare
//  5. anything else takes other
func ResolveVersionConflict(module ModuleID, self, other version.Version, strategy ConflictStrategy) (version.Version, error) {
	if self.IsUnspecified() {
		return other, nil
	}
	// Versions spelled differently but ordering equal, such as "1.0" and
	// "1.0.0", are the same release.
	if other.IsUnspecified() || self.Compare(other) == 0 {
		return self, nil
	}
	if strategy == Fail && !self.IsSnapshot() && !other.IsSnapshot() {
		return self, &ConflictError{Module: module, Versions: []version.Version{self, other}}
	}
	if self.IsSnapshot() != other.IsSnapshot() {
		if self.IsSnapshot() {
			return other, nil
		}
		return self, nil
	}
	switch strategy {
	case TakeFirst:
		return self, nil
	case TakeHighest:
		return version.Max(self, other), nil
	case TakeLowest:
		return version.Min(self, other), nil
	default:
		return other, nil
	}
}
