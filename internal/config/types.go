// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/scope"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidCacheDirPath is returned when a CacheDirPath value is whitespace-only.
	ErrInvalidCacheDirPath = errors.New("invalid cache dir path")
	// ErrInvalidRepository is the sentinel error wrapped by InvalidRepositoryError.
	ErrInvalidRepository = errors.New("invalid repository")
	// ErrInvalidResolutionConfig is the sentinel error wrapped by InvalidResolutionConfigError.
	ErrInvalidResolutionConfig = errors.New("invalid resolution config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// CacheDirPath is the directory materialized artifacts are copied to.
	// The zero value means "use the default cache directory".
	CacheDirPath string

	// InvalidCacheDirPathError is returned when a CacheDirPath value is
	// non-empty but whitespace-only.
	InvalidCacheDirPathError struct {
		Value CacheDirPath
	}

	// InvalidRepositoryError is returned when a repository entry has invalid
	// fields.
	InvalidRepositoryError struct {
		Name   string
		Reason string
	}

	// InvalidResolutionConfigError collects the field errors of a
	// ResolutionConfig.
	InvalidResolutionConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// RepositoryConfig declares one repository. Kind selects the
	// implementation registered under that name.
	RepositoryConfig struct {
		Name string `json:"name" mapstructure:"name"`
		Kind string `json:"kind" mapstructure:"kind"`
		Path string `json:"path,omitempty" mapstructure:"path"`
	}

	// ResolutionConfig tunes the resolution engine.
	ResolutionConfig struct {
		// ConflictStrategy is one of take-first, take-highest, take-lowest, fail.
		ConflictStrategy string `json:"conflict_strategy" mapstructure:"conflict_strategy"`
		// Parallelism bounds concurrent repository queries.
		Parallelism int `json:"parallelism" mapstructure:"parallelism"`
		// MaxPasses bounds the collection passes of one resolution.
		MaxPasses int `json:"max_passes" mapstructure:"max_passes"`
		// FailOnError turns a non-empty error report into a failure.
		FailOnError bool `json:"fail_on_error" mapstructure:"fail_on_error"`
		// DefaultScopes are resolved when a command names none.
		DefaultScopes []string `json:"default_scopes" mapstructure:"default_scopes"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables debug logging
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// Config holds the application configuration.
	Config struct {
		CacheDir     CacheDirPath       `json:"cache_dir" mapstructure:"cache_dir"`
		Repositories []RepositoryConfig `json:"repositories" mapstructure:"repositories"`
		Resolution   ResolutionConfig   `json:"resolution" mapstructure:"resolution"`
		UI           UIConfig           `json:"ui" mapstructure:"ui"`
	}
)

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// String returns the string representation of the CacheDirPath.
func (p CacheDirPath) String() string { return string(p) }

// IsValid returns whether the CacheDirPath is valid.
func (p CacheDirPath) IsValid() (bool, []error) {
	if p != "" && strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidCacheDirPathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidCacheDirPathError.
func (e *InvalidCacheDirPathError) Error() string {
	return fmt.Sprintf("invalid cache dir path %q: non-empty value must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidCacheDirPath for errors.Is() compatibility.
func (e *InvalidCacheDirPathError) Unwrap() error { return ErrInvalidCacheDirPath }

// IsValid returns whether the repository entry has a name and a kind.
func (r RepositoryConfig) IsValid() (bool, []error) {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return false, []error{&InvalidRepositoryError{Name: r.Name, Reason: "name must not be empty"}}
	case strings.TrimSpace(r.Kind) == "":
		return false, []error{&InvalidRepositoryError{Name: r.Name, Reason: "kind must not be empty"}}
	}
	return true, nil
}

func (e *InvalidRepositoryError) Error() string {
	return fmt.Sprintf("repository %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrInvalidRepository for errors.Is() compatibility.
func (e *InvalidRepositoryError) Unwrap() error { return ErrInvalidRepository }

// Strategy parses ConflictStrategy.
func (c ResolutionConfig) Strategy() (coordinate.ConflictStrategy, error) {
	return coordinate.ParseConflictStrategy(c.ConflictStrategy)
}

// Scopes parses DefaultScopes.
func (c ResolutionConfig) Scopes() ([]scope.Scope, error) {
	return scope.ParseAll(c.DefaultScopes)
}

// IsValid returns whether the strategy and scopes parse and the bounds are
// positive.
func (c ResolutionConfig) IsValid() (bool, []error) {
	var errs []error
	if _, err := c.Strategy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Scopes(); err != nil {
		errs = append(errs, err)
	}
	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism))
	}
	if c.MaxPasses < 1 {
		errs = append(errs, fmt.Errorf("max_passes must be at least 1, got %d", c.MaxPasses))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidResolutionConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidResolutionConfigError.
func (e *InvalidResolutionConfigError) Error() string {
	return fmt.Sprintf("invalid resolution config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidResolutionConfig for errors.Is() compatibility.
func (e *InvalidResolutionConfigError) Unwrap() error { return ErrInvalidResolutionConfig }

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.CacheDir.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for _, r := range c.Repositories {
		if valid, fieldErrs := r.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if valid, fieldErrs := c.Resolution.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		CacheDir:     "", // Resolved by CacheDir() when empty
		Repositories: []RepositoryConfig{},
		Resolution: ResolutionConfig{
			ConflictStrategy: coordinate.TakeHighest.String(),
			Parallelism:      resolve.DefaultParallelism,
			MaxPasses:        resolve.DefaultMaxPasses,
			FailOnError:      true,
			DefaultScopes:    []string{scope.Compile.String(), scope.Runtime.String()},
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
	}
}
