// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"

	"github.com/kiln-build/kiln/pkg/scope"
)

func TestColorScheme_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scheme  ColorScheme
		want    bool
		wantErr bool
	}{
		{ColorSchemeAuto, true, false},
		{ColorSchemeDark, true, false},
		{ColorSchemeLight, true, false},
		{"", false, true},
		{"garbage", false, true},
		{"AUTO", false, true},
		{"Dark", false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.scheme), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.scheme.IsValid()
			if isValid != tt.want {
				t.Errorf("ColorScheme(%q).IsValid() = %v, want %v", tt.scheme, isValid, tt.want)
			}
			if tt.wantErr {
				if len(errs) == 0 {
					t.Fatalf("ColorScheme(%q).IsValid() returned no errors, want error", tt.scheme)
				}
				if !errors.Is(errs[0], ErrInvalidColorScheme) {
					t.Errorf("error should wrap ErrInvalidColorScheme, got: %v", errs[0])
				}
			} else if len(errs) > 0 {
				t.Errorf("ColorScheme(%q).IsValid() returned unexpected errors: %v", tt.scheme, errs)
			}
		})
	}
}

func TestCacheDirPath_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path CacheDirPath
		want bool
	}{
		{"", true},
		{"/var/cache/kiln", true},
		{"relative/cache", true},
		{"   ", false},
		{"\t", false},
	}

	for _, tt := range tests {
		isValid, errs := tt.path.IsValid()
		if isValid != tt.want {
			t.Errorf("CacheDirPath(%q).IsValid() = %v, want %v", tt.path, isValid, tt.want)
		}
		if !tt.want && (len(errs) == 0 || !errors.Is(errs[0], ErrInvalidCacheDirPath)) {
			t.Errorf("CacheDirPath(%q).IsValid() errors = %v, want ErrInvalidCacheDirPath", tt.path, errs)
		}
	}
}

func TestRepositoryConfig_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		repo RepositoryConfig
		want bool
	}{
		{"complete", RepositoryConfig{Name: "local", Kind: "local", Path: "/repo"}, true},
		{"without path", RepositoryConfig{Name: "mem", Kind: "memory"}, true},
		{"missing name", RepositoryConfig{Kind: "local"}, false},
		{"missing kind", RepositoryConfig{Name: "local"}, false},
		{"blank kind", RepositoryConfig{Name: "local", Kind: "  "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.repo.IsValid()
			if isValid != tt.want {
				t.Errorf("IsValid() = %v, want %v", isValid, tt.want)
			}
			if !tt.want {
				var repoErr *InvalidRepositoryError
				if len(errs) == 0 || !errors.As(errs[0], &repoErr) {
					t.Fatalf("IsValid() errors = %v, want *InvalidRepositoryError", errs)
				}
				if !errors.Is(errs[0], ErrInvalidRepository) {
					t.Error("error should wrap ErrInvalidRepository")
				}
			}
		})
	}
}

func TestResolutionConfig_IsValid(t *testing.T) {
	t.Parallel()

	base := DefaultConfig().Resolution

	tests := []struct {
		name       string
		mutate     func(*ResolutionConfig)
		wantErrors int
	}{
		{"defaults", func(*ResolutionConfig) {}, 0},
		{"fail strategy", func(c *ResolutionConfig) { c.ConflictStrategy = "fail" }, 0},
		{"unknown strategy", func(c *ResolutionConfig) { c.ConflictStrategy = "newest" }, 1},
		{"custom scope", func(c *ResolutionConfig) { c.DefaultScopes = []string{"compile", "it-test"} }, 0},
		{"malformed scope", func(c *ResolutionConfig) { c.DefaultScopes = []string{"compile", "1bad"} }, 1},
		{"zero parallelism", func(c *ResolutionConfig) { c.Parallelism = 0 }, 1},
		{"zero passes", func(c *ResolutionConfig) { c.MaxPasses = 0 }, 1},
		{"everything wrong", func(c *ResolutionConfig) {
			c.ConflictStrategy = ""
			c.DefaultScopes = []string{"?"}
			c.Parallelism = -1
			c.MaxPasses = -1
		}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := base
			cfg.DefaultScopes = append([]string(nil), base.DefaultScopes...)
			tt.mutate(&cfg)

			isValid, errs := cfg.IsValid()
			if isValid != (tt.wantErrors == 0) {
				t.Fatalf("IsValid() = %v, errors %v", isValid, errs)
			}
			if tt.wantErrors == 0 {
				return
			}
			var resErr *InvalidResolutionConfigError
			if !errors.As(errs[0], &resErr) {
				t.Fatalf("error should be *InvalidResolutionConfigError, got %T", errs[0])
			}
			if len(resErr.FieldErrors) != tt.wantErrors {
				t.Errorf("got %d field errors, want %d: %v", len(resErr.FieldErrors), tt.wantErrors, resErr.FieldErrors)
			}
			if !errors.Is(errs[0], ErrInvalidResolutionConfig) {
				t.Error("error should wrap ErrInvalidResolutionConfig")
			}
		})
	}
}

func TestResolutionConfig_Scopes(t *testing.T) {
	t.Parallel()

	cfg := ResolutionConfig{DefaultScopes: []string{"test", "provided"}}
	scopes, err := cfg.Scopes()
	if err != nil {
		t.Fatalf("Scopes() returned error: %v", err)
	}
	if len(scopes) != 2 || scopes[0] != scope.Test || scopes[1] != scope.Provided {
		t.Errorf("Scopes() = %v, want [test provided]", scopes)
	}
}

func TestConfig_IsValid_CollectsAllFields(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CacheDir = " "
	cfg.Repositories = []RepositoryConfig{{Name: "r"}}
	cfg.Resolution.Parallelism = 0
	cfg.UI.ColorScheme = "blue"

	isValid, errs := cfg.IsValid()
	if isValid {
		t.Fatal("IsValid() = true, want false")
	}
	var cfgErr *InvalidConfigError
	if !errors.As(errs[0], &cfgErr) {
		t.Fatalf("error should be *InvalidConfigError, got %T", errs[0])
	}
	if len(cfgErr.FieldErrors) != 4 {
		t.Errorf("got %d field errors, want 4: %v", len(cfgErr.FieldErrors), cfgErr.FieldErrors)
	}
	for _, sentinel := range []error{ErrInvalidCacheDirPath, ErrInvalidRepository, ErrInvalidResolutionConfig, ErrInvalidColorScheme} {
		found := false
		for _, fe := range cfgErr.FieldErrors {
			if errors.Is(fe, sentinel) {
				found = true
			}
		}
		if !found {
			t.Errorf("field errors do not include %v", sentinel)
		}
	}
	if !errors.Is(errs[0], ErrInvalidConfig) {
		t.Error("error should wrap ErrInvalidConfig")
	}
}
