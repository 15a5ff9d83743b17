// SPDX-License-Identifier: MPL-2.0

package lockfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kiln-build/kiln/internal/repository"
	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/depset"
	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/scope"
)

var generated = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func resolveFixture(t *testing.T) *resolve.Result {
	t.Helper()

	repo := repository.NewMemory("cache")
	repo.Publish("org.acme:a:1", "org.acme:b:2")
	repo.Publish("org.acme:b:2")
	repo.Publish("org.acme:t:1")

	set := depset.Of().
		AndCoordinate(coordinate.MustParse("org.acme:a:1"), scope.Compile).
		AndCoordinate(coordinate.MustParse("org.acme:t:1"), scope.Test)

	res, err := resolve.New(repo).Resolve(context.Background(), set, scope.Compile, scope.Test)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if err := res.AssertNoError(); err != nil {
		t.Fatalf("AssertNoError() = %v", err)
	}
	return res
}

func TestFromResult(t *testing.T) {
	t.Parallel()

	lf, err := FromResult(resolveFixture(t), []scope.Scope{scope.Compile, scope.Test}, generated)
	if err != nil {
		t.Fatalf("FromResult() returned error: %v", err)
	}
	if lf.Version != FormatVersion {
		t.Errorf("Version = %q, want %q", lf.Version, FormatVersion)
	}
	if !lf.Generated.Equal(generated) {
		t.Errorf("Generated = %v, want %v", lf.Generated, generated)
	}

	compile, ok := lf.Scope("compile")
	if !ok {
		t.Fatal("compile scope missing")
	}
	want := []LockedModule{{Module: "org.acme:a", Version: "1"}, {Module: "org.acme:b", Version: "2"}}
	if !slices.Equal(compile.Modules, want) {
		t.Errorf("compile modules = %v, want %v", compile.Modules, want)
	}

	test, ok := lf.Scope("test")
	if !ok {
		t.Fatal("test scope missing")
	}
	if !slices.Contains(test.Modules, LockedModule{Module: "org.acme:t", Version: "1"}) {
		t.Errorf("test modules = %v, want org.acme:t 1 among them", test.Modules)
	}
	if _, ok := lf.Scope("runtime"); ok {
		t.Error("runtime was not locked")
	}
}

func TestFromResult_UnknownScope(t *testing.T) {
	t.Parallel()

	_, err := FromResult(resolveFixture(t), []scope.Scope{"integration"}, generated)
	if !errors.Is(err, scope.ErrUnknownScope) {
		t.Fatalf("FromResult() error = %v, want ErrUnknownScope", err)
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	lf, err := FromResult(resolveFixture(t), []scope.Scope{scope.Compile}, generated)
	if err != nil {
		t.Fatalf("FromResult() returned error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "nested", FileName)
	if err := lf.Save(path); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	text := string(data)
	for _, want := range []string{"# kiln.lock.toml is generated", "[[scope]]", "[[scope.module]]", "org.acme:b"} {
		if !strings.Contains(text, want) {
			t.Errorf("lock file does not contain %q:\n%s", want, text)
		}
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary file left behind: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if !loaded.Generated.Equal(generated) {
		t.Errorf("Generated = %v, want %v", loaded.Generated, generated)
	}
	if changes := Diff(lf, loaded); len(changes) != 0 {
		t.Errorf("Diff(saved, loaded) = %v, want none", changes)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		_, err := Load(filepath.Join(dir, "absent.toml"))
		if !errors.Is(err, ErrLockFileNotFound) {
			t.Errorf("Load() error = %v, want ErrLockFileNotFound", err)
		}
	})

	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed", content: "version = \n"},
		{name: "wrong type", content: "version = \"1\"\nscope = 3\n"},
		{name: "unsupported version", content: "version = \"9\"\n"},
		{name: "missing version", content: "[[scope]]\nname = \"compile\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-")+".toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := Load(path)
			if !errors.Is(err, ErrInvalidLockFile) {
				t.Fatalf("Load() error = %v, want ErrInvalidLockFile", err)
			}
			var lockErr *InvalidLockFileError
			if !errors.As(err, &lockErr) || lockErr.Path != path {
				t.Errorf("error = %#v, want *InvalidLockFileError for %s", err, path)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	old := &LockFile{Version: FormatVersion, Scopes: []ScopeLock{
		{Name: "compile", Modules: []LockedModule{
			{Module: "org.acme:a", Version: "1"},
			{Module: "org.acme:b", Version: "2"},
			{Module: "org.acme:gone", Version: "3"},
		}},
		{Name: "test", Modules: []LockedModule{{Module: "org.acme:t", Version: "1"}}},
	}}
	updated := &LockFile{Version: FormatVersion, Generated: generated, Scopes: []ScopeLock{
		{Name: "compile", Modules: []LockedModule{
			{Module: "org.acme:b", Version: "2"},
			{Module: "org.acme:a", Version: "1.1"},
			{Module: "org.acme:new", Version: "1"},
		}},
	}}

	got := Diff(old, updated)
	want := []Change{
		{Kind: Changed, Scope: "compile", Module: "org.acme:a", Old: "1", New: "1.1"},
		{Kind: Added, Scope: "compile", Module: "org.acme:new", New: "1"},
		{Kind: Removed, Scope: "compile", Module: "org.acme:gone", Old: "3"},
		{Kind: Removed, Scope: "test", Module: "org.acme:t", Old: "1"},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Diff() = %v, want %v", got, want)
	}

	rendered := make([]string, len(got))
	for i, c := range got {
		rendered[i] = c.String()
	}
	wantRendered := []string{
		"compile: ~ org.acme:a 1 -> 1.1",
		"compile: + org.acme:new 1",
		"compile: - org.acme:gone 3",
		"test: - org.acme:t 1",
	}
	if !slices.Equal(rendered, wantRendered) {
		t.Errorf("String() = %v, want %v", rendered, wantRendered)
	}

	if changes := Diff(updated, updated); len(changes) != 0 {
		t.Errorf("Diff(x, x) = %v, want none", changes)
	}
}
