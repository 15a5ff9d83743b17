// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/kiln-build/kiln/internal/testutil"
	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/scope"
	"github.com/kiln-build/kiln/pkg/version"
)

const coreDescriptor = `
module:  "org.acme:core"
version: "1.2.0"
dependencies: [
	{module: "org.slf4j:slf4j-api:2.0.9", scopes: ["compile"]},
	{module: "junit:junit:4.13", scopes: ["test"], exclusions: ["org.hamcrest:hamcrest-core"]},
]
versions: {"org.slf4j:slf4j-api": "2.0.12"}
artifacts: [{}, {classifier: "sources"}]
`

func newLocalFixture(t *testing.T) (*Local, string) {
	t.Helper()
	root := t.TempDir()
	base := filepath.Join(root, "org.acme", "core")
	testutil.MustWriteFile(t, filepath.Join(base, "1.2.0", DescriptorFileName), coreDescriptor)
	testutil.MustWriteFile(t, filepath.Join(base, "1.2.0", "core-1.2.0.jar"), "jar bytes")
	testutil.MustWriteFile(t, filepath.Join(base, "1.10.0", DescriptorFileName), `module: "org.acme:core", version: "1.10.0"`)
	// A directory without descriptor is not a version.
	testutil.MustMkdirAll(t, filepath.Join(base, "tmp"), 0o755)
	cache := filepath.Join(t.TempDir(), "cache")
	return NewLocal(root, cache), cache
}

func TestLocalListVersions(t *testing.T) {
	t.Parallel()

	repo, _ := newLocalFixture(t)
	got, err := repo.ListVersions(context.Background(), coordinate.MustParseModuleID("org.acme:core"))
	if err != nil {
		t.Fatalf("ListVersions() unexpected error: %v", err)
	}
	if want := []version.Version{"1.2.0", "1.10.0"}; !slices.Equal(got, want) {
		t.Errorf("ListVersions() = %v, want %v", got, want)
	}

	_, err = repo.ListVersions(context.Background(), coordinate.MustParseModuleID("org.acme:missing"))
	if !errors.Is(err, resolve.ErrModuleNotFound) {
		t.Errorf("ListVersions(missing) error = %v, want ErrModuleNotFound", err)
	}
}

func TestLocalDescribe(t *testing.T) {
	t.Parallel()

	repo, _ := newLocalFixture(t)
	desc, err := repo.Describe(context.Background(), coordinate.MustParse("org.acme:core:1.2.0"))
	if err != nil {
		t.Fatalf("Describe() unexpected error: %v", err)
	}

	mods := desc.Dependencies.Modules()
	if len(mods) != 2 {
		t.Fatalf("len(Modules()) = %d, want 2", len(mods))
	}
	if got := mods[1].DeclaredScopes(); !slices.Equal(got, []scope.Scope{scope.Test}) {
		t.Errorf("junit scopes = %v, want [test]", got)
	}
	if !mods[1].Excludes(coordinate.MustParseModuleID("org.hamcrest:hamcrest-core")) {
		t.Error("junit exclusion was not decoded")
	}
	if v, _ := desc.Dependencies.VersionProvider().VersionOf(coordinate.MustParseModuleID("org.slf4j:slf4j-api")); v != "2.0.12" {
		t.Errorf("version override = %q, want 2.0.12", v)
	}
	wantArtifacts := []coordinate.ArtifactSpec{coordinate.Main, coordinate.NewArtifactSpec("sources", "jar")}
	if !slices.Equal(desc.Artifacts, wantArtifacts) {
		t.Errorf("Artifacts = %v, want %v", desc.Artifacts, wantArtifacts)
	}

	_, err = repo.Describe(context.Background(), coordinate.MustParse("org.acme:core:9.9"))
	if !errors.Is(err, resolve.ErrModuleNotFound) {
		t.Errorf("Describe(9.9) error = %v, want ErrModuleNotFound", err)
	}
}

func TestLocalDescribeMismatch(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(root, "org.acme", "core", "2.0", DescriptorFileName), `module: "org.acme:other", version: "2.0"`)
	_, err := NewLocal(root, t.TempDir()).Describe(context.Background(), coordinate.MustParse("org.acme:core:2.0"))
	if err == nil {
		t.Fatal("Describe() expected error for a descriptor of another module")
	}
}

func TestLocalStaysUnderRoot(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	root := filepath.Join(base, "repo")
	testutil.MustWriteFile(t, filepath.Join(base, "outside", DescriptorFileName), `module: "org.acme:core", version: "1.0"`)
	repo := NewLocal(root, filepath.Join(base, "cache"))
	ctx := context.Background()

	escaping := coordinate.New(coordinate.MustParseModuleID("org.acme:core"), "../../../outside")
	if _, err := repo.Describe(ctx, escaping); !errors.Is(err, version.ErrInvalidVersion) {
		t.Errorf("Describe(%s) error = %v, want ErrInvalidVersion", escaping, err)
	}
	if _, err := repo.Materialize(ctx, escaping, coordinate.Main); !errors.Is(err, version.ErrInvalidVersion) {
		t.Errorf("Materialize(%s) error = %v, want ErrInvalidVersion", escaping, err)
	}
	if _, err := repo.ListVersions(ctx, coordinate.ModuleID{Group: "..", Name: "outside"}); !errors.Is(err, coordinate.ErrInvalidModuleID) {
		t.Errorf("ListVersions(..:outside) error = %v, want ErrInvalidModuleID", err)
	}
}

func TestLocalMaterialize(t *testing.T) {
	t.Parallel()

	repo, cache := newLocalFixture(t)
	c := coordinate.MustParse("org.acme:core:1.2.0")

	path, err := repo.Materialize(context.Background(), c, coordinate.Main)
	if err != nil {
		t.Fatalf("Materialize() unexpected error: %v", err)
	}
	want := filepath.Join(cache, "org.acme", "core", "jars", "core-1.2.0.jar")
	if path != want {
		t.Errorf("Materialize() = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "jar bytes" {
		t.Fatalf("materialized content = %q, %v", data, err)
	}

	// Idempotent: the cached file is returned even when the source is gone.
	if err := os.RemoveAll(filepath.Join(repo.root, "org.acme", "core", "1.2.0", "core-1.2.0.jar")); err != nil {
		t.Fatal(err)
	}
	again, err := repo.Materialize(context.Background(), c, coordinate.Main)
	if err != nil || again != path {
		t.Errorf("second Materialize() = %q, %v; want %q", again, err, path)
	}

	_, err = repo.Materialize(context.Background(), c, coordinate.NewArtifactSpec("sources", "jar"))
	if !errors.Is(err, resolve.ErrArtifactNotFound) {
		t.Errorf("Materialize(sources) error = %v, want ErrArtifactNotFound", err)
	}
}

func TestParseDescriptorErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"bad module id", `module: "core", version: "1"`},
		{"bad dependency", `module: "a:b", version: "1", dependencies: [{module: "only"}]`},
		{"bad scope", `module: "a:b", version: "1", dependencies: [{module: "c:d:1", scopes: ["has space"]}]`},
		{"unknown field", `module: "a:b", version: "1", repo: "x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, _, err := ParseDescriptor([]byte(tt.data), "module.cue"); err == nil {
				t.Error("ParseDescriptor() expected error")
			}
		})
	}
}

func TestChain(t *testing.T) {
	t.Parallel()

	first := NewMemory("first").Publish("org.a:a:1.0")
	second := NewMemory("second").Publish("org.a:a:2.0").Publish("org.b:b:1.0")
	chain := NewChain(first, second)
	ctx := context.Background()

	vs, err := chain.ListVersions(ctx, coordinate.MustParseModuleID("org.a:a"))
	if err != nil || !slices.Equal(vs, []version.Version{"1.0"}) {
		t.Errorf("ListVersions(a) = %v, %v; want first repository's [1.0]", vs, err)
	}
	if _, err := chain.Describe(ctx, coordinate.MustParse("org.b:b:1.0")); err != nil {
		t.Errorf("Describe(b) fell through incorrectly: %v", err)
	}
	path, err := chain.Materialize(ctx, coordinate.MustParse("org.b:b:1.0"), coordinate.Main)
	if err != nil || filepath.ToSlash(path) != "second/org.b/b/jars/b-1.0.jar" {
		t.Errorf("Materialize(b) = %q, %v", path, err)
	}
	if _, err := chain.Describe(ctx, coordinate.MustParse("org.z:z:1")); !errors.Is(err, resolve.ErrModuleNotFound) {
		t.Errorf("Describe(z) error = %v, want ErrModuleNotFound", err)
	}

	boom := errors.New("connection reset")
	first.Fail(coordinate.MustParseModuleID("org.b:b"), boom)
	if _, err := chain.Describe(ctx, coordinate.MustParse("org.b:b:1.0")); !errors.Is(err, boom) {
		t.Errorf("Describe(b) error = %v, want transport error to stop the chain", err)
	}
}

func TestMemoized(t *testing.T) {
	t.Parallel()

	mem := NewMemory("m").Publish("org.a:a:1.0")
	memo, err := NewMemoized(mem, 16)
	if err != nil {
		t.Fatalf("NewMemoized() unexpected error: %v", err)
	}
	ctx := context.Background()
	c := coordinate.MustParse("org.a:a:1.0")

	for range 3 {
		if _, err := memo.Describe(ctx, c); err != nil {
			t.Fatalf("Describe() unexpected error: %v", err)
		}
		if _, err := memo.ListVersions(ctx, c.Module()); err != nil {
			t.Fatalf("ListVersions() unexpected error: %v", err)
		}
	}
	if got := mem.Calls(); got.Describe != 1 || got.ListVersions != 1 {
		t.Errorf("Calls() = %+v, want one query of each", got)
	}

	// Failures are not memoized.
	missing := coordinate.MustParse("org.z:z:1")
	_, _ = memo.Describe(ctx, missing)
	_, _ = memo.Describe(ctx, missing)
	if got := mem.DescribeCalls(missing.Module()); got != 2 {
		t.Errorf("DescribeCalls(z) = %d, want 2", got)
	}

	memo.Purge()
	_, _ = memo.Describe(ctx, c)
	if got := mem.DescribeCalls(c.Module()); got != 2 {
		t.Errorf("DescribeCalls(a) after Purge() = %d, want 2", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	mem := NewMemory("m").Publish("org.a:a:1.0")
	r.Register("memory", func(context.Context, Spec) (resolve.Repository, error) { return mem, nil })

	if got := r.Kinds(); !slices.Equal(got, []string{"memory"}) {
		t.Errorf("Kinds() = %v", got)
	}

	repo, err := r.Open(context.Background(), []Spec{{Name: "mem", Kind: "memory"}})
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	if _, ok := repo.(*Memoized); !ok {
		t.Errorf("Open() = %T, want *Memoized", repo)
	}

	_, err = r.Open(context.Background(), []Spec{{Name: "remote", Kind: "maven"}})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Open(maven) error = %v, want ErrUnknownKind", err)
	}
	if _, err := r.Open(context.Background(), nil); err == nil {
		t.Error("Open(nil) expected error")
	}
}

func TestRegistryPanicsOnDuplicate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	f := func(context.Context, Spec) (resolve.Repository, error) { return nil, nil }
	r.Register("x", f)
	defer func() {
		if recover() == nil {
			t.Error("Register() of a duplicate kind did not panic")
		}
	}()
	r.Register("x", f)
}

func TestDefaultRegistryHasLocal(t *testing.T) {
	t.Parallel()

	if _, ok := DefaultRegistry.Lookup("local"); !ok {
		t.Fatal(`DefaultRegistry has no "local" kind`)
	}
	if _, err := Open(context.Background(), []Spec{{Name: "x", Kind: "local"}}); err == nil {
		t.Error("Open(local without path) expected error")
	}
}
