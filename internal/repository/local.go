// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/cueutil"
	"github.com/kiln-build/kiln/pkg/depset"
	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/scope"
	"github.com/kiln-build/kiln/pkg/version"
)

// DescriptorFileName is the name of the descriptor inside a version directory.
const DescriptorFileName = "module.cue"

//go:embed module_schema.cue
var moduleSchema []byte

type (
	// Local is a repository laid out on disk as
	// root/group/name/version/module.cue plus the artifact files of that
	// version, named like their cache file.
	Local struct {
		root     string
		cacheDir string
	}

	moduleFile struct {
		Module       string            `json:"module"`
		Version      string            `json:"version"`
		Description  string            `json:"description,omitempty"`
		Dependencies []dependencyEntry `json:"dependencies,omitempty"`
		Versions     map[string]string `json:"versions,omitempty"`
		Artifacts    []artifactEntry   `json:"artifacts,omitempty"`
	}

	dependencyEntry struct {
		Module     string   `json:"module"`
		Scopes     []string `json:"scopes,omitempty"`
		Exclusions []string `json:"exclusions,omitempty"`
	}

	artifactEntry struct {
		Classifier string `json:"classifier,omitempty"`
		Type       string `json:"type"`
	}
)

func init() {
	Register("local", func(_ context.Context, spec Spec) (resolve.Repository, error) {
		if spec.Path == "" {
			return nil, errors.New("local repository needs a path")
		}
		return NewLocal(spec.Path, spec.CacheDir), nil
	})
}

// NewLocal creates a repository reading root and materializing into
// cacheDir.
func NewLocal(root, cacheDir string) *Local {
	return &Local{root: root, cacheDir: cacheDir}
}

// ListVersions implements resolve.Repository.
func (l *Local) ListVersions(_ context.Context, id coordinate.ModuleID) ([]version.Version, error) {
	dir, err := l.moduleDir(id)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &resolve.NotFoundError{Module: id}
	}
	if err != nil {
		return nil, err
	}
	var out []version.Version
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, e.Name(), DescriptorFileName)); err == nil {
			out = append(out, version.Of(e.Name()))
		}
	}
	if len(out) == 0 {
		return nil, &resolve.NotFoundError{Module: id}
	}
	version.Sort(out)
	return out, nil
}

// Describe implements resolve.Repository.
func (l *Local) Describe(_ context.Context, c coordinate.Coordinate) (resolve.Descriptor, error) {
	dir, err := l.versionDir(c)
	if err != nil {
		return resolve.Descriptor{}, err
	}
	path := filepath.Join(dir, DescriptorFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return resolve.Descriptor{}, &resolve.NotFoundError{Module: c.Module(), Version: c.Version()}
	}
	if err != nil {
		return resolve.Descriptor{}, err
	}
	declared, desc, err := ParseDescriptor(data, path)
	if err != nil {
		return resolve.Descriptor{}, err
	}
	if declared.Module() != c.Module() || declared.Version() != c.Version() {
		return resolve.Descriptor{}, fmt.Errorf("%s: describes %s, expected %s", path, declared, coordinate.New(c.Module(), c.Version()))
	}
	return desc, nil
}

// Materialize implements resolve.Repository. The artifact is copied to its
// cache path under the cache directory unless it is already there.
func (l *Local) Materialize(_ context.Context, c coordinate.Coordinate, spec coordinate.ArtifactSpec) (string, error) {
	dst, err := c.CachePath(l.cacheDir, spec)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}
	name, err := c.CacheFileName(spec)
	if err != nil {
		return "", err
	}
	dir, err := l.versionDir(c)
	if err != nil {
		return "", err
	}
	src := filepath.Join(dir, name)
	if err := copyFile(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", src, resolve.ErrArtifactNotFound)
		}
		return "", err
	}
	return dst, nil
}

// moduleDir and versionDir only return paths under the repository root.
func (l *Local) moduleDir(id coordinate.ModuleID) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	return filepath.Join(l.root, id.Group, id.Name), nil
}

func (l *Local) versionDir(c coordinate.Coordinate) (string, error) {
	dir, err := l.moduleDir(c.Module())
	if err != nil {
		return "", err
	}
	if err := c.Version().Validate(); err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Version().String()), nil
}

// ParseDescriptor decodes a module.cue document.
func ParseDescriptor(data []byte, filename string) (coordinate.Coordinate, resolve.Descriptor, error) {
	mf, err := cueutil.Decode[moduleFile](moduleSchema, data, "#Module", cueutil.WithFilename(filename))
	if err != nil {
		return coordinate.Coordinate{}, resolve.Descriptor{}, err
	}

	id, err := coordinate.ParseModuleID(mf.Module)
	if err != nil {
		return coordinate.Coordinate{}, resolve.Descriptor{}, fmt.Errorf("%s: module: %w", filename, err)
	}
	self := coordinate.New(id, version.Of(mf.Version))

	var set depset.DependencySet
	for i, d := range mf.Dependencies {
		dep, err := d.toDependency()
		if err != nil {
			return coordinate.Coordinate{}, resolve.Descriptor{}, fmt.Errorf("%s: dependencies[%d]: %w", filename, i, err)
		}
		set = set.And(dep)
	}
	if len(mf.Versions) > 0 {
		overrides := make(map[coordinate.ModuleID]version.Version, len(mf.Versions))
		for text, v := range mf.Versions {
			mid, err := coordinate.ParseModuleID(text)
			if err != nil {
				return coordinate.Coordinate{}, resolve.Descriptor{}, fmt.Errorf("%s: versions: %w", filename, err)
			}
			overrides[mid] = version.Of(v)
		}
		set = set.WithVersionProvider(depset.NewVersionProvider(overrides))
	}

	desc := resolve.Descriptor{Dependencies: set}
	for _, a := range mf.Artifacts {
		desc.Artifacts = append(desc.Artifacts, coordinate.NewArtifactSpec(a.Classifier, a.Type))
	}
	return self, desc, nil
}

func (d dependencyEntry) toDependency() (depset.ModuleDependency, error) {
	c, err := coordinate.Parse(d.Module)
	if err != nil {
		return depset.ModuleDependency{}, err
	}
	scopes, err := scope.ParseAll(d.Scopes)
	if err != nil {
		return depset.ModuleDependency{}, err
	}
	md := depset.ModuleDependency{Coordinate: c, Scopes: scopes}
	for _, text := range d.Exclusions {
		id, err := coordinate.ParseModuleID(text)
		if err != nil {
			return depset.ModuleDependency{}, err
		}
		md.Exclusions = append(md.Exclusions, id)
	}
	return md, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".kiln-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
