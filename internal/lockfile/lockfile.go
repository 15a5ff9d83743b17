// SPDX-License-Identifier: MPL-2.0

// Package lockfile records resolved module versions in kiln.lock.toml.
//
// A lock file lists, for every locked scope, the modules a resolution
// selected in tree order. Comparing a fresh resolution against the file
// tells whether the build's dependencies drifted since it was written.
package lockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/scope"
)

const (
	// FileName is the lock file name inside a project directory.
	FileName = "kiln.lock.toml"
	// FormatVersion is the version written into new lock files.
	FormatVersion = "1"

	header = "# kiln.lock.toml is generated by `kiln deps lock`. Do not edit.\n\n"
)

var (
	// ErrLockFileNotFound is returned by Load when no lock file exists.
	ErrLockFileNotFound = errors.New("lock file not found")
	// ErrInvalidLockFile is the sentinel error wrapped by InvalidLockFileError.
	ErrInvalidLockFile = errors.New("invalid lock file")
)

type (
	// LockFile is the decoded content of kiln.lock.toml.
	LockFile struct {
		Version   string      `toml:"version"`
		Generated time.Time   `toml:"generated"`
		Scopes    []ScopeLock `toml:"scope"`
	}

	// ScopeLock holds the modules locked for one scope.
	ScopeLock struct {
		Name    string         `toml:"name"`
		Modules []LockedModule `toml:"module"`
	}

	// LockedModule is one selected module version.
	LockedModule struct {
		Module  string `toml:"module"`
		Version string `toml:"version"`
	}

	// InvalidLockFileError is returned when a lock file cannot be decoded or
	// uses an unknown format version.
	InvalidLockFileError struct {
		Path string
		Err  error
	}

	// ChangeKind classifies one difference between two lock files.
	ChangeKind string

	// Change is one module whose locked version differs.
	Change struct {
		Kind   ChangeKind
		Scope  string
		Module string
		Old    string
		New    string
	}
)

const (
	// Added means the module is locked only in the newer file.
	Added ChangeKind = "added"
	// Removed means the module is locked only in the older file.
	Removed ChangeKind = "removed"
	// Changed means both files lock the module at different versions.
	Changed ChangeKind = "changed"
)

func (e *InvalidLockFileError) Error() string {
	return fmt.Sprintf("invalid lock file %s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrInvalidLockFile and the underlying cause.
func (e *InvalidLockFileError) Unwrap() []error { return []error{ErrInvalidLockFile, e.Err} }

func (c Change) String() string {
	switch c.Kind {
	case Added:
		return fmt.Sprintf("%s: + %s %s", c.Scope, c.Module, c.New)
	case Removed:
		return fmt.Sprintf("%s: - %s %s", c.Scope, c.Module, c.Old)
	default:
		return fmt.Sprintf("%s: ~ %s %s -> %s", c.Scope, c.Module, c.Old, c.New)
	}
}

// FromResult locks the modules res needs for each of scopes.
func FromResult(res *resolve.Result, scopes []scope.Scope, generated time.Time) (*LockFile, error) {
	lf := &LockFile{Version: FormatVersion, Generated: generated.UTC().Truncate(time.Second)}
	for _, s := range scopes {
		coords, err := res.Modules(s)
		if err != nil {
			return nil, fmt.Errorf("lock scope %s: %w", s, err)
		}
		sl := ScopeLock{Name: s.String(), Modules: make([]LockedModule, 0, len(coords))}
		for _, c := range coords {
			sl.Modules = append(sl.Modules, LockedModule{Module: c.Module().String(), Version: c.Version().String()})
		}
		lf.Scopes = append(lf.Scopes, sl)
	}
	return lf, nil
}

// Load reads the lock file at path.
func Load(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLockFileNotFound, path)
		}
		return nil, fmt.Errorf("read lock file: %w", err)
	}

	var lf LockFile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, &InvalidLockFileError{Path: path, Err: err}
	}
	if lf.Version != FormatVersion {
		return nil, &InvalidLockFileError{Path: path, Err: fmt.Errorf("unsupported format version %q", lf.Version)}
	}
	return &lf, nil
}

// Save writes l to path through a temporary file and a rename.
func (l *LockFile) Save(path string) error {
	data, err := toml.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode lock file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create lock file directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename lock file: %w", err)
	}
	return nil
}

// Scope returns the lock of the named scope.
func (l *LockFile) Scope(name string) (ScopeLock, bool) {
	i := slices.IndexFunc(l.Scopes, func(s ScopeLock) bool { return s.Name == name })
	if i < 0 {
		return ScopeLock{}, false
	}
	return l.Scopes[i], true
}

// Diff lists the module versions that differ from old to updated, scope by
// scope. Scopes are taken in the order of updated, then those only old
// has; modules follow the order of their scope lock. Generation times and
// module order within a scope are ignored.
func Diff(old, updated *LockFile) []Change {
	var changes []Change
	names := make([]string, 0, len(updated.Scopes)+len(old.Scopes))
	for _, s := range updated.Scopes {
		names = append(names, s.Name)
	}
	for _, s := range old.Scopes {
		if !slices.Contains(names, s.Name) {
			names = append(names, s.Name)
		}
	}

	for _, name := range names {
		before, _ := old.Scope(name)
		after, _ := updated.Scope(name)
		prev := versions(before)
		next := versions(after)

		for _, m := range after.Modules {
			v, ok := prev[m.Module]
			switch {
			case !ok:
				changes = append(changes, Change{Kind: Added, Scope: name, Module: m.Module, New: m.Version})
			case v != m.Version:
				changes = append(changes, Change{Kind: Changed, Scope: name, Module: m.Module, Old: v, New: m.Version})
			}
		}
		for _, m := range before.Modules {
			if _, ok := next[m.Module]; !ok {
				changes = append(changes, Change{Kind: Removed, Scope: name, Module: m.Module, Old: m.Version})
			}
		}
	}
	return changes
}

func versions(s ScopeLock) map[string]string {
	out := make(map[string]string, len(s.Modules))
	for _, m := range s.Modules {
		out[m.Module] = m.Version
	}
	return out
}
