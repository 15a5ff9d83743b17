// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// MustMkdirAll creates a directory along with any necessary parents.
// The test fails immediately if the operation fails.
func MustMkdirAll(t testing.TB, path string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(path, perm); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}

// MustWriteFile writes content to path, creating parent directories.
// The test fails immediately if the operation fails.
func MustWriteFile(t testing.TB, path, content string) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// PublishModule lays out group:name at version in a local repository rooted
// at repo: a module.cue descriptor and the main jar. extra is appended to
// the descriptor, e.g. a dependencies list.
func PublishModule(t testing.TB, repo, module, version, extra string) {
	t.Helper()
	group, name, ok := strings.Cut(module, ":")
	if !ok {
		t.Fatalf("module %q is not group:name", module)
	}
	dir := filepath.Join(repo, group, name, version)
	descriptor := fmt.Sprintf("module: %q\nversion: %q\n%s\n", module, version, extra)
	MustWriteFile(t, filepath.Join(dir, "module.cue"), descriptor)
	MustWriteFile(t, filepath.Join(dir, name+"-"+version+".jar"), name)
}
