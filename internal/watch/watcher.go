// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a callback when build files change.
//
// Build files are watched by exact path, so projects living outside the
// workspace root are covered, and may also be selected with doublestar
// patterns relative to a base directory. Events inside the debounce window
// are coalesced so the callback fires once with every changed path.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the delay before firing the callback after the last
// event. Editors often write a temp file and rename it over the original.
const defaultDebounce = 500 * time.Millisecond

// DefaultPatterns select every build file under the base directory. They
// apply when a Config names neither Files nor Patterns.
var DefaultPatterns = []string{"**/kiln.cue"}

// defaultIgnores are always excluded: VCS metadata, build outputs, the
// artifact cache and editor noise.
var defaultIgnores = []string{
	"**/.git/**",
	"**/build/**",
	"**/.kiln/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// ErrInvalidWatchConfig is the sentinel error wrapped by InvalidWatchConfigError.
var ErrInvalidWatchConfig = errors.New("invalid watch config")

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// BaseDir anchors Patterns, Ignore and relative Files. Empty means the
		// working directory.
		BaseDir string

		// Files are build files watched by exact path.
		Files []string

		// Patterns are doublestar globs, relative to BaseDir, selecting more
		// files to watch.
		Patterns []string

		// Ignore adds patterns to the built-in ignores. Ignores never apply
		// to Files.
		Ignore []string

		// Debounce is the quiet period after the last event before the
		// callback fires. Zero or negative values mean defaultDebounce.
		Debounce time.Duration

		// ClearScreen writes an ANSI clear sequence to Stdout before each
		// callback.
		ClearScreen bool

		// Stdout receives the clear sequence. nil means os.Stdout.
		Stdout io.Writer

		// Logger receives warnings. nil discards them.
		Logger *log.Logger

		// OnChange is called with the changed paths, relative to BaseDir
		// when they lie below it and absolute otherwise.
		OnChange func(ctx context.Context, changed []string) error
	}

	// InvalidWatchConfigError collects every problem found by Config.Validate.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}

	// Watcher monitors build files and fires a debounced callback when they
	// change. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		patterns []string
		stdout   io.Writer
		logger   *log.Logger
		debounce time.Duration
		baseDir  string
		started  atomic.Bool

		mu    sync.Mutex
		files map[string]struct{}
		dirs  map[string]struct{}
	}
)

func (e *InvalidWatchConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return "invalid watch config: " + e.FieldErrors[0].Error()
	}
	return fmt.Sprintf("invalid watch config: %d field errors", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidWatchConfig for errors.Is() compatibility.
func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// Validate checks the paths and patterns of c. It returns nil or an
// *InvalidWatchConfigError listing every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.BaseDir != "" && strings.TrimSpace(c.BaseDir) == "" {
		errs = append(errs, errors.New("base directory is blank"))
	}
	for i, f := range c.Files {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Errorf("files[%d] is blank", i))
		}
	}
	errs = append(errs, patternErrors(c.Patterns, "patterns")...)
	errs = append(errs, patternErrors(c.Ignore, "ignore")...)
	if len(errs) > 0 {
		return &InvalidWatchConfigError{FieldErrors: errs}
	}
	return nil
}

// New validates cfg, creates the fsnotify watcher and registers the
// directories holding the watched files.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		patterns: cfg.Patterns,
		stdout:   cfg.Stdout,
		logger:   cfg.Logger,
		debounce: cfg.Debounce,
		baseDir:  absBase,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
	}
	if w.stdout == nil {
		w.stdout = os.Stdout
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if len(cfg.Files) == 0 && len(cfg.Patterns) == 0 {
		w.patterns = DefaultPatterns
	}

	if err := w.AddFiles(cfg.Files...); err != nil {
		w.closeAfterFailure()
		return nil, err
	}
	if len(w.patterns) > 0 {
		if err := w.addDirectories(); err != nil {
			w.closeAfterFailure()
			return nil, err
		}
	}
	return w, nil
}

// AddFiles starts watching more files by exact path. It is safe to call
// while Run is active, e.g. after a reload discovered new projects.
func (w *Watcher) AddFiles(files ...string) error {
	for _, f := range files {
		abs := f
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(w.baseDir, abs)
		}
		abs = filepath.Clean(abs)

		w.mu.Lock()
		w.files[abs] = struct{}{}
		w.mu.Unlock()

		if err := w.addDir(filepath.Dir(abs)); err != nil {
			return err
		}
	}
	return nil
}

// Files returns the files watched by exact path, sorted.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Sorted(maps.Keys(w.files))
}

// Run blocks until ctx is cancelled, dispatching debounced callbacks. It
// returns nil on cancellation and an error when the watcher breaks. A
// callback still running when the window closes again is not overlapped;
// the pending paths are retried after another debounce period.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Warn("previous run still in progress, deferring")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.ClearScreen {
			fmt.Fprint(w.stdout, "\033[2J\033[H")
		}
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("change handler failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) && len(w.patterns) > 0 {
				w.maybeAddDir(evt.Name)
			}
			name, ok := w.match(evt.Name)
			if !ok {
				continue
			}

			mu.Lock()
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if err := exhausted(err); err != nil {
				return err
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// match reports whether an event path is watched and returns the name the
// callback receives for it.
func (w *Watcher) match(path string) (string, bool) {
	abs := filepath.Clean(path)
	rel, inside := w.relative(abs)

	w.mu.Lock()
	_, exact := w.files[abs]
	w.mu.Unlock()
	if exact {
		if inside {
			return rel, true
		}
		return abs, true
	}

	if !inside || w.isIgnored(rel) || !w.matchesPatterns(rel) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) relative(abs string) (string, bool) {
	rel, err := filepath.Rel(w.baseDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// addDirectories registers every non-ignored directory below BaseDir.
// Patterns are applied when events arrive.
func (w *Watcher) addDirectories() error {
	walkErr := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(path); ok && path != w.baseDir && w.isIgnoredDir(rel) {
			return filepath.SkipDir
		}
		return w.addDir(path)
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk directory tree: %w", walkErr)
	}
	return nil
}

func (w *Watcher) addDir(dir string) error {
	w.mu.Lock()
	_, seen := w.dirs[dir]
	w.dirs[dir] = struct{}{}
	w.mu.Unlock()
	if seen {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		w.mu.Lock()
		delete(w.dirs, dir)
		w.mu.Unlock()
		return fmt.Errorf("watch: add directory %q: %w", dir, err)
	}
	return nil
}

// maybeAddDir follows directories created below BaseDir after startup.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, ok := w.relative(path)
	if !ok || w.isIgnoredDir(rel) {
		return
	}
	if err := w.addDir(path); err != nil {
		w.logger.Warn("watch new directory", "err", err)
	}
}

func (w *Watcher) isIgnoredDir(rel string) bool {
	return w.isIgnored(rel) || w.isIgnored(rel+"/")
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) matchesPatterns(rel string) bool {
	return matchAny(w.patterns, rel)
}

func (w *Watcher) closeAfterFailure() {
	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("close after init failure", "err", err)
	}
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func matchAny(patterns []string, rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

func patternErrors(patterns []string, label string) []error {
	var errs []error
	for i, pat := range patterns {
		switch {
		case strings.TrimSpace(pat) == "":
			errs = append(errs, fmt.Errorf("%s[%d] is blank", label, i))
		case !doublestar.ValidatePattern(pat):
			errs = append(errs, fmt.Errorf("%s[%d]: invalid pattern %q", label, i, pat))
		}
	}
	return errs
}
