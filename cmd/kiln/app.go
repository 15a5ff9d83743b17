// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kiln-build/kiln/internal/buildfile"
	"github.com/kiln-build/kiln/internal/config"
	"github.com/kiln-build/kiln/internal/issue"
	"github.com/kiln-build/kiln/internal/repository"
	"github.com/kiln-build/kiln/pkg/resolve"
	"github.com/kiln-build/kiln/pkg/scope"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives it and reaches configuration and output through it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
		now    func() time.Time
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
		Now    func() time.Time
	}

	// session is everything one dependency command needs: the loaded
	// configuration, the workspace and a manager over the root project.
	session struct {
		cfg       *config.Config
		logger    *log.Logger
		workspace *buildfile.Workspace
		repo      resolve.Repository
		manager   *resolve.Manager
		defaults  []scope.Scope
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr, now: deps.Now}
}

func (a *App) loadConfig(ctx context.Context, flags *rootFlagValues) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
}

func (a *App) logger(flags *rootFlagValues, cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: "kiln"})
	if flags.verbose || (cfg != nil && cfg.UI.Verbose) {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// openSession loads configuration and the workspace in flags.dir, opens
// the configured repositories and builds a manager over the root project.
func (a *App) openSession(ctx context.Context, flags *rootFlagValues) (*session, error) {
	cfg, err := a.loadConfig(ctx, flags)
	if err != nil {
		return nil, err
	}
	logger := a.logger(flags, cfg)

	ws, err := loadWorkspace(ctx, flags.dir)
	if err != nil {
		return nil, err
	}

	specs, err := cfg.RepositorySpecs(ws.Root.Dir())
	if err != nil {
		return nil, err
	}
	repo, err := repository.Open(ctx, specs)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("open repositories").
			WithSuggestion("Declare at least one repository in the configuration, e.g. {name: \"local\", kind: \"local\", path: \"/srv/repo\"}").
			WithSuggestion("Known repository kinds: " + strings.Join(repository.DefaultRegistry.Kinds(), ", ")).
			Wrap(err).
			BuildError()
	}

	s := &session{cfg: cfg, logger: logger, repo: repo}
	if err := s.reload(ws); err != nil {
		return nil, err
	}
	return s, nil
}

// reload points the session at a freshly loaded workspace. The manager is
// kept, and its cache dropped, unless the scope hierarchy changed.
func (s *session) reload(ws *buildfile.Workspace) error {
	defaults, err := s.cfg.Resolution.Scopes()
	if err != nil {
		return err
	}
	if err := ws.Hierarchy.Validate(defaults...); err != nil {
		return issue.NewErrorContext().
			WithOperation("apply configuration").
			WithResource("resolution.default_scopes").
			WithSuggestion("Declare the scope in kiln.cue or remove it from the configuration").
			Wrap(err).
			BuildError()
	}

	if s.manager != nil && s.workspace != nil && sameScopes(s.workspace.Hierarchy, ws.Hierarchy) {
		s.workspace = ws
		s.manager.SetDependencies(ws.Root.Dependencies())
		return nil
	}

	strategy, err := s.cfg.Resolution.Strategy()
	if err != nil {
		return err
	}
	opts := append(ws.EngineOptions(),
		resolve.WithConflictStrategy(strategy),
		resolve.WithParallelism(s.cfg.Resolution.Parallelism),
		resolve.WithMaxPasses(s.cfg.Resolution.MaxPasses),
		resolve.WithLogger(s.logger),
	)
	engine := resolve.New(s.repo, opts...)
	s.manager = resolve.NewManager(engine, ws.Root.Dependencies(),
		resolve.WithFailurePolicy(resolve.StaticPolicy(s.cfg.Resolution.FailOnError)),
		resolve.WithManagerLogger(s.logger),
		resolve.WithDefaultScopes(defaults...),
	)
	s.workspace = ws
	s.defaults = defaults
	return nil
}

// scopes returns the requested scopes, or the configured defaults.
func (s *session) scopes(requested []scope.Scope) []scope.Scope {
	if len(requested) > 0 {
		return requested
	}
	return s.defaults
}

func loadWorkspace(ctx context.Context, dir string) (*buildfile.Workspace, error) {
	ws, err := buildfile.Load(ctx, dir)
	if err != nil {
		return nil, issue.Wrap(err, "load build", dir)
	}
	return ws, nil
}

// sameScopes reports whether two hierarchies declare the same scopes the
// same way.
func sameScopes(a, b *scope.Hierarchy) bool {
	as, bs := a.Scopes(), b.Scopes()
	if len(as) != len(bs) {
		return false
	}
	for i, s := range as {
		if bs[i] != s {
			return false
		}
		da, _ := a.Lookup(s)
		db, _ := b.Lookup(s)
		if da.Transitive != db.Transitive || !slices.Equal(da.Extends, db.Extends) {
			return false
		}
	}
	return true
}
