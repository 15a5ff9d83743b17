// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/depset"
	"github.com/kiln-build/kiln/pkg/scope"
)

type (
	// FailurePolicy decides whether a non-empty error report stops the build.
	FailurePolicy interface {
		FailOnResolutionError() bool
	}

	// StaticPolicy is a FailurePolicy with a fixed answer.
	StaticPolicy bool

	// Manager owns the dependency set of a build and caches its resolutions
	// per scope set. Replacing the set drops the cache.
	Manager struct {
		mu            sync.RWMutex
		engine        *Engine
		set           depset.DependencySet
		cache         *Cache
		policy        FailurePolicy
		logger        *log.Logger
		defaultScopes []scope.Scope
	}

	// ManagerOption configures a Manager.
	ManagerOption func(*Manager)
)

// FailOnResolutionError implements FailurePolicy.
func (p StaticPolicy) FailOnResolutionError() bool { return bool(p) }

// WithFailurePolicy sets the policy queried by FetchDependencies.
func WithFailurePolicy(p FailurePolicy) ManagerOption {
	return func(m *Manager) {
		if p != nil {
			m.policy = p
		}
	}
}

// WithManagerLogger sets the logger used for lenient-policy warnings.
func WithManagerLogger(l *log.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDefaultScopes sets the scopes resolved when none are requested.
func WithDefaultScopes(scopes ...scope.Scope) ManagerOption {
	return func(m *Manager) { m.defaultScopes = slices.Clone(scopes) }
}

// NewManager creates a Manager. By default resolution problems fail the
// build.
func NewManager(engine *Engine, set depset.DependencySet, opts ...ManagerOption) *Manager {
	m := &Manager{
		engine:        engine,
		set:           set,
		cache:         NewCache(),
		policy:        StaticPolicy(true),
		logger:        defaultLogger(),
		defaultScopes: scope.DefaultScopes(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dependencies returns the current dependency set.
func (m *Manager) Dependencies() depset.DependencySet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set
}

// SetDependencies replaces the dependency set.
func (m *Manager) SetDependencies(set depset.DependencySet) {
	m.replace(func(depset.DependencySet) depset.DependencySet { return set })
}

// AddDependencies appends to the dependency set.
func (m *Manager) AddDependencies(deps ...depset.Dependency) {
	m.replace(func(cur depset.DependencySet) depset.DependencySet { return cur.And(deps...) })
}

// RemoveDependencies drops module dependencies on the given modules.
func (m *Manager) RemoveDependencies(ids ...coordinate.ModuleID) {
	m.replace(func(cur depset.DependencySet) depset.DependencySet { return cur.WithoutDependencies(ids...) })
}

func (m *Manager) replace(fn func(depset.DependencySet) depset.DependencySet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set = fn(m.set)
	m.cache.Invalidate()
}

// Cache returns the resolution cache.
func (m *Manager) Cache() *Cache { return m.cache }

// Resolve resolves the dependency set for the given scopes, or the default
// scopes when none are given. Results are cached per scope set.
func (m *Manager) Resolve(ctx context.Context, scopes ...scope.Scope) (*Result, error) {
	if len(scopes) == 0 {
		scopes = m.defaultScopes
	}
	// replace invalidates under the write lock, so the set and the
	// generation read here belong together.
	m.mu.RLock()
	set := m.set
	gen := m.cache.Generation()
	m.mu.RUnlock()

	return m.cache.GetOrComputeAt(ctx, gen, scope.NewSet(scopes...).Key(), func(ctx context.Context) (*Result, error) {
		return m.engine.Resolve(ctx, set, scopes...)
	})
}

// FetchDependencies resolves like Resolve and then applies the failure
// policy: a non-empty report is returned as a *ReportError when the policy
// fails, and logged as a warning otherwise.
func (m *Manager) FetchDependencies(ctx context.Context, scopes ...scope.Scope) (*Result, error) {
	res, err := m.Resolve(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	report := res.Report()
	if !report.HasErrors() {
		return res, nil
	}
	if m.policy.FailOnResolutionError() {
		return res, &ReportError{Report: report}
	}
	for _, p := range report.Problems {
		m.logger.Warn("dependency problem", "module", p.Module.String(), "kind", string(p.Kind), "message", p.Message)
	}
	return res, nil
}
