// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/kiln-build/kiln/pkg/coordinate"
	"github.com/kiln-build/kiln/pkg/scope"
)

const (
	// DefaultParallelism bounds concurrent repository queries.
	DefaultParallelism = 4

	// DefaultMaxPasses bounds the number of collection passes.
	DefaultMaxPasses = 16
)

// Option configures an Engine.
type Option func(*Engine)

// WithConflictStrategy sets how competing versions of a module are settled.
func WithConflictStrategy(s coordinate.ConflictStrategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithHierarchy replaces the standard scope hierarchy.
func WithHierarchy(h *scope.Hierarchy) Option {
	return func(e *Engine) {
		if h != nil {
			e.hierarchy = h
		}
	}
}

// WithParallelism bounds the number of concurrent repository queries.
// Values below one mean sequential querying.
func WithParallelism(n int) Option {
	return func(e *Engine) { e.parallelism = max(n, 1) }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRootModule names the module being built. Dependencies on it are
// ignored wherever they appear.
func WithRootModule(id coordinate.ModuleID) Option {
	return func(e *Engine) { e.root = id }
}

// WithFailOnConflict makes a version conflict under the fail strategy abort
// resolution instead of being reported.
func WithFailOnConflict(fail bool) Option {
	return func(e *Engine) { e.failOnConflict = fail }
}

// WithMaxPasses bounds how many times caller edges are recollected before
// the selection is declared non-converging.
func WithMaxPasses(n int) Option {
	return func(e *Engine) { e.maxPasses = max(n, 1) }
}

func defaultLogger() *log.Logger {
	return log.New(io.Discard)
}
