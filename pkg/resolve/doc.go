// SPDX-License-Identifier: MPL-2.0

// Package resolve turns a dependency set into a conflict-resolved tree.
//
// Resolution runs in two steps. The engine first walks the graph
// breadth-first and records, for every module, the ordered list of callers
// that asked for it. The callers of each module are folded through the
// conflict strategy; when the resulting selection differs from the versions
// that were expanded, the walk is repeated with the new selection until it
// settles. The tree is then instantiated depth-first from the recorded
// parent-to-children edges. References whose requested version lost are
// marked evicted and are not expanded.
//
// Problems that concern a single module (unknown module, failed download,
// conflicts under the fail strategy) are collected in the result's error
// report; the rest of the graph is still resolved.
package resolve
