// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// These benchmarks cover the hot paths of a kiln resolution:
//   - Coordinate parsing
//   - Build file loading and CUE validation
//   - Graph collection and conflict resolution
//   - Cached resolution through the manager
//
// To generate a PGO profile, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
