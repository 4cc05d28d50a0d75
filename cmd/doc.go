// Package cmd implements the command-line interface for garcun. It provides
// a hierarchical command structure for inspecting and manipulating stash
// journal files and for running performance benchmarks.
//
// The package is organized into several subpackages:
//
//   - stash: Commands for journal operations (get, set, delete, compact, ...)
//   - perf: Local benchmark suite for the store and the thread pools
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See garcun -help for a list of all commands.
package cmd
