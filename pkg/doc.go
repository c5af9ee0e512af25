// Package pkg provides shared utilities for the tyhs device-discovery and
// firmware-management toolkit.
//
// This package contains common functionality used across the monitor, port,
// board, firmware, bootloader, and task packages:
//
//   - Structured logging via Go's standard [log/slog] package
//   - A closed set of error Kinds, with a per-worker Context replacing the
//     source library's thread-local last-message buffer and mask stack
//   - Component identifiers for log filtering
//
// The package has zero third-party dependencies, relying only on the Go
// standard library.
//
// # Logging
//
// The logging subsystem wraps [log/slog] with component context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentMonitor, "device added", "key", key)
//
// Setting the LIBHS_DEBUG environment variable before the package is first
// used enables debug-level logging by default, matching spec.md's
// environment-variable surface.
//
// # Errors
//
// Every fallible operation returns an error built from a small, closed set
// of Kinds:
//
//	ctx := pkg.NewContext(pkg.ComponentPort)
//	if _, err := os.Open(path); err != nil {
//	    return nil, ctx.Wrap(pkg.Access, err, "open "+path)
//	}
package pkg
