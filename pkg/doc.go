// Package pkg provides shared utilities for the usbhs driver.
//
// This package contains common functionality used by the bus controller,
// the simulated peripheral, and the command-line tool, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Rotating log files backed by lumberjack
//   - Sentinel error values for endpoint and transfer errors
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with driver-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentBus, "bus enabled", "max_endpoint", 2)
//
// # Errors
//
// Driver errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrWouldBlock) {
//	    // Nothing pending yet, poll again
//	}
package pkg
