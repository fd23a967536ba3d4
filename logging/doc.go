// Package logging provides a minimal logging interface and adapters for the
// orchestration core, plus the EventLog: the append-only structured event
// sink every component writes operational events into.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the broker, manager and agents use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - EventLog writing core.EventRecord entries through a Logger while
//     retaining a bounded in-memory history for inspection
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
