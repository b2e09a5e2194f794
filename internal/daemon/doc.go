// Package daemon hosts the long-running wavedeck process.
//
// It owns the single-instance flock lock and pid file, binds the job
// orchestrator and the library to the HTTP API, and reports status for the
// CLI and IPC surfaces. Job semantics live in internal/jobs; this package
// only handles lifecycle and transport concerns.
package daemon
