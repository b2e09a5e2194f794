// Package main hosts the wavedeck CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon (serve), starts and stops it in the
// background, and turns job commands into IPC calls against the daemon's
// socket. Local commands such as deps and config work without a daemon.
//
// Keep this package lean: behavior belongs in internal packages and is only
// surfaced here through commands and flags.
package main
