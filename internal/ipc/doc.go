// Package ipc exposes the daemon over JSON-RPC on a Unix domain socket and
// ships the matching client used by the CLI.
//
// Request and response types are plain structs so the protocol stays stable
// as the HTTP API evolves. Service errors travel inside responses with their
// classified kind rather than as RPC errors, so callers can tell a busy slot
// from a bad request.
package ipc
