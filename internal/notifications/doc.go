// Package notifications pushes job completion messages to an ntfy topic.
//
// New returns a no-op notifier when no topic is configured, so callers can
// register Hook unconditionally. Sends happen off the orchestrator's
// completion path and failures are only logged.
package notifications
