// Package services defines shared utilities consumed by the job runners and
// the external tool integrations (yt-dlp, ffmpeg, demucs).
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, job kinds, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper, Classify, and HTTPStatus
//     so every failure surfaces with a stable kind on the wire.
//   - The Executor abstraction that makes command execution testable.
//
// Use these helpers when wiring new runners so failure reporting stays uniform
// across job kinds.
package services
