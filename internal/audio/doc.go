// Package audio holds the in-memory sample buffer the pitch engine consumes
// and the WAV codec used to move buffers to and from disk.
//
// Buffers are treated as immutable: transformations return new buffers and
// never write into their input.
package audio
