// Package pitch implements the frame-wise pitch engine: a uniform semitone
// shift over a whole buffer and a scale-snapping correction ("autotune") that
// tracks, shifts, and re-stitches fixed-size frames.
//
// Tracking and shifting sit behind the Capability interface. The DSP
// capability is backed by algo-dsp; Unavailable reports a missing capability
// so callers can degrade to the rest of the pipeline without pitch support.
//
// Analysis and shifting of frames run in parallel. Stitching is always
// sequential in frame order so the crossfade sees the previous frame's output.
package pitch
