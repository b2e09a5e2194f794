package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Buffer is a decoded signal. Samples are interleaved when Channels > 1.
type Buffer struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// NewMono wraps samples as a single-channel buffer.
func NewMono(samples []float64, sampleRate int) Buffer {
	return Buffer{Samples: samples, SampleRate: sampleRate, Channels: 1}
}

// Validate reports structural problems with the buffer.
func (b Buffer) Validate() error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", b.SampleRate)
	}
	if b.Channels <= 0 {
		return fmt.Errorf("channel count must be positive, got %d", b.Channels)
	}
	if len(b.Samples)%b.Channels != 0 {
		return fmt.Errorf("sample count %d is not a multiple of %d channels", len(b.Samples), b.Channels)
	}
	for i, s := range b.Samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("sample %d is not finite", i)
		}
	}
	return nil
}

// Frames returns the number of sample frames (samples per channel).
func (b Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Clone returns a deep copy.
func (b Buffer) Clone() Buffer {
	out := b
	out.Samples = append([]float64(nil), b.Samples...)
	return out
}

// Mono averages interleaved channels into a new single-channel buffer.
func (b Buffer) Mono() (Buffer, error) {
	if b.Channels <= 0 {
		return Buffer{}, errors.New("channel count must be positive")
	}
	if b.Channels == 1 {
		return b.Clone(), nil
	}
	frames := b.Frames()
	out := make([]float64, frames)
	scale := 1 / float64(b.Channels)
	for i := 0; i < frames; i++ {
		var sum float64
		base := i * b.Channels
		for ch := 0; ch < b.Channels; ch++ {
			sum += b.Samples[base+ch]
		}
		out[i] = sum * scale
	}
	return NewMono(out, b.SampleRate), nil
}

// Peak returns the maximum absolute sample value.
func (b Buffer) Peak() float64 {
	var peak float64
	for _, s := range b.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// RMS returns the root-mean-square level of the samples.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
