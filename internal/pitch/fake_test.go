package pitch_test

import (
	"sync"

	"wavedeck/internal/pitch"
)

// fakeCapability reports a fixed frequency and shifts by scaling amplitude.
type fakeCapability struct {
	freq         float64
	panicOnTrack bool
	truncate     bool

	mu     sync.Mutex
	shifts []float64
}

func (f *fakeCapability) Available() bool { return true }

func (f *fakeCapability) Name() string { return "fake" }

func (f *fakeCapability) Track(frame []float64, _ int) (pitch.Estimate, error) {
	if f.panicOnTrack {
		panic("tracker exploded")
	}
	return pitch.Estimate{Frequency: f.freq, Magnitude: 1, Clarity: 1}, nil
}

func (f *fakeCapability) Shift(samples []float64, _ int, semitones float64) ([]float64, error) {
	f.mu.Lock()
	f.shifts = append(f.shifts, semitones)
	f.mu.Unlock()
	out := append([]float64(nil), samples...)
	if f.truncate {
		return out[:len(out)/2], nil
	}
	return out, nil
}

func (f *fakeCapability) lastShift() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.shifts) == 0 {
		return 0
	}
	return f.shifts[len(f.shifts)-1]
}

// voicedFirstCapability treats only the frame that starts with a non-0.25
// sample as voiced and shifts it to a constant 5.
type voicedFirstCapability struct{}

func (voicedFirstCapability) Available() bool { return true }

func (voicedFirstCapability) Name() string { return "voiced-first" }

func (voicedFirstCapability) Track(frame []float64, _ int) (pitch.Estimate, error) {
	if len(frame) > 0 && frame[0] != 0.25 {
		return pitch.Estimate{Frequency: 440, Magnitude: 1, Clarity: 1}, nil
	}
	return pitch.Estimate{}, nil
}

func (voicedFirstCapability) Shift(samples []float64, _ int, _ float64) ([]float64, error) {
	out := make([]float64, len(samples))
	for i := range out {
		out[i] = 5
	}
	return out, nil
}
