package pitch

import (
	"fmt"
	"math"
	"strings"

	dsppitch "github.com/cwbudde/algo-dsp/dsp/effects/pitch"
)

// Shifter algorithm names accepted by NewDSPCapability.
const (
	ShifterWSOLA    = "wsola"
	ShifterSpectral = "spectral"
)

// MaxSemitones bounds any single shift to the ratio range the shifters accept.
const MaxSemitones = 24.0

// DSPOptions configures the algo-dsp backed capability.
type DSPOptions struct {
	Shifter      string
	MinFrequency float64
	MaxFrequency float64
}

// DSPCapability tracks with a normalized autocorrelation and shifts with the
// algo-dsp WSOLA or phase-vocoder shifter.
type DSPCapability struct {
	shifter string
	tracker *Tracker
}

// NewDSPCapability builds the capability. An empty shifter selects WSOLA.
func NewDSPCapability(opts DSPOptions) (*DSPCapability, error) {
	shifter := strings.ToLower(strings.TrimSpace(opts.Shifter))
	if shifter == "" {
		shifter = ShifterWSOLA
	}
	if shifter != ShifterWSOLA && shifter != ShifterSpectral {
		return nil, fmt.Errorf("unknown shifter %q", opts.Shifter)
	}
	return &DSPCapability{
		shifter: shifter,
		tracker: NewTracker(opts.MinFrequency, opts.MaxFrequency),
	}, nil
}

func (c *DSPCapability) Available() bool { return true }

func (c *DSPCapability) Name() string { return "algo-dsp/" + c.shifter }

func (c *DSPCapability) Track(frame []float64, sampleRate int) (Estimate, error) {
	return c.tracker.Track(frame, sampleRate)
}

// Shift returns a new slice of the same length. Shifters are built per call so
// concurrent frames never share state.
func (c *DSPCapability) Shift(samples []float64, sampleRate int, semitones float64) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if math.IsNaN(semitones) || math.IsInf(semitones, 0) {
		return nil, fmt.Errorf("semitones must be finite, got %v", semitones)
	}
	if math.Abs(semitones) > MaxSemitones {
		return nil, fmt.Errorf("shift of %.2f semitones exceeds +/-%.0f", semitones, MaxSemitones)
	}
	if len(samples) == 0 {
		return []float64{}, nil
	}
	if semitones == 0 {
		return append([]float64(nil), samples...), nil
	}

	switch c.shifter {
	case ShifterSpectral:
		shifter, err := dsppitch.NewSpectralPitchShifter(float64(sampleRate))
		if err != nil {
			return nil, fmt.Errorf("spectral shifter: %w", err)
		}
		if err := shifter.SetPitchSemitones(semitones); err != nil {
			return nil, fmt.Errorf("spectral shifter: %w", err)
		}
		out, err := shifter.ProcessWithError(samples)
		if err != nil {
			return nil, fmt.Errorf("spectral shift: %w", err)
		}
		return fitLength(out, len(samples)), nil
	default:
		shifter, err := dsppitch.NewPitchShifter(float64(sampleRate))
		if err != nil {
			return nil, fmt.Errorf("wsola shifter: %w", err)
		}
		if err := shifter.SetPitchSemitones(semitones); err != nil {
			return nil, fmt.Errorf("wsola shifter: %w", err)
		}
		return fitLength(shifter.Process(samples), len(samples)), nil
	}
}

func fitLength(in []float64, n int) []float64 {
	if len(in) == n {
		return in
	}
	out := make([]float64, n)
	copy(out, in)
	return out
}
