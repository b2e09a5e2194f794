package pitch

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/conv"
	"github.com/cwbudde/algo-dsp/dsp/window"

	"wavedeck/internal/audio"
)

const (
	defaultMinFrequency = 50.0
	defaultMaxFrequency = 2000.0
	defaultThreshold    = 0.3
	silenceFloor        = 1e-4
	octaveTolerance     = 0.9
)

// Tracker estimates the fundamental of a frame with a Hann-windowed
// autocorrelation normalized by the window's own autocorrelation.
type Tracker struct {
	MinFrequency float64
	MaxFrequency float64
	Threshold    float64

	mu    sync.Mutex
	norms map[int]windowNorm
}

type windowNorm struct {
	coeffs []float64
	acf    []float64
}

// NewTracker returns a tracker searching [minFreq, maxFreq]. Non-positive
// bounds fall back to 50 Hz and 2 kHz.
func NewTracker(minFreq, maxFreq float64) *Tracker {
	if minFreq <= 0 {
		minFreq = defaultMinFrequency
	}
	if maxFreq <= 0 {
		maxFreq = defaultMaxFrequency
	}
	return &Tracker{
		MinFrequency: minFreq,
		MaxFrequency: maxFreq,
		Threshold:    defaultThreshold,
		norms:        make(map[int]windowNorm),
	}
}

// Track returns the estimate for frame. Silent, aperiodic, and out-of-range
// frames come back unvoiced with a nil error.
func (t *Tracker) Track(frame []float64, sampleRate int) (Estimate, error) {
	if sampleRate <= 0 {
		return Estimate{}, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	n := len(frame)
	if n < 8 {
		return Estimate{}, nil
	}

	var mean float64
	for _, v := range frame {
		mean += v
	}
	mean /= float64(n)
	work := make([]float64, n)
	for i, v := range frame {
		work[i] = v - mean
	}
	rms := audio.RMS(work)
	if math.IsNaN(rms) || math.IsInf(rms, 0) {
		return Estimate{}, errors.New("frame contains non-finite samples")
	}
	if rms < silenceFloor {
		return Estimate{Magnitude: rms}, nil
	}

	norm, err := t.windowFor(n)
	if err != nil {
		return Estimate{}, err
	}
	for i := range work {
		work[i] *= norm.coeffs[i]
	}
	acf, err := conv.AutoCorrelate(work)
	if err != nil {
		return Estimate{}, fmt.Errorf("autocorrelate: %w", err)
	}
	zero := acf[n-1]
	if zero <= 0 {
		return Estimate{Magnitude: rms}, nil
	}

	sr := float64(sampleRate)
	minLag := int(math.Floor(sr / t.MaxFrequency))
	if minLag < 2 {
		minLag = 2
	}
	maxLag := int(math.Ceil(sr / t.MinFrequency))
	if maxLag > n/2 {
		maxLag = n / 2
	}
	if maxLag-minLag < 2 {
		return Estimate{Magnitude: rms}, nil
	}

	r := func(lag int) float64 {
		w := norm.acf[lag]
		if w <= 1e-9 {
			return 0
		}
		return acf[n-1+lag] / zero / w
	}

	type peak struct {
		lag   int
		value float64
	}
	var peaks []peak
	best := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		v := r(lag)
		if v > r(lag-1) && v >= r(lag+1) {
			peaks = append(peaks, peak{lag: lag, value: v})
			if v > best {
				best = v
			}
		}
	}
	if len(peaks) == 0 || best < t.Threshold {
		return Estimate{Magnitude: rms, Clarity: math.Max(best, 0)}, nil
	}

	chosen := peaks[0]
	for _, p := range peaks {
		if p.value >= octaveTolerance*best {
			chosen = p
			break
		}
	}

	lag := float64(chosen.lag)
	a, b, c := r(chosen.lag-1), chosen.value, r(chosen.lag+1)
	if denom := a - 2*b + c; denom != 0 {
		if delta := 0.5 * (a - c) / denom; math.Abs(delta) < 1 {
			lag += delta
		}
	}
	freq := sr / lag
	if freq < t.MinFrequency || freq > t.MaxFrequency {
		return Estimate{Magnitude: rms, Clarity: chosen.value}, nil
	}
	return Estimate{Frequency: freq, Magnitude: rms, Clarity: math.Min(chosen.value, 1)}, nil
}

// windowFor caches the Hann window and its normalized autocorrelation per
// frame length.
func (t *Tracker) windowFor(n int) (windowNorm, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.norms == nil {
		t.norms = make(map[int]windowNorm)
	}
	if norm, ok := t.norms[n]; ok {
		return norm, nil
	}

	coeffs := window.Generate(window.TypeHann, n)
	if len(coeffs) != n {
		return windowNorm{}, fmt.Errorf("hann window of length %d unavailable", n)
	}
	full, err := conv.AutoCorrelate(coeffs)
	if err != nil {
		return windowNorm{}, fmt.Errorf("window autocorrelation: %w", err)
	}
	acf := make([]float64, n)
	zero := full[n-1]
	for lag := range acf {
		acf[lag] = full[n-1+lag] / zero
	}
	norm := windowNorm{coeffs: coeffs, acf: acf}
	t.norms[n] = norm
	return norm, nil
}
