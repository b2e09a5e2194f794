package pitch

import (
	"wavedeck/internal/services"
)

// Estimate is the tracker's reading for one frame. A zero Frequency means the
// frame is unvoiced.
type Estimate struct {
	Frequency float64
	Magnitude float64
	Clarity   float64
}

// Voiced reports whether a fundamental was detected.
func (e Estimate) Voiced() bool {
	return e.Frequency > 0
}

// Capability is the pitch tracking and shifting backend the engine drives.
type Capability interface {
	Available() bool
	Name() string
	Track(frame []float64, sampleRate int) (Estimate, error)
	Shift(samples []float64, sampleRate int, semitones float64) ([]float64, error)
}

type unavailable struct {
	reason string
}

// Unavailable returns a capability that refuses every call with
// services.ErrCapabilityUnavailable.
func Unavailable(reason string) Capability {
	return unavailable{reason: reason}
}

func (u unavailable) Available() bool { return false }

func (u unavailable) Name() string { return "unavailable: " + u.reason }

func (u unavailable) Track([]float64, int) (Estimate, error) {
	return Estimate{}, u.err("track")
}

func (u unavailable) Shift([]float64, int, float64) ([]float64, error) {
	return nil, u.err("shift")
}

func (u unavailable) err(op string) error {
	return services.Wrap(services.ErrCapabilityUnavailable, "pitch", op, u.reason, nil)
}
