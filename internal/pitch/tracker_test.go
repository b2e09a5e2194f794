package pitch_test

import (
	"math"
	"testing"

	"wavedeck/internal/pitch"
)

const testRate = 44100

func sine(freq float64, sampleRate, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestTrackerFindsSineFundamental(t *testing.T) {
	tracker := pitch.NewTracker(0, 0)
	for _, freq := range []float64{110, 220, 261.63, 440, 880} {
		est, err := tracker.Track(sine(freq, testRate, 2048, 0.5), testRate)
		if err != nil {
			t.Fatalf("Track(%.1f) returned error: %v", freq, err)
		}
		if !est.Voiced() {
			t.Fatalf("expected %.1f Hz to be voiced, clarity=%.3f", freq, est.Clarity)
		}
		if math.Abs(est.Frequency-freq)/freq > 0.01 {
			t.Fatalf("Track(%.1f) = %.2f", freq, est.Frequency)
		}
		if est.Magnitude <= 0 {
			t.Fatalf("expected positive magnitude for %.1f Hz", freq)
		}
	}
}

func TestTrackerSilenceIsUnvoiced(t *testing.T) {
	tracker := pitch.NewTracker(0, 0)
	est, err := tracker.Track(make([]float64, 2048), testRate)
	if err != nil {
		t.Fatalf("Track returned error: %v", err)
	}
	if est.Voiced() {
		t.Fatalf("expected silence to be unvoiced, got %.2f Hz", est.Frequency)
	}

	dc := make([]float64, 2048)
	for i := range dc {
		dc[i] = 0.3
	}
	est, err = tracker.Track(dc, testRate)
	if err != nil {
		t.Fatalf("Track returned error: %v", err)
	}
	if est.Voiced() {
		t.Fatalf("expected constant offset to be unvoiced, got %.2f Hz", est.Frequency)
	}
}

func TestTrackerRejectsBadInput(t *testing.T) {
	tracker := pitch.NewTracker(0, 0)
	if _, err := tracker.Track(sine(440, testRate, 2048, 0.5), 0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	frame := sine(440, testRate, 2048, 0.5)
	frame[10] = math.NaN()
	if _, err := tracker.Track(frame, testRate); err == nil {
		t.Fatal("expected error for non-finite samples")
	}
}
