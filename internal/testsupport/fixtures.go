package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"wavedeck/internal/audio"
)

// Sine returns a mono sine buffer of the given length in seconds.
func Sine(freq float64, sampleRate int, seconds, amplitude float64) audio.Buffer {
	n := int(float64(sampleRate) * seconds)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return audio.NewMono(samples, sampleRate)
}

// WriteSineWAV writes a 16-bit mono sine fixture and returns its path.
func WriteSineWAV(t testing.TB, path string, freq float64, sampleRate int, seconds float64) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := audio.WriteWAV(path, Sine(freq, sampleRate, seconds, 0.5), 16); err != nil {
		t.Fatalf("write wav %s: %v", path, err)
	}
	return path
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
