package pitch_test

import (
	"math"
	"testing"

	"wavedeck/internal/pitch"
)

func TestNewDSPCapabilityShifters(t *testing.T) {
	if _, err := pitch.NewDSPCapability(pitch.DSPOptions{Shifter: "granular"}); err == nil {
		t.Fatal("expected error for unknown shifter")
	}
	for _, name := range []string{pitch.ShifterWSOLA, pitch.ShifterSpectral} {
		capability, err := pitch.NewDSPCapability(pitch.DSPOptions{Shifter: name})
		if err != nil {
			t.Fatalf("%s: NewDSPCapability returned error: %v", name, err)
		}
		if !capability.Available() || capability.Name() != "algo-dsp/"+name {
			t.Fatalf("%s: unexpected capability %q", name, capability.Name())
		}
		in := sine(440, testRate, 8192, 0.5)
		out, err := capability.Shift(in, testRate, 3)
		if err != nil {
			t.Fatalf("%s: Shift returned error: %v", name, err)
		}
		if len(out) != len(in) {
			t.Fatalf("%s: length %d != %d", name, len(out), len(in))
		}
		same, err := capability.Shift(in, testRate, 0)
		if err != nil {
			t.Fatalf("%s: Shift(0) returned error: %v", name, err)
		}
		for i := range in {
			if same[i] != in[i] {
				t.Fatalf("%s: zero shift changed sample %d", name, i)
			}
		}
		if _, err := capability.Shift(in, testRate, 30); err == nil {
			t.Fatalf("%s: expected error beyond 24 semitones", name)
		}
		if _, err := capability.Shift(in, testRate, math.Inf(1)); err == nil {
			t.Fatalf("%s: expected error for infinite shift", name)
		}
	}
}
