package pitch_test

import (
	"math"
	"testing"

	"wavedeck/internal/pitch"
)

func TestNoteToHz(t *testing.T) {
	cases := map[string]float64{
		"A4":  440,
		"C4":  261.6256,
		"C#4": 277.1826,
		"Db4": 277.1826,
		"C5":  523.2511,
		"A3":  220,
	}
	for note, want := range cases {
		got, err := pitch.NoteToHz(note)
		if err != nil {
			t.Fatalf("NoteToHz(%q) returned error: %v", note, err)
		}
		if math.Abs(got-want) > 0.001 {
			t.Fatalf("NoteToHz(%q) = %.4f, want %.4f", note, got, want)
		}
	}
	for _, bad := range []string{"", "H4", "C", "Cx"} {
		if _, err := pitch.NoteToHz(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseScale(t *testing.T) {
	major := pitch.CMajor()
	if len(major.Tones) != 8 {
		t.Fatalf("expected 8 tones in C major, got %d", len(major.Tones))
	}
	if math.Abs(major.Tones[0]-261.6256) > 0.001 || math.Abs(major.Tones[7]-523.2511) > 0.001 {
		t.Fatalf("unexpected C major bounds: %v", major.Tones)
	}

	minor, err := pitch.ParseScale("a-minor")
	if err != nil {
		t.Fatalf("ParseScale returned error: %v", err)
	}
	if minor.Tones[0] != 440 || minor.Tones[7] != 880 {
		t.Fatalf("unexpected A minor bounds: %v", minor.Tones)
	}
	c4, _ := pitch.NoteToHz("C5")
	if math.Abs(minor.Tones[2]-c4) > 0.001 {
		t.Fatalf("expected minor third of A to be C5, got %.3f", minor.Tones[2])
	}

	for _, bad := range []string{"", "C", "C lydian", "Q major"} {
		if _, err := pitch.ParseScale(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestScaleNearest(t *testing.T) {
	scale := pitch.CMajor()
	cases := []struct {
		freq float64
		want float64
	}{
		{freq: 450, want: 440},
		{freq: 440, want: 440},
		{freq: 100, want: scale.Tones[0]},
		{freq: 1000, want: scale.Tones[7]},
		{freq: 335, want: scale.Tones[2]},
	}
	for _, tc := range cases {
		if got := scale.Nearest(tc.freq); got != tc.want {
			t.Fatalf("Nearest(%.1f) = %.3f, want %.3f", tc.freq, got, tc.want)
		}
	}
}
