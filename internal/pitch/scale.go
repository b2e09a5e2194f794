package pitch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	majorSteps = []int{0, 2, 4, 5, 7, 9, 11, 12}
	minorSteps = []int{0, 2, 3, 5, 7, 8, 10, 12}
)

var pitchClasses = map[string]int{
	"c": 0, "d": 2, "e": 4, "f": 5, "g": 7, "a": 9, "b": 11,
}

// Scale is an ascending set of target frequencies for correction.
type Scale struct {
	Name  string
	Tones []float64
}

// CMajor is C4 through C5 inclusive.
func CMajor() Scale {
	s, _ := ParseScale("C major")
	return s
}

// ParseScale accepts "<root> <major|minor>" with the separator being a space,
// dash, or underscore, e.g. "C major", "f#-minor". Tones run from the root in
// octave 4 to the root an octave above.
func ParseScale(name string) (Scale, error) {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(name)), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	if len(fields) != 2 {
		return Scale{}, fmt.Errorf("scale %q: want \"<root> major|minor\"", name)
	}
	var steps []int
	switch fields[1] {
	case "major", "maj":
		steps = majorSteps
	case "minor", "min":
		steps = minorSteps
	default:
		return Scale{}, fmt.Errorf("scale %q: unknown mode %q", name, fields[1])
	}
	root, err := noteNumber(fields[0] + "4")
	if err != nil {
		return Scale{}, fmt.Errorf("scale %q: %w", name, err)
	}
	tones := make([]float64, len(steps))
	for i, step := range steps {
		tones[i] = midiToHz(root + step)
	}
	return Scale{Name: strings.TrimSpace(name), Tones: tones}, nil
}

// Nearest returns the scale tone closest to freq in hertz. Ties go to the
// lower tone.
func (s Scale) Nearest(freq float64) float64 {
	if len(s.Tones) == 0 {
		return freq
	}
	best := s.Tones[0]
	for _, tone := range s.Tones[1:] {
		if math.Abs(tone-freq) < math.Abs(best-freq) {
			best = tone
		}
	}
	return best
}

// NoteToHz converts scientific pitch notation ("A4", "C#3", "Bb5") to hertz
// in twelve-tone equal temperament with A4 = 440 Hz.
func NoteToHz(note string) (float64, error) {
	n, err := noteNumber(strings.ToLower(strings.TrimSpace(note)))
	if err != nil {
		return 0, err
	}
	return midiToHz(n), nil
}

func noteNumber(note string) (int, error) {
	if note == "" {
		return 0, errors.New("empty note")
	}
	pc, ok := pitchClasses[note[:1]]
	if !ok {
		return 0, fmt.Errorf("note %q: unknown pitch class", note)
	}
	rest := note[1:]
	for len(rest) > 0 && (rest[0] == '#' || rest[0] == 'b') {
		if rest[0] == '#' {
			pc++
		} else {
			pc--
		}
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("note %q: invalid octave", note)
	}
	return (octave+1)*12 + pc, nil
}

func midiToHz(n int) float64 {
	return 440 * math.Pow(2, float64(n-69)/12)
}
