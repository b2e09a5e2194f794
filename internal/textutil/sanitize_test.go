package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"":                       "",
		"  Song Title  ":         "Song Title",
		"AC/DC: Back in Black":   "AC-DC- Back in Black",
		"What? \"Live\" <2020>|": "What Live 2020",
		"Beyoncé - Déjà Vu":      "Beyonce - Deja Vu",
		"..hidden..":             "hidden",
		"tab\there":              "tabhere",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	cases := map[string]string{
		"":            "unknown",
		"Vocals":      "vocals",
		"no vocals!":  "no_vocals",
		"__--__":      "unknown",
		"htdemucs_ft": "htdemucs_ft",
	}
	for in, want := range cases {
		if got := SanitizeToken(in); got != want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"/stems/abc/no_vocals.wav": "No Vocals",
		"drums":                    "Drums",
		"":                         "Unknown",
	}
	for in, want := range cases {
		if got := DisplayName(in); got != want {
			t.Fatalf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}
