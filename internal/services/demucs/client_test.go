package demucs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"wavedeck/internal/services"
	"wavedeck/internal/services/demucs"
)

type stemExecutor struct {
	args  []string
	stems map[string]string // relative path -> content
	err   error
}

func (s *stemExecutor) Run(_ context.Context, _ string, args []string) (services.CommandResult, error) {
	s.args = append([]string(nil), args...)
	if s.err != nil {
		return services.CommandResult{ExitCode: 1}, s.err
	}
	outDir := args[slices.Index(args, "-o")+1]
	for rel, body := range s.stems {
		path := filepath.Join(outDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return services.CommandResult{}, err
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return services.CommandResult{}, err
		}
	}
	return services.CommandResult{}, nil
}

func sourceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestSeparateCollectsStems(t *testing.T) {
	exec := &stemExecutor{stems: map[string]string{
		"htdemucs/song/vocals.wav": "v",
		"htdemucs/song/drums.wav":  "d",
		"htdemucs/song/bass.wav":   "b",
		"htdemucs/song/other.wav":  "o",
		"htdemucs/song/notes.txt":  "ignored",
	}}
	client, err := demucs.New("demucs", 0, demucs.WithExecutor(exec), demucs.WithDevice("cuda"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	outDir := filepath.Join(t.TempDir(), "stems", "abcd1234")

	stems, err := client.Separate(context.Background(), sourceFile(t), outDir, "htdemucs")
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if len(stems) != 4 {
		t.Fatalf("expected 4 stems, got %v", stems)
	}
	if stems["vocals"] != filepath.Join(outDir, "htdemucs", "song", "vocals.wav") {
		t.Fatalf("unexpected vocals path %q", stems["vocals"])
	}
	if !slices.Contains(exec.args, "--device=cuda") {
		t.Fatalf("expected device flag in %v", exec.args)
	}
	if exec.args[0] != "-n" || exec.args[1] != "htdemucs" {
		t.Fatalf("expected model flag first, got %v", exec.args)
	}
}

func TestSeparateRejectsDuplicateStemNames(t *testing.T) {
	exec := &stemExecutor{stems: map[string]string{
		"htdemucs/a/vocals.wav": "1",
		"htdemucs/b/vocals.wav": "2",
	}}
	client, _ := demucs.New("demucs", 0, demucs.WithExecutor(exec))

	_, err := client.Separate(context.Background(), sourceFile(t), t.TempDir(), "htdemucs")
	if !errors.Is(err, services.ErrToolExecution) {
		t.Fatalf("expected tool execution failure, got %v", err)
	}
}

func TestSeparateSameFileWithAnotherModel(t *testing.T) {
	input := sourceFile(t)
	outDir := filepath.Join(t.TempDir(), "stems", demucs.ShortKey(input))

	first := &stemExecutor{stems: map[string]string{
		"htdemucs/song/vocals.wav": "v",
		"htdemucs/song/drums.wav":  "d",
	}}
	client, _ := demucs.New("demucs", 0, demucs.WithExecutor(first))
	if _, err := client.Separate(context.Background(), input, outDir, "htdemucs"); err != nil {
		t.Fatalf("first Separate: %v", err)
	}

	second := &stemExecutor{stems: map[string]string{
		"mdx_extra/song/vocals.wav": "v",
		"mdx_extra/song/drums.wav":  "d",
	}}
	client, _ = demucs.New("demucs", 0, demucs.WithExecutor(second))
	stems, err := client.Separate(context.Background(), input, outDir, "mdx_extra")
	if err != nil {
		t.Fatalf("second Separate: %v", err)
	}
	if len(stems) != 2 {
		t.Fatalf("expected 2 stems, got %v", stems)
	}
	if stems["drums"] != filepath.Join(outDir, "mdx_extra", "song", "drums.wav") {
		t.Fatalf("expected stems from the second model, got %q", stems["drums"])
	}
}

func TestSeparateFailures(t *testing.T) {
	client, _ := demucs.New("demucs", 0, demucs.WithExecutor(&stemExecutor{err: errors.New("exit 1")}))
	if _, err := client.Separate(context.Background(), sourceFile(t), t.TempDir(), "htdemucs"); !errors.Is(err, services.ErrToolExecution) {
		t.Fatalf("expected tool execution failure, got %v", err)
	}

	empty, _ := demucs.New("demucs", 0, demucs.WithExecutor(&stemExecutor{}))
	if _, err := empty.Separate(context.Background(), sourceFile(t), t.TempDir(), "htdemucs"); !errors.Is(err, services.ErrToolExecution) {
		t.Fatalf("expected failure when no stems are produced, got %v", err)
	}

	if _, err := empty.Separate(context.Background(), "/nonexistent/song.mp3", t.TempDir(), "htdemucs"); !errors.Is(err, services.ErrInputNotFound) {
		t.Fatalf("expected input not found, got %v", err)
	}
}

func TestKeys(t *testing.T) {
	short := demucs.ShortKey("/music/song.mp3")
	if len(short) != 8 {
		t.Fatalf("expected 8 hex characters, got %q", short)
	}
	if short != demucs.ShortKey("/music/song.mp3") {
		t.Fatal("short key must be deterministic")
	}
	a := demucs.VersionedKey("/music/song.mp3", "htdemucs")
	b := demucs.VersionedKey("/music/song.mp3", "mdx_extra")
	if len(a) != 16 || a == b {
		t.Fatalf("versioned keys should be 16 chars and differ per model: %q %q", a, b)
	}
}
