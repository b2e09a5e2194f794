package daemonrun

import (
	"testing"

	"wavedeck/internal/testsupport"
)

func TestBuildEngineFollowsConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine, err := BuildEngine(cfg, nil)
	if err != nil {
		t.Fatalf("BuildEngine: %v", err)
	}
	if !engine.Available() {
		t.Fatalf("expected available engine, got %s", engine.Capability().Name())
	}

	cfg.Pitch.Enabled = false
	engine, err = BuildEngine(cfg, nil)
	if err != nil {
		t.Fatalf("BuildEngine: %v", err)
	}
	if engine.Available() {
		t.Fatal("expected disabled engine to be unavailable")
	}
}

func TestBuildToolsWiresEveryCollaborator(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tools, err := BuildTools(cfg)
	if err != nil {
		t.Fatalf("BuildTools: %v", err)
	}
	if tools.Fetcher == nil || tools.Converter == nil || tools.Decoder == nil || tools.Separator == nil {
		t.Fatalf("expected all tools wired: %+v", tools)
	}

	cfg.Transcode.FFmpegBinary = " "
	if _, err := BuildTools(cfg); err == nil {
		t.Fatal("expected error for empty ffmpeg binary")
	}
}
