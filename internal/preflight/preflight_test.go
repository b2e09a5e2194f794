package preflight

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wavedeck/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckPitch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckPitch(cfg); !result.Passed {
		t.Fatalf("expected pitch self-test to pass, got: %s", result.Detail)
	}

	cfg.Pitch.Enabled = false
	if result := CheckPitch(cfg); !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("expected disabled pass, got: %+v", result)
	}

	cfg.Pitch.Enabled = true
	cfg.Pitch.Shifter = "vocoder"
	if result := CheckPitch(cfg); result.Passed {
		t.Fatal("expected failure for unknown shifter")
	}
}

func TestCheckDaemonSocket(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckDaemonSocket(cfg.SocketPath()); result.Passed {
		t.Fatal("expected no daemon before listening")
	}

	listener, err := net.Listen("unix", cfg.SocketPath())
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	defer listener.Close()
	go func() {
		if conn, err := listener.Accept(); err == nil {
			conn.Close()
		}
	}()
	if result := CheckDaemonSocket(cfg.SocketPath()); !result.Passed {
		t.Fatalf("expected daemon to be detected, got: %s", result.Detail)
	}
}

func TestRunAllReportsMissingTools(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Acquire.YtDlpBinary = "wavedeck-missing-ytdlp"
	cfg.Separation.DemucsBinary = "wavedeck-missing-demucs"

	results := RunAll(cfg)
	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	if !byName["Output root"].Passed || !byName["State directory"].Passed {
		t.Fatalf("expected directories to pass: %+v", results)
	}
	if byName["yt-dlp"].Passed {
		t.Fatal("expected yt-dlp to fail")
	}
	if !strings.HasSuffix(byName["Demucs"].Detail, "(optional)") {
		t.Fatalf("expected demucs to be marked optional: %q", byName["Demucs"].Detail)
	}
	if len(Failed(results)) < 2 {
		t.Fatalf("expected at least two failures, got %+v", Failed(results))
	}
}
