package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wavedeck/internal/config"
	"wavedeck/internal/logging"
	"wavedeck/internal/services"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon ready", logging.String("bind", "127.0.0.1:7420"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "wavedeck.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", content, err)
	}
	if entry["msg"] != "daemon ready" || entry["level"] != "info" || entry["bind"] != "127.0.0.1:7420" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
}

func TestConsoleLoggerFormatsSubjectAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobKind(services.WithJobID(context.Background(), "0123456789abcdef"), "pitch")
	jobLogger := logging.WithContext(ctx, logging.NewComponentLogger(logger, "jobs"))
	jobLogger.Info("job completed", logging.String("output", "/tmp/out.wav"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, fragment := range []string{"INFO [jobs] Pitch · Job 01234567 – job completed", "    - output: /tmp/out.wav"} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in %q", fragment, text)
		}
	}
	if strings.Contains(text, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", text)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("frame analysed")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "capability missing", "pitch_capability_unavailable", logging.String(logging.FieldImpact, "pitch jobs disabled"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldEventType] != "pitch_capability_unavailable" {
		t.Fatalf("unexpected event type: %v", entry)
	}
	if entry[logging.FieldImpact] != "pitch jobs disabled" {
		t.Fatalf("expected caller impact preserved, got %v", entry[logging.FieldImpact])
	}
	if entry[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error hint")
	}
}

func TestTeeLoggerWritesToAllHandlers(t *testing.T) {
	var first, second bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&first, nil))
	logger := logging.TeeLogger(base, slog.NewJSONHandler(&second, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("info only")
	logger.Warn("both")

	if strings.Count(first.String(), "\n") != 2 {
		t.Fatalf("expected two lines in base handler, got %q", first.String())
	}
	if strings.Count(second.String(), "\n") != 1 || !strings.Contains(second.String(), "both") {
		t.Fatalf("expected only the warning in the second handler, got %q", second.String())
	}
}

func TestFormatSubject(t *testing.T) {
	if got := logging.FormatSubject("acquire", ""); got != "Acquire" {
		t.Fatalf("FormatSubject = %q", got)
	}
	if got := logging.FormatSubject("", "abc"); got != "Job abc" {
		t.Fatalf("FormatSubject = %q", got)
	}
	if got := logging.FormatSubject("", ""); got != "" {
		t.Fatalf("FormatSubject = %q", got)
	}
}
