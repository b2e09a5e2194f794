// Package daemonrun assembles the daemon process: logger, external tool
// clients, pitch engine, orchestrator, HTTP API, and IPC socket.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"wavedeck/internal/config"
	"wavedeck/internal/daemon"
	"wavedeck/internal/deps"
	"wavedeck/internal/ipc"
	"wavedeck/internal/jobs"
	"wavedeck/internal/library"
	"wavedeck/internal/logging"
	"wavedeck/internal/notifications"
	"wavedeck/internal/pitch"
	"wavedeck/internal/preflight"
	"wavedeck/internal/services/demucs"
	"wavedeck/internal/services/ffmpeg"
	"wavedeck/internal/services/ytdlp"
	"wavedeck/internal/staging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the wavedeck daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logPreflight(logger, preflight.RunAll(cfg))

	engine, err := BuildEngine(cfg, logger)
	if err != nil {
		return err
	}
	tools, err := BuildTools(cfg)
	if err != nil {
		return err
	}
	lib := library.New(cfg.Paths.OutputRoot, cfg.RecordingsDir())
	runners, err := jobs.NewRunners(cfg, tools, lib, engine)
	if err != nil {
		return err
	}
	orchestrator := jobs.NewOrchestrator(runners, logger)
	orchestrator.OnComplete(notifications.Hook(signalCtx, notifications.New(cfg), logger))

	d, err := daemon.New(cfg, orchestrator, lib, engine, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	defer d.Stop()

	// The instance lock is held, so nothing left in the staging area
	// belongs to a live job.
	staging.CleanStale(signalCtx, cfg.TempDir(), 0, logger)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("wavedeck daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// BuildEngine binds the pitch engine to the configured backend, or to an
// unavailable capability when pitch processing is disabled.
func BuildEngine(cfg *config.Config, logger *slog.Logger) (*pitch.Engine, error) {
	var capability pitch.Capability
	if cfg.Pitch.Enabled {
		dsp, err := pitch.NewDSPCapability(pitch.DSPOptions{Shifter: cfg.Pitch.Shifter})
		if err != nil {
			return nil, fmt.Errorf("pitch capability: %w", err)
		}
		capability = dsp
	} else {
		capability = pitch.Unavailable("disabled in config")
	}
	engine, err := pitch.NewEngine(capability, pitch.Options{
		FrameSize: cfg.Pitch.FrameSize,
		HopSize:   cfg.Pitch.HopSize,
		Workers:   cfg.Pitch.Workers,
		Tail:      cfg.Pitch.Tail,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("pitch engine: %w", err)
	}
	return engine, nil
}

// BuildTools constructs the external tool clients from config.
func BuildTools(cfg *config.Config) (jobs.Tools, error) {
	fetcher, err := ytdlp.New(cfg.Acquire.YtDlpBinary, cfg.Acquire.TimeoutSeconds)
	if err != nil {
		return jobs.Tools{}, fmt.Errorf("yt-dlp client: %w", err)
	}
	converter, err := ffmpeg.New(cfg.Transcode.FFmpegBinary, ffmpeg.Settings{
		Bitrate:    cfg.Transcode.Bitrate,
		SampleRate: cfg.Transcode.SampleRate,
		Channels:   cfg.Transcode.Channels,
	})
	if err != nil {
		return jobs.Tools{}, fmt.Errorf("ffmpeg client: %w", err)
	}
	separator, err := demucs.New(cfg.Separation.DemucsBinary, cfg.Separation.TimeoutSeconds,
		demucs.WithDevice(deps.ResolveSeparationDevice(cfg.Separation.Device)))
	if err != nil {
		return jobs.Tools{}, fmt.Errorf("demucs client: %w", err)
	}
	return jobs.Tools{
		Fetcher:   fetcher,
		Converter: converter,
		Decoder:   converter,
		Separator: separator,
	}, nil
}

func logPreflight(logger *slog.Logger, results []preflight.Result) {
	for _, result := range results {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "jobs that need this will fail"),
			logging.String(logging.FieldErrorHint, "run wavedeck deps for details"),
		)
	}
}
