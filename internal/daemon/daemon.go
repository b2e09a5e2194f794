package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"wavedeck/internal/config"
	"wavedeck/internal/deps"
	"wavedeck/internal/jobs"
	"wavedeck/internal/library"
	"wavedeck/internal/logging"
	"wavedeck/internal/pitch"
)

const drainTimeout = 30 * time.Second

// Daemon binds the orchestrator and library to the API and enforces
// single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	orchestrator *jobs.Orchestrator
	library      *library.Library
	engine       *pitch.Engine

	lockPath string
	pidPath  string
	lock     *flock.Flock
	api      *apiServer

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	Job          jobs.Snapshot `json:"job"`
	Pitch        PitchStatus   `json:"pitch"`
	Runners      []jobs.Health `json:"runners"`
	Dependencies []deps.Status `json:"dependencies"`
	OutputRoot   string        `json:"output_root"`
	LockFilePath string        `json:"lock_file"`
	APIAddress   string        `json:"api_address,omitempty"`
	LastAcquired string        `json:"last_acquired,omitempty"`
}

// PitchStatus reports the bound pitch capability.
type PitchStatus struct {
	Available  bool   `json:"available"`
	Capability string `json:"capability"`
}

// New constructs a daemon around already wired collaborators.
func New(cfg *config.Config, orchestrator *jobs.Orchestrator, lib *library.Library, engine *pitch.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || orchestrator == nil || lib == nil {
		return nil, errors.New("daemon requires config, orchestrator, and library")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		orchestrator: orchestrator,
		library:      lib,
		engine:       engine,
		lockPath:     cfg.LockPath(),
		pidPath:      cfg.PIDPath(),
		lock:         flock.New(cfg.LockPath()),
	}
	orchestrator.OnComplete(d.recordCompletion)
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, writes the pid file, and starts the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another wavedeck daemon instance is already running")
	}
	if err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("write pid file: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = os.Remove(d.pidPath)
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)

	if d.engine == nil || !d.engine.Available() {
		name := "none"
		if d.engine != nil {
			name = d.engine.Capability().Name()
		}
		logging.WarnWithContext(d.logger, "pitch processing unavailable", "pitch_unavailable",
			logging.String("capability", name),
			logging.String(logging.FieldImpact, "pitch jobs will fail with capability_unavailable"),
			logging.String(logging.FieldErrorHint, "set pitch.enabled = true and check pitch.shifter"),
		)
	}
	d.logger.Info("wavedeck daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.String("output_root", d.cfg.Paths.OutputRoot),
	)
	return nil
}

// Stop waits for the running job, stops the API, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := d.orchestrator.Drain(drainCtx); err != nil {
		logging.WarnWithContext(d.logger, "job still running at shutdown", "daemon_drain_timeout",
			logging.Duration("waited", drainTimeout),
			logging.String(logging.FieldImpact, "the running job's output may be incomplete"),
			logging.String(logging.FieldErrorHint, "resubmit the job after restart"),
		)
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := os.Remove(d.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("failed to remove pid file", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("wavedeck daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Submit forwards a job request to the orchestrator.
func (d *Daemon) Submit(ctx context.Context, req jobs.Request) (jobs.Handle, error) {
	return d.orchestrator.Submit(ctx, req)
}

// Poll consumes the orchestrator's finished result, if any.
func (d *Daemon) Poll() jobs.Result {
	return d.orchestrator.Poll()
}

// Wait blocks until the running job finishes and returns its result without
// consuming it.
func (d *Daemon) Wait(ctx context.Context) (jobs.Result, error) {
	return d.orchestrator.Wait(ctx)
}

// Snapshot reports the job slot without consuming a finished result.
func (d *Daemon) Snapshot() jobs.Snapshot {
	return d.orchestrator.Snapshot()
}

// Stems returns the source and stems of the last successful separation.
func (d *Daemon) Stems() (string, jobs.StemMap) {
	source, stems := d.library.Stems()
	return source, jobs.StemMap(stems)
}

// SaveRecording stores an uploaded take.
func (d *Daemon) SaveRecording(r io.Reader, filename string) (string, error) {
	path, err := d.library.SaveRecording(r, filename)
	if err != nil {
		return "", err
	}
	d.logger.Info("recording saved", logging.String(logging.FieldEventType, "recording_saved"), logging.String("path", path))
	return path, nil
}

// SaveStem copies a current stem into the output root.
func (d *Daemon) SaveStem(name string) (string, error) {
	path, err := d.library.SaveStem(name)
	if err != nil {
		return "", err
	}
	d.logger.Info("stem saved", logging.String(logging.FieldEventType, "stem_saved"), logging.String("stem", name), logging.String("path", path))
	return path, nil
}

// ResolveFile maps a requested path to a servable file under the output root.
func (d *Daemon) ResolveFile(path string) (string, error) {
	return d.library.Resolve(path)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Job:          d.orchestrator.Snapshot(),
		Runners:      d.orchestrator.Health(ctx),
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
		OutputRoot:   d.cfg.Paths.OutputRoot,
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
		LastAcquired: d.library.LastAcquired(),
	}
	if status.Running {
		status.Uptime = time.Since(d.startedAt).Truncate(time.Second)
	}
	if d.engine != nil {
		status.Pitch = PitchStatus{Available: d.engine.Available(), Capability: d.engine.Capability().Name()}
	} else {
		status.Pitch = PitchStatus{Capability: "none"}
	}
	return status
}

func (d *Daemon) recordCompletion(handle jobs.Handle, result jobs.Result) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_recorded"),
		logging.String(logging.FieldJobID, handle.ID),
		logging.String(logging.FieldJobKind, string(handle.Kind)),
		logging.String("status", string(result.Status)),
	}
	if result.Output != nil && strings.TrimSpace(result.Output.File) != "" {
		attrs = append(attrs, logging.String("output", result.Output.File))
	}
	d.logger.Debug("job recorded", logging.Args(attrs...)...)
}
