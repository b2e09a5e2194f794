package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"wavedeck/internal/logging"
	"wavedeck/internal/services"
)

// Runner executes one kind of job.
type Runner interface {
	// Validate checks request shape. It runs before the busy check and must
	// not touch the filesystem or external tools.
	Validate(Params) error
	Run(ctx context.Context, params Params) (Output, error)
	HealthCheck(ctx context.Context) Health
}

// CompletionHook observes finished jobs before their result becomes visible
// to Poll.
type CompletionHook func(Handle, Result)

// Orchestrator is the single-flight job slot.
type Orchestrator struct {
	runners map[Kind]Runner
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	status    Status
	current   *Handle
	startedAt time.Time
	result    *Result
	done      chan struct{}
	hooks     []CompletionHook

	wg sync.WaitGroup
}

// NewOrchestrator builds an idle orchestrator dispatching to runners.
func NewOrchestrator(runners map[Kind]Runner, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	registered := make(map[Kind]Runner, len(runners))
	for kind, runner := range runners {
		if runner != nil {
			registered[kind] = runner
		}
	}
	return &Orchestrator{
		runners: registered,
		logger:  logging.NewComponentLogger(logger, "jobs"),
		now:     time.Now,
		status:  StatusIdle,
	}
}

// OnComplete registers a hook called for every finished job.
func (o *Orchestrator) OnComplete(hook CompletionHook) {
	if hook == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hooks = append(o.hooks, hook)
}

// Submit validates req and, when the slot is free, starts the job and returns
// its handle. It returns services.ErrBusy while a job is running or a finished
// result is waiting to be polled. The job runs detached from ctx's
// cancellation but keeps its values.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (Handle, error) {
	kind, err := ParseKind(string(req.Kind))
	if err != nil {
		return Handle{}, err
	}
	runner, ok := o.runners[kind]
	if !ok {
		return Handle{}, services.Wrap(services.ErrCapabilityUnavailable, "jobs", "submit",
			fmt.Sprintf("no runner registered for %s jobs", kind), nil)
	}
	if err := runner.Validate(req.Params); err != nil {
		return Handle{}, err
	}

	o.mu.Lock()
	if o.status != StatusIdle {
		busyWith := o.status
		o.mu.Unlock()
		return Handle{}, services.Wrap(services.ErrBusy, "jobs", "submit",
			fmt.Sprintf("orchestrator is %s", busyWith), nil)
	}
	handle := Handle{
		ID:          uuid.NewString(),
		Kind:        kind,
		SubmittedAt: o.now().UTC(),
	}
	done := make(chan struct{})
	o.status = StatusRunning
	o.current = &handle
	o.startedAt = o.now()
	o.result = nil
	o.done = done
	o.wg.Add(1)
	o.mu.Unlock()

	jobCtx := services.WithJobID(context.WithoutCancel(ctx), handle.ID)
	jobCtx = services.WithJobKind(jobCtx, string(handle.Kind))
	go o.execute(jobCtx, handle, runner, req.Params, done)
	return handle, nil
}

// Poll returns the orchestrator state without blocking. A terminal result is
// returned exactly once; the orchestrator is idle afterwards.
func (o *Orchestrator) Poll() Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.status {
	case StatusRunning:
		handle := *o.current
		return Result{Status: StatusRunning, Job: &handle}
	case StatusSucceeded, StatusFailed:
		result := *o.result
		o.status = StatusIdle
		o.current = nil
		o.result = nil
		o.done = nil
		return result
	default:
		return Result{Status: StatusIdle}
	}
}

// Snapshot reports the current state without consuming a finished result.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := Snapshot{Status: o.status, Pending: o.status.Terminal()}
	if o.current != nil {
		handle := *o.current
		snap.Job = &handle
	}
	if o.status == StatusRunning {
		snap.Elapsed = o.now().Sub(o.startedAt)
	}
	return snap
}

// Wait blocks until the current job finishes or ctx is done and returns the
// terminal result without consuming it. An idle orchestrator returns
// immediately.
func (o *Orchestrator) Wait(ctx context.Context) (Result, error) {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return Result{Status: StatusIdle}, nil
	}
	select {
	case <-done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.result == nil {
		// Consumed by a concurrent Poll.
		return Result{Status: StatusIdle}, nil
	}
	return *o.result, nil
}

// Drain blocks until no job goroutine is executing or ctx is done.
func (o *Orchestrator) Drain(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health reports every registered runner's readiness in kind order.
func (o *Orchestrator) Health(ctx context.Context) []Health {
	health := make([]Health, 0, len(o.runners))
	for _, kind := range Kinds() {
		runner, ok := o.runners[kind]
		if !ok {
			health = append(health, Unhealthy(kind, "not configured"))
			continue
		}
		health = append(health, runner.HealthCheck(ctx))
	}
	return health
}

func (o *Orchestrator) execute(ctx context.Context, handle Handle, runner Runner, params Params, done chan struct{}) {
	defer o.wg.Done()

	logger := logging.WithContext(ctx, o.logger)
	start := o.now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("file", params.File),
		logging.String("source", params.Source),
	)

	output, err := runSafely(ctx, logger, runner, params)
	result := Result{Job: &handle, Duration: o.now().Sub(start)}
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		result.ErrorKind = services.Classify(err)
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.String(logging.FieldErrorKind, string(result.ErrorKind)),
			logging.String(logging.FieldErrorHint, errorHint(result.ErrorKind)),
			logging.Duration("duration", result.Duration),
			logging.Error(err),
		)
	} else {
		result.Status = StatusSucceeded
		result.Output = &output
		logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.String("output", output.File),
			logging.Int("stems", len(output.Stems)),
			logging.Duration("duration", result.Duration),
		)
	}

	o.mu.Lock()
	hooks := append([]CompletionHook(nil), o.hooks...)
	o.mu.Unlock()
	for _, hook := range hooks {
		o.callHook(logger, hook, handle, result)
	}

	o.mu.Lock()
	o.status = result.Status
	o.result = &result
	o.mu.Unlock()
	close(done)
}

func (o *Orchestrator) callHook(logger *slog.Logger, hook CompletionHook, handle Handle, result Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("completion hook panicked", logging.Any("panic", r))
		}
	}()
	hook(handle, result)
}

func runSafely(ctx context.Context, logger *slog.Logger, runner Runner, params Params) (output Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("runner panic", logging.String("stack", string(debug.Stack())))
			err = services.Wrap(services.ErrProcessingFault, "jobs", "run", fmt.Sprintf("runner panicked: %v", r), nil)
		}
	}()
	return runner.Run(ctx, params)
}

func errorHint(kind services.Kind) string {
	switch kind {
	case services.KindInputNotFound:
		return "check the file path and resubmit"
	case services.KindSourceUnavailable:
		return "check the URL and network access"
	case services.KindToolExecution:
		return "inspect the tool's stderr in the error message"
	case services.KindCapabilityUnavailable:
		return "install the missing component; run wavedeck deps"
	case services.KindProcessingFault:
		return "the input may be silent, too short, or corrupt"
	case services.KindValidation:
		return "fix the request parameters"
	default:
		return "see error detail"
	}
}
