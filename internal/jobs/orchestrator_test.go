package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wavedeck/internal/jobs"
	"wavedeck/internal/services"
)

func waitResult(t *testing.T, o *jobs.Orchestrator) jobs.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	result, err := o.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	return result
}

func TestSubmitIsSingleFlight(t *testing.T) {
	runner := newStubRunner()
	runner.output = jobs.Output{File: "/out/song.mp3"}
	o := jobs.NewOrchestrator(map[jobs.Kind]jobs.Runner{jobs.KindAcquire: runner}, nil)

	const submitters = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []jobs.Handle
		busy     int
	)
	start := make(chan struct{})
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			handle, err := o.Submit(context.Background(), jobs.Request{Kind: jobs.KindAcquire})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted = append(accepted, handle)
			case errors.Is(err, services.ErrBusy):
				busy++
			default:
				t.Errorf("unexpected submit error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(accepted) != 1 || busy != submitters-1 {
		t.Fatalf("expected 1 accepted and %d busy, got %d and %d", submitters-1, len(accepted), busy)
	}
	if accepted[0].ID == "" || accepted[0].Kind != jobs.KindAcquire {
		t.Fatalf("unexpected handle: %+v", accepted[0])
	}
	if got := o.Poll(); got.Status != jobs.StatusRunning {
		t.Fatalf("expected running, got %s", got.Status)
	}

	close(runner.release)
	waitResult(t, o)
	if runner.callCount() != 1 {
		t.Fatalf("expected exactly one run, got %d", runner.callCount())
	}

	result := o.Poll()
	if result.Status != jobs.StatusSucceeded || result.Output == nil || result.Output.File != "/out/song.mp3" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Job == nil || result.Job.ID != accepted[0].ID {
		t.Fatalf("result does not carry the accepted handle: %+v", result.Job)
	}
	if again := o.Poll(); again.Status != jobs.StatusIdle {
		t.Fatalf("expected idle after consumption, got %s", again.Status)
	}
}

func TestFinishedResultBlocksUntilPolled(t *testing.T) {
	runner := newStubRunner()
	close(runner.release)
	o := jobs.NewOrchestrator(map[jobs.Kind]jobs.Runner{jobs.KindTranscode: runner}, nil)

	if _, err := o.Submit(context.Background(), jobs.Request{Kind: jobs.KindTranscode}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	waitResult(t, o)

	snap := o.Snapshot()
	if snap.Status != jobs.StatusSucceeded || !snap.Pending {
		t.Fatalf("expected pending succeeded snapshot, got %+v", snap)
	}
	if _, err := o.Submit(context.Background(), jobs.Request{Kind: jobs.KindTranscode}); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy while result is unconsumed, got %v", err)
	}
	if got := o.Snapshot(); got.Status != jobs.StatusSucceeded {
		t.Fatalf("Snapshot must not consume, got %s", got.Status)
	}

	o.Poll()
	if _, err := o.Submit(context.Background(), jobs.Request{Kind: jobs.KindTranscode}); err != nil {
		t.Fatalf("expected accept after poll, got %v", err)
	}
	waitResult(t, o)
}

func TestFailuresAreClassified(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		panicVal any
		wantKind services.Kind
	}{
		{
			name:     "tool",
			err:      services.Wrap(services.ErrToolExecution, "demucs", "separate", "song.mp3", errors.New("exit status 1")),
			wantKind: services.KindToolExecution,
		},
		{name: "unmarked", err: errors.New("boom"), wantKind: services.KindInternal},
		{name: "panic", panicVal: "index out of range", wantKind: services.KindProcessingFault},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := newStubRunner()
			runner.err = tc.err
			runner.panicValue = tc.panicVal
			close(runner.release)
			o := jobs.NewOrchestrator(map[jobs.Kind]jobs.Runner{jobs.KindSeparate: runner}, nil)
			if _, err := o.Submit(context.Background(), jobs.Request{Kind: jobs.KindSeparate}); err != nil {
				t.Fatalf("Submit returned error: %v", err)
			}
			waitResult(t, o)
			result := o.Poll()
			if result.Status != jobs.StatusFailed {
				t.Fatalf("expected failed, got %s", result.Status)
			}
			if result.ErrorKind != tc.wantKind {
				t.Fatalf("expected kind %s, got %s", tc.wantKind, result.ErrorKind)
			}
			if tc.err != nil && result.Error != tc.err.Error() {
				t.Fatalf("expected verbatim message %q, got %q", tc.err.Error(), result.Error)
			}
			if result.Output != nil {
				t.Fatal("failed result must not carry output")
			}
		})
	}
}

func TestSubmitValidatesBeforeBusyCheck(t *testing.T) {
	runner := newStubRunner()
	defer close(runner.release)
	o := jobs.NewOrchestrator(map[jobs.Kind]jobs.Runner{jobs.KindAcquire: runner}, nil)
	if _, err := o.Submit(context.Background(), jobs.Request{Kind: jobs.KindAcquire}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if _, err := o.Submit(context.Background(), jobs.Request{Kind: "encode"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown kind, got %v", err)
	}
	runner.validateErr = services.Wrap(services.ErrValidation, "acquire", "validate", "bad", nil)
	if _, err := o.Submit(context.Background(), jobs.Request{Kind: jobs.KindAcquire}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error while busy, got %v", err)
	}
	if _, err := o.Submit(context.Background(), jobs.Request{Kind: jobs.KindPitch}); !errors.Is(err, services.ErrCapabilityUnavailable) {
		t.Fatalf("expected unavailable for unregistered kind, got %v", err)
	}
}

func TestJobOutlivesSubmittingContext(t *testing.T) {
	runner := newStubRunner()
	o := jobs.NewOrchestrator(map[jobs.Kind]jobs.Runner{jobs.KindAcquire: runner}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	handle, err := o.Submit(ctx, jobs.Request{Kind: jobs.KindAcquire})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	cancel()
	close(runner.release)
	if result := waitResult(t, o); result.Status != jobs.StatusSucceeded {
		t.Fatalf("expected success, got %+v", result)
	}

	jobCtx := runner.context()
	if jobCtx.Err() != nil {
		t.Fatal("job context must not be cancelled with the request")
	}
	if id, ok := services.JobIDFromContext(jobCtx); !ok || id != handle.ID {
		t.Fatalf("expected job id %q in context, got %q", handle.ID, id)
	}
	if kind, ok := services.JobKindFromContext(jobCtx); !ok || kind != string(jobs.KindAcquire) {
		t.Fatalf("expected job kind in context, got %q", kind)
	}
}

func TestCompletionHookRunsBeforeResultIsVisible(t *testing.T) {
	runner := newStubRunner()
	runner.output = jobs.Output{File: "/out/a.wav"}
	o := jobs.NewOrchestrator(map[jobs.Kind]jobs.Runner{jobs.KindAcquire: runner}, nil)

	var (
		mu   sync.Mutex
		seen []jobs.Status
	)
	o.OnComplete(func(_ jobs.Handle, result jobs.Result) {
		if snap := o.Snapshot(); snap.Status != jobs.StatusRunning {
			t.Errorf("hook ran after result was published: %s", snap.Status)
		}
		mu.Lock()
		seen = append(seen, result.Status)
		mu.Unlock()
	})
	o.OnComplete(func(jobs.Handle, jobs.Result) { panic("hook bug") })

	if _, err := o.Submit(context.Background(), jobs.Request{Kind: jobs.KindAcquire}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	close(runner.release)
	waitResult(t, o)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != jobs.StatusSucceeded {
		t.Fatalf("unexpected hook calls: %v", seen)
	}
	if got := o.Poll(); got.Status != jobs.StatusSucceeded {
		t.Fatalf("panicking hook must not affect the result, got %s", got.Status)
	}
}

func TestPollAndWaitWhenIdle(t *testing.T) {
	o := jobs.NewOrchestrator(nil, nil)
	if got := o.Poll(); got.Status != jobs.StatusIdle || got.Job != nil {
		t.Fatalf("unexpected idle poll: %+v", got)
	}
	if got := waitResult(t, o); got.Status != jobs.StatusIdle {
		t.Fatalf("unexpected idle wait: %+v", got)
	}
	if err := o.Drain(context.Background()); err != nil {
		t.Fatalf("Drain returned error: %v", err)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	runner := newStubRunner()
	defer close(runner.release)
	o := jobs.NewOrchestrator(map[jobs.Kind]jobs.Runner{jobs.KindAcquire: runner}, nil)
	if _, err := o.Submit(context.Background(), jobs.Request{Kind: jobs.KindAcquire}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := o.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	snap := o.Snapshot()
	if snap.Status != jobs.StatusRunning || snap.Job == nil {
		t.Fatalf("expected running snapshot, got %+v", snap)
	}
}

func TestHealthListsEveryKind(t *testing.T) {
	o := jobs.NewOrchestrator(map[jobs.Kind]jobs.Runner{jobs.KindAcquire: newStubRunner()}, nil)
	health := o.Health(context.Background())
	if len(health) != len(jobs.Kinds()) {
		t.Fatalf("expected %d entries, got %d", len(jobs.Kinds()), len(health))
	}
	if !health[0].Ready {
		t.Fatalf("expected acquire to be ready: %+v", health[0])
	}
	for _, h := range health[1:] {
		if h.Ready {
			t.Fatalf("expected unregistered %s to be unhealthy", h.Kind)
		}
	}
}

func TestParseKindAliases(t *testing.T) {
	cases := map[string]jobs.Kind{
		"acquire":      jobs.KindAcquire,
		"RIP":          jobs.KindAcquire,
		"convert":      jobs.KindTranscode,
		"split":        jobs.KindSeparate,
		"PitchProcess": jobs.KindPitch,
	}
	for in, want := range cases {
		got, err := jobs.ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := jobs.ParseKind(""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
