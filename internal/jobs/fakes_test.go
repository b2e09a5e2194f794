package jobs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"wavedeck/internal/jobs"
	"wavedeck/internal/services/ffmpeg"
)

// stubRunner blocks until release is closed and then returns its canned
// output or error.
type stubRunner struct {
	release     chan struct{}
	output      jobs.Output
	err         error
	panicValue  any
	validateErr error

	mu      sync.Mutex
	calls   int
	lastCtx context.Context
}

func newStubRunner() *stubRunner {
	return &stubRunner{release: make(chan struct{})}
}

func (s *stubRunner) Validate(jobs.Params) error { return s.validateErr }

func (s *stubRunner) Run(ctx context.Context, _ jobs.Params) (jobs.Output, error) {
	s.mu.Lock()
	s.calls++
	s.lastCtx = ctx
	s.mu.Unlock()
	<-s.release
	if s.panicValue != nil {
		panic(s.panicValue)
	}
	return s.output, s.err
}

func (s *stubRunner) HealthCheck(context.Context) jobs.Health {
	return jobs.Healthy(jobs.KindAcquire)
}

func (s *stubRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubRunner) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCtx
}

// fakeFetcher writes a file named after title into destDir.
type fakeFetcher struct {
	title   string
	release chan struct{}
	err     error

	mu      sync.Mutex
	destDir string
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, destDir string) (string, error) {
	f.mu.Lock()
	f.destDir = destDir
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(destDir, f.title+".webm")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeFetcher) stagingDir() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destDir
}

// fakeConverter copies input to the deterministic output path.
type fakeConverter struct {
	mu     sync.Mutex
	inputs []string
	dirs   []string
}

func (f *fakeConverter) Convert(_ context.Context, input, outDir, format string) (string, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.dirs = append(f.dirs, outDir)
	f.mu.Unlock()
	data, err := os.ReadFile(input)
	if err != nil {
		return "", err
	}
	out := ffmpeg.OutputPath(input, outDir, format)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	return out, os.WriteFile(out, data, 0o644)
}

func (f *fakeConverter) calls() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...), append([]string(nil), f.dirs...)
}

// fakeSeparator writes a fixed set of stems.
type fakeSeparator struct {
	names []string

	mu     sync.Mutex
	outDir string
	model  string
}

func (f *fakeSeparator) Separate(_ context.Context, _ string, outDir, model string) (map[string]string, error) {
	f.mu.Lock()
	f.outDir = outDir
	f.model = model
	f.mu.Unlock()
	stems := make(map[string]string, len(f.names))
	dir := filepath.Join(outDir, model, "track")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	for _, name := range f.names {
		path := filepath.Join(dir, name+".wav")
		if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
			return nil, err
		}
		stems[name] = path
	}
	return stems, nil
}

// wavDecoder copies a prepared WAV fixture to the requested output.
type wavDecoder struct {
	fixture string
}

func (d wavDecoder) DecodeWAV(_ context.Context, _ string, output string) error {
	data, err := os.ReadFile(d.fixture)
	if err != nil {
		return err
	}
	return os.WriteFile(output, data, 0o644)
}
