package jobs_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wavedeck/internal/audio"
	"wavedeck/internal/config"
	"wavedeck/internal/jobs"
	"wavedeck/internal/library"
	"wavedeck/internal/pitch"
	"wavedeck/internal/services"
	"wavedeck/internal/testsupport"
)

func newLibrary(cfg *config.Config) *library.Library {
	return library.New(cfg.Paths.OutputRoot, cfg.RecordingsDir())
}

func newDSPEngine(t *testing.T, cfg *config.Config) *pitch.Engine {
	t.Helper()
	capability, err := pitch.NewDSPCapability(pitch.DSPOptions{Shifter: pitch.ShifterWSOLA})
	if err != nil {
		t.Fatalf("NewDSPCapability: %v", err)
	}
	engine, err := pitch.NewEngine(capability, pitch.Options{
		FrameSize: cfg.Pitch.FrameSize,
		HopSize:   cfg.Pitch.HopSize,
		Workers:   cfg.Pitch.Workers,
		Tail:      cfg.Pitch.Tail,
	}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func amount(v float64) *float64 { return &v }

func TestAcquireSanitizesAndRecordsLastAcquired(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	lib := newLibrary(cfg)
	fetcher := &fakeFetcher{title: "Café: Live? Take*"}
	converter := &fakeConverter{}
	runner := jobs.NewAcquireRunner(cfg, fetcher, converter, lib)

	params := jobs.Params{Source: "https://example.com/watch?v=abc", Format: "MP3"}
	if err := runner.Validate(params); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	out, err := runner.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if filepath.Dir(out.File) != cfg.Paths.OutputRoot {
		t.Fatalf("expected output in root, got %q", out.File)
	}
	if filepath.Ext(out.File) != ".mp3" {
		t.Fatalf("expected mp3 output, got %q", out.File)
	}
	base := filepath.Base(out.File)
	if strings.ContainsAny(base, `:?*`) || strings.Contains(base, "é") {
		t.Fatalf("output name not sanitized: %q", base)
	}
	if lib.LastAcquired() != out.File {
		t.Fatalf("expected last acquired %q, got %q", out.File, lib.LastAcquired())
	}
	if _, err := os.Stat(fetcher.stagingDir()); !os.IsNotExist(err) {
		t.Fatalf("expected staging dir to be removed, stat err=%v", err)
	}
}

func TestAcquireValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := jobs.NewAcquireRunner(cfg, &fakeFetcher{}, &fakeConverter{}, nil)
	cases := []jobs.Params{
		{Source: ""},
		{Source: "ftp://example.com/a"},
		{Source: "https://example.com/a", Format: "../x"},
		{Source: "https://example.com/a", Format: "waveform"},
	}
	for _, params := range cases {
		if err := runner.Validate(params); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Validate(%+v) = %v, want validation error", params, err)
		}
	}
}

func TestAcquireFetchFailureSurfaces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fetchErr := services.Wrap(services.ErrSourceUnavailable, "ytdlp", "fetch", "video unavailable", nil)
	runner := jobs.NewAcquireRunner(cfg, &fakeFetcher{err: fetchErr}, &fakeConverter{}, nil)
	_, err := runner.Run(context.Background(), jobs.Params{Source: "https://example.com/gone"})
	if services.Classify(err) != services.KindSourceUnavailable {
		t.Fatalf("expected source unavailable, got %v", err)
	}
}

func TestAcquireBlocksTranscodeUntilPolled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	lib := newLibrary(cfg)
	fetcher := &fakeFetcher{title: "song", release: make(chan struct{})}
	converter := &fakeConverter{}
	runners, err := jobs.NewRunners(cfg, jobs.Tools{Fetcher: fetcher, Converter: converter}, lib, nil)
	if err != nil {
		t.Fatalf("NewRunners: %v", err)
	}
	o := jobs.NewOrchestrator(runners, nil)

	if _, err := o.Submit(context.Background(), jobs.Request{
		Kind:   jobs.KindAcquire,
		Params: jobs.Params{Source: "https://example.com/watch?v=1", Format: "mp3"},
	}); err != nil {
		t.Fatalf("submit acquire: %v", err)
	}

	local := testsupport.WriteFile(t, filepath.Join(testsupport.BaseDir(cfg), "in", "local.flac"), []byte("flac"))
	transcode := jobs.Request{Kind: jobs.KindTranscode, Params: jobs.Params{File: local}}
	if _, err := o.Submit(context.Background(), transcode); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy while acquiring, got %v", err)
	}

	close(fetcher.release)
	waitResult(t, o)
	if _, err := o.Submit(context.Background(), transcode); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy until polled, got %v", err)
	}
	acquired := o.Poll()
	if acquired.Status != jobs.StatusSucceeded || acquired.Output == nil {
		t.Fatalf("unexpected acquire result: %+v", acquired)
	}
	if filepath.Base(acquired.Output.File) != "song.mp3" {
		t.Fatalf("unexpected acquire output: %q", acquired.Output.File)
	}

	if _, err := o.Submit(context.Background(), transcode); err != nil {
		t.Fatalf("expected transcode to be accepted, got %v", err)
	}
	waitResult(t, o)
	converted := o.Poll()
	if converted.Status != jobs.StatusSucceeded {
		t.Fatalf("unexpected transcode result: %+v", converted)
	}
	if want := filepath.Join(cfg.Paths.OutputRoot, "local.wav"); converted.Output.File != want {
		t.Fatalf("expected %q, got %q", want, converted.Output.File)
	}
}

func TestTranscodeKeepsRecordingsTogether(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	lib := newLibrary(cfg)
	converter := &fakeConverter{}
	runner := jobs.NewTranscodeRunner(cfg, converter, lib)

	take := testsupport.WriteFile(t, filepath.Join(cfg.RecordingsDir(), "take_1234abcd.webm"), []byte("webm"))
	out, err := runner.Run(context.Background(), jobs.Params{File: take, Format: "mp3"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if want := filepath.Join(cfg.RecordingsDir(), "take_1234abcd.mp3"); out.File != want {
		t.Fatalf("expected %q, got %q", want, out.File)
	}
}

func TestTranscodeToSameFormatIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	converter := &fakeConverter{}
	runner := jobs.NewTranscodeRunner(cfg, converter, newLibrary(cfg))

	existing := testsupport.WriteFile(t, filepath.Join(cfg.Paths.OutputRoot, "song.wav"), []byte("RIFF"))
	out, err := runner.Run(context.Background(), jobs.Params{File: existing})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if out.File != existing {
		t.Fatalf("expected input returned unchanged, got %q", out.File)
	}
	if inputs, _ := converter.calls(); len(inputs) != 0 {
		t.Fatalf("converter should not run, got %v", inputs)
	}
}

func TestTranscodeMissingInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := jobs.NewTranscodeRunner(cfg, &fakeConverter{}, nil)
	_, err := runner.Run(context.Background(), jobs.Params{File: filepath.Join(cfg.Paths.OutputRoot, "missing.mp3")})
	if !errors.Is(err, services.ErrInputNotFound) {
		t.Fatalf("expected input not found, got %v", err)
	}
	if err := runner.Validate(jobs.Params{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty file, got %v", err)
	}
}

func TestSeparateDefaultsToLastAcquired(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	lib := newLibrary(cfg)
	separator := &fakeSeparator{names: []string{"vocals", "drums", "bass", "other"}}
	runner := jobs.NewSeparateRunner(cfg, separator, lib)

	if _, err := runner.Run(context.Background(), jobs.Params{}); !errors.Is(err, services.ErrInputNotFound) {
		t.Fatalf("expected input not found with nothing acquired, got %v", err)
	}

	song := testsupport.WriteFile(t, filepath.Join(cfg.Paths.OutputRoot, "song.mp3"), []byte("mp3"))
	lib.SetLastAcquired(song)
	out, err := runner.Run(context.Background(), jobs.Params{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if out.File != song || len(out.Stems) != 4 {
		t.Fatalf("unexpected output: %+v", out)
	}
	source, stems := lib.Stems()
	if source != song || stems["vocals"] != out.Stems["vocals"] {
		t.Fatalf("library not updated: %q %v", source, stems)
	}
	if !strings.HasPrefix(separator.outDir, cfg.StemsDir()) {
		t.Fatalf("expected stems under %q, got %q", cfg.StemsDir(), separator.outDir)
	}
	if separator.model != "htdemucs" {
		t.Fatalf("expected configured model, got %q", separator.model)
	}
}

func TestSeparateRejectsBadModel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := jobs.NewSeparateRunner(cfg, &fakeSeparator{}, nil)
	if err := runner.Validate(jobs.Params{Model: "../evil"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSeparateWithoutStemsIsToolFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := jobs.NewSeparateRunner(cfg, &fakeSeparator{}, nil)
	song := testsupport.WriteFile(t, filepath.Join(cfg.Paths.OutputRoot, "song.mp3"), []byte("mp3"))
	if _, err := runner.Run(context.Background(), jobs.Params{File: song}); !errors.Is(err, services.ErrToolExecution) {
		t.Fatalf("expected tool failure, got %v", err)
	}
}

func TestPitchShiftWritesRender(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner, err := jobs.NewPitchRunner(cfg, newDSPEngine(t, cfg), nil)
	if err != nil {
		t.Fatalf("NewPitchRunner: %v", err)
	}
	input := testsupport.WriteSineWAV(t, filepath.Join(cfg.RecordingsDir(), "take.wav"), 440, 22050, 0.5)

	out, err := runner.Run(context.Background(), jobs.Params{File: input, Amount: amount(2)})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if out.Mode != jobs.ModeShift {
		t.Fatalf("unexpected mode %q", out.Mode)
	}
	if want := filepath.Join(cfg.PitchDir(), "take_shift.wav"); out.File != want {
		t.Fatalf("expected %q, got %q", want, out.File)
	}
	rendered, err := audio.ReadWAV(out.File)
	if err != nil {
		t.Fatalf("read render: %v", err)
	}
	if rendered.SampleRate != 22050 || rendered.Frames() != 11025 {
		t.Fatalf("unexpected render shape: rate=%d frames=%d", rendered.SampleRate, rendered.Frames())
	}
}

func TestPitchAutotuneWritesRender(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner, err := jobs.NewPitchRunner(cfg, newDSPEngine(t, cfg), nil)
	if err != nil {
		t.Fatalf("NewPitchRunner: %v", err)
	}
	input := testsupport.WriteSineWAV(t, filepath.Join(cfg.RecordingsDir(), "take.wav"), 430, 22050, 0.5)

	out, err := runner.Run(context.Background(), jobs.Params{File: input, Correction: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if out.Mode != jobs.ModeAutotune || filepath.Base(out.File) != "take_autotune.wav" {
		t.Fatalf("unexpected output: %+v", out)
	}
	rendered, err := audio.ReadWAV(out.File)
	if err != nil {
		t.Fatalf("read render: %v", err)
	}
	if rms := audio.RMS(rendered.Samples); rms == 0 || math.IsNaN(rms) {
		t.Fatalf("render is silent or invalid: rms=%v", rms)
	}
}

func TestPitchDecodesOtherFormats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := newDSPEngine(t, cfg)
	input := testsupport.WriteFile(t, filepath.Join(cfg.Paths.OutputRoot, "song.mp3"), []byte("mp3"))

	runner, err := jobs.NewPitchRunner(cfg, engine, nil)
	if err != nil {
		t.Fatalf("NewPitchRunner: %v", err)
	}
	if _, err := runner.Run(context.Background(), jobs.Params{File: input}); !errors.Is(err, services.ErrCapabilityUnavailable) {
		t.Fatalf("expected capability unavailable without decoder, got %v", err)
	}

	fixture := testsupport.WriteSineWAV(t, filepath.Join(testsupport.BaseDir(cfg), "fixture.wav"), 330, 22050, 0.25)
	runner, err = jobs.NewPitchRunner(cfg, engine, wavDecoder{fixture: fixture})
	if err != nil {
		t.Fatalf("NewPitchRunner: %v", err)
	}
	out, err := runner.Run(context.Background(), jobs.Params{File: input, Amount: amount(-3)})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if filepath.Base(out.File) != "song_shift.wav" {
		t.Fatalf("unexpected output: %q", out.File)
	}
	leftovers, _ := filepath.Glob(filepath.Join(cfg.TempDir(), "pitch-*.wav"))
	if len(leftovers) != 0 {
		t.Fatalf("expected temp wav to be removed, found %v", leftovers)
	}
}

func TestPitchUnavailableEngine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine, err := pitch.NewEngine(pitch.Unavailable("disabled in config"), pitch.Options{}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	runner, err := jobs.NewPitchRunner(cfg, engine, nil)
	if err != nil {
		t.Fatalf("NewPitchRunner: %v", err)
	}
	input := testsupport.WriteSineWAV(t, filepath.Join(cfg.RecordingsDir(), "take.wav"), 440, 22050, 0.1)
	if _, err := runner.Run(context.Background(), jobs.Params{File: input}); !errors.Is(err, services.ErrCapabilityUnavailable) {
		t.Fatalf("expected capability unavailable, got %v", err)
	}
	if health := runner.HealthCheck(context.Background()); health.Ready {
		t.Fatalf("expected unhealthy pitch runner: %+v", health)
	}
}

func TestPitchValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner, err := jobs.NewPitchRunner(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewPitchRunner: %v", err)
	}
	if err := runner.Validate(jobs.Params{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty file, got %v", err)
	}
	if err := runner.Validate(jobs.Params{File: "x.wav", Amount: amount(math.NaN())}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for NaN amount, got %v", err)
	}

	cfg.Pitch.Scale = "H major"
	if _, err := jobs.NewPitchRunner(cfg, nil, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for bad scale, got %v", err)
	}
}

func TestPitchMissingFileFailsJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runners, err := jobs.NewRunners(cfg, jobs.Tools{}, newLibrary(cfg), newDSPEngine(t, cfg))
	if err != nil {
		t.Fatalf("NewRunners: %v", err)
	}
	o := jobs.NewOrchestrator(runners, nil)
	handle, err := o.Submit(context.Background(), jobs.Request{
		Kind:   jobs.KindPitch,
		Params: jobs.Params{File: "/nonexistent", Amount: amount(2)},
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := o.Wait(ctx); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	result := o.Poll()
	if result.Status != jobs.StatusFailed || result.ErrorKind != services.KindInputNotFound {
		t.Fatalf("expected input_not_found failure, got %+v", result)
	}
	if result.Job == nil || result.Job.ID != handle.ID {
		t.Fatalf("result lost its handle: %+v", result.Job)
	}
	if !strings.Contains(result.Error, "/nonexistent") {
		t.Fatalf("expected path in error, got %q", result.Error)
	}
}
