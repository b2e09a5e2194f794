package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"wavedeck/internal/audio"
	"wavedeck/internal/config"
	"wavedeck/internal/deps"
	"wavedeck/internal/library"
	"wavedeck/internal/pitch"
	"wavedeck/internal/services"
	"wavedeck/internal/services/demucs"
	"wavedeck/internal/services/ffmpeg"
	"wavedeck/internal/services/ytdlp"
	"wavedeck/internal/textutil"
)

const defaultTranscodeFormat = "wav"

// Pitch output modes, used in output file names.
const (
	ModeShift    = "shift"
	ModeAutotune = "autotune"
)

// Fetcher downloads a remote source into a directory.
type Fetcher interface {
	Fetch(ctx context.Context, source, destDir string) (string, error)
}

// Converter transcodes a file into outDir/<stem>.<format>.
type Converter interface {
	Convert(ctx context.Context, input, outDir, format string) (string, error)
}

// Decoder renders any audio file as a mono PCM WAV.
type Decoder interface {
	DecodeWAV(ctx context.Context, input, output string) error
}

// Separator splits a file into stems beneath outDir.
type Separator interface {
	Separate(ctx context.Context, input, outDir, model string) (map[string]string, error)
}

// Tools bundles the external collaborators. Nil members disable the runners
// that need them.
type Tools struct {
	Fetcher   Fetcher
	Converter Converter
	Decoder   Decoder
	Separator Separator
}

// NewRunners wires one runner per kind.
func NewRunners(cfg *config.Config, tools Tools, lib *library.Library, engine *pitch.Engine) (map[Kind]Runner, error) {
	pitchRunner, err := NewPitchRunner(cfg, engine, tools.Decoder)
	if err != nil {
		return nil, err
	}
	return map[Kind]Runner{
		KindAcquire:   NewAcquireRunner(cfg, tools.Fetcher, tools.Converter, lib),
		KindTranscode: NewTranscodeRunner(cfg, tools.Converter, lib),
		KindSeparate:  NewSeparateRunner(cfg, tools.Separator, lib),
		KindPitch:     pitchRunner,
	}, nil
}

// AcquireRunner downloads a URL and converts it into the output root.
type AcquireRunner struct {
	fetcher       Fetcher
	converter     Converter
	library       *library.Library
	outputRoot    string
	tempDir       string
	defaultFormat string
	requirements  []deps.Requirement
}

// NewAcquireRunner builds the acquire runner.
func NewAcquireRunner(cfg *config.Config, fetcher Fetcher, converter Converter, lib *library.Library) *AcquireRunner {
	return &AcquireRunner{
		fetcher:       fetcher,
		converter:     converter,
		library:       lib,
		outputRoot:    cfg.Paths.OutputRoot,
		tempDir:       cfg.TempDir(),
		defaultFormat: cfg.Acquire.DefaultFormat,
		requirements:  pickRequirements(cfg, "yt-dlp", "FFmpeg"),
	}
}

func (r *AcquireRunner) Validate(params Params) error {
	if err := ytdlp.ValidateSource(params.Source); err != nil {
		return services.Wrap(services.ErrValidation, "acquire", "validate", "", err)
	}
	_, err := targetFormat(params.Format, r.defaultFormat)
	return err
}

func (r *AcquireRunner) Run(ctx context.Context, params Params) (Output, error) {
	if r.fetcher == nil || r.converter == nil {
		return Output{}, services.Wrap(services.ErrConfiguration, "acquire", "run", "downloader or transcoder not configured", nil)
	}
	format, err := targetFormat(params.Format, r.defaultFormat)
	if err != nil {
		return Output{}, err
	}
	if err := os.MkdirAll(r.tempDir, 0o755); err != nil {
		return Output{}, services.Wrap(services.ErrConfiguration, "acquire", "run", "create staging dir", err)
	}
	staging, err := os.MkdirTemp(r.tempDir, "acquire-*")
	if err != nil {
		return Output{}, services.Wrap(services.ErrConfiguration, "acquire", "run", "create staging dir", err)
	}
	defer os.RemoveAll(staging)

	downloaded, err := r.fetcher.Fetch(ctx, strings.TrimSpace(params.Source), staging)
	if err != nil {
		return Output{}, err
	}
	downloaded, err = sanitizeDownload(downloaded)
	if err != nil {
		return Output{}, services.Wrap(services.ErrProcessingFault, "acquire", "rename download", "", err)
	}
	output, err := r.converter.Convert(ctx, downloaded, r.outputRoot, format)
	if err != nil {
		return Output{}, err
	}
	if r.library != nil {
		r.library.SetLastAcquired(output)
	}
	return Output{File: output}, nil
}

func (r *AcquireRunner) HealthCheck(context.Context) Health {
	return requirementHealth(KindAcquire, r.requirements, r.fetcher != nil && r.converter != nil)
}

// TranscodeRunner converts a local file to another format.
type TranscodeRunner struct {
	converter    Converter
	library      *library.Library
	outputRoot   string
	requirements []deps.Requirement
}

// NewTranscodeRunner builds the transcode runner.
func NewTranscodeRunner(cfg *config.Config, converter Converter, lib *library.Library) *TranscodeRunner {
	return &TranscodeRunner{
		converter:    converter,
		library:      lib,
		outputRoot:   cfg.Paths.OutputRoot,
		requirements: pickRequirements(cfg, "FFmpeg"),
	}
}

func (r *TranscodeRunner) Validate(params Params) error {
	if strings.TrimSpace(params.File) == "" {
		return services.Wrap(services.ErrValidation, "transcode", "validate", "file is required", nil)
	}
	_, err := targetFormat(params.Format, defaultTranscodeFormat)
	return err
}

func (r *TranscodeRunner) Run(ctx context.Context, params Params) (Output, error) {
	if r.converter == nil {
		return Output{}, services.Wrap(services.ErrConfiguration, "transcode", "run", "transcoder not configured", nil)
	}
	input, err := existingFile("transcode", params.File)
	if err != nil {
		return Output{}, err
	}
	format, err := targetFormat(params.Format, defaultTranscodeFormat)
	if err != nil {
		return Output{}, err
	}
	outDir := r.outputRoot
	if r.library != nil && r.library.InRecordings(input) {
		outDir = r.library.RecordingsDir()
	}
	if ffmpeg.OutputPath(input, outDir, format) == input {
		return Output{File: input}, nil
	}
	output, err := r.converter.Convert(ctx, input, outDir, format)
	if err != nil {
		return Output{}, err
	}
	return Output{File: output}, nil
}

func (r *TranscodeRunner) HealthCheck(context.Context) Health {
	return requirementHealth(KindTranscode, r.requirements, r.converter != nil)
}

// SeparateRunner splits a file into stems and records them as current.
type SeparateRunner struct {
	separator    Separator
	library      *library.Library
	stemsDir     string
	model        string
	keyMode      string
	requirements []deps.Requirement
}

// NewSeparateRunner builds the separation runner.
func NewSeparateRunner(cfg *config.Config, separator Separator, lib *library.Library) *SeparateRunner {
	return &SeparateRunner{
		separator:    separator,
		library:      lib,
		stemsDir:     cfg.StemsDir(),
		model:        cfg.Separation.Model,
		keyMode:      cfg.Separation.Key,
		requirements: pickRequirements(cfg, "Demucs"),
	}
}

func (r *SeparateRunner) Validate(params Params) error {
	if strings.ContainsAny(params.Model, `/\ `) {
		return services.Wrap(services.ErrValidation, "separate", "validate", fmt.Sprintf("invalid model name %q", params.Model), nil)
	}
	return nil
}

// Run separates params.File, or the last acquired file when File is empty.
func (r *SeparateRunner) Run(ctx context.Context, params Params) (Output, error) {
	if r.separator == nil {
		return Output{}, services.Wrap(services.ErrConfiguration, "separate", "run", "separator not configured", nil)
	}
	file := strings.TrimSpace(params.File)
	if file == "" && r.library != nil {
		file = r.library.LastAcquired()
	}
	if file == "" {
		return Output{}, services.Wrap(services.ErrInputNotFound, "separate", "run", "no file given and nothing acquired yet", nil)
	}
	input, err := existingFile("separate", file)
	if err != nil {
		return Output{}, err
	}
	model := strings.TrimSpace(params.Model)
	if model == "" {
		model = r.model
	}

	key := demucs.ShortKey(input)
	if r.keyMode == config.StemKeyVersioned {
		key = demucs.VersionedKey(input, model)
	}
	stems, err := r.separator.Separate(ctx, input, filepath.Join(r.stemsDir, key), model)
	if err != nil {
		return Output{}, err
	}
	if len(stems) == 0 {
		return Output{}, services.Wrap(services.ErrToolExecution, "separate", "run", "separator produced no stems", nil)
	}
	if r.library != nil {
		r.library.SetStems(input, stems)
	}
	return Output{File: input, Stems: StemMap(stems)}, nil
}

func (r *SeparateRunner) HealthCheck(context.Context) Health {
	return requirementHealth(KindSeparate, r.requirements, r.separator != nil)
}

// PitchRunner shifts or corrects a file through the pitch engine.
type PitchRunner struct {
	engine          *pitch.Engine
	decoder         Decoder
	scale           pitch.Scale
	defaultStrength float64
	pitchDir        string
	tempDir         string
}

// NewPitchRunner builds the pitch runner. The configured scale must parse.
func NewPitchRunner(cfg *config.Config, engine *pitch.Engine, decoder Decoder) (*PitchRunner, error) {
	scale, err := pitch.ParseScale(cfg.Pitch.Scale)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pitch", "parse scale", "pitch.scale", err)
	}
	return &PitchRunner{
		engine:          engine,
		decoder:         decoder,
		scale:           scale,
		defaultStrength: cfg.Pitch.DefaultStrength,
		pitchDir:        cfg.PitchDir(),
		tempDir:         cfg.TempDir(),
	}, nil
}

func (r *PitchRunner) Validate(params Params) error {
	if strings.TrimSpace(params.File) == "" {
		return services.Wrap(services.ErrValidation, "pitch", "validate", "file is required", nil)
	}
	if params.Amount != nil && (math.IsNaN(*params.Amount) || math.IsInf(*params.Amount, 0)) {
		return services.Wrap(services.ErrValidation, "pitch", "validate", "amount must be finite", nil)
	}
	return nil
}

func (r *PitchRunner) Run(ctx context.Context, params Params) (Output, error) {
	input, err := existingFile("pitch", params.File)
	if err != nil {
		return Output{}, err
	}
	if r.engine == nil || !r.engine.Available() {
		return Output{}, services.Wrap(services.ErrCapabilityUnavailable, "pitch", "run", "pitch processing is not available", nil)
	}

	buf, err := r.load(ctx, input)
	if err != nil {
		return Output{}, err
	}
	mono, err := buf.Mono()
	if err != nil {
		return Output{}, services.Wrap(services.ErrProcessingFault, "pitch", "downmix", "", err)
	}

	var (
		out  audio.Buffer
		mode string
	)
	if params.Correction {
		amount := r.defaultStrength
		if params.Amount != nil {
			amount = *params.Amount
		}
		mode = ModeAutotune
		out, err = r.engine.Correct(ctx, mono, pitch.StrengthFromAmount(amount), r.scale)
	} else {
		amount := 0.0
		if params.Amount != nil {
			amount = *params.Amount
		}
		mode = ModeShift
		out, err = r.engine.Shift(ctx, mono, amount)
	}
	if err != nil {
		return Output{}, err
	}

	if err := os.MkdirAll(r.pitchDir, 0o755); err != nil {
		return Output{}, services.Wrap(services.ErrConfiguration, "pitch", "write", "create pitch dir", err)
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	dest := filepath.Join(r.pitchDir, stem+"_"+mode+".wav")
	if err := audio.WriteWAV(dest, out, 16); err != nil {
		return Output{}, services.Wrap(services.ErrProcessingFault, "pitch", "write", filepath.Base(dest), err)
	}
	return Output{File: dest, Mode: mode}, nil
}

// load reads WAV files directly and routes everything else, including WAV
// variants the decoder rejects, through ffmpeg.
func (r *PitchRunner) load(ctx context.Context, input string) (audio.Buffer, error) {
	var readErr error
	if strings.EqualFold(filepath.Ext(input), ".wav") {
		buf, err := audio.ReadWAV(input)
		if err == nil {
			return buf, nil
		}
		readErr = err
	}
	if r.decoder == nil {
		detail := "ffmpeg is required to decode " + filepath.Ext(input)
		return audio.Buffer{}, services.Wrap(services.ErrCapabilityUnavailable, "pitch", "decode", detail, readErr)
	}

	if err := os.MkdirAll(r.tempDir, 0o755); err != nil {
		return audio.Buffer{}, services.Wrap(services.ErrConfiguration, "pitch", "decode", "create staging dir", err)
	}
	tmp, err := os.CreateTemp(r.tempDir, "pitch-*.wav")
	if err != nil {
		return audio.Buffer{}, services.Wrap(services.ErrConfiguration, "pitch", "decode", "create temp wav", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := r.decoder.DecodeWAV(ctx, input, tmpPath); err != nil {
		return audio.Buffer{}, err
	}
	buf, err := audio.ReadWAV(tmpPath)
	if err != nil {
		if errors.Is(err, audio.ErrNotWAV) {
			return audio.Buffer{}, services.Wrap(services.ErrToolExecution, "pitch", "decode", "decoder produced an unreadable wav", err)
		}
		return audio.Buffer{}, services.Wrap(services.ErrProcessingFault, "pitch", "decode", filepath.Base(input), err)
	}
	return buf, nil
}

func (r *PitchRunner) HealthCheck(context.Context) Health {
	if r.engine == nil {
		return Unhealthy(KindPitch, "pitch engine not configured")
	}
	capability := r.engine.Capability()
	if !capability.Available() {
		return Unhealthy(KindPitch, capability.Name())
	}
	if r.decoder == nil {
		return Health{Kind: KindPitch, Ready: true, Detail: "wav input only"}
	}
	return Health{Kind: KindPitch, Ready: true, Detail: capability.Name()}
}

func existingFile(component, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", services.Wrap(services.ErrValidation, component, "resolve input", "file is required", nil)
	}
	if expanded, err := config.ExpandPath(path); err == nil {
		path = expanded
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", services.Wrap(services.ErrInputNotFound, component, "resolve input", path, err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrInputNotFound, component, "resolve input", path+" is a directory", nil)
	}
	return path, nil
}

func targetFormat(value, fallback string) (string, error) {
	format := config.NormalizeFormat(value)
	if format == "" {
		format = config.NormalizeFormat(fallback)
	}
	valid := format != "" && len(format) <= 5 && !strings.ContainsFunc(format, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if !valid {
		return "", services.Wrap(services.ErrValidation, "jobs", "format", fmt.Sprintf("unsupported format %q", value), nil)
	}
	return format, nil
}

// sanitizeDownload renames a downloaded file whose title is unsafe as a file
// name and returns the path to use.
func sanitizeDownload(path string) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	clean := textutil.SanitizeFileName(stem)
	if clean == "" {
		clean = "download"
	}
	if clean == stem {
		return path, nil
	}
	target := filepath.Join(filepath.Dir(path), clean+ext)
	if err := os.Rename(path, target); err != nil {
		return "", err
	}
	return target, nil
}

func pickRequirements(cfg *config.Config, names ...string) []deps.Requirement {
	var picked []deps.Requirement
	for _, req := range deps.Requirements(cfg) {
		for _, name := range names {
			if strings.EqualFold(req.Name, name) {
				picked = append(picked, req)
			}
		}
	}
	return picked
}

func requirementHealth(kind Kind, requirements []deps.Requirement, wired bool) Health {
	if !wired {
		return Unhealthy(kind, "not configured")
	}
	for _, status := range deps.CheckBinaries(requirements) {
		if !status.Available {
			return Unhealthy(kind, status.Name+": "+status.Detail)
		}
	}
	return Healthy(kind)
}
