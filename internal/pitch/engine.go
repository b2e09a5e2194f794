package pitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"wavedeck/internal/audio"
	"wavedeck/internal/logging"
	"wavedeck/internal/services"
)

// Tail policies for the samples after the last full frame.
const (
	TailPassthrough = "passthrough"
	TailDrop        = "drop"
)

const (
	DefaultFrameSize = 2048
	DefaultHopSize   = 512
)

// Options controls framing and parallelism.
type Options struct {
	FrameSize int
	HopSize   int
	Workers   int
	Tail      string
}

// Engine runs uniform shifts and scale correction over mono buffers.
type Engine struct {
	capability Capability
	frameSize  int
	hopSize    int
	workers    int
	tail       string
	logger     *slog.Logger
}

// Frame describes one analysis window of a correction pass. Frequency is zero
// for unvoiced frames.
type Frame struct {
	Index     int
	Offset    int
	Length    int
	Voiced    bool
	Frequency float64
	Magnitude float64
	Target    float64
	Semitones float64
}

// Report summarizes a correction pass.
type Report struct {
	Frames    []Frame
	Voiced    int
	Processed int
	Tail      string
}

// NewEngine validates opts and binds the engine to a capability.
func NewEngine(capability Capability, opts Options, logger *slog.Logger) (*Engine, error) {
	if capability == nil {
		capability = Unavailable("no pitch capability configured")
	}
	if opts.FrameSize == 0 {
		opts.FrameSize = DefaultFrameSize
	}
	if opts.HopSize == 0 {
		opts.HopSize = DefaultHopSize
	}
	if opts.FrameSize < 0 || opts.HopSize < 0 || opts.HopSize > opts.FrameSize {
		return nil, fmt.Errorf("invalid framing: frame=%d hop=%d", opts.FrameSize, opts.HopSize)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	switch opts.Tail {
	case "":
		opts.Tail = TailPassthrough
	case TailPassthrough, TailDrop:
	default:
		return nil, fmt.Errorf("unknown tail policy %q", opts.Tail)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		capability: capability,
		frameSize:  opts.FrameSize,
		hopSize:    opts.HopSize,
		workers:    opts.Workers,
		tail:       opts.Tail,
		logger:     logging.NewComponentLogger(logger, "pitch"),
	}, nil
}

// Capability returns the backend the engine drives.
func (e *Engine) Capability() Capability {
	return e.capability
}

// Available reports whether pitch processing can run at all.
func (e *Engine) Available() bool {
	return e.capability.Available()
}

// Shift moves the whole buffer by semitones, clamped to +/-MaxSemitones.
// Length and sample rate are preserved.
func (e *Engine) Shift(ctx context.Context, buf audio.Buffer, semitones float64) (audio.Buffer, error) {
	if err := e.checkAvailable("shift"); err != nil {
		return audio.Buffer{}, err
	}
	if err := validateMono(buf); err != nil {
		return audio.Buffer{}, err
	}
	if math.IsNaN(semitones) || math.IsInf(semitones, 0) {
		return audio.Buffer{}, services.Wrap(services.ErrProcessingFault, "pitch", "shift", fmt.Sprintf("non-finite shift %v", semitones), nil)
	}
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}
	semitones = clampSemitones(semitones)

	start := time.Now()
	out, err := e.capability.Shift(buf.Samples, buf.SampleRate, semitones)
	if err != nil {
		return audio.Buffer{}, shiftError(err)
	}
	if len(out) != len(buf.Samples) {
		return audio.Buffer{}, services.Wrap(services.ErrProcessingFault, "pitch", "shift",
			fmt.Sprintf("shifter returned %d samples for %d", len(out), len(buf.Samples)), nil)
	}
	e.logger.Debug("pitch shift complete",
		logging.Float64("semitones", semitones),
		logging.Int("samples", len(out)),
		logging.Duration("duration", time.Since(start)),
	)
	return audio.NewMono(out, buf.SampleRate), nil
}

// Correct snaps each voiced frame toward the nearest tone of scale. Strength
// 0 leaves pitch untouched and 1 snaps fully.
func (e *Engine) Correct(ctx context.Context, buf audio.Buffer, strength float64, scale Scale) (audio.Buffer, error) {
	out, _, err := e.CorrectWithReport(ctx, buf, strength, scale)
	return out, err
}

// CorrectWithReport is Correct plus per-frame analysis.
func (e *Engine) CorrectWithReport(ctx context.Context, buf audio.Buffer, strength float64, scale Scale) (audio.Buffer, Report, error) {
	if err := e.checkAvailable("correct"); err != nil {
		return audio.Buffer{}, Report{}, err
	}
	if err := validateMono(buf); err != nil {
		return audio.Buffer{}, Report{}, err
	}
	if math.IsNaN(strength) || strength < 0 || strength > 1 {
		return audio.Buffer{}, Report{}, services.Wrap(services.ErrValidation, "pitch", "correct",
			fmt.Sprintf("strength %v outside [0, 1]", strength), nil)
	}
	if len(scale.Tones) == 0 {
		return audio.Buffer{}, Report{}, services.Wrap(services.ErrValidation, "pitch", "correct", "scale has no tones", nil)
	}

	start := time.Now()
	input := buf.Samples
	offsets := e.Offsets(len(input))
	frames := make([]Frame, len(offsets))
	segments := make([][]float64, len(offsets))
	direct := make([]bool, len(offsets))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers)
	for idx, offset := range offsets {
		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = services.Wrap(services.ErrProcessingFault, "pitch", "correct",
						fmt.Sprintf("frame %d panicked: %v", idx, r), nil)
				}
			}()
			if err := groupCtx.Err(); err != nil {
				return err
			}
			frame, segment, err := e.correctFrame(input[offset:offset+e.frameSize], buf.SampleRate, strength, scale)
			if err != nil {
				return fmt.Errorf("frame %d at %d: %w", idx, offset, err)
			}
			frame.Index = idx
			frame.Offset = offset
			frames[idx] = frame
			segments[idx] = segment
			direct[idx] = !frame.Voiced
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return audio.Buffer{}, Report{}, err
	}

	out := make([]float64, len(input))
	end := Stitch(out, e.hopSize, offsets, segments, direct)
	if e.tail == TailPassthrough {
		copy(out[end:], input[end:])
	}

	report := Report{Frames: frames, Processed: end, Tail: e.tail}
	for _, f := range frames {
		if f.Voiced {
			report.Voiced++
		}
	}
	e.logger.Debug("pitch correction complete",
		logging.Int("frames", len(frames)),
		logging.Int("voiced", report.Voiced),
		logging.Float64("strength", strength),
		logging.String("scale", scale.Name),
		logging.Duration("duration", time.Since(start)),
	)
	return audio.NewMono(out, buf.SampleRate), report, nil
}

func (e *Engine) correctFrame(segment []float64, sampleRate int, strength float64, scale Scale) (Frame, []float64, error) {
	frame := Frame{Length: len(segment)}
	est, err := e.capability.Track(segment, sampleRate)
	if err != nil {
		return frame, nil, shiftError(err)
	}
	frame.Magnitude = est.Magnitude
	if !est.Voiced() {
		return frame, segment, nil
	}
	frame.Voiced = true
	frame.Frequency = est.Frequency
	frame.Target = scale.Nearest(est.Frequency)
	semitones, err := CorrectionSemitones(est.Frequency, frame.Target, strength)
	if err != nil {
		return frame, nil, err
	}
	frame.Semitones = semitones
	shifted, err := e.capability.Shift(segment, sampleRate, semitones)
	if err != nil {
		return frame, nil, shiftError(err)
	}
	if len(shifted) != len(segment) {
		return frame, nil, services.Wrap(services.ErrProcessingFault, "pitch", "correct",
			fmt.Sprintf("shifter returned %d samples for %d", len(shifted), len(segment)), nil)
	}
	return frame, shifted, nil
}

// Offsets lists the frame start positions for a signal of length n: 0, H, 2H,
// ... while the start is below n - L.
func (e *Engine) Offsets(n int) []int {
	var offsets []int
	for i := 0; i < n-e.frameSize; i += e.hopSize {
		offsets = append(offsets, i)
	}
	return offsets
}

// Stitch writes segments into dst at offsets. The first segment, and any
// segment whose direct flag is set, is copied as-is. Each other segment
// crossfades its first hop samples against what is already in dst with linear
// ramps, then overwrites the remainder. A nil direct crossfades every later
// segment. It returns the end of the last written segment.
func Stitch(dst []float64, hop int, offsets []int, segments [][]float64, direct []bool) int {
	end := 0
	for k, offset := range offsets {
		segment := segments[k]
		if offset+len(segment) > len(dst) {
			segment = segment[:len(dst)-offset]
		}
		if k == 0 || (k < len(direct) && direct[k]) {
			copy(dst[offset:], segment)
		} else {
			fade := min(hop, len(segment))
			for j := 0; j < fade; j++ {
				in := 0.0
				if fade > 1 {
					in = float64(j) / float64(fade-1)
				}
				dst[offset+j] = dst[offset+j]*(1-in) + segment[j]*in
			}
			copy(dst[offset+fade:], segment[fade:])
		}
		end = max(end, offset+len(segment))
	}
	return end
}

// CorrectionSemitones is the shift that moves freq toward target by strength:
// 12*log2(1 + (target-freq)*strength/freq), clamped to +/-MaxSemitones.
func CorrectionSemitones(freq, target, strength float64) (float64, error) {
	if !finite(freq) || !finite(target) || !finite(strength) || freq <= 0 {
		return 0, services.Wrap(services.ErrProcessingFault, "pitch", "correct",
			fmt.Sprintf("invalid correction input freq=%v target=%v strength=%v", freq, target, strength), nil)
	}
	arg := 1 + (target-freq)*strength/freq
	if !finite(arg) || arg <= 0 {
		return 0, services.Wrap(services.ErrProcessingFault, "pitch", "correct",
			fmt.Sprintf("ratio %v for %.2f Hz toward %.2f Hz has no logarithm", arg, freq, target), nil)
	}
	return clampSemitones(12 * math.Log2(arg)), nil
}

// StrengthFromAmount maps the 0-10 user amount to a 0-1 strength.
func StrengthFromAmount(amount float64) float64 {
	if math.IsNaN(amount) {
		return 0
	}
	return math.Min(math.Max(amount, 0), 10) / 10
}

func (e *Engine) checkAvailable(op string) error {
	if e.capability.Available() {
		return nil
	}
	return services.Wrap(services.ErrCapabilityUnavailable, "pitch", op, e.capability.Name(), nil)
}

func validateMono(buf audio.Buffer) error {
	if err := buf.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "pitch", "validate buffer", "", err)
	}
	if buf.Channels != 1 {
		return services.Wrap(services.ErrValidation, "pitch", "validate buffer",
			fmt.Sprintf("expected mono input, got %d channels", buf.Channels), nil)
	}
	return nil
}

func shiftError(err error) error {
	if errors.Is(err, services.ErrCapabilityUnavailable) || errors.Is(err, services.ErrProcessingFault) {
		return err
	}
	return services.Wrap(services.ErrProcessingFault, "pitch", "process", "", err)
}

func clampSemitones(v float64) float64 {
	return math.Min(math.Max(v, -MaxSemitones), MaxSemitones)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
