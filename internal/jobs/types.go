package jobs

import (
	"fmt"
	"strings"
	"time"

	"wavedeck/internal/services"
)

// Kind names a job type on the wire.
type Kind string

const (
	KindAcquire   Kind = "acquire"
	KindTranscode Kind = "transcode"
	KindSeparate  Kind = "separate"
	KindPitch     Kind = "pitch"
)

// Kinds lists every job kind in display order.
func Kinds() []Kind {
	return []Kind{KindAcquire, KindTranscode, KindSeparate, KindPitch}
}

// ParseKind accepts the wire names plus a few aliases used by older clients.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "acquire", "rip":
		return KindAcquire, nil
	case "transcode", "convert":
		return KindTranscode, nil
	case "separate", "split":
		return KindSeparate, nil
	case "pitch", "pitchprocess", "pitch_process", "process-pitch":
		return KindPitch, nil
	default:
		return "", services.Wrap(services.ErrValidation, "jobs", "parse kind", fmt.Sprintf("unknown job kind %q", value), nil)
	}
}

// Status is the orchestrator state reported by Poll and Snapshot.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a finished job state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Params carries the per-kind job inputs. Amount is a pointer so an omitted
// value can fall back to the per-mode default.
type Params struct {
	Source     string   `json:"source,omitempty"`
	File       string   `json:"file,omitempty"`
	Format     string   `json:"format,omitempty"`
	Amount     *float64 `json:"amount,omitempty"`
	Correction bool     `json:"correction,omitempty"`
	Model      string   `json:"model,omitempty"`
}

// Request is a submit call.
type Request struct {
	Kind   Kind   `json:"kind"`
	Params Params `json:"params"`
}

// StemMap maps stem names to their files.
type StemMap map[string]string

// Output is the payload of a succeeded job: a file for acquire, transcode,
// and pitch jobs, stems for separation.
type Output struct {
	File  string  `json:"file,omitempty"`
	Stems StemMap `json:"stems,omitempty"`
	Mode  string  `json:"mode,omitempty"`
}

// Handle identifies an accepted job.
type Handle struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Result is what Poll returns. Output is set only for succeeded jobs; Error
// and ErrorKind only for failed ones.
type Result struct {
	Status    Status        `json:"status"`
	Job       *Handle       `json:"job,omitempty"`
	Output    *Output       `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind services.Kind `json:"error_kind,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Snapshot is a non-consuming view of the orchestrator.
type Snapshot struct {
	Status  Status        `json:"status"`
	Job     *Handle       `json:"job,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
	Pending bool          `json:"pending"`
}

// Health summarizes whether a runner's collaborators are usable.
type Health struct {
	Kind   Kind   `json:"kind"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy constructs a ready Health record.
func Healthy(kind Kind) Health {
	return Health{Kind: kind, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(kind Kind, detail string) Health {
	return Health{Kind: kind, Ready: false, Detail: detail}
}
