package ipc

import (
	"wavedeck/internal/daemon"
	"wavedeck/internal/jobs"
	"wavedeck/internal/services"
)

// SubmitRequest asks the daemon to start a job.
type SubmitRequest struct {
	Kind   string      `json:"kind"`
	Params jobs.Params `json:"params"`
}

// SubmitResponse reports whether the job was accepted. Status is "accepted",
// "busy", or "rejected".
type SubmitResponse struct {
	Status    string        `json:"status"`
	Job       *jobs.Handle  `json:"job,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind services.Kind `json:"error_kind,omitempty"`
}

// Submit response statuses.
const (
	SubmitAccepted = "accepted"
	SubmitBusy     = "busy"
	SubmitRejected = "rejected"
)

// PollRequest consumes the finished result, if any.
type PollRequest struct{}

// PollResponse wraps the orchestrator result.
type PollResponse struct {
	Result jobs.Result `json:"result"`
}

// WaitRequest blocks until the current job finishes. TimeoutSeconds <= 0
// waits indefinitely.
type WaitRequest struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

// WaitResponse carries the terminal result without consuming it.
type WaitResponse struct {
	Result   jobs.Result `json:"result"`
	TimedOut bool        `json:"timed_out"`
}

// StatusRequest requests daemon status.
type StatusRequest struct{}

// StatusResponse wraps daemon status.
type StatusResponse struct {
	Status daemon.Status `json:"status"`
}

// StemsRequest lists the current stems.
type StemsRequest struct{}

// StemsResponse lists the last separation's stems.
type StemsResponse struct {
	Source string       `json:"source,omitempty"`
	Stems  jobs.StemMap `json:"stems"`
}

// SaveStemRequest copies a current stem into the output root.
type SaveStemRequest struct {
	Stem string `json:"stem"`
}

// SaveStemResponse reports the saved file.
type SaveStemResponse struct {
	Path      string        `json:"path,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind services.Kind `json:"error_kind,omitempty"`
}
