package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"wavedeck/internal/config"
)

// Requirement defines an external dependency wavedeck relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the external tools the job runners invoke.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{Name: "yt-dlp", Command: cfg.Acquire.YtDlpBinary, Description: "Audio retrieval for acquire jobs"},
		{Name: "FFmpeg", Command: cfg.Transcode.FFmpegBinary, Description: "Transcoding and decoding for pitch jobs"},
		{Name: "Demucs", Command: cfg.Separation.DemucsBinary, Description: "Stem separation", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Available reports whether the named dependency resolved in statuses.
func Available(statuses []Status, name string) bool {
	for _, status := range statuses {
		if strings.EqualFold(status.Name, name) {
			return status.Available
		}
	}
	return false
}
