package preflight

import (
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"wavedeck/internal/config"
	"wavedeck/internal/deps"
	"wavedeck/internal/pitch"
)

const selfTestRate = 22050

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external tools the job runners invoke. Both
// the daemon and the CLI use this so the requirement list lives in one place.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

// CheckPitch builds the configured pitch backend and tracks a synthetic A4
// frame through it.
func CheckPitch(cfg *config.Config) Result {
	const name = "Pitch engine"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Pitch.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if _, err := pitch.ParseScale(cfg.Pitch.Scale); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid scale: %v", err)}
	}
	capability, err := pitch.NewDSPCapability(pitch.DSPOptions{Shifter: cfg.Pitch.Shifter})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	frame := make([]float64, cfg.Pitch.FrameSize)
	for i := range frame {
		frame[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/selfTestRate)
	}
	estimate, err := capability.Track(frame, selfTestRate)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s: track failed: %v", capability.Name(), err)}
	}
	if !estimate.Voiced() || math.Abs(estimate.Frequency-440) > 5 {
		return Result{Name: name, Detail: fmt.Sprintf("%s: self-test tracked %.1f Hz, want 440", capability.Name(), estimate.Frequency)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (self-test %.1f Hz)", capability.Name(), estimate.Frequency)}
}

// CheckDaemonSocket reports whether a daemon is answering on socketPath.
func CheckDaemonSocket(socketPath string) Result {
	const name = "Daemon"
	socketPath = strings.TrimSpace(socketPath)
	if socketPath == "" {
		return Result{Name: name, Detail: "socket path not configured"}
	}
	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("not running (%s)", socketPath)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("running (%s)", socketPath)}
}
