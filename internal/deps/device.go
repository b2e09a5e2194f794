package deps

import (
	"os"
	"os/exec"
	"runtime"
	"strings"

	"wavedeck/internal/config"
)

// gpuProbe is the binary whose presence implies a usable CUDA device.
var gpuProbe = "nvidia-smi"

// ResolveSeparationDevice turns the configured separation device into the
// value passed to demucs. Auto resolves to cuda when an NVIDIA driver is
// installed and to an empty string (demucs default) otherwise.
func ResolveSeparationDevice(device string) string {
	switch strings.ToLower(strings.TrimSpace(device)) {
	case config.DeviceCPU:
		return config.DeviceCPU
	case config.DeviceCUDA:
		return config.DeviceCUDA
	}
	path, err := exec.LookPath(gpuProbe)
	if err != nil {
		return ""
	}
	if info, statErr := os.Stat(path); statErr == nil && isExecutable(info) {
		return config.DeviceCUDA
	}
	return ""
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
