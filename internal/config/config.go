package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputRoot string `toml:"output_root"`
	LogDir     string `toml:"log_dir"`
	StateDir   string `toml:"state_dir"`
}

// API contains the HTTP API bind address and optional bearer token.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Acquire contains configuration for network audio retrieval.
type Acquire struct {
	YtDlpBinary    string `toml:"ytdlp_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DefaultFormat  string `toml:"default_format"`
}

// Transcode contains configuration for ffmpeg conversions.
type Transcode struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
	Bitrate      string `toml:"bitrate"`
	SampleRate   int    `toml:"sample_rate"`
	Channels     int    `toml:"channels"`
}

// Separation contains configuration for stem separation.
type Separation struct {
	DemucsBinary   string `toml:"demucs_binary"`
	Model          string `toml:"model"`
	Device         string `toml:"device"`
	Key            string `toml:"key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pitch contains configuration for the pitch engine.
type Pitch struct {
	Enabled         bool    `toml:"enabled"`
	Shifter         string  `toml:"shifter"`
	FrameSize       int     `toml:"frame_size"`
	HopSize         int     `toml:"hop_size"`
	Scale           string  `toml:"scale"`
	Tail            string  `toml:"tail"`
	Workers         int     `toml:"workers"`
	DefaultStrength float64 `toml:"default_strength"`
}

// Notifications contains ntfy settings for job completion pushes.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	FailuresOnly          bool   `toml:"failures_only"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for wavedeck.
//
// Configuration sections by subsystem:
//   - Paths: output root, logs, and runtime state (socket, lock, pid)
//   - API: HTTP bind address and bearer token
//   - Acquire: yt-dlp retrieval settings
//   - Transcode: ffmpeg conversion settings
//   - Separation: demucs stem separation settings
//   - Pitch: pitch engine framing, scale, and tail handling
//   - Notifications: optional ntfy pushes when jobs finish
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Acquire       Acquire       `toml:"acquire"`
	Transcode     Transcode     `toml:"transcode"`
	Separation    Separation    `toml:"separation"`
	Pitch         Pitch         `toml:"pitch"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return expandPath(filepath.Join(base, "wavedeck", "config.toml"))
	}
	return expandPath("~/.config/wavedeck/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// RecordingsDir is where uploaded takes and their conversions live.
func (c *Config) RecordingsDir() string {
	return filepath.Join(c.Paths.OutputRoot, "recordings")
}

// StemsDir is the parent of every content-addressed stem directory.
func (c *Config) StemsDir() string {
	return filepath.Join(c.Paths.OutputRoot, "stems")
}

// PitchDir is where pitch engine renders are written.
func (c *Config) PitchDir() string {
	return filepath.Join(c.Paths.OutputRoot, "pitch")
}

// TempDir is the download staging area, emptied after each acquire.
func (c *Config) TempDir() string {
	return filepath.Join(c.Paths.OutputRoot, ".tmp")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "wavedeck.sock")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "wavedeck.lock")
}

// PIDPath returns the daemon pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "wavedeck.pid")
}

// LogPath returns the daemon's JSON log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "wavedeck.log")
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.OutputRoot,
		c.RecordingsDir(),
		c.StemsDir(),
		c.PitchDir(),
		c.Paths.LogDir,
		c.Paths.StateDir,
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
