package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeAcquire()
	c.normalizeTranscode()
	c.normalizeSeparation()
	c.normalizePitch()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputRoot) == "" {
		c.Paths.OutputRoot = defaultOutputRoot
	}
	if c.Paths.OutputRoot, err = expandPath(c.Paths.OutputRoot); err != nil {
		return fmt.Errorf("paths.output_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("WAVEDECK_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeAcquire() {
	c.Acquire.YtDlpBinary = strings.TrimSpace(c.Acquire.YtDlpBinary)
	if c.Acquire.YtDlpBinary == "" {
		c.Acquire.YtDlpBinary = defaultYtDlpBinary
	}
	c.Acquire.DefaultFormat = normalizeFormat(c.Acquire.DefaultFormat)
	if c.Acquire.DefaultFormat == "" {
		c.Acquire.DefaultFormat = defaultFormat
	}
	if c.Acquire.TimeoutSeconds < 0 {
		c.Acquire.TimeoutSeconds = 0
	}
}

func (c *Config) normalizeTranscode() {
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	if c.Transcode.FFmpegBinary == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
	c.Transcode.Bitrate = strings.ToLower(strings.TrimSpace(c.Transcode.Bitrate))
	if c.Transcode.Bitrate == "" {
		c.Transcode.Bitrate = defaultBitrate
	}
	if c.Transcode.SampleRate == 0 {
		c.Transcode.SampleRate = defaultSampleRate
	}
	if c.Transcode.Channels == 0 {
		c.Transcode.Channels = defaultChannels
	}
}

func (c *Config) normalizeSeparation() {
	c.Separation.DemucsBinary = strings.TrimSpace(c.Separation.DemucsBinary)
	if c.Separation.DemucsBinary == "" {
		c.Separation.DemucsBinary = defaultDemucsBinary
	}
	c.Separation.Model = strings.TrimSpace(c.Separation.Model)
	if c.Separation.Model == "" {
		c.Separation.Model = defaultDemucsModel
	}
	c.Separation.Device = strings.ToLower(strings.TrimSpace(c.Separation.Device))
	if c.Separation.Device == "" {
		c.Separation.Device = defaultDemucsDevice
	}
	c.Separation.Key = strings.ToLower(strings.TrimSpace(c.Separation.Key))
	if c.Separation.Key == "" {
		c.Separation.Key = defaultStemKey
	}
	if c.Separation.TimeoutSeconds < 0 {
		c.Separation.TimeoutSeconds = 0
	}
}

func (c *Config) normalizePitch() {
	c.Pitch.Shifter = strings.ToLower(strings.TrimSpace(c.Pitch.Shifter))
	if c.Pitch.Shifter == "" {
		c.Pitch.Shifter = defaultShifter
	}
	if c.Pitch.FrameSize == 0 {
		c.Pitch.FrameSize = defaultFrameSize
	}
	if c.Pitch.HopSize == 0 {
		c.Pitch.HopSize = defaultHopSize
	}
	c.Pitch.Scale = strings.TrimSpace(c.Pitch.Scale)
	if c.Pitch.Scale == "" {
		c.Pitch.Scale = defaultScale
	}
	c.Pitch.Tail = strings.ToLower(strings.TrimSpace(c.Pitch.Tail))
	if c.Pitch.Tail == "" {
		c.Pitch.Tail = defaultTailPolicy
	}
	if c.Pitch.Workers <= 0 {
		c.Pitch.Workers = runtime.NumCPU()
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeFormat(value string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), ".")
}

// NormalizeFormat canonicalizes an output format name ("MP3", ".wav").
func NormalizeFormat(value string) string {
	return normalizeFormat(value)
}
