package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateSeparation(); err != nil {
		return err
	}
	if err := c.validatePitch(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputRoot) == "" {
		return errors.New("paths.output_root must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.SampleRate < 0 {
		return errors.New("transcode.sample_rate must be positive")
	}
	if c.Transcode.Channels < 0 || c.Transcode.Channels > 8 {
		return errors.New("transcode.channels must be between 1 and 8")
	}
	if strings.ContainsAny(c.Acquire.DefaultFormat, `/\ `) {
		return fmt.Errorf("acquire.default_format %q is not a file extension", c.Acquire.DefaultFormat)
	}
	return nil
}

func (c *Config) validateSeparation() error {
	switch c.Separation.Device {
	case DeviceAuto, DeviceCPU, DeviceCUDA:
	default:
		return fmt.Errorf("separation.device must be one of auto, cpu, cuda (got %q)", c.Separation.Device)
	}
	switch c.Separation.Key {
	case StemKeyShort, StemKeyVersioned:
	default:
		return fmt.Errorf("separation.key must be short or versioned (got %q)", c.Separation.Key)
	}
	return nil
}

func (c *Config) validatePitch() error {
	switch c.Pitch.Shifter {
	case ShifterWSOLA, ShifterSpectral:
	default:
		return fmt.Errorf("pitch.shifter must be wsola or spectral (got %q)", c.Pitch.Shifter)
	}
	switch c.Pitch.Tail {
	case TailPassthrough, TailDrop:
	default:
		return fmt.Errorf("pitch.tail must be passthrough or drop (got %q)", c.Pitch.Tail)
	}
	if c.Pitch.FrameSize < 64 {
		return errors.New("pitch.frame_size must be at least 64 samples")
	}
	if c.Pitch.HopSize <= 0 || c.Pitch.HopSize > c.Pitch.FrameSize {
		return errors.New("pitch.hop_size must be positive and no larger than pitch.frame_size")
	}
	if c.Pitch.DefaultStrength < 0 || c.Pitch.DefaultStrength > 10 {
		return errors.New("pitch.default_strength must be between 0 and 10")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL (got %q)", topic)
	}
	return nil
}
