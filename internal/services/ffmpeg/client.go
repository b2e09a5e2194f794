// Package ffmpeg wraps the ffmpeg CLI for format conversion and for decoding
// arbitrary inputs into the PCM WAV the pitch engine reads.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"wavedeck/internal/services"
)

// Settings mirrors the transcode configuration section.
type Settings struct {
	Bitrate    string
	SampleRate int
	Channels   int
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps ffmpeg CLI interactions.
type Client struct {
	binary   string
	settings Settings
	exec     services.Executor
}

// New constructs an ffmpeg client.
func New(binary string, settings Settings, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	if settings.Bitrate == "" {
		settings.Bitrate = "192k"
	}
	if settings.SampleRate <= 0 {
		settings.SampleRate = 44100
	}
	if settings.Channels <= 0 {
		settings.Channels = 2
	}
	client := &Client{
		binary:   binary,
		settings: settings,
		exec:     services.CommandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// OutputPath derives the deterministic conversion target for input.
func OutputPath(input, outDir, format string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(outDir, stem+"."+format)
}

// Convert transcodes input into outDir/<stem>.<format>, overwriting any
// existing file at that path.
func (c *Client) Convert(ctx context.Context, input, outDir, format string) (string, error) {
	format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	if format == "" {
		return "", services.Wrap(services.ErrValidation, "ffmpeg", "convert", "target format required", nil)
	}
	if _, err := os.Stat(input); err != nil {
		return "", services.Wrap(services.ErrInputNotFound, "ffmpeg", "convert", input, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	output := OutputPath(input, outDir, format)
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", input, "-vn"}
	if format == "wav" {
		args = append(args,
			"-ac", strconv.Itoa(c.settings.Channels),
			"-ar", strconv.Itoa(c.settings.SampleRate),
		)
	} else {
		args = append(args, "-b:a", c.settings.Bitrate)
	}
	args = append(args, output)

	if _, err := c.exec.Run(ctx, c.binary, args); err != nil {
		return "", services.Wrap(services.ErrToolExecution, "ffmpeg", "convert", filepath.Base(input), err)
	}
	return output, nil
}

// DecodeWAV writes a mono 16-bit PCM WAV of input to output.
func (c *Client) DecodeWAV(ctx context.Context, input, output string) error {
	if _, err := os.Stat(input); err != nil {
		return services.Wrap(services.ErrInputNotFound, "ffmpeg", "decode", input, err)
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(c.settings.SampleRate),
		"-c:a", "pcm_s16le",
		output,
	}
	if _, err := c.exec.Run(ctx, c.binary, args); err != nil {
		return services.Wrap(services.ErrToolExecution, "ffmpeg", "decode", filepath.Base(input), err)
	}
	return nil
}
