// Package ytdlp wraps the yt-dlp CLI used to retrieve audio from a network
// source.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wavedeck/internal/services"
)

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

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary  string
	timeout time.Duration
	exec    services.Executor
}

// New constructs a yt-dlp client.
func New(binary string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    services.CommandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ValidateSource checks that source is an absolute http(s) URL.
func ValidateSource(source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return errors.New("source url required")
	}
	parsed, err := url.Parse(source)
	if err != nil {
		return fmt.Errorf("parse source url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("source url must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("source url has no host")
	}
	return nil
}

// Fetch downloads the best available audio stream for source into destDir and
// returns the downloaded file path.
func (c *Client) Fetch(ctx context.Context, source, destDir string) (string, error) {
	if err := ValidateSource(source); err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "ytdlp", "validate", "invalid source", err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"-f", "bestaudio",
		"--no-playlist",
		"--no-progress",
		"--print", "after_move:filepath",
		"-o", filepath.Join(destDir, "%(title)s.%(ext)s"),
		strings.TrimSpace(source),
	}
	result, err := c.exec.Run(runCtx, c.binary, args)
	if err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "ytdlp", "fetch", strings.TrimSpace(source), err)
	}

	if path := services.LastLine(result.Stdout); path != "" {
		if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
			return path, nil
		}
	}
	path, err := newestFile(destDir)
	if err != nil {
		return "", services.Wrap(services.ErrSourceUnavailable, "ytdlp", "fetch", "no file downloaded", err)
	}
	return path, nil
}

func newestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var (
		newest   string
		newestAt time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".part") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest = filepath.Join(dir, entry.Name())
			newestAt = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no files in %s", dir)
	}
	return newest, nil
}
