// Package demucs wraps the demucs CLI used for multi-stem source separation.
package demucs

import (
	"context"
	"crypto/md5" //nolint:gosec
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
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

// WithDevice sets the torch device passed to demucs. Empty lets demucs decide.
func WithDevice(device string) Option {
	return func(c *Client) {
		c.device = strings.TrimSpace(device)
	}
}

// Client wraps demucs CLI interactions.
type Client struct {
	binary  string
	device  string
	timeout time.Duration
	exec    services.Executor
}

// New constructs a demucs client.
func New(binary string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("demucs binary required")
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

// ShortKey is the 8 hex character md5 prefix of the source path.
func ShortKey(input string) string {
	sum := md5.Sum([]byte(input)) //nolint:gosec
	return hex.EncodeToString(sum[:])[:8]
}

// VersionedKey combines the model name and source path into a wider key so
// re-running with another model does not reuse the same directory.
func VersionedKey(input, model string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + input))
	return hex.EncodeToString(sum[:])[:16]
}

// Separate runs demucs on input, writing stems beneath outDir, and returns
// the stem name to file path mapping. Only outDir/<model> is scanned, so
// earlier runs with other models do not leak into the result.
func (c *Client) Separate(ctx context.Context, input, outDir, model string) (map[string]string, error) {
	if _, err := os.Stat(input); err != nil {
		return nil, services.Wrap(services.ErrInputNotFound, "demucs", "separate", input, err)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, services.Wrap(services.ErrValidation, "demucs", "separate", "model required", nil)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create stem directory: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"-n", model}
	if c.device != "" {
		args = append(args, "--device="+c.device)
	}
	args = append(args, "-o", outDir, input)
	if _, err := c.exec.Run(runCtx, c.binary, args); err != nil {
		return nil, services.Wrap(services.ErrToolExecution, "demucs", "separate", filepath.Base(input), err)
	}

	modelDir := filepath.Join(outDir, model)
	stems, err := collectStems(modelDir)
	if err != nil {
		return nil, services.Wrap(services.ErrToolExecution, "demucs", "collect stems", modelDir, err)
	}
	return stems, nil
}

func collectStems(root string) (map[string]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no stems produced")
	}
	sort.Strings(paths)

	stems := make(map[string]string, len(paths))
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if existing, ok := stems[name]; ok {
			return nil, fmt.Errorf("duplicate stem %q (%s and %s)", name, existing, path)
		}
		stems[name] = path
	}
	return stems, nil
}
