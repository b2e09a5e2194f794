package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"wavedeck/internal/config"
	"wavedeck/internal/jobs"
	"wavedeck/internal/logging"
)

const userAgent = "wavedeck/0.1"

// Notifier sends job notifications.
type Notifier interface {
	JobFinished(ctx context.Context, handle jobs.Handle, result jobs.Result) error
	Test(ctx context.Context) error
}

// New builds an ntfy-backed notifier, or a no-op one when no topic is set.
func New(cfg *config.Config) Notifier {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return noopNotifier{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyNotifier{
		endpoint:     strings.TrimSpace(cfg.Notifications.NtfyTopic),
		client:       &http.Client{Timeout: timeout},
		failuresOnly: cfg.Notifications.FailuresOnly,
	}
}

// Hook adapts n to an orchestrator completion hook. Each notification is
// sent on its own goroutine bound to ctx.
func Hook(ctx context.Context, n Notifier, logger *slog.Logger) jobs.CompletionHook {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "notifications")
	return func(handle jobs.Handle, result jobs.Result) {
		if _, ok := n.(noopNotifier); ok || n == nil {
			return
		}
		go func() {
			if err := n.JobFinished(ctx, handle, result); err != nil {
				logging.WarnWithContext(logger, "job notification failed", "notification_failed",
					logging.String(logging.FieldJobID, handle.ID),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
					logging.String(logging.FieldImpact, "completion push not delivered"),
				)
			}
		}()
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyNotifier struct {
	endpoint     string
	client       *http.Client
	failuresOnly bool
}

func (n *ntfyNotifier) JobFinished(ctx context.Context, handle jobs.Handle, result jobs.Result) error {
	kind := string(handle.Kind)
	label := "Job"
	if kind != "" {
		label = strings.ToUpper(kind[:1]) + kind[1:]
	}

	switch result.Status {
	case jobs.StatusFailed:
		return n.send(ctx, message{
			title:    fmt.Sprintf("wavedeck - %s failed", label),
			body:     fmt.Sprintf("%s: %s", result.ErrorKind, strings.TrimSpace(result.Error)),
			tags:     []string{"wavedeck", kind, "failed"},
			priority: "high",
		})
	case jobs.StatusSucceeded:
		if n.failuresOnly {
			return nil
		}
		return n.send(ctx, message{
			title: fmt.Sprintf("wavedeck - %s complete", label),
			body:  successBody(result),
			tags:  []string{"wavedeck", kind, "completed"},
		})
	default:
		return nil
	}
}

func (n *ntfyNotifier) Test(ctx context.Context) error {
	return n.send(ctx, message{
		title:    "wavedeck - Test",
		body:     "Notification system test",
		tags:     []string{"wavedeck", "test"},
		priority: "low",
	})
}

func successBody(result jobs.Result) string {
	took := result.Duration.Round(time.Second)
	if result.Output == nil {
		return fmt.Sprintf("Finished in %s", took)
	}
	if len(result.Output.Stems) > 0 {
		names := make([]string, 0, len(result.Output.Stems))
		for name := range result.Output.Stems {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Sprintf("Stems: %s (%s)", strings.Join(names, ", "), took)
	}
	return fmt.Sprintf("%s (%s)", filepath.Base(result.Output.File), took)
}

func (n *ntfyNotifier) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) JobFinished(context.Context, jobs.Handle, jobs.Result) error { return nil }
func (noopNotifier) Test(context.Context) error                                  { return nil }
