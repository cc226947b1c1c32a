package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"finpod/internal/config"
)

const userAgent = "finpod/0.1"

// RunTotals summarizes a finished run for the completion notice.
type RunTotals struct {
	Published     int
	Failed        int
	AwaitingInput int
	Interrupted   int
	Duration      time.Duration
}

// Service defines the notification surface exposed to the orchestrator.
type Service interface {
	NotifyUnitFailed(ctx context.Context, unit, stage string, err error) error
	NotifyEpisodePublished(ctx context.Context, unit, title string) error
	NotifyRunCompleted(ctx context.Context, totals RunTotals) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		unitFailures: cfg.Notifications.UnitFailures,
		runSummary:   cfg.Notifications.RunSummary,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	unitFailures bool
	runSummary   bool
}

func (n *ntfyService) NotifyUnitFailed(ctx context.Context, unit, stage string, err error) error {
	if !n.unitFailures {
		return nil
	}
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "finpod - Episode Failed",
		message:  fmt.Sprintf("%s failed at %s: %s", strings.TrimSpace(unit), strings.TrimSpace(stage), reason),
		tags:     []string{"finpod", "failed", strings.TrimSpace(stage)},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyEpisodePublished(ctx context.Context, unit, title string) error {
	if !n.runSummary {
		return nil
	}
	message := fmt.Sprintf("Published %s", strings.TrimSpace(unit))
	if title = strings.TrimSpace(title); title != "" {
		message = fmt.Sprintf("%s: %s", message, title)
	}
	data := payload{
		title:   "finpod - Episode Published",
		message: message,
		tags:    []string{"finpod", "publish", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, totals RunTotals) error {
	if !n.runSummary {
		return nil
	}
	duration := totals.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	title := "finpod - Run Complete"
	priority := ""
	if totals.Failed > 0 {
		title = "finpod - Run Complete (with failures)"
		priority = "high"
	}
	message := fmt.Sprintf("%d published, %d failed, %d awaiting input in %s",
		totals.Published, totals.Failed, totals.AwaitingInput, duration)
	if totals.Interrupted > 0 {
		message = fmt.Sprintf("%s (%d interrupted)", message, totals.Interrupted)
	}
	data := payload{
		title:    title,
		message:  message,
		tags:     []string{"finpod", "run", "completed"},
		priority: priority,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "finpod - Test",
		message:  "Notification system test",
		tags:     []string{"finpod", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

type noopService struct{}

func (noopService) NotifyUnitFailed(context.Context, string, string, error) error { return nil }
func (noopService) NotifyEpisodePublished(context.Context, string, string) error  { return nil }
func (noopService) NotifyRunCompleted(context.Context, RunTotals) error           { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
