package workflow

import (
	"context"
	"errors"
	"fmt"

	"finpod/internal/logging"
	"finpod/internal/notifications"
	"finpod/internal/state"
)

func (m *Manager) notifyUnitFailed(ctx context.Context, unit *state.EpisodeUnit, stage state.Stage, message string) {
	if m.notifier == nil {
		return
	}
	if message == "" {
		message = "stage failed"
	}
	err := m.notifier.NotifyUnitFailed(context.WithoutCancel(ctx), unit.Key(), string(stage), errors.New(message))
	m.logNotifyError(ctx, "unit failure", err)
}

func (m *Manager) notifyPublished(ctx context.Context, unit *state.EpisodeUnit) {
	if m.notifier == nil {
		return
	}
	title := fmt.Sprintf("%s %s earnings call", unit.Company, unit.Period)
	err := m.notifier.NotifyEpisodePublished(context.WithoutCancel(ctx), unit.Key(), title)
	m.logNotifyError(ctx, "episode published", err)
}

func (m *Manager) notifyRunCompleted(ctx context.Context, summary *Summary) {
	if m.notifier == nil || summary == nil {
		return
	}
	err := m.notifier.NotifyRunCompleted(context.WithoutCancel(ctx), notifications.RunTotals{
		Published:     summary.Count(UnitPublished),
		Failed:        summary.Count(UnitFailed),
		AwaitingInput: summary.Count(UnitAwaitingInput),
		Interrupted:   summary.Count(UnitInterrupted),
		Duration:      summary.Duration,
	})
	m.logNotifyError(ctx, "run summary", err)
}

func (m *Manager) logNotifyError(ctx context.Context, kind string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, m.logger), "notification failed", "notification_failed",
		logging.String("notification", kind),
		logging.Error(err),
		logging.String(logging.FieldImpact, "the pipeline continues without this notice"),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
	)
}
