package workflow

import (
	"context"

	"finpod/internal/logging"
)

// logRunSummary writes one line per unfinished unit and a closing totals line.
func (m *Manager) logRunSummary(ctx context.Context, summary *Summary, fatal error) {
	logger := logging.WithContext(ctx, m.logger)
	for _, u := range summary.Units() {
		if u.Status == UnitPublished {
			continue
		}
		logger.Info("unit not published",
			logging.String(logging.FieldEventType, "unit_result"),
			logging.String(logging.FieldCompany, u.Company),
			logging.String(logging.FieldPeriod, u.Period),
			logging.String("status", string(u.Status)),
			logging.String(logging.FieldStage, string(u.Stage)),
			logging.Int("attempts", u.Attempts),
			logging.String("last_error", u.Error),
		)
	}

	attrs := []logging.Attr{
		logging.Int("published", summary.Count(UnitPublished)),
		logging.Int("failed", summary.Count(UnitFailed)),
		logging.Int("awaiting_input", summary.Count(UnitAwaitingInput)),
		logging.Int("interrupted", summary.Count(UnitInterrupted)),
		logging.Duration("duration", summary.Duration),
	}
	if fatal != nil {
		logging.ErrorWithContext(logger, "run aborted", "run_aborted",
			append(attrs,
				logging.Error(fatal),
				logging.String(logging.FieldErrorHint, "state was not fully recorded; fix the store and rerun"),
			)...,
		)
		return
	}
	attrs = append(attrs, logging.String(logging.FieldEventType, "run_complete"))
	logger.Info("run finished", logging.Args(attrs...)...)
}
