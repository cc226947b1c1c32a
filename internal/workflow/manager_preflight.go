package workflow

import (
	"context"
	"fmt"
	"strings"

	"finpod/internal/logging"
	"finpod/internal/services"
)

// runPreflightChecks asks every stage whether it can run. Returns nil when all
// checks pass, or an error describing all failures.
func (m *Manager) runPreflightChecks(ctx context.Context) error {
	var failures []string
	for _, exec := range m.executors {
		health := exec.HealthCheck(ctx)
		if health.Ready {
			m.logger.Debug("preflight check passed",
				logging.String("check", health.Name),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		m.logger.Error("preflight check failed",
			logging.String("check", health.Name),
			logging.String("detail", health.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue and rerun"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", health.Name, health.Detail))
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "workflow", "preflight", strings.Join(failures, "; "), nil)
	}
	return nil
}
