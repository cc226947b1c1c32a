package workflow

import (
	"context"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"finpod/internal/logging"
	"finpod/internal/services"
)

// Run processes targets and returns the run summary. The returned error is
// non-nil only when the run could not start or a state store failure aborted
// it; unit failures are reported through the summary.
func (m *Manager) Run(ctx context.Context, targets []Target) (*Summary, error) {
	lock := flock.New(m.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock %s)", ErrRunInProgress, m.cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	if err := m.runPreflightChecks(ctx); err != nil {
		return nil, err
	}

	summary := &Summary{RunID: uuid.NewString(), Started: m.now()}
	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, m.logger)
	targets = dedupeTargets(targets)
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("units", len(targets)),
		logging.Int("workers", m.workers),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(m.workers)
	for _, target := range targets {
		if groupCtx.Err() != nil {
			summary.add(UnitResult{Company: target.Company, Period: target.Period, Status: UnitInterrupted})
			continue
		}
		group.Go(func() error {
			return m.processUnit(groupCtx, target, summary)
		})
	}
	fatal := group.Wait()

	summary.Duration = m.now().Sub(summary.Started)
	m.logRunSummary(ctx, summary, fatal)
	m.notifyRunCompleted(ctx, summary)
	if fatal != nil {
		return summary, fatal
	}
	return summary, nil
}

func dedupeTargets(targets []Target) []Target {
	seen := make(map[string]struct{}, len(targets))
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		if _, dup := seen[t.Key()]; dup {
			continue
		}
		seen[t.Key()] = struct{}{}
		out = append(out, t)
	}
	return out
}
