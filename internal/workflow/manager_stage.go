package workflow

import (
	"context"

	"github.com/google/uuid"

	"finpod/internal/logging"
	"finpod/internal/retry"
	"finpod/internal/services"
	"finpod/internal/stages"
	"finpod/internal/state"
)

// stageResult is how one stage ended for the unit.
type stageResult int

const (
	stageSucceeded stageResult = iota
	stageFailed
	stageAwaitingInput
	stageInterrupted
)

// processUnit advances one unit as far as it can go. It returns an error only
// for failures that must abort the run.
func (m *Manager) processUnit(ctx context.Context, target Target, summary *Summary) error {
	key := target.Key()
	if !m.claims.claim(key) {
		m.logger.Warn("unit already claimed; skipping duplicate",
			logging.String(logging.FieldEventType, "unit_claim_conflict"),
			logging.String("unit", key),
		)
		return nil
	}
	defer m.claims.release(key)

	started := m.now()
	result := UnitResult{Company: target.Company, Period: target.Period}
	defer func() {
		result.Duration = m.now().Sub(started)
		summary.add(result)
	}()

	ctx = services.WithPeriod(services.WithCompany(ctx, target.Company), target.Period)
	logger := logging.WithContext(ctx, m.logger)

	if ctx.Err() != nil {
		result.Status = UnitInterrupted
		return nil
	}
	unit, err := m.store.LoadUnit(context.WithoutCancel(ctx), target.Company, target.Period)
	if err != nil {
		result.Status = UnitInterrupted
		return err
	}

	if state.IsComplete(unit) {
		result.Status = UnitPublished
		result.Stage = state.StagePublish
		result.PublishedID = unit.Artifact(state.StagePublish)
		result.Resumed = true
		logger.Info("unit already published",
			logging.String(logging.FieldEventType, "unit_skipped"),
			logging.String("published_id", result.PublishedID),
		)
		return nil
	}
	if stage, failed := unit.FailedPermanently(); failed {
		rec := unit.Record(stage)
		result.Status = UnitFailed
		result.Stage = stage
		result.Attempts = rec.AttemptCount
		result.Error = rec.LastError
		result.Resumed = true
		logging.WarnWithContext(logger, "unit failed in an earlier run", "unit_skipped_failed",
			logging.String(logging.FieldStage, string(stage)),
			logging.String("last_error", rec.LastError),
			logging.String(logging.FieldImpact, "unit will not be retried"),
			logging.String(logging.FieldErrorHint, "run 'finpod state reset "+unit.Company+" "+unit.Period+"' to retry"),
		)
		return nil
	}

	for _, exec := range m.executors {
		stage := exec.Stage()
		if unit.StatusOf(stage) == state.StatusSuccess {
			continue
		}
		if ctx.Err() != nil {
			result.Status = UnitInterrupted
			result.Stage = stage
			return nil
		}
		outcome, err := m.runStage(ctx, unit, exec)
		rec := unit.Record(stage)
		result.Stage = stage
		if rec != nil {
			result.Attempts = rec.AttemptCount
			result.Error = rec.LastError
		}
		if err != nil {
			result.Status = UnitInterrupted
			return err
		}
		switch outcome {
		case stageSucceeded:
			continue
		case stageFailed:
			result.Status = UnitFailed
			m.notifyUnitFailed(ctx, unit, stage, result.Error)
			return nil
		case stageAwaitingInput:
			result.Status = UnitAwaitingInput
			return nil
		default:
			result.Status = UnitInterrupted
			return nil
		}
	}

	result.Status = UnitPublished
	result.Stage = state.StagePublish
	result.PublishedID = unit.Artifact(state.StagePublish)
	result.Error = ""
	logger.Info("unit published",
		logging.String(logging.FieldEventType, "unit_published"),
		logging.String("published_id", result.PublishedID),
	)
	m.notifyPublished(ctx, unit)
	return nil
}

// runStage executes one stage through its collaborator's retry executor,
// recording every attempt. The error is non-nil only for state store failures.
func (m *Manager) runStage(ctx context.Context, unit *state.EpisodeUnit, exec stages.Executor) (stageResult, error) {
	stage := exec.Stage()
	correlationID := uuid.NewString()
	ctx = services.WithRequestID(services.WithStage(ctx, string(stage)), correlationID)
	logger := logging.WithContext(ctx, m.logger)
	retrier := m.retrier(exec.Collaborator())
	maxAttempts := retrier.Policy().MaxAttempts

	prior := priorAttempts(unit.Record(stage))
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("collaborator", exec.Collaborator()),
		logging.Int("prior_attempts", prior),
	)
	started := m.now()

	var artifact string
	call := retry.Call{
		Name:          exec.Collaborator(),
		PriorAttempts: prior,
		Before: func(hookCtx context.Context, attempt int) error {
			return m.store.RecordAttempt(hookCtx, unit, stage, state.Outcome{
				Status:        state.StatusInProgress,
				AttemptCount:  attempt,
				CorrelationID: correlationID,
			})
		},
		After: func(hookCtx context.Context, attempt int, err error, outcome services.Outcome) error {
			return m.store.RecordAttempt(hookCtx, unit, stage, attemptOutcome(attempt, maxAttempts, err, outcome, artifact, correlationID))
		},
	}
	_, err := retrier.Do(ctx, call, func(callCtx context.Context) error {
		ref, execErr := exec.Execute(callCtx, unit)
		artifact = ref
		return execErr
	})

	if err != nil && services.Classify(err) == services.OutcomeFatal {
		logging.ErrorWithContext(logger, "state store write failed; aborting run", "state_store_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check disk space and permissions on the state directory"),
		)
		return stageInterrupted, err
	}

	duration := m.now().Sub(started)
	rec := unit.Record(stage)
	switch unit.StatusOf(stage) {
	case state.StatusSuccess:
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("artifact", rec.ArtifactRef),
			logging.Int("attempts", rec.AttemptCount),
			logging.Duration("duration", duration),
		)
		return stageSucceeded, nil
	case state.StatusFailedPermanent:
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.Error(err),
			logging.Int("attempts", rec.AttemptCount),
			logging.String(logging.FieldErrorHint, failureHint(err)),
		)
		return stageFailed, nil
	}
	if services.Classify(err) == services.OutcomeUnavailable {
		logger.Info("source material not available yet",
			logging.String(logging.FieldEventType, "awaiting_input"),
			logging.String("reason", errorText(err)),
		)
		return stageAwaitingInput, nil
	}
	logging.WarnWithContext(logger, "stage interrupted", "stage_interrupted",
		logging.Error(err),
		logging.String(logging.FieldImpact, "unit resumes from this stage on the next run"),
		logging.String(logging.FieldErrorHint, "rerun finpod run"),
	)
	return stageInterrupted, nil
}
