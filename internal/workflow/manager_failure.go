package workflow

import (
	"errors"
	"strings"

	"finpod/internal/retry"
	"finpod/internal/services"
	"finpod/internal/state"
)

// attemptOutcome maps one finished attempt to the record written for it.
func attemptOutcome(attempt, maxAttempts int, err error, outcome services.Outcome, artifact, correlationID string) state.Outcome {
	out := state.Outcome{AttemptCount: attempt, CorrelationID: correlationID}
	switch {
	case err == nil:
		out.Status = state.StatusSuccess
		out.ArtifactRef = artifact
		return out
	case outcome == services.OutcomeUnavailable:
		// Waiting for input spends no retry budget.
		out.Status = state.StatusPending
		out.AttemptCount = 0
	case outcome == services.OutcomeTransient && attempt < maxAttempts:
		out.Status = state.StatusFailedRetryable
	case outcome == services.OutcomeTransient:
		out.Status = state.StatusFailedPermanent
		err = errors.Join(retry.ErrAttemptsExhausted, err)
	default:
		out.Status = state.StatusFailedPermanent
	}
	out.Error = errorText(err)
	return out
}

// priorAttempts counts attempts already spent by earlier runs.
func priorAttempts(rec *state.StageRecord) int {
	if rec == nil {
		return 0
	}
	switch rec.Status {
	case state.StatusFailedRetryable, state.StatusPending, state.StatusInProgress:
		return rec.AttemptCount
	}
	return 0
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, retry.ErrAttemptsExhausted):
		return "collaborator kept failing; check its status, then reset the unit"
	case errors.Is(err, services.ErrNormalizationEmpty):
		return "the source returned no usable transcript text"
	case errors.Is(err, services.ErrStructureAmbiguous):
		return "inspect the transcript with 'finpod structure' and fix the cue pattern"
	case errors.Is(err, services.ErrConfiguration):
		return "check config.toml"
	}
	return "fix the cause, then run 'finpod state reset' for the unit"
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}
