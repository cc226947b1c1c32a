package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInputUnavailable marks a source that has not published material for
	// the requested period yet. Not a failure; the unit waits for a later run.
	ErrInputUnavailable = errors.New("input unavailable")
	// ErrNormalizationEmpty marks raw text that normalized to nothing.
	ErrNormalizationEmpty = errors.New("normalization produced no content")
	// ErrStructureAmbiguous marks transcript lines the segmenter refuses to guess at.
	ErrStructureAmbiguous = errors.New("transcript structure ambiguous")
	// ErrTransient marks collaborator failures worth retrying (rate limits, timeouts).
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks collaborator failures that will not succeed on retry.
	ErrPermanent = errors.New("permanent failure")
	// ErrStateStore marks persistence failures; the run cannot continue safely.
	ErrStateStore = errors.New("state store failure")

	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
)

// Outcome is the orchestrator-facing classification of a stage error.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeUnavailable
	OutcomeTransient
	OutcomePermanent
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrPermanent
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps a stage error to the outcome the orchestrator acts on.
// State store failures win over every other marker. Errors carrying no marker
// are treated as permanent, except for deadline expiry which is transient.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeNone
	case errors.Is(err, ErrStateStore):
		return OutcomeFatal
	case errors.Is(err, ErrInputUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, ErrTransient):
		return OutcomeTransient
	case errors.Is(err, ErrPermanent),
		errors.Is(err, ErrNormalizationEmpty),
		errors.Is(err, ErrStructureAmbiguous),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration):
		return OutcomePermanent
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTransient
	default:
		return OutcomePermanent
	}
}

// IsRetryable reports whether err should be attempted again.
func IsRetryable(err error) bool {
	return Classify(err) == OutcomeTransient
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
