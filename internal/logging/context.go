package logging

import (
	"context"
	"log/slog"

	"finpod/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCompany is the standardized key for the company ticker of a unit.
	FieldCompany = "company"
	// FieldPeriod is the standardized key for reporting periods (e.g. 2024-Q1).
	FieldPeriod = "period"
	// FieldStage is the standardized key for pipeline stage names.
	FieldStage = "stage"
	// FieldCorrelationID is the standardized key for per-attempt correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldRunID identifies one invocation of the pipeline.
	FieldRunID = "run_id"
	// FieldEventType classifies a log line for downstream filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if v, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, v))
	}
	if v, ok := services.CompanyFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCompany, v))
	}
	if v, ok := services.PeriodFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPeriod, v))
	}
	if v, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, v))
	}
	if v, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, v))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return logger.With(args...)
}
