package services

import "context"

type contextKey string

const (
	companyKey   contextKey = "company"
	periodKey    contextKey = "period"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
	runIDKey     contextKey = "run_id"
)

// WithCompany annotates context with the company ticker being processed.
func WithCompany(ctx context.Context, ticker string) context.Context {
	if ticker == "" {
		return ctx
	}
	return context.WithValue(ctx, companyKey, ticker)
}

// CompanyFromContext extracts the company ticker if present.
func CompanyFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, companyKey)
}

// WithPeriod annotates context with the reporting period key (e.g. 2024-Q1).
func WithPeriod(ctx context.Context, period string) context.Context {
	if period == "" {
		return ctx
	}
	return context.WithValue(ctx, periodKey, period)
}

// PeriodFromContext returns the reporting period key if present.
func PeriodFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, periodKey)
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, stageKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

// WithRunID annotates context with the identifier of the current pipeline run.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, runIDKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
