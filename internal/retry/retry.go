package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"finpod/internal/logging"
	"finpod/internal/services"
)

// ErrAttemptsExhausted marks a transient failure that used up its attempt budget.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Classifier maps an attempt error to an outcome.
type Classifier func(error) services.Outcome

// Policy bounds the number of attempts and the delay between them.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// CallTimeout bounds each attempt. Zero leaves attempts unbounded.
	CallTimeout time.Duration
}

// Call describes one retried operation.
type Call struct {
	// Name identifies the collaborator in logs.
	Name string
	// PriorAttempts are attempts already spent in earlier runs.
	PriorAttempts int
	// Before runs ahead of each attempt with its 1-based number.
	Before func(ctx context.Context, attempt int) error
	// After runs once each attempt has finished.
	After func(ctx context.Context, attempt int, err error, outcome services.Outcome) error
}

// Executor retries operations for a single collaborator.
type Executor struct {
	policy   Policy
	limiter  *rate.Limiter
	classify Classifier
	logger   *slog.Logger
}

// Option customizes an Executor.
type Option func(*Executor)

// WithLimiter throttles attempts through limiter.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(e *Executor) { e.limiter = limiter }
}

// WithClassifier replaces services.Classify.
func WithClassifier(classify Classifier) Option {
	return func(e *Executor) {
		if classify != nil {
			e.classify = classify
		}
	}
}

// WithLogger routes retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewLimiter converts a requests-per-minute budget into a limiter. A
// non-positive budget disables limiting.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}

// New constructs an Executor.
func New(policy Policy, opts ...Option) *Executor {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = time.Second
	}
	if policy.MaxInterval < policy.InitialInterval {
		policy.MaxInterval = policy.InitialInterval
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 2
	}
	e := &Executor{policy: policy, classify: services.Classify, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the effective policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs op until it succeeds, fails with a non-transient outcome, or the
// attempt budget runs out. ctx governs waiting: cancellation stops new
// attempts but an attempt already started runs on a detached context bounded
// by the call timeout. It returns the attempt number reached and the final
// error; exhausted budgets wrap ErrAttemptsExhausted.
func (e *Executor) Do(ctx context.Context, call Call, op func(ctx context.Context) error) (int, error) {
	remaining := e.policy.MaxAttempts - call.PriorAttempts
	if remaining < 1 {
		remaining = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.policy.InitialInterval
	bo.MaxInterval = e.policy.MaxInterval
	bo.Multiplier = e.policy.Multiplier
	bo.RandomizationFactor = 0.2
	bo.MaxElapsedTime = 0
	bo.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(remaining-1)), ctx)

	attempt := call.PriorAttempts
	var (
		lastErr     error
		lastOutcome services.Outcome
		hookErr     error
	)
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		attempt++
		if call.Before != nil {
			if err := call.Before(context.WithoutCancel(ctx), attempt); err != nil {
				hookErr = err
				return backoff.Permanent(err)
			}
		}

		err := e.invoke(ctx, op)
		lastErr = err
		lastOutcome = e.classify(err)

		if call.After != nil {
			if herr := call.After(context.WithoutCancel(ctx), attempt, err, lastOutcome); herr != nil {
				hookErr = herr
				return backoff.Permanent(herr)
			}
		}
		if err == nil {
			return nil
		}
		if lastOutcome != services.OutcomeTransient {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		e.logger.Warn("collaborator call failed; retrying",
			logging.String(logging.FieldEventType, "collaborator_retry"),
			logging.String("collaborator", call.Name),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", e.policy.MaxAttempts),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "transient failure; backing off before the next attempt"),
		)
	}

	err := backoff.RetryNotify(operation, policy, notify)
	switch {
	case err == nil:
		return attempt, nil
	case hookErr != nil:
		return attempt, hookErr
	case lastErr == nil:
		// Cancelled before any attempt in this call.
		return attempt, err
	case lastOutcome == services.OutcomeTransient && ctx.Err() == nil:
		return attempt, fmt.Errorf("%w: %s after %d attempts: %w", ErrAttemptsExhausted, call.Name, attempt, lastErr)
	case lastOutcome == services.OutcomeTransient:
		return attempt, errors.Join(ctx.Err(), lastErr)
	default:
		return attempt, lastErr
	}
}

func (e *Executor) invoke(ctx context.Context, op func(ctx context.Context) error) error {
	callCtx := context.WithoutCancel(ctx)
	if e.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, e.policy.CallTimeout)
		defer cancel()
	}
	return op(callCtx)
}
