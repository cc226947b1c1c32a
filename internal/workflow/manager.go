package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finpod/internal/config"
	"finpod/internal/logging"
	"finpod/internal/notifications"
	"finpod/internal/retry"
	"finpod/internal/stages"
	"finpod/internal/state"
)

// ErrRunInProgress reports another run holding the state directory lock.
var ErrRunInProgress = errors.New("another finpod run is using this state directory")

// Manager coordinates units through the registered stage executors.
type Manager struct {
	cfg       *config.Config
	store     *state.Store
	logger    *slog.Logger
	notifier  notifications.Service
	executors []stages.Executor
	retriers  map[string]*retry.Executor
	workers   int
	claims    *claimSet
	now       func() time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier replaces the configured notification service.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithWorkers overrides the configured worker count.
func WithWorkers(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithRetryExecutor replaces the retry executor for one collaborator.
func WithRetryExecutor(collaborator string, exec *retry.Executor) ManagerOption {
	return func(m *Manager) {
		if exec != nil {
			m.retriers[collaborator] = exec
		}
	}
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a workflow manager. executors must cover every stage
// in order.
func NewManager(cfg *config.Config, store *state.Store, executors []stages.Executor, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if err := checkExecutors(executors); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:       cfg,
		store:     store,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		notifier:  notifications.NewService(cfg),
		executors: executors,
		retriers:  defaultRetriers(cfg, logger),
		workers:   cfg.Pipeline.Workers,
		claims:    newClaimSet(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	return m, nil
}

func checkExecutors(executors []stages.Executor) error {
	order := state.Stages()
	if len(executors) != len(order) {
		return fmt.Errorf("workflow needs %d stage executors, got %d", len(order), len(executors))
	}
	for i, exec := range executors {
		if exec == nil || exec.Stage() != order[i] {
			return fmt.Errorf("stage executor %d must be %s", i, order[i])
		}
	}
	return nil
}

// defaultRetriers builds one retry executor per collaborator, each with its
// own rate limit.
func defaultRetriers(cfg *config.Config, logger *slog.Logger) map[string]*retry.Executor {
	policy := retry.Policy{
		MaxAttempts:     cfg.Pipeline.MaxAttempts,
		InitialInterval: cfg.InitialBackoff(),
		MaxInterval:     cfg.MaxBackoff(),
		Multiplier:      2,
		CallTimeout:     cfg.StageTimeout(),
	}
	limits := map[string]int{
		stages.CollaboratorSource:      cfg.Sources.RequestsPerMinute,
		stages.CollaboratorScript:      cfg.LLM.RequestsPerMinute,
		stages.CollaboratorSynthesizer: cfg.TTS.RequestsPerMinute,
		stages.CollaboratorPublisher:   0,
		stages.CollaboratorLocal:       0,
	}
	out := make(map[string]*retry.Executor, len(limits))
	for name, rpm := range limits {
		opts := []retry.Option{retry.WithLogger(logging.NewComponentLogger(logger, "retry"))}
		if limiter := retry.NewLimiter(rpm); limiter != nil {
			opts = append(opts, retry.WithLimiter(limiter))
		}
		out[name] = retry.New(policy, opts...)
	}
	return out
}

func (m *Manager) retrier(collaborator string) *retry.Executor {
	if exec, ok := m.retriers[collaborator]; ok {
		return exec
	}
	exec := m.retriers[stages.CollaboratorLocal]
	if exec == nil {
		exec = retry.New(retry.Policy{MaxAttempts: m.cfg.Pipeline.MaxAttempts})
	}
	return exec
}
