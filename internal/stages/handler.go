package stages

import (
	"context"

	"finpod/internal/state"
)

// Collaborator names group executors for retry policy and rate limiting.
const (
	CollaboratorSource      = "source"
	CollaboratorLocal       = "local"
	CollaboratorScript      = "script_engine"
	CollaboratorSynthesizer = "synthesizer"
	CollaboratorPublisher   = "publisher"
)

// Executor describes the contract the orchestrator needs from each stage.
type Executor interface {
	Stage() state.Stage
	Collaborator() string
	Execute(ctx context.Context, unit *state.EpisodeUnit) (artifactRef string, err error)
	HealthCheck(ctx context.Context) Health
}

// Health summarizes the readiness of a stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
