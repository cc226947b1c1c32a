package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"finpod/internal/logging"
	"finpod/internal/publish"
	"finpod/internal/roster"
	"finpod/internal/state"
	"finpod/internal/textutil"
)

// Releaser publishes the synthesized episode.
type Releaser struct {
	publisher  publish.Publisher
	visibility publish.Visibility
	companies  *roster.Roster
	workspace  Workspace
	format     string
	logger     *slog.Logger
}

// NewReleaser builds the publish stage. format is the audio file extension
// used by the synthesize stage.
func NewReleaser(publisher publish.Publisher, visibility publish.Visibility, companies *roster.Roster, workspace Workspace, format string, logger *slog.Logger) *Releaser {
	return &Releaser{
		publisher:  publisher,
		visibility: visibility,
		companies:  companies,
		workspace:  workspace,
		format:     format,
		logger:     orNop(logger),
	}
}

func (r *Releaser) Stage() state.Stage   { return state.StagePublish }
func (r *Releaser) Collaborator() string { return CollaboratorPublisher }

// Execute publishes the audio and returns the published identifier.
func (r *Releaser) Execute(ctx context.Context, unit *state.EpisodeUnit) (string, error) {
	company, period, err := lookupCompany(r.companies, unit)
	if err != nil {
		return "", err
	}
	audioPath, err := upstreamArtifact(unit, state.StageSynthesizeAudio, r.workspace.AudioPath(unit, r.format))
	if err != nil {
		return "", err
	}
	description := ""
	if scriptPath := unit.Artifact(state.StageGenerateScript); scriptPath != "" {
		if data, err := os.ReadFile(scriptPath); err == nil {
			description = string(data)
		}
	}

	episode := publish.Episode{
		GUID:        EpisodeGUID(company.Ticker, period.String()),
		Title:       EpisodeTitle(company, period),
		Description: description,
		AudioPath:   audioPath,
		Visibility:  r.visibility,
	}
	id, err := r.publisher.Publish(ctx, episode)
	if err != nil {
		return "", err
	}
	logging.WithContext(ctx, r.logger).Info("episode released",
		logging.String(logging.FieldEventType, "episode_released"),
		logging.String("published_id", id),
		logging.String("title", episode.Title),
	)
	return id, nil
}

func (r *Releaser) HealthCheck(context.Context) Health {
	if r.publisher == nil {
		return Unhealthy("publish", "publisher not configured")
	}
	return Healthy("publish")
}

// EpisodeGUID is stable per company and period, so republishing is detectable.
func EpisodeGUID(ticker, period string) string {
	return "finpod:" + textutil.EpisodeSlug(ticker, period)
}

// EpisodeTitle names an episode for listeners.
func EpisodeTitle(company roster.Company, period roster.Period) string {
	return fmt.Sprintf("%s Q%d %d earnings call", company.DisplayName(), period.Quarter, period.Year)
}
