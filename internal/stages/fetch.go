package stages

import (
	"context"
	"log/slog"
	"strings"

	"finpod/internal/fileutil"
	"finpod/internal/logging"
	"finpod/internal/roster"
	"finpod/internal/services"
	"finpod/internal/sources"
	"finpod/internal/state"
)

// Fetcher retrieves the raw transcript for a unit.
type Fetcher struct {
	source    sources.Source
	companies *roster.Roster
	workspace Workspace
	logger    *slog.Logger
}

// NewFetcher builds the fetch stage.
func NewFetcher(source sources.Source, companies *roster.Roster, workspace Workspace, logger *slog.Logger) *Fetcher {
	return &Fetcher{source: source, companies: companies, workspace: workspace, logger: orNop(logger)}
}

func (f *Fetcher) Stage() state.Stage   { return state.StageFetch }
func (f *Fetcher) Collaborator() string { return CollaboratorSource }

// Execute fetches the text and stores it as raw.txt.
func (f *Fetcher) Execute(ctx context.Context, unit *state.EpisodeUnit) (string, error) {
	company, period, err := lookupCompany(f.companies, unit)
	if err != nil {
		return "", err
	}
	raw, err := f.source.Fetch(ctx, company, period)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw.Text) == "" {
		return "", services.Wrap(services.ErrInputUnavailable, string(state.StageFetch), "fetch", "source returned no text", nil)
	}
	path := f.workspace.RawPath(unit)
	if err := fileutil.WriteFileAtomic(path, []byte(raw.Text), 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, string(state.StageFetch), "write", path, err)
	}
	logging.WithContext(ctx, f.logger).Info("transcript fetched",
		logging.String(logging.FieldEventType, "transcript_fetched"),
		logging.String("source", raw.Source),
		logging.String("url", raw.URL),
		logging.Int("bytes", len(raw.Text)),
	)
	return path, nil
}

func (f *Fetcher) HealthCheck(context.Context) Health {
	if f.source == nil {
		return Unhealthy("fetch", "no transcript source configured")
	}
	return Healthy("fetch")
}

func orNop(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return logging.NewNop()
	}
	return logger
}
