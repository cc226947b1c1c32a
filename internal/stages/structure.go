package stages

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"finpod/internal/fileutil"
	"finpod/internal/logging"
	"finpod/internal/services"
	"finpod/internal/state"
	"finpod/internal/transcript"
)

// Structurer normalizes and segments the raw transcript.
type Structurer struct {
	structurer *transcript.Structurer
	workspace  Workspace
	cacheRaw   bool
	logger     *slog.Logger
}

// NewStructurer builds the structure stage.
func NewStructurer(opts transcript.Options, workspace Workspace, cacheRaw bool, logger *slog.Logger) *Structurer {
	return &Structurer{
		structurer: transcript.NewStructurer(opts),
		workspace:  workspace,
		cacheRaw:   cacheRaw,
		logger:     orNop(logger),
	}
}

func (s *Structurer) Stage() state.Stage   { return state.StageStructure }
func (s *Structurer) Collaborator() string { return CollaboratorLocal }

// Execute writes transcript.json and drops raw.txt unless raw caching is on.
func (s *Structurer) Execute(ctx context.Context, unit *state.EpisodeUnit) (string, error) {
	rawPath, err := upstreamArtifact(unit, state.StageFetch, s.workspace.RawPath(unit))
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(rawPath)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, string(state.StageStructure), "read", rawPath, err)
	}
	lines, err := transcript.Normalize(string(raw))
	if err != nil {
		return "", err
	}
	structured, err := s.structurer.Structure(lines)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(structured, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, string(state.StageStructure), "encode", "transcript json", err)
	}
	path := s.workspace.TranscriptPath(unit)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, string(state.StageStructure), "write", path, err)
	}

	summary := structured.Summary()
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("transcript structured",
		logging.String(logging.FieldEventType, "transcript_structured"),
		logging.Int("lines", len(lines)),
		logging.Int("turns", summary.Turns),
		logging.Int("participants", len(summary.Participants)),
		logging.Bool("degraded", structured.Degraded()),
	)
	if structured.Degraded() {
		logging.WarnWithContext(logger, "no speaker cues detected", "transcript_degraded",
			logging.String(logging.FieldImpact, "script is generated from undifferentiated text"),
			logging.String(logging.FieldErrorHint, "check the source format or raise pipeline.speaker_name_max_runes"),
		)
	}

	if !s.cacheRaw {
		if err := fileutil.RemoveIfExists(rawPath); err != nil {
			logger.Warn("failed to remove raw transcript", logging.Error(err), logging.String("path", rawPath))
		}
	}
	return path, nil
}

func (s *Structurer) HealthCheck(context.Context) Health {
	return Healthy("structure")
}

// LoadTranscript reads a structured transcript written by the structure stage.
func LoadTranscript(path string) (*transcript.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t transcript.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
