package stages

import (
	"context"
	"log/slog"
	"strings"

	"finpod/internal/fileutil"
	"finpod/internal/logging"
	"finpod/internal/roster"
	"finpod/internal/services"
	"finpod/internal/state"
)

// ScriptEngine turns rendered prompts into narrative text.
type ScriptEngine interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ScriptWriter generates the episode script.
type ScriptWriter struct {
	engine    ScriptEngine
	prompt    *Prompt
	companies *roster.Roster
	workspace Workspace
	logger    *slog.Logger
}

// NewScriptWriter builds the generate_script stage.
func NewScriptWriter(engine ScriptEngine, prompt *Prompt, companies *roster.Roster, workspace Workspace, logger *slog.Logger) *ScriptWriter {
	if prompt == nil {
		prompt = DefaultPrompt()
	}
	return &ScriptWriter{engine: engine, prompt: prompt, companies: companies, workspace: workspace, logger: orNop(logger)}
}

func (s *ScriptWriter) Stage() state.Stage   { return state.StageGenerateScript }
func (s *ScriptWriter) Collaborator() string { return CollaboratorScript }

// Execute renders the prompt from transcript.json and stores script.md.
func (s *ScriptWriter) Execute(ctx context.Context, unit *state.EpisodeUnit) (string, error) {
	company, period, err := lookupCompany(s.companies, unit)
	if err != nil {
		return "", err
	}
	transcriptPath, err := upstreamArtifact(unit, state.StageStructure, s.workspace.TranscriptPath(unit))
	if err != nil {
		return "", err
	}
	structured, err := LoadTranscript(transcriptPath)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, string(state.StageGenerateScript), "load transcript", transcriptPath, err)
	}
	system, user, err := s.prompt.Render(NewPromptData(company, period, structured))
	if err != nil {
		return "", err
	}

	script, err := s.engine.Complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	script = strings.TrimSpace(script)
	if script == "" {
		return "", services.Wrap(services.ErrTransient, string(state.StageGenerateScript), "generate", "script engine returned no text", nil)
	}

	path := s.workspace.ScriptPath(unit)
	if err := fileutil.WriteFileAtomic(path, []byte(script+"\n"), 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, string(state.StageGenerateScript), "write", path, err)
	}
	logging.WithContext(ctx, s.logger).Info("script generated",
		logging.String(logging.FieldEventType, "script_generated"),
		logging.Int("prompt_chars", len(user)),
		logging.Int("script_words", len(strings.Fields(script))),
	)
	return path, nil
}

func (s *ScriptWriter) HealthCheck(context.Context) Health {
	if s.engine == nil {
		return Unhealthy("generate_script", "script engine not configured")
	}
	return Healthy("generate_script")
}
