package stages

import (
	"context"
	"io"
	"log/slog"
	"os"

	"finpod/internal/fileutil"
	"finpod/internal/logging"
	"finpod/internal/services"
	"finpod/internal/services/tts"
	"finpod/internal/state"
)

// Synthesizer renders script text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice tts.Voice, w io.Writer) (int64, error)
}

// AudioRenderer synthesizes the episode audio.
type AudioRenderer struct {
	synth     Synthesizer
	voice     tts.Voice
	workspace Workspace
	logger    *slog.Logger
}

// NewAudioRenderer builds the synthesize_audio stage.
func NewAudioRenderer(synth Synthesizer, voice tts.Voice, workspace Workspace, logger *slog.Logger) *AudioRenderer {
	return &AudioRenderer{synth: synth, voice: voice, workspace: workspace, logger: orNop(logger)}
}

func (a *AudioRenderer) Stage() state.Stage   { return state.StageSynthesizeAudio }
func (a *AudioRenderer) Collaborator() string { return CollaboratorSynthesizer }

// Execute reads script.md and writes the audio file.
func (a *AudioRenderer) Execute(ctx context.Context, unit *state.EpisodeUnit) (string, error) {
	scriptPath, err := upstreamArtifact(unit, state.StageGenerateScript, a.workspace.ScriptPath(unit))
	if err != nil {
		return "", err
	}
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, string(state.StageSynthesizeAudio), "read", scriptPath, err)
	}

	path := a.workspace.AudioPath(unit, a.voice.Format)
	var written int64
	err = fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		n, err := a.synth.Synthesize(ctx, string(script), a.voice, w)
		written = n
		return err
	})
	if err != nil {
		return "", err
	}
	logging.WithContext(ctx, a.logger).Info("audio synthesized",
		logging.String(logging.FieldEventType, "audio_synthesized"),
		logging.String("voice", a.voice.Name),
		logging.Int64("bytes", written),
	)
	return path, nil
}

func (a *AudioRenderer) HealthCheck(context.Context) Health {
	if a.synth == nil {
		return Unhealthy("synthesize_audio", "synthesizer not configured")
	}
	return Healthy("synthesize_audio")
}
