package stages

import (
	"fmt"
	"log/slog"

	"finpod/internal/config"
	"finpod/internal/publish"
	"finpod/internal/roster"
	"finpod/internal/services/tts"
	"finpod/internal/sources"
	"finpod/internal/transcript"
)

// Collaborators are the external dependencies of a pipeline.
type Collaborators struct {
	Source      sources.Source
	Engine      ScriptEngine
	Synthesizer Synthesizer
	Publisher   publish.Publisher
}

// NewPipeline returns the executors in stage order.
func NewPipeline(cfg *config.Config, companies *roster.Roster, collab Collaborators, logger *slog.Logger) ([]Executor, error) {
	prompt, err := LoadPrompt(cfg.Pipeline.PromptTemplate)
	if err != nil {
		return nil, err
	}
	visibility, err := publish.ParseVisibility(cfg.Publish.Visibility)
	if err != nil {
		return nil, fmt.Errorf("publish.visibility: %w", err)
	}
	workspace := Workspace{Root: cfg.Paths.StagingDir}
	voice := tts.Voice{Name: cfg.TTS.Voice, Format: cfg.TTS.Format, Speed: cfg.TTS.Speed}
	return []Executor{
		NewFetcher(collab.Source, companies, workspace, logger),
		NewStructurer(transcript.Options{MaxLabelRunes: cfg.Pipeline.SpeakerNameMaxRunes}, workspace, cfg.Pipeline.CacheRaw, logger),
		NewScriptWriter(collab.Engine, prompt, companies, workspace, logger),
		NewAudioRenderer(collab.Synthesizer, voice, workspace, logger),
		NewReleaser(collab.Publisher, visibility, companies, workspace, voice.Format, logger),
	}, nil
}
