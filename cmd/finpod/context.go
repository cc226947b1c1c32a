package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"finpod/internal/config"
	"finpod/internal/logging"
	"finpod/internal/publish"
	"finpod/internal/roster"
	"finpod/internal/services/llm"
	"finpod/internal/services/tts"
	"finpod/internal/sources"
	"finpod/internal/stages"
	"finpod/internal/state"
)

type commandContext struct {
	configPath string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// collaborators builds the external dependencies of a run. Tests swap it
	// for fakes.
	collaborators func(cfg *config.Config, logger *slog.Logger) (stages.Collaborators, error)
	// logger overrides the configured logger when set.
	logger *slog.Logger
}

func newCommandContext() *commandContext {
	return &commandContext{collaborators: buildCollaborators}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	return logging.NewFromConfig(cfg)
}

func (c *commandContext) loadRoster() (*roster.Roster, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return roster.Load(cfg.Roster.Path)
}

func (c *commandContext) openStore() (*state.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return state.Open(cfg)
}

// buildCollaborators wires the production source chain and HTTP clients.
func buildCollaborators(cfg *config.Config, logger *slog.Logger) (stages.Collaborators, error) {
	source, err := sources.New(cfg, logging.NewComponentLogger(logger, "sources"))
	if err != nil {
		return stages.Collaborators{}, err
	}
	engine := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	synth := tts.NewClient(tts.Config{
		APIKey:         cfg.TTS.APIKey,
		BaseURL:        cfg.TTS.BaseURL,
		Model:          cfg.TTS.Model,
		Voice:          cfg.TTS.Voice,
		Format:         cfg.TTS.Format,
		Speed:          cfg.TTS.Speed,
		TimeoutSeconds: cfg.TTS.TimeoutSeconds,
	})
	return stages.Collaborators{
		Source:      source,
		Engine:      engine,
		Synthesizer: synth,
		Publisher:   publish.New(cfg, logging.NewComponentLogger(logger, "publish")),
	}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
