package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateCredentials checks the secrets a full pipeline run needs. Commands
// that never reach a collaborator (structure, state) skip this check.
func (c *Config) ValidateCredentials() error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/finpod/config.toml"
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required. Set FINPOD_LLM_API_KEY env var or edit %s (create with 'finpod config init')", defaultPath)
	}
	if c.TTS.APIKey == "" {
		return fmt.Errorf("tts.api_key is required. Set FINPOD_TTS_API_KEY env var or edit %s", defaultPath)
	}
	for _, source := range c.Pipeline.SourceOrder {
		if source == "sec" && c.Sources.SECIdentity == "" {
			return errors.New("sources.sec_identity is required when the sec source is enabled (SEC asks for a \"Name email\" User-Agent); set SEC_IDENTITY")
		}
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Workers > 64 {
		return errors.New("pipeline.workers must be 64 or fewer")
	}
	if c.Pipeline.MaxAttempts > 20 {
		return errors.New("pipeline.max_attempts must be 20 or fewer")
	}
	if c.Pipeline.MaxBackoffSeconds < c.Pipeline.InitialBackoffSeconds {
		return errors.New("pipeline.max_backoff_seconds must be at least pipeline.initial_backoff_seconds")
	}
	for _, source := range c.Pipeline.SourceOrder {
		switch source {
		case "earningscall", "sec":
		default:
			return fmt.Errorf("pipeline.source_order: unsupported source %q (valid: earningscall, sec)", source)
		}
	}
	return nil
}

func (c *Config) validateSources() error {
	for key, value := range map[string]string{
		"sources.earningscall_base_url": c.Sources.EarningsCallBaseURL,
		"sources.sec_data_url":          c.Sources.SECDataURL,
		"sources.sec_archives_url":      c.Sources.SECArchivesURL,
		"sources.sec_tickers_url":       c.Sources.SECTickersURL,
		"llm.base_url":                  c.LLM.BaseURL,
		"tts.base_url":                  c.TTS.BaseURL,
	} {
		if err := validateURL(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// validateTTS limits tts.format to streams that stay valid when chunk
// responses are joined.
func (c *Config) validateTTS() error {
	switch c.TTS.Format {
	case "mp3", "opus", "aac":
		return nil
	default:
		return fmt.Errorf("tts.format: unsupported value %q (valid: mp3, opus, aac)", c.TTS.Format)
	}
}

func (c *Config) validatePublish() error {
	switch c.Publish.Visibility {
	case "public", "unlisted", "private":
	default:
		return fmt.Errorf("publish.visibility: unsupported value %q (valid: public, unlisted, private)", c.Publish.Visibility)
	}
	if c.Publish.MediaBaseURL != "" {
		if err := validateURL(c.Publish.MediaBaseURL); err != nil {
			return fmt.Errorf("publish.media_base_url: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func validateURL(value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL, got %q", value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host in %q", value)
	}
	return nil
}
