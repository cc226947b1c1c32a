package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeSources()
	c.normalizeLLM()
	c.normalizeTTS()
	c.normalizePublish()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.FeedDir, err = expandPath(c.Paths.FeedDir); err != nil {
		return fmt.Errorf("paths.feed_dir: %w", err)
	}
	if strings.TrimSpace(c.Roster.Path) == "" {
		c.Roster.Path = defaultRosterPath
	}
	if c.Roster.Path, err = expandPath(c.Roster.Path); err != nil {
		return fmt.Errorf("roster.path: %w", err)
	}
	if strings.TrimSpace(c.Pipeline.PromptTemplate) != "" {
		if c.Pipeline.PromptTemplate, err = expandPath(c.Pipeline.PromptTemplate); err != nil {
			return fmt.Errorf("pipeline.prompt_template: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = defaultWorkers
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = defaultMaxAttempts
	}
	if c.Pipeline.InitialBackoffSeconds <= 0 {
		c.Pipeline.InitialBackoffSeconds = defaultInitialBackoff
	}
	if c.Pipeline.MaxBackoffSeconds <= 0 {
		c.Pipeline.MaxBackoffSeconds = defaultMaxBackoff
	}
	if c.Pipeline.StageTimeoutSeconds <= 0 {
		c.Pipeline.StageTimeoutSeconds = defaultStageTimeoutSeconds
	}
	if c.Pipeline.SpeakerNameMaxRunes <= 0 {
		c.Pipeline.SpeakerNameMaxRunes = defaultSpeakerNameMaxRunes
	}
	order := make([]string, 0, len(c.Pipeline.SourceOrder))
	seen := make(map[string]struct{}, len(c.Pipeline.SourceOrder))
	for _, name := range c.Pipeline.SourceOrder {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		order = append(order, normalized)
	}
	if len(order) == 0 {
		order = append(order, defaultSourceOrder...)
	}
	c.Pipeline.SourceOrder = order
}

func (c *Config) normalizeSources() {
	c.Sources.EarningsCallBaseURL = strings.TrimRight(strings.TrimSpace(c.Sources.EarningsCallBaseURL), "/")
	if c.Sources.EarningsCallBaseURL == "" {
		c.Sources.EarningsCallBaseURL = defaultEarningsCallBaseURL
	}
	c.Sources.SECDataURL = strings.TrimRight(strings.TrimSpace(c.Sources.SECDataURL), "/")
	if c.Sources.SECDataURL == "" {
		c.Sources.SECDataURL = defaultSECDataURL
	}
	c.Sources.SECArchivesURL = strings.TrimRight(strings.TrimSpace(c.Sources.SECArchivesURL), "/")
	if c.Sources.SECArchivesURL == "" {
		c.Sources.SECArchivesURL = defaultSECArchivesURL
	}
	c.Sources.SECTickersURL = strings.TrimSpace(c.Sources.SECTickersURL)
	if c.Sources.SECTickersURL == "" {
		c.Sources.SECTickersURL = defaultSECTickersURL
	}
	c.Sources.SECIdentity = strings.TrimSpace(c.Sources.SECIdentity)
	if c.Sources.SECIdentity == "" {
		if value, ok := os.LookupEnv("SEC_IDENTITY"); ok {
			c.Sources.SECIdentity = strings.TrimSpace(value)
		}
	}
	if c.Sources.RequestsPerMinute <= 0 {
		c.Sources.RequestsPerMinute = defaultSourceRPM
	}
	if c.Sources.TimeoutSeconds <= 0 {
		c.Sources.TimeoutSeconds = defaultSourceTimeout
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RequestsPerMinute <= 0 {
		c.LLM.RequestsPerMinute = defaultLLMRPM
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("FINPOD_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.BaseURL = strings.TrimSpace(c.TTS.BaseURL)
	if c.TTS.BaseURL == "" {
		c.TTS.BaseURL = defaultTTSBaseURL
	}
	c.TTS.Model = strings.TrimSpace(c.TTS.Model)
	if c.TTS.Model == "" {
		c.TTS.Model = defaultTTSModel
	}
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
	if c.TTS.Voice == "" {
		c.TTS.Voice = defaultTTSVoice
	}
	c.TTS.Format = strings.ToLower(strings.TrimSpace(c.TTS.Format))
	if c.TTS.Format == "" {
		c.TTS.Format = defaultTTSFormat
	}
	if c.TTS.Speed <= 0 {
		c.TTS.Speed = defaultTTSSpeed
	}
	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeoutSeconds
	}
	if c.TTS.RequestsPerMinute <= 0 {
		c.TTS.RequestsPerMinute = defaultTTSRPM
	}
	c.TTS.APIKey = strings.TrimSpace(c.TTS.APIKey)
	if c.TTS.APIKey == "" {
		if value, ok := os.LookupEnv("FINPOD_TTS_API_KEY"); ok {
			c.TTS.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.TTS.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePublish() {
	c.Publish.FeedTitle = strings.TrimSpace(c.Publish.FeedTitle)
	if c.Publish.FeedTitle == "" {
		c.Publish.FeedTitle = defaultFeedTitle
	}
	c.Publish.FeedDescription = strings.TrimSpace(c.Publish.FeedDescription)
	if c.Publish.FeedDescription == "" {
		c.Publish.FeedDescription = defaultFeedDescription
	}
	c.Publish.FeedLink = strings.TrimSpace(c.Publish.FeedLink)
	c.Publish.FeedAuthor = strings.TrimSpace(c.Publish.FeedAuthor)
	c.Publish.MediaBaseURL = strings.TrimRight(strings.TrimSpace(c.Publish.MediaBaseURL), "/")
	c.Publish.Visibility = strings.ToLower(strings.TrimSpace(c.Publish.Visibility))
	if c.Publish.Visibility == "" {
		c.Publish.Visibility = defaultVisibility
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = 10
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
