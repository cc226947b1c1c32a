package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	FeedDir    string `toml:"feed_dir"`
	EnvFile    string `toml:"env_file"`
}

// Roster points at the company roster file.
type Roster struct {
	Path string `toml:"path"`
}

// Pipeline contains orchestrator and retry settings.
type Pipeline struct {
	Workers               int      `toml:"workers"`
	MaxAttempts           int      `toml:"max_attempts"`
	InitialBackoffSeconds float64  `toml:"initial_backoff_seconds"`
	MaxBackoffSeconds     float64  `toml:"max_backoff_seconds"`
	StageTimeoutSeconds   int      `toml:"stage_timeout_seconds"`
	CacheRaw              bool     `toml:"cache_raw"`
	SourceOrder           []string `toml:"source_order"`
	PromptTemplate        string   `toml:"prompt_template"`
	SpeakerNameMaxRunes   int      `toml:"speaker_name_max_runes"`
}

// Sources contains settings for transcript and filing retrieval.
type Sources struct {
	EarningsCallBaseURL string `toml:"earningscall_base_url"`
	SECDataURL          string `toml:"sec_data_url"`
	SECArchivesURL      string `toml:"sec_archives_url"`
	SECTickersURL       string `toml:"sec_tickers_url"`
	SECIdentity         string `toml:"sec_identity"`
	RequestsPerMinute   int    `toml:"requests_per_minute"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the script engine.
type LLM struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	Referer           string  `toml:"referer"`
	Title             string  `toml:"title"`
	Temperature       float64 `toml:"temperature"`
	MaxTokens         int     `toml:"max_tokens"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerMinute int     `toml:"requests_per_minute"`
}

// TTS contains connection settings for the audio synthesizer.
type TTS struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	Voice             string  `toml:"voice"`
	Format            string  `toml:"format"`
	Speed             float64 `toml:"speed"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerMinute int     `toml:"requests_per_minute"`
}

// Publish contains settings for the podcast feed publisher.
type Publish struct {
	FeedTitle         string `toml:"feed_title"`
	FeedLink          string `toml:"feed_link"`
	FeedDescription   string `toml:"feed_description"`
	FeedAuthor        string `toml:"feed_author"`
	MediaBaseURL      string `toml:"media_base_url"`
	Visibility        string `toml:"visibility"`
	CheckExistingFeed bool   `toml:"check_existing_feed"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	UnitFailures   bool   `toml:"unit_failures"`
	RunSummary     bool   `toml:"run_summary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for finpod.
//
// Configuration sections by subsystem:
//   - Paths: staging, state database, logs, and feed output
//   - Roster: company roster location
//   - Pipeline: worker pool, retry policy, stage timeouts
//   - Sources: earningscall.biz and SEC EDGAR retrieval
//   - LLM: script engine connection
//   - TTS: speech synthesis connection
//   - Publish: podcast feed metadata
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Roster        Roster        `toml:"roster"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Sources       Sources       `toml:"sources"`
	LLM           LLM           `toml:"llm"`
	TTS           TTS           `toml:"tts"`
	Publish       Publish       `toml:"publish"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/finpod/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Credentials from a .env file are merged into the
// process environment before environment fallbacks are applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(cfg.Paths.EnvFile, resolvedPath); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv merges KEY=value pairs into the environment without overriding
// variables that are already set. An explicitly configured file must exist;
// the implicit candidates (next to the config file, then the working
// directory) are optional.
func loadDotEnv(explicit, configPath string) error {
	if strings.TrimSpace(explicit) != "" {
		path, err := expandPath(explicit)
		if err != nil {
			return fmt.Errorf("paths.env_file: %w", err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}

	candidates := []string{}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}
	seen := map[string]struct{}{}
	for _, candidate := range candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load env file %s: %w", candidate, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("finpod.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a pipeline run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir, c.Paths.FeedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StatePath returns the SQLite database backing the episode state store.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.StateDir, "state.db")
}

// LockPath returns the lock file guarding a state directory against concurrent runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "finpod.lock")
}

// FeedPath returns the published podcast feed file.
func (c *Config) FeedPath() string {
	return filepath.Join(c.Paths.FeedDir, "feed.xml")
}

// StageTimeout returns the per-call timeout applied to collaborator invocations.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Pipeline.StageTimeoutSeconds) * time.Second
}

// InitialBackoff returns the first retry delay.
func (c *Config) InitialBackoff() time.Duration {
	return time.Duration(c.Pipeline.InitialBackoffSeconds * float64(time.Second))
}

// MaxBackoff returns the retry delay ceiling.
func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.Pipeline.MaxBackoffSeconds * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
