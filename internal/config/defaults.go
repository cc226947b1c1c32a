package config

const (
	defaultStagingDir          = "~/.local/share/finpod/staging"
	defaultStateDir            = "~/.local/share/finpod"
	defaultLogDir              = "~/.local/share/finpod/logs"
	defaultFeedDir             = "~/.local/share/finpod/feed"
	defaultRosterPath          = "~/.config/finpod/companies.json"
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultWorkers             = 4
	defaultMaxAttempts         = 3
	defaultInitialBackoff      = 2.0
	defaultMaxBackoff          = 60.0
	defaultStageTimeoutSeconds = 600
	defaultSpeakerNameMaxRunes = 40
	defaultEarningsCallBaseURL = "https://earningscall.biz"
	defaultSECDataURL          = "https://data.sec.gov"
	defaultSECArchivesURL      = "https://www.sec.gov/Archives/edgar/data"
	defaultSECTickersURL       = "https://www.sec.gov/files/company_tickers.json"
	defaultSourceRPM           = 60
	defaultSourceTimeout       = 30
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-2.5-flash"
	defaultLLMReferer          = "https://github.com/finpod/finpod"
	defaultLLMTitle            = "finpod Script Engine"
	defaultLLMTemperature      = 0.4
	defaultLLMMaxTokens        = 4096
	defaultLLMTimeoutSeconds   = 120
	defaultLLMRPM              = 20
	defaultTTSBaseURL          = "https://api.openai.com/v1/audio/speech"
	defaultTTSModel            = "gpt-4o-mini-tts"
	defaultTTSVoice            = "alloy"
	defaultTTSFormat           = "mp3"
	defaultTTSSpeed            = 1.0
	defaultTTSTimeoutSeconds   = 180
	defaultTTSRPM              = 30
	defaultFeedTitle           = "Earnings Briefing"
	defaultFeedDescription     = "Quarterly results and earnings calls, summarised."
	defaultVisibility          = "public"
)

var defaultSourceOrder = []string{"earningscall", "sec"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			FeedDir:    defaultFeedDir,
		},
		Roster: Roster{
			Path: defaultRosterPath,
		},
		Pipeline: Pipeline{
			Workers:               defaultWorkers,
			MaxAttempts:           defaultMaxAttempts,
			InitialBackoffSeconds: defaultInitialBackoff,
			MaxBackoffSeconds:     defaultMaxBackoff,
			StageTimeoutSeconds:   defaultStageTimeoutSeconds,
			SourceOrder:           append([]string(nil), defaultSourceOrder...),
			SpeakerNameMaxRunes:   defaultSpeakerNameMaxRunes,
		},
		Sources: Sources{
			EarningsCallBaseURL: defaultEarningsCallBaseURL,
			SECDataURL:          defaultSECDataURL,
			SECArchivesURL:      defaultSECArchivesURL,
			SECTickersURL:       defaultSECTickersURL,
			RequestsPerMinute:   defaultSourceRPM,
			TimeoutSeconds:      defaultSourceTimeout,
		},
		LLM: LLM{
			BaseURL:           defaultLLMBaseURL,
			Model:             defaultLLMModel,
			Referer:           defaultLLMReferer,
			Title:             defaultLLMTitle,
			Temperature:       defaultLLMTemperature,
			MaxTokens:         defaultLLMMaxTokens,
			TimeoutSeconds:    defaultLLMTimeoutSeconds,
			RequestsPerMinute: defaultLLMRPM,
		},
		TTS: TTS{
			BaseURL:           defaultTTSBaseURL,
			Model:             defaultTTSModel,
			Voice:             defaultTTSVoice,
			Format:            defaultTTSFormat,
			Speed:             defaultTTSSpeed,
			TimeoutSeconds:    defaultTTSTimeoutSeconds,
			RequestsPerMinute: defaultTTSRPM,
		},
		Publish: Publish{
			FeedTitle:         defaultFeedTitle,
			FeedDescription:   defaultFeedDescription,
			Visibility:        defaultVisibility,
			CheckExistingFeed: true,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			UnitFailures:   true,
			RunSummary:     true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
