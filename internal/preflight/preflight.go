package preflight

import (
	"context"

	"finpod/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes every applicable check. Endpoint checks run only when
// online is true.
func RunAll(ctx context.Context, cfg *config.Config, online bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Feed directory", cfg.Paths.FeedDir),
		CheckRoster(cfg.Roster.Path),
		CheckCredentials(cfg),
	}
	if !online {
		return results
	}

	results = append(results, CheckEndpoint(ctx, "Script engine", cfg.LLM.BaseURL))
	results = append(results, CheckEndpoint(ctx, "Synthesizer", cfg.TTS.BaseURL))
	for _, source := range cfg.Pipeline.SourceOrder {
		switch source {
		case "earningscall":
			results = append(results, CheckEndpoint(ctx, "earningscall.biz", cfg.Sources.EarningsCallBaseURL))
		case "sec":
			results = append(results, CheckEndpoint(ctx, "SEC EDGAR", cfg.Sources.SECDataURL))
		}
	}
	return results
}
