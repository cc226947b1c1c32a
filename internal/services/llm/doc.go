// Package llm provides an OpenRouter-compatible chat completion client used
// as the episode script engine.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive the narrative text.
//
// # Error Classification
//
// Each call is a single attempt; retries belong to the caller. Failures are
// tagged with services markers:
//   - HTTP 408/425/429/5xx, network failures, empty completions: transient
//   - other 4xx, refusals, content-filter stops: permanent
//
// Model output wrapped in a Markdown code fence is unwrapped before it is
// returned.
package llm
