// Package services defines shared utilities consumed by the pipeline stage
// executors and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp company, period, stage, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Classify, which turns
//     any stage error into the outcome the orchestrator acts on (wait, retry,
//     fail permanently, or abort the run).
//
// Use these helpers when wiring new collaborators so failure handling stays
// uniform across the pipeline.
package services
