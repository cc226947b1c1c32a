// Package stages implements the five pipeline stages for one episode unit:
// fetch, structure, generate_script, synthesize_audio, and publish.
//
// Each Executor performs a single attempt and returns the artifact reference
// it produced. Retrying, rate limiting, and recording attempts in the state
// store belong to the orchestrator, which wraps every Execute call in the
// retry executor for the stage's collaborator.
//
// Artifacts for a unit live under <staging_dir>/<TICKER>/<YYYY-Qn>/:
//
//	raw.txt          fetched source text (removed after structure unless cache_raw)
//	transcript.json  structured transcript
//	script.md        generated narrative script
//	episode.<fmt>    synthesized audio
//
// Files are written atomically so a crash never leaves a half-written
// artifact behind a success record.
package stages
