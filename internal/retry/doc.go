// Package retry runs collaborator calls under one policy: a rate limiter per
// collaborator, an exponential backoff between attempts, and a classifier
// that decides which failures are worth repeating.
//
// Hooks fire before and after every attempt so callers can persist progress
// (the orchestrator writes a StageRecord for each attempt). A hook error
// stops the executor immediately.
package retry
