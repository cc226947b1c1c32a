// Package state persists per-stage progress for every episode unit (one
// company, one reporting period) in SQLite.
//
// Rows in stage_records are keyed by (company, period, stage) and written
// with a single UPSERT per attempt, so a crash never leaves a half-written
// record. LoadUnit rebuilds an EpisodeUnit from those rows, reporting any
// in_progress row left by an interrupted run as pending. Every error
// returned from this package carries services.ErrStateStore.
package state
