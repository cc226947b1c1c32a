// Package workflow drives episode units through the five pipeline stages.
//
// A Manager takes a list of targets (company, reporting period) and fans them
// out over a bounded worker pool. Each unit is reconstructed from the state
// store, skipped stage by stage where earlier runs already succeeded, and
// advanced until it is published, fails permanently, waits for its source
// material, or the run is interrupted. Every attempt is written to the state
// store through the retry executor's hooks, so a crash at any point leaves an
// accurate record and the next run resumes where this one stopped.
//
// Run-level guarantees:
//   - at most one worker holds a unit key (in-process claim set)
//   - at most one run uses a state database (file lock beside it)
//   - a state store failure aborts the whole run
//   - cancellation stops dispatch; a stage call already in flight finishes on
//     a detached context and its record is written before the worker exits
package workflow
