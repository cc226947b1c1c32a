// Package sources retrieves raw transcript text for a company and reporting
// period.
//
// EarningsCall scrapes transcripts from earningscall.biz, SEC falls back to
// the quarterly 10-Q filing on EDGAR, and Chain tries sources in the
// configured order. A source that has nothing for the period yet returns an
// error carrying services.ErrInputUnavailable.
package sources
