// Package notifications pushes pipeline events to ntfy.
//
// The ntfy topic URL comes from config.toml ([notifications] ntfy_topic) or
// NTFY_TOPIC. Without a topic, NewService returns a no-op implementation so
// workflow code never needs to branch on whether notifications are enabled.
// Per-event toggles (unit_failures, run_summary) are honoured inside the
// service.
package notifications
