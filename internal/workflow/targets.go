package workflow

import (
	"time"

	"finpod/internal/roster"
)

// Targets expands companies into units. An explicit period applies to every
// company; otherwise each company's pinned period is used, falling back to
// the last complete quarter before now.
func Targets(companies []roster.Company, period *roster.Period, now time.Time) []Target {
	fallback := roster.PeriodFor(now).Previous()
	out := make([]Target, 0, len(companies))
	for _, c := range companies {
		p := fallback
		switch {
		case period != nil:
			p = *period
		default:
			if pinned, ok := c.DefaultPeriod(); ok {
				p = pinned
			}
		}
		out = append(out, Target{Company: roster.NormalizeTicker(c.Ticker), Period: p.String()})
	}
	return out
}
