package stages_test

import (
	"testing"

	"finpod/internal/roster"
)

func parsePeriod(t *testing.T, value string) roster.Period {
	t.Helper()
	p, err := roster.ParsePeriod(value)
	if err != nil {
		t.Fatalf("ParsePeriod(%q): %v", value, err)
	}
	return p
}
