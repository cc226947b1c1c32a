package roster

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Period identifies one fiscal quarter.
type Period struct {
	Year    int
	Quarter int
}

var (
	yearFirstPattern    = regexp.MustCompile(`^(\d{4})\s*[-_/ ]?\s*q([1-4])$`)
	quarterFirstPattern = regexp.MustCompile(`^q([1-4])\s*[-_/ ]?\s*(\d{4})$`)
)

// ParsePeriod accepts "2024-Q1", "Q1-2024", "2024q1", and "q1 2024".
func ParsePeriod(value string) (Period, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if m := yearFirstPattern.FindStringSubmatch(normalized); m != nil {
		return newPeriod(m[1], m[2])
	}
	if m := quarterFirstPattern.FindStringSubmatch(normalized); m != nil {
		return newPeriod(m[2], m[1])
	}
	return Period{}, fmt.Errorf("invalid reporting period %q (want e.g. 2024-Q1)", value)
}

func newPeriod(year, quarter string) (Period, error) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return Period{}, fmt.Errorf("invalid year %q: %w", year, err)
	}
	q, err := strconv.Atoi(quarter)
	if err != nil {
		return Period{}, fmt.Errorf("invalid quarter %q: %w", quarter, err)
	}
	p := Period{Year: y, Quarter: q}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate checks the quarter range and a plausible year.
func (p Period) Validate() error {
	if p.Quarter < 1 || p.Quarter > 4 {
		return fmt.Errorf("quarter must be 1..4, got %d", p.Quarter)
	}
	if p.Year < 1990 || p.Year > 2200 {
		return fmt.Errorf("year out of range: %d", p.Year)
	}
	return nil
}

// String renders the canonical key, e.g. 2024-Q1.
func (p Period) String() string {
	return fmt.Sprintf("%04d-Q%d", p.Year, p.Quarter)
}

// QuarterLabel renders the lower-case form used in earningscall.biz URLs (q1..q4).
func (p Period) QuarterLabel() string {
	return "q" + strconv.Itoa(p.Quarter)
}

// Contains reports whether t falls inside the calendar quarter.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && (int(t.Month())-1)/3+1 == p.Quarter
}

// Previous returns the quarter before p.
func (p Period) Previous() Period {
	if p.Quarter == 1 {
		return Period{Year: p.Year - 1, Quarter: 4}
	}
	return Period{Year: p.Year, Quarter: p.Quarter - 1}
}

// PeriodFor returns the calendar quarter containing t.
func PeriodFor(t time.Time) Period {
	return Period{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}
