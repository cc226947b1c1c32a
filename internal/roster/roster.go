package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"finpod/internal/services"
)

// EarningsCall pins a company to a specific call on earningscall.biz.
type EarningsCall struct {
	Symbol  string `json:"symbol"`
	Year    int    `json:"year"`
	Quarter string `json:"quarter"`
	Date    string `json:"date,omitempty"`
}

// Company is one roster entry.
type Company struct {
	Ticker       string        `json:"ticker"`
	Name         string        `json:"name,omitempty"`
	CIK          string        `json:"cik,omitempty"`
	Exchange     string        `json:"exchange,omitempty"`
	Cadence      string        `json:"cadence,omitempty"`
	EarningsCall *EarningsCall `json:"earnings_call,omitempty"`
}

// Roster is the parsed company list.
type Roster struct {
	Companies []Company `json:"companies"`
}

var (
	cikPattern     = regexp.MustCompile(`^\d{10}$`)
	quarterPattern = regexp.MustCompile(`^q[1-4]$`)
	datePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Load reads and validates a roster file. Tickers are upper-cased.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "roster", "read", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates roster JSON.
func Parse(data []byte) (*Roster, error) {
	var r Roster
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "roster", "decode", "", err)
	}
	if r.Companies == nil {
		return nil, services.Wrap(services.ErrConfiguration, "roster", "decode", "root.companies must be a list", nil)
	}
	for i := range r.Companies {
		r.Companies[i].Ticker = NormalizeTicker(r.Companies[i].Ticker)
		r.Companies[i].Exchange = strings.ToLower(strings.TrimSpace(r.Companies[i].Exchange))
		if r.Companies[i].Cadence == "" {
			r.Companies[i].Cadence = "quarterly"
		}
	}
	if problems := r.Validate(); len(problems) > 0 {
		return nil, services.Wrap(services.ErrValidation, "roster", "validate", "", errors.Join(problems...))
	}
	return &r, nil
}

// Validate returns every problem found, in roster order.
func (r *Roster) Validate() []error {
	var problems []error
	seen := make(map[string]struct{}, len(r.Companies))
	for i, c := range r.Companies {
		ticker := NormalizeTicker(c.Ticker)
		if ticker == "" {
			problems = append(problems, fmt.Errorf("companies[%d].ticker is required", i))
		} else {
			if _, dup := seen[ticker]; dup {
				problems = append(problems, fmt.Errorf("duplicate ticker: %s", ticker))
			}
			seen[ticker] = struct{}{}
		}
		if c.CIK != "" && !cikPattern.MatchString(c.CIK) {
			problems = append(problems, fmt.Errorf("companies[%d].cik must be 10-digit string (got %q)", i, c.CIK))
		}
		if c.Cadence != "" && c.Cadence != "quarterly" {
			problems = append(problems, fmt.Errorf("companies[%d].cadence %q is not supported (quarterly only)", i, c.Cadence))
		}
		if ec := c.EarningsCall; ec != nil {
			if strings.TrimSpace(ec.Symbol) == "" {
				problems = append(problems, fmt.Errorf("companies[%d].earnings_call.symbol is required when earnings_call is set", i))
			}
			if ec.Year == 0 {
				problems = append(problems, fmt.Errorf("companies[%d].earnings_call.year is required when earnings_call is set", i))
			}
			if !quarterPattern.MatchString(ec.Quarter) {
				problems = append(problems, fmt.Errorf("companies[%d].earnings_call.quarter must be q1..q4 (got %q)", i, ec.Quarter))
			}
			if ec.Date != "" && !datePattern.MatchString(ec.Date) {
				problems = append(problems, fmt.Errorf("companies[%d].earnings_call.date must be YYYY-MM-DD (got %q)", i, ec.Date))
			}
		}
	}
	return problems
}

// Lookup finds a company by ticker, tolerating case and dot/dash differences.
func (r *Roster) Lookup(ticker string) (Company, bool) {
	wanted := tickerKey(ticker)
	for _, c := range r.Companies {
		if tickerKey(c.Ticker) == wanted {
			return c, true
		}
	}
	return Company{}, false
}

// Select returns the named companies in roster order, or all when tickers is empty.
func (r *Roster) Select(tickers []string) ([]Company, error) {
	if len(tickers) == 0 {
		out := make([]Company, len(r.Companies))
		copy(out, r.Companies)
		return out, nil
	}
	wanted := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		c, ok := r.Lookup(t)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "roster", "select", fmt.Sprintf("ticker %q is not in the roster", t), nil)
		}
		wanted[c.Ticker] = struct{}{}
	}
	out := make([]Company, 0, len(wanted))
	for _, c := range r.Companies {
		if _, ok := wanted[c.Ticker]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Tickers returns the sorted ticker list.
func (r *Roster) Tickers() []string {
	out := make([]string, 0, len(r.Companies))
	for _, c := range r.Companies {
		out = append(out, c.Ticker)
	}
	sort.Strings(out)
	return out
}

// DefaultPeriod returns the period pinned by the company's earnings_call block.
func (c Company) DefaultPeriod() (Period, bool) {
	if c.EarningsCall == nil {
		return Period{}, false
	}
	p, err := ParsePeriod(fmt.Sprintf("%d-%s", c.EarningsCall.Year, c.EarningsCall.Quarter))
	if err != nil {
		return Period{}, false
	}
	return p, true
}

// DisplayName prefers the registered name, falling back to the ticker.
func (c Company) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return c.Ticker
}

// SymbolCandidates lists the earningscall.biz symbol spellings to try, most likely first.
func (c Company) SymbolCandidates() []string {
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return
		}
		for _, existing := range out {
			if existing == s {
				return
			}
		}
		out = append(out, s)
	}
	if c.EarningsCall != nil {
		add(c.EarningsCall.Symbol)
	}
	t := strings.ToLower(c.Ticker)
	add(t)
	if strings.Contains(t, ".") {
		add(strings.ReplaceAll(t, ".", "-"))
		add(strings.ReplaceAll(t, ".", ""))
	}
	if t == "googl" {
		add("goog")
	}
	return out
}

// NormalizeTicker trims and upper-cases a ticker.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func tickerKey(ticker string) string {
	return strings.ReplaceAll(NormalizeTicker(ticker), ".", "-")
}
