package workflow

import (
	"sort"
	"sync"
	"time"

	"finpod/internal/state"
)

// Target is one unit of work requested for a run.
type Target struct {
	Company string
	Period  string
}

// Key matches state.EpisodeUnit.Key.
func (t Target) Key() string {
	return t.Company + "/" + t.Period
}

// UnitStatus is the terminal condition of a unit at the end of a run.
type UnitStatus string

const (
	UnitPublished     UnitStatus = "published"
	UnitFailed        UnitStatus = "failed_permanent"
	UnitAwaitingInput UnitStatus = "awaiting_input"
	UnitInterrupted   UnitStatus = "interrupted"
)

// UnitResult reports what happened to one unit.
type UnitResult struct {
	Company     string
	Period      string
	Status      UnitStatus
	Stage       state.Stage
	Attempts    int
	Error       string
	PublishedID string
	// Resumed is true when the unit was already terminal before this run.
	Resumed  bool
	Duration time.Duration
}

// Summary collects unit results for a run.
type Summary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration

	mu    sync.Mutex
	units []UnitResult
}

func (s *Summary) add(result UnitResult) {
	s.mu.Lock()
	s.units = append(s.units, result)
	s.mu.Unlock()
}

// Units returns results ordered by company then period.
func (s *Summary) Units() []UnitResult {
	s.mu.Lock()
	out := append([]UnitResult(nil), s.units...)
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Company != out[j].Company {
			return out[i].Company < out[j].Company
		}
		return out[i].Period < out[j].Period
	})
	return out
}

// Count returns how many units ended with status.
func (s *Summary) Count(status UnitStatus) int {
	n := 0
	for _, u := range s.Units() {
		if u.Status == status {
			n++
		}
	}
	return n
}

// HasFailures reports whether any unit failed permanently.
func (s *Summary) HasFailures() bool {
	return s.Count(UnitFailed) > 0
}

// Result returns the result for a unit key.
func (s *Summary) Result(company, period string) (UnitResult, bool) {
	for _, u := range s.Units() {
		if u.Company == company && u.Period == period {
			return u, true
		}
	}
	return UnitResult{}, false
}

// claimSet guarantees a unit key is processed by one worker at a time.
type claimSet struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newClaimSet() *claimSet {
	return &claimSet{held: map[string]struct{}{}}
}

func (c *claimSet) claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.held[key]; busy {
		return false
	}
	c.held[key] = struct{}{}
	return true
}

func (c *claimSet) release(key string) {
	c.mu.Lock()
	delete(c.held, key)
	c.mu.Unlock()
}
