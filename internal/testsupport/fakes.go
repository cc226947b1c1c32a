package testsupport

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"finpod/internal/publish"
	"finpod/internal/roster"
	"finpod/internal/services/tts"
	"finpod/internal/sources"
)

// SampleCall is a short call in colon-cue form.
const SampleCall = `Operator: Good day and welcome to the ACME first quarter earnings call.
Jane Doe - CFO: Revenue grew twelve percent to four hundred million dollars.
Operator: We will now begin the question-and-answer session.
John Smith - Analyst: Can you talk about margins?
Jane Doe - CFO: Margins expanded on lower input costs.`

// errorQueue hands out scripted errors, then nil forever.
type errorQueue struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	active int
	peak   int
}

func (q *errorQueue) next() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if len(q.errs) == 0 {
		return nil
	}
	err := q.errs[0]
	q.errs = q.errs[1:]
	return err
}

// Fail queues errors returned by the next calls, in order. A nil entry is a
// successful call.
func (q *errorQueue) Fail(errs ...error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errs = append(q.errs, errs...)
}

// Calls reports how many times the collaborator was invoked.
func (q *errorQueue) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

// Peak reports the most concurrent calls observed.
func (q *errorQueue) Peak() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.peak
}

func (q *errorQueue) enter() {
	q.mu.Lock()
	q.active++
	if q.active > q.peak {
		q.peak = q.active
	}
	q.mu.Unlock()
}

func (q *errorQueue) leave() {
	q.mu.Lock()
	q.active--
	q.mu.Unlock()
}

// FakeSource returns Text for every company unless an error is queued.
type FakeSource struct {
	errorQueue
	Text  string
	Delay time.Duration
	// PerCompany overrides Text by ticker.
	PerCompany map[string]string
	// OnFetch runs as each call starts.
	OnFetch func()
}

func (f *FakeSource) Name() string { return "fake" }

func (f *FakeSource) Fetch(ctx context.Context, company roster.Company, period roster.Period) (sources.RawTranscript, error) {
	f.enter()
	defer f.leave()
	if f.OnFetch != nil {
		f.OnFetch()
	}
	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}
	if err := f.next(); err != nil {
		return sources.RawTranscript{}, err
	}
	text := f.Text
	if override, ok := f.PerCompany[company.Ticker]; ok {
		text = override
	}
	return sources.RawTranscript{Text: text, Source: "fake", RetrievedAt: time.Now()}, nil
}

// FakeEngine echoes a fixed script and records the prompts it saw.
type FakeEngine struct {
	errorQueue
	Script string
	mu     sync.Mutex
	users  []string
}

func (f *FakeEngine) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	f.users = append(f.users, userPrompt)
	f.mu.Unlock()
	if err := f.next(); err != nil {
		return "", err
	}
	if f.Script == "" {
		return "Welcome to the briefing. Revenue grew.", nil
	}
	return f.Script, nil
}

// Prompts returns the user prompts received.
func (f *FakeEngine) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...)
}

// FakeSynthesizer writes the script bytes back as audio.
type FakeSynthesizer struct {
	errorQueue
}

func (f *FakeSynthesizer) Synthesize(ctx context.Context, text string, voice tts.Voice, w io.Writer) (int64, error) {
	if err := f.next(); err != nil {
		return 0, err
	}
	n, err := io.Copy(w, strings.NewReader("AUDIO:"+text))
	return n, err
}

// FakePublisher records published episodes.
type FakePublisher struct {
	errorQueue
	mu       sync.Mutex
	episodes []publish.Episode
}

func (f *FakePublisher) Publish(ctx context.Context, episode publish.Episode) (string, error) {
	if err := f.next(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.episodes = append(f.episodes, episode)
	f.mu.Unlock()
	return episode.GUID, nil
}

// Episodes returns what was published.
func (f *FakePublisher) Episodes() []publish.Episode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publish.Episode(nil), f.episodes...)
}

// MustRoster parses roster JSON or fails the test.
func MustRoster(t testing.TB, data string) *roster.Roster {
	t.Helper()
	r, err := roster.Parse([]byte(data))
	if err != nil {
		t.Fatalf("roster.Parse: %v", err)
	}
	return r
}

// SimpleRoster builds a roster with one entry per ticker.
func SimpleRoster(t testing.TB, tickers ...string) *roster.Roster {
	t.Helper()
	var b strings.Builder
	b.WriteString(`{"companies":[`)
	for i, ticker := range tickers {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"ticker":"` + ticker + `","name":"` + ticker + ` Corp"}`)
	}
	b.WriteString("]}")
	return MustRoster(t, b.String())
}
