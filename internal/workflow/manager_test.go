package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"finpod/internal/config"
	"finpod/internal/notifications"
	"finpod/internal/retry"
	"finpod/internal/roster"
	"finpod/internal/services"
	"finpod/internal/stages"
	"finpod/internal/state"
	"finpod/internal/testsupport"
	"finpod/internal/workflow"
)

const period = "2024-Q1"

type fixture struct {
	cfg       *config.Config
	store     *state.Store
	source    *testsupport.FakeSource
	engine    *testsupport.FakeEngine
	synth     *testsupport.FakeSynthesizer
	publisher *testsupport.FakePublisher
	executors []stages.Executor
	manager   *workflow.Manager
}

func newFixture(t *testing.T, tickers []string, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	f := &fixture{
		cfg:       testsupport.NewConfig(t, opts...),
		source:    &testsupport.FakeSource{Text: testsupport.SampleCall},
		engine:    &testsupport.FakeEngine{},
		synth:     &testsupport.FakeSynthesizer{},
		publisher: &testsupport.FakePublisher{},
	}
	f.store = testsupport.MustOpenStore(t, f.cfg)
	executors, err := stages.NewPipeline(f.cfg, testsupport.SimpleRoster(t, tickers...), stages.Collaborators{
		Source:      f.source,
		Engine:      f.engine,
		Synthesizer: f.synth,
		Publisher:   f.publisher,
	}, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	f.executors = executors
	f.manager, err = workflow.NewManager(f.cfg, f.store, executors, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return f
}

func targets(tickers ...string) []workflow.Target {
	out := make([]workflow.Target, 0, len(tickers))
	for _, ticker := range tickers {
		out = append(out, workflow.Target{Company: ticker, Period: period})
	}
	return out
}

func (f *fixture) run(t *testing.T, tickers ...string) *workflow.Summary {
	t.Helper()
	summary, err := f.manager.Run(context.Background(), targets(tickers...))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary
}

func mustResult(t *testing.T, summary *workflow.Summary, ticker string) workflow.UnitResult {
	t.Helper()
	res, ok := summary.Result(ticker, period)
	if !ok {
		t.Fatalf("no result for %s", ticker)
	}
	return res
}

func transient(msg string) error {
	return services.Wrap(services.ErrTransient, "fetch", "fake", msg, nil)
}

func TestRunPublishesUnit(t *testing.T) {
	f := newFixture(t, []string{"ACME"})
	summary := f.run(t, "ACME")

	res := mustResult(t, summary, "ACME")
	if res.Status != workflow.UnitPublished {
		t.Fatalf("status = %s (%s), want published", res.Status, res.Error)
	}
	if res.PublishedID != stages.EpisodeGUID("ACME", period) {
		t.Fatalf("published id = %q", res.PublishedID)
	}
	unit := testsupport.MustLoadUnit(t, f.store, "ACME", period)
	for _, stage := range state.Stages() {
		rec := unit.Record(stage)
		if rec == nil || rec.Status != state.StatusSuccess || rec.AttemptCount != 1 {
			t.Fatalf("%s record = %+v, want success after one attempt", stage, rec)
		}
		if rec.CorrelationID == "" {
			t.Fatalf("%s has no correlation id", stage)
		}
	}
	if len(f.publisher.Episodes()) != 1 {
		t.Fatalf("published %d episodes", len(f.publisher.Episodes()))
	}
}

func TestPublishedUnitMakesNoCalls(t *testing.T) {
	f := newFixture(t, []string{"ACME"})
	f.run(t, "ACME")
	before := [4]int{f.source.Calls(), f.engine.Calls(), f.synth.Calls(), f.publisher.Calls()}

	summary := f.run(t, "ACME")
	res := mustResult(t, summary, "ACME")
	if res.Status != workflow.UnitPublished || !res.Resumed {
		t.Fatalf("second run = %+v, want resumed published", res)
	}
	after := [4]int{f.source.Calls(), f.engine.Calls(), f.synth.Calls(), f.publisher.Calls()}
	if before != after {
		t.Fatalf("collaborator calls changed from %v to %v", before, after)
	}
}

func TestTransientFailureRetriesWithinRun(t *testing.T) {
	f := newFixture(t, []string{"ACME"}, testsupport.WithMaxAttempts(3))
	f.source.Fail(transient("rate limited"))

	summary := f.run(t, "ACME")
	if res := mustResult(t, summary, "ACME"); res.Status != workflow.UnitPublished {
		t.Fatalf("status = %s (%s)", res.Status, res.Error)
	}
	rec := testsupport.MustLoadUnit(t, f.store, "ACME", period).Record(state.StageFetch)
	if rec.AttemptCount != 2 {
		t.Fatalf("fetch attempt_count = %d, want 2", rec.AttemptCount)
	}
	if f.source.Calls() != 2 {
		t.Fatalf("source calls = %d, want 2", f.source.Calls())
	}
}

func TestScriptEngineTransientFailureRetriesWithinRun(t *testing.T) {
	f := newFixture(t, []string{"ACME"}, testsupport.WithMaxAttempts(3))
	f.engine.Fail(services.Wrap(services.ErrTransient, "generate_script", "fake", "rate limited", nil))

	summary := f.run(t, "ACME")
	if res := mustResult(t, summary, "ACME"); res.Status != workflow.UnitPublished {
		t.Fatalf("status = %s (%s), want published", res.Status, res.Error)
	}
	rec := testsupport.MustLoadUnit(t, f.store, "ACME", period).Record(state.StageGenerateScript)
	if rec == nil || rec.Status != state.StatusSuccess || rec.AttemptCount != 2 {
		t.Fatalf("generate_script record = %+v, want success with attempt_count 2", rec)
	}
	if f.engine.Calls() != 2 {
		t.Fatalf("engine calls = %d, want 2", f.engine.Calls())
	}
}

func TestExhaustedRetriesFailPermanently(t *testing.T) {
	f := newFixture(t, []string{"ACME"}, testsupport.WithMaxAttempts(2))
	f.source.Fail(transient("timeout"), transient("timeout"))

	summary := f.run(t, "ACME")
	res := mustResult(t, summary, "ACME")
	if res.Status != workflow.UnitFailed || res.Stage != state.StageFetch {
		t.Fatalf("result = %+v, want failed at fetch", res)
	}
	rec := testsupport.MustLoadUnit(t, f.store, "ACME", period).Record(state.StageFetch)
	if rec.Status != state.StatusFailedPermanent || rec.AttemptCount != 2 {
		t.Fatalf("fetch record = %+v", rec)
	}
	if !strings.Contains(rec.LastError, "exhausted") {
		t.Fatalf("last_error = %q, want exhaustion", rec.LastError)
	}
	if !summary.HasFailures() {
		t.Fatal("summary should report failures")
	}

	summary = f.run(t, "ACME")
	res = mustResult(t, summary, "ACME")
	if res.Status != workflow.UnitFailed || !res.Resumed {
		t.Fatalf("rerun = %+v, want resumed failure", res)
	}
	if f.source.Calls() != 2 {
		t.Fatalf("source called again after permanent failure: %d", f.source.Calls())
	}
}

type recordingNotifier struct {
	mu        sync.Mutex
	failed    []string
	published []string
	totals    []notifications.RunTotals
}

func (n *recordingNotifier) NotifyUnitFailed(_ context.Context, unit, stage string, _ error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, unit+"/"+stage)
	return nil
}

func (n *recordingNotifier) NotifyEpisodePublished(_ context.Context, unit, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, unit)
	return nil
}

func (n *recordingNotifier) NotifyRunCompleted(_ context.Context, totals notifications.RunTotals) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.totals = append(n.totals, totals)
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

func TestCollaboratorRetryPolicyAndNotifications(t *testing.T) {
	f := newFixture(t, []string{"ACME", "BETA"}, testsupport.WithMaxAttempts(3))
	notifier := &recordingNotifier{}
	manager, err := workflow.NewManager(f.cfg, f.store, f.executors, nil,
		workflow.WithWorkers(1),
		workflow.WithNotifier(notifier),
		workflow.WithRetryExecutor(stages.CollaboratorSource, retry.New(retry.Policy{MaxAttempts: 1, InitialInterval: time.Millisecond})),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	f.source.Fail(transient("gateway timeout"))

	summary, err := manager.Run(context.Background(), targets("ACME", "BETA"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res := mustResult(t, summary, "ACME"); res.Status != workflow.UnitFailed || res.Stage != state.StageFetch {
		t.Fatalf("ACME = %+v, want failed at fetch after one attempt", res)
	}
	rec := testsupport.MustLoadUnit(t, f.store, "ACME", period).Record(state.StageFetch)
	if rec.Status != state.StatusFailedPermanent || rec.AttemptCount != 1 {
		t.Fatalf("fetch record = %+v", rec)
	}
	if res := mustResult(t, summary, "BETA"); res.Status != workflow.UnitPublished {
		t.Fatalf("BETA = %+v, want published", res)
	}

	if len(notifier.failed) != 1 || notifier.failed[0] != "ACME/"+period+"/fetch" {
		t.Fatalf("failure notices = %v", notifier.failed)
	}
	if len(notifier.published) != 1 || notifier.published[0] != "BETA/"+period {
		t.Fatalf("publish notices = %v", notifier.published)
	}
	if len(notifier.totals) != 1 || notifier.totals[0].Published != 1 || notifier.totals[0].Failed != 1 {
		t.Fatalf("run totals = %+v", notifier.totals)
	}
}

func TestPermanentFailureStopsUnit(t *testing.T) {
	f := newFixture(t, []string{"ACME"})
	f.source.Text = "Page 1 of 3\n12\nCopyright 2024 ACME. All rights reserved."

	summary := f.run(t, "ACME")
	res := mustResult(t, summary, "ACME")
	if res.Status != workflow.UnitFailed || res.Stage != state.StageStructure {
		t.Fatalf("result = %+v, want failed at structure", res)
	}
	if f.engine.Calls() != 0 {
		t.Fatalf("script engine called %d times after structure failure", f.engine.Calls())
	}
	rec := testsupport.MustLoadUnit(t, f.store, "ACME", period).Record(state.StageStructure)
	if rec.AttemptCount != 1 {
		t.Fatalf("structure attempts = %d, want 1", rec.AttemptCount)
	}
}

func TestUnavailableInputAwaitsLaterRun(t *testing.T) {
	f := newFixture(t, []string{"ACME"})
	f.source.Fail(services.Wrap(services.ErrInputUnavailable, "fetch", "fake", "not yet filed", nil))

	summary := f.run(t, "ACME")
	if res := mustResult(t, summary, "ACME"); res.Status != workflow.UnitAwaitingInput {
		t.Fatalf("status = %s, want awaiting_input", res.Status)
	}
	rec := testsupport.MustLoadUnit(t, f.store, "ACME", period).Record(state.StageFetch)
	if rec.Status != state.StatusPending || rec.AttemptCount != 0 {
		t.Fatalf("fetch record = %+v, want pending with no attempts spent", rec)
	}
	if summary.HasFailures() {
		t.Fatal("awaiting input is not a failure")
	}

	summary = f.run(t, "ACME")
	if res := mustResult(t, summary, "ACME"); res.Status != workflow.UnitPublished {
		t.Fatalf("second run status = %s (%s)", res.Status, res.Error)
	}
}

func TestFailureIsolatedToUnit(t *testing.T) {
	f := newFixture(t, []string{"ACME", "BETA"}, testsupport.WithWorkers(1))
	f.source.PerCompany = map[string]string{"BETA": "Page 2"}

	summary := f.run(t, "ACME", "BETA")
	if res := mustResult(t, summary, "ACME"); res.Status != workflow.UnitPublished {
		t.Fatalf("ACME status = %s (%s)", res.Status, res.Error)
	}
	if res := mustResult(t, summary, "BETA"); res.Status != workflow.UnitFailed {
		t.Fatalf("BETA status = %s", res.Status)
	}
}

func TestCancelledRunInterruptsUnits(t *testing.T) {
	f := newFixture(t, []string{"ACME", "BETA"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.manager.Run(ctx, targets("ACME", "BETA"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := summary.Count(workflow.UnitInterrupted); n != 2 {
		t.Fatalf("interrupted = %d, want 2", n)
	}
	if f.source.Calls() != 0 {
		t.Fatalf("source called %d times after cancellation", f.source.Calls())
	}

	summary = f.run(t, "ACME", "BETA")
	if n := summary.Count(workflow.UnitPublished); n != 2 {
		t.Fatalf("resumed run published %d units, want 2", n)
	}
}

func TestCancelDuringStageKeepsItsResult(t *testing.T) {
	f := newFixture(t, []string{"ACME"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.source.OnFetch = cancel
	f.source.Delay = 10 * time.Millisecond

	summary, err := f.manager.Run(ctx, targets("ACME"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res := mustResult(t, summary, "ACME"); res.Status != workflow.UnitInterrupted || res.Stage != state.StageStructure {
		t.Fatalf("result = %+v, want interrupted before structure", res)
	}
	unit := testsupport.MustLoadUnit(t, f.store, "ACME", period)
	if rec := unit.Record(state.StageFetch); rec == nil || rec.Status != state.StatusSuccess || rec.AttemptCount != 1 {
		t.Fatalf("fetch record = %+v, want success after one attempt", rec)
	}
	if rec := unit.Record(state.StageStructure); rec != nil {
		t.Fatalf("structure started after cancellation: %+v", rec)
	}
	if f.engine.Calls() != 0 {
		t.Fatalf("script engine called %d times after cancellation", f.engine.Calls())
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	tickers := []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF"}
	f := newFixture(t, tickers, testsupport.WithWorkers(2))
	f.source.Delay = 20 * time.Millisecond

	summary := f.run(t, tickers...)
	if n := summary.Count(workflow.UnitPublished); n != len(tickers) {
		t.Fatalf("published %d units, want %d", n, len(tickers))
	}
	if peak := f.source.Peak(); peak > 2 || peak < 1 {
		t.Fatalf("peak concurrent fetches = %d, want 1..2", peak)
	}
}

func TestDuplicateTargetsRunOnce(t *testing.T) {
	f := newFixture(t, []string{"ACME"})
	summary := f.run(t, "ACME", "ACME")
	if len(summary.Units()) != 1 {
		t.Fatalf("units = %d, want 1", len(summary.Units()))
	}
	if f.source.Calls() != 1 {
		t.Fatalf("source calls = %d, want 1", f.source.Calls())
	}
}

func TestRunLockRejectsConcurrentRun(t *testing.T) {
	f := newFixture(t, []string{"ACME"})
	lock := flock.New(f.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	defer func() { _ = lock.Unlock() }()

	_, err = f.manager.Run(context.Background(), targets("ACME"))
	if !errors.Is(err, workflow.ErrRunInProgress) {
		t.Fatalf("Run error = %v, want ErrRunInProgress", err)
	}
}

func TestStateStoreFailureAbortsRun(t *testing.T) {
	f := newFixture(t, []string{"ACME"})
	if err := f.store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err := f.manager.Run(context.Background(), targets("ACME"))
	if !errors.Is(err, services.ErrStateStore) {
		t.Fatalf("Run error = %v, want state store failure", err)
	}
	if f.source.Calls() != 0 {
		t.Fatalf("source called %d times without a usable store", f.source.Calls())
	}
}

func TestNewManagerRejectsIncompletePipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := workflow.NewManager(cfg, store, nil, nil); err == nil {
		t.Fatal("expected error for missing executors")
	}
}

func TestTargetsPickPeriod(t *testing.T) {
	companies := testsupport.MustRoster(t, `{"companies":[
		{"ticker":"acme","name":"Acme"},
		{"ticker":"BETA","name":"Beta","earnings_call":{"symbol":"BETA","year":2023,"quarter":"q4"}}
	]}`)
	list, err := companies.Select(nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	now := time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC)

	got := workflow.Targets(list, nil, now)
	want := map[string]string{"ACME": "2024-Q1", "BETA": "2023-Q4"}
	for _, target := range got {
		if want[target.Company] != target.Period {
			t.Fatalf("target %s = %s, want %s", target.Company, target.Period, want[target.Company])
		}
	}

	explicit := roster.Period{Year: 2022, Quarter: 3}
	for _, target := range workflow.Targets(list, &explicit, now) {
		if target.Period != "2022-Q3" {
			t.Fatalf("explicit period ignored: %+v", target)
		}
	}
}
