package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finpod/internal/testsupport"
	"finpod/internal/transcript"
)

func TestRunPublishesAndResumes(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "run", "--period", "2024-Q1")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	requireContains(t, out, "2 published, 0 failed")
	if got := len(env.publisher.Episodes()); got != 2 {
		t.Fatalf("published %d episodes, want 2", got)
	}

	out, err = env.run(t, "run", "--period", "2024-Q1", "--company", "acme")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	requireContains(t, out, "1 published")
	if env.source.Calls() != 2 {
		t.Fatalf("source calls = %d, want 2 (no refetch)", env.source.Calls())
	}
}

func TestRunExitsNonZeroOnPermanentFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.source.PerCompany = map[string]string{"BETA": "Page 1 of 2"}

	out, err := env.run(t, "run", "--period", "2024-Q1")
	if !errors.Is(err, errUnitsFailed) {
		t.Fatalf("run error = %v, want errUnitsFailed", err)
	}
	requireContains(t, out, "1 published, 1 failed")
}

func TestRunJSONSummary(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "run", "--period", "2024-Q1", "--company", "ACME", "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var view runView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if view.RunID == "" || len(view.Units) != 1 || view.Units[0].Status != "published" {
		t.Fatalf("unexpected summary: %+v", view)
	}
}

func TestRunRejectsUnknownCompany(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "run", "--company", "NOPE"); err == nil {
		t.Fatal("expected error for ticker outside the roster")
	}
}

func TestStructureCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call.txt")
	testsupport.WriteFile(t, path, testsupport.SampleCall)

	cmd := newRootCommand()
	var stdout strings.Builder
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"structure", path, "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("structure: %v", err)
	}
	var got transcript.Transcript
	if err := json.Unmarshal([]byte(stdout.String()), &got); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(got.Turns) != 5 {
		t.Fatalf("turns = %d, want 5", len(got.Turns))
	}
	if got.Turns[3].Role != transcript.RoleAnalyst || got.Turns[3].Section != transcript.SectionQA {
		t.Fatalf("analyst turn = %+v", got.Turns[3])
	}
}

func TestStructureCommandReadsStdin(t *testing.T) {
	cmd := newRootCommand()
	var stdout strings.Builder
	cmd.SetOut(&stdout)
	cmd.SetIn(strings.NewReader(testsupport.SampleCall))
	cmd.SetArgs([]string{"structure", "-"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("structure: %v", err)
	}
	requireContains(t, stdout.String(), "Jane Doe")
	requireContains(t, stdout.String(), "5 turns")
}

func TestStateListAndReset(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "run", "--period", "2024-Q1", "--company", "ACME"); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, err := env.run(t, "state", "list", "--json", "--company", "acme")
	if err != nil {
		t.Fatalf("state list: %v", err)
	}
	var records []recordView
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("records = %d, want 5", len(records))
	}

	out, err = env.run(t, "state", "reset", "ACME", "2024q1", "--from", "synthesize-audio")
	if err != nil {
		t.Fatalf("state reset: %v", err)
	}
	requireContains(t, out, "2 records removed")

	out, err = env.run(t, "run", "--period", "2024-Q1", "--company", "ACME")
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	requireContains(t, out, "1 published")
	if env.engine.Calls() != 1 {
		t.Fatalf("script engine calls = %d, want 1 (script kept)", env.engine.Calls())
	}
	if env.synth.Calls() != 2 {
		t.Fatalf("synthesizer calls = %d, want 2", env.synth.Calls())
	}
}

func TestRosterValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "roster", "validate")
	if err != nil {
		t.Fatalf("roster validate: %v", err)
	}
	requireContains(t, out, "Roster valid: 2 companies")

	bad := filepath.Join(t.TempDir(), "bad.json")
	testsupport.WriteFile(t, bad, `{"companies":[{"ticker":"ACME","cik":"123"}]}`)
	if _, err := env.run(t, "roster", "validate", bad); err == nil || !strings.Contains(err.Error(), "cik") {
		t.Fatalf("expected cik validation error, got %v", err)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite")
	}

	out, err = env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[pipeline]")
	if strings.Contains(out, "api_key = 'test'") || strings.Contains(out, `api_key = "test"`) {
		t.Fatalf("config show leaked the api key:\n%s", out)
	}
}

func TestCheckOffline(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "check", "--offline")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "Roster:")
	requireContains(t, out, "[OK]")
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"short":            "****",
		"sk-abcdefghijklm": "sk-a****",
	}
	for in, want := range tests {
		if got := maskSecret(in); got != want {
			t.Fatalf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStagingCleanPublished(t *testing.T) {
	env := setupCLITestEnv(t)
	env.source.PerCompany = map[string]string{"BETA": "Page 1 of 2"}
	if _, err := env.run(t, "run", "--period", "2024-Q1"); !errors.Is(err, errUnitsFailed) {
		t.Fatalf("run error = %v", err)
	}

	out, err := env.run(t, "staging", "list")
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "2 units")

	out, err = env.run(t, "staging", "clean", "--published")
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 1 staged units")
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.StagingDir, "BETA", "2024-Q1")); err != nil {
		t.Fatalf("failed unit's artifacts should remain: %v", err)
	}
}
