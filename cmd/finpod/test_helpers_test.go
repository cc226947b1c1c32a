package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"finpod/internal/config"
	"finpod/internal/logging"
	"finpod/internal/stages"
	"finpod/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	source     *testsupport.FakeSource
	engine     *testsupport.FakeEngine
	synth      *testsupport.FakeSynthesizer
	publisher  *testsupport.FakePublisher
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, cfg.Roster.Path, `{"companies":[
		{"ticker":"ACME","name":"Acme Corp"},
		{"ticker":"BETA","name":"Beta Inc"}
	]}`)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		source:     &testsupport.FakeSource{Text: testsupport.SampleCall},
		engine:     &testsupport.FakeEngine{},
		synth:      &testsupport.FakeSynthesizer{},
		publisher:  &testsupport.FakePublisher{},
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx := newCommandContext()
	ctx.logger = logging.NewNop()
	ctx.collaborators = func(*config.Config, *slog.Logger) (stages.Collaborators, error) {
		return stages.Collaborators{
			Source:      env.source,
			Engine:      env.engine,
			Synthesizer: env.synth,
			Publisher:   env.publisher,
		}, nil
	}
	cmd := buildRootCommand(ctx)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
