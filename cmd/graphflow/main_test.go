package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/graphflow/errors"
	"github.com/kbukum/graphflow/service"
)

const greetYAML = `
name: greet
nodes:
  - name: greeting
    type: function
    function:
      value: hello
  - name: shout
    type: function
    function:
      logic: go:echo
edges:
  - {source: greeting, target: shout}
`

const brokenYAML = `
name: broken
nodes:
  - name: first
    type: function
    function:
      value: 1
  - name: second
    type: function
    function:
      logic: go:missing
edges:
  - {source: first, target: second}
`

const testConfigYAML = `
logging:
  level: disabled
llm:
  provider: echo
`

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "graphflow ") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestRenderCmd(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTemp(t, dir, "config.yml", testConfigYAML)
	doc := writeTemp(t, dir, "greet.yaml", greetYAML)

	out, err := execute(t, "render", doc, "--config", cfg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Graph greet", "greeting ──▶ shout", "Stages:", "0: [greeting]", "1: [shout]"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "render", doc, "--config", cfg, "--json")
	if err != nil {
		t.Fatalf("render --json: %v", err)
	}
	var view service.GraphView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode view: %v\n%s", err, out)
	}
	if view.Name != "greet" || len(view.Stages) != 2 {
		t.Errorf("unexpected view %+v", view)
	}
}

func TestRunCmd(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTemp(t, dir, "config.yml", testConfigYAML)
	doc := writeTemp(t, dir, "greet.yaml", greetYAML)

	out, err := execute(t, "run", doc, "--config", cfg, "--text", "world")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var resp service.RunResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode run: %v\n%s", err, out)
	}
	if resp.Status != "completed" {
		t.Fatalf("expected completed run, got %s", resp.Status)
	}
	if resp.Result.Output["greeting"] != "hello" || resp.Result.Output["shout"] != "world" {
		t.Errorf("unexpected output %v", resp.Result.Output)
	}
}

func TestRunCmd_Failures(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTemp(t, dir, "config.yml", testConfigYAML)
	broken := writeTemp(t, dir, "broken.yaml", brokenYAML)
	greet := writeTemp(t, dir, "greet.yaml", greetYAML)

	out, err := execute(t, "run", broken, "--config", cfg, "--text", "x")
	if !errors.HasCode(err, errors.ErrCodeNodeExecution) {
		t.Fatalf("expected NODE_EXECUTION_ERROR, got %v", err)
	}
	if !strings.Contains(out, `"status": "failed"`) {
		t.Errorf("expected the failed run to be printed, got:\n%s", out)
	}

	if _, err := execute(t, "run", greet, "--config", cfg); err == nil {
		t.Error("expected missing --text to fail")
	}
	if _, err := execute(t, "run", filepath.Join(dir, "missing.yaml"), "--config", cfg, "--text", "x"); err == nil {
		t.Error("expected missing document to fail")
	}
	if _, err := execute(t, "run", greet, "--config", filepath.Join(dir, "none.yml"), "--text", "x"); err == nil {
		t.Error("expected missing config file to fail")
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Name != "graphflow" || cfg.Server.Port != 8080 {
		t.Errorf("unexpected defaults %+v", cfg.ServiceConfig)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.Model != "claude-3-7-sonnet-latest" {
		t.Errorf("unexpected llm defaults %+v", cfg.LLM)
	}
	if len(cfg.Logic.AllowedSchemes) == 0 || cfg.Engine.RunTimeout == 0 {
		t.Errorf("expected logic and engine defaults, got %+v %+v", cfg.Logic, cfg.Engine)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"engine", func(c *Config) { c.Engine.MaxParallel = -1 }, "engine:"},
		{"llm", func(c *Config) { c.LLM.Provider = "mystery" }, "llm:"},
		{"server", func(c *Config) { c.Server.Port = 70000 }, "server:"},
		{"environment", func(c *Config) { c.Environment = "qa" }, "config.environment"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "config.yml", `
environment: staging
server:
  port: 9090
engine:
  max_parallel: 4
  run_timeout: 30s
graphs:
  seed_dir: ./graphs
`)
	t.Setenv("LLM_PROVIDER", "openai")

	opts := &rootOptions{configFile: path}
	cfg, err := opts.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	if cfg.Environment != "staging" || cfg.Server.Port != 9090 || cfg.Engine.MaxParallel != 4 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Engine.RunTimeout.String() != "30s" {
		t.Errorf("expected 30s run timeout, got %v", cfg.Engine.RunTimeout)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected LLM_PROVIDER to override, got %q", cfg.LLM.Provider)
	}
	if got := registryOptions(cfg); len(got) != 1 {
		t.Errorf("expected seed dir option, got %d options", len(got))
	}
}
