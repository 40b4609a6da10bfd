package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew_Defaults(t *testing.T) {
	cfg := New()
	if cfg.Procedure.StatementRounds != 3 || cfg.Procedure.DebateRounds != 2 {
		t.Errorf("unexpected procedure defaults %+v", cfg.Procedure)
	}
	if cfg.Gateway.MaxAttempts != 4 || cfg.Gateway.AttemptTimeout.Duration != 60*time.Second {
		t.Errorf("unexpected gateway defaults %+v", cfg.Gateway)
	}
	if !cfg.Speaker.DelegateOrder || !cfg.Speaker.DelegateVeto {
		t.Error("delegation should be on by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[llm]
provider = "anthropic"
model = "claude-sonnet-4-5"

[speaker_llm]
model = "claude-haiku-4-5"

[procedure]
statement_rounds = 1
debate_rounds = 3
parallel = false

[speaker]
delegate_veto = false
veto = ["Safety", "Compliance"]

[gateway]
max_attempts = 2
attempt_timeout = "90s"
backoff = "none"

[telemetry]
enabled = true
protocol = "otlp"
endpoint = "localhost:4317"
insecure = true
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.LLM.Model != "claude-sonnet-4-5" || cfg.LLM.MaxTokens != 4096 {
		t.Errorf("unexpected llm %+v", cfg.LLM)
	}
	if cfg.Procedure.StatementRounds != 1 || cfg.Procedure.DebateRounds != 3 || cfg.Procedure.Parallel {
		t.Errorf("unexpected procedure %+v", cfg.Procedure)
	}
	if cfg.Procedure.Concurrency != 5 {
		t.Error("unset keys should keep defaults")
	}
	if cfg.Speaker.DelegateVeto || len(cfg.Speaker.Veto) != 2 {
		t.Errorf("unexpected speaker %+v", cfg.Speaker)
	}
	if cfg.Gateway.AttemptTimeout.Duration != 90*time.Second || cfg.Gateway.Backoff != BackoffNone {
		t.Errorf("unexpected gateway %+v", cfg.Gateway)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	sp := cfg.SpeakerModel()
	if sp.Model != "claude-haiku-4-5" || sp.Provider != "anthropic" || sp.MaxTokens != 4096 {
		t.Errorf("speaker model should inherit from [llm]: %+v", sp)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "[procedure]\nrounds = 2\n", "unknown key"},
		{"bad duration", "[gateway]\nattempt_timeout = \"soon\"\n", "failed to parse"},
		{"bad toml", "[llm\n", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative statement rounds", func(c *Config) { c.Procedure.StatementRounds = -1 }, "statement_rounds"},
		{"negative debate rounds", func(c *Config) { c.Procedure.DebateRounds = -1 }, "debate_rounds"},
		{"zero concurrency", func(c *Config) { c.Procedure.Concurrency = 0 }, "concurrency"},
		{"zero attempts", func(c *Config) { c.Gateway.MaxAttempts = 0 }, "max_attempts"},
		{"zero timeout", func(c *Config) { c.Gateway.AttemptTimeout.Duration = 0 }, "attempt_timeout"},
		{"bad backoff", func(c *Config) { c.Gateway.Backoff = "linear" }, "backoff"},
		{"otlp without endpoint", func(c *Config) { c.Telemetry = TelemetryConfig{Enabled: true, Protocol: "otlp"} }, "endpoint"},
		{"bad protocol", func(c *Config) { c.Telemetry = TelemetryConfig{Enabled: true, Protocol: "zipkin"} }, "protocol"},
		{"record without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSpeakerModel_FallsBackToLLM(t *testing.T) {
	cfg := New()
	cfg.LLM = LLMConfig{Provider: "openai", Model: "gpt-4o", MaxTokens: 2048}
	if got := cfg.SpeakerModel(); got != cfg.LLM {
		t.Errorf("expected [llm] when [speaker_llm] is unset, got %+v", got)
	}
}

func TestGetAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "from-default")
	t.Setenv("CUSTOM_KEY", "from-custom")

	cfg := New()
	cfg.LLM.Provider = "anthropic"
	if got := cfg.GetAPIKey(); got != "from-default" {
		t.Errorf("expected default env key, got %q", got)
	}
	cfg.LLM.APIKeyEnv = "CUSTOM_KEY"
	if got := cfg.GetAPIKey(); got != "from-custom" {
		t.Errorf("expected custom env key, got %q", got)
	}
	if DefaultAPIKeyEnv("unknown") != "" {
		t.Error("unknown provider should have no default env var")
	}
}

func TestLoadDefault_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	if cfg.Procedure.DebateRounds != 2 {
		t.Error("expected defaults")
	}
}
