// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "parliament.toml"

// Backoff policies between gateway attempts.
const (
	BackoffExponential = "exponential"
	BackoffNone        = "none"
)

// Config represents the parliament configuration.
type Config struct {
	LLM        LLMConfig       `toml:"llm"`         // Model used by the factions
	SpeakerLLM LLMConfig       `toml:"speaker_llm"` // Model used for the Speaker's rulings
	Procedure  ProcedureConfig `toml:"procedure"`
	Speaker    SpeakerConfig   `toml:"speaker"`
	Gateway    GatewayConfig   `toml:"gateway"`
	Factions   FactionsConfig  `toml:"factions"`
	Storage    StorageConfig   `toml:"storage"`
	Telemetry  TelemetryConfig `toml:"telemetry"`
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	APIKeyEnv    string `toml:"api_key_env"`
	MaxTokens    int    `toml:"max_tokens"`
	BaseURL      string `toml:"base_url"`      // Custom API endpoint (OpenRouter, LiteLLM, Ollama, LMStudio)
	Thinking     string `toml:"thinking"`      // Thinking level: auto|off|low|medium|high
	MaxRetries   int    `toml:"max_retries"`   // Transport-level retries inside the provider
	RetryBackoff string `toml:"retry_backoff"` // Max transport backoff, e.g. "60s"
}

// ProcedureConfig bounds the sitting.
type ProcedureConfig struct {
	StatementRounds int  `toml:"statement_rounds"` // Statement rounds before the Speaker forces a vote
	DebateRounds    int  `toml:"debate_rounds"`
	Parallel        bool `toml:"parallel"` // Collect statements and votes concurrently
	Concurrency     int  `toml:"concurrency"`
}

// SpeakerConfig controls which rulings are delegated to the model.
type SpeakerConfig struct {
	DelegateOrder bool     `toml:"delegate_order"`
	DelegateVeto  bool     `toml:"delegate_veto"`
	Veto          []string `toml:"veto"` // Static veto holders when delegate_veto is off
}

// GatewayConfig tunes the structured-output gateway.
type GatewayConfig struct {
	MaxAttempts    int      `toml:"max_attempts"`
	AttemptTimeout Duration `toml:"attempt_timeout"`
	Backoff        string   `toml:"backoff"` // exponential or none
}

// FactionsConfig points at a roster file. Empty uses the built-in roster.
type FactionsConfig struct {
	File string `toml:"file"`
}

// StorageConfig contains session journal settings.
type StorageConfig struct {
	Path   string `toml:"path"`   // Directory for session journals
	Record bool   `toml:"record"` // Write a journal for every sitting
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Protocol string `toml:"protocol"` // stdout (default) or otlp
	Endpoint string `toml:"endpoint"` // OTLP gRPC endpoint (e.g., localhost:4317)
	Insecure bool   `toml:"insecure"` // Disable TLS
}

// Duration is a time.Duration written as a string ("90s", "2m") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
		Procedure: ProcedureConfig{
			StatementRounds: 3,
			DebateRounds:    2,
			Parallel:        true,
			Concurrency:     5,
		},
		Speaker: SpeakerConfig{
			DelegateOrder: true,
			DelegateVeto:  true,
		},
		Gateway: GatewayConfig{
			MaxAttempts:    4,
			AttemptTimeout: Duration{60 * time.Second},
			Backoff:        BackoffExponential,
		},
		Storage: StorageConfig{
			Path:   "sessions",
			Record: true,
		},
		Telemetry: TelemetryConfig{
			Protocol: "stdout",
		},
	}
}

// LoadFile loads configuration from a TOML file. Unknown keys are an error.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("failed to parse config: unknown key %q", undecoded[0].String())
	}
	return cfg, nil
}

// LoadDefault loads parliament.toml from the current directory, or returns
// defaults when there is none.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	path := filepath.Join(cwd, DefaultFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	return LoadFile(path)
}

// Validate reports the first setting that cannot drive a sitting.
func (c *Config) Validate() error {
	switch {
	case c.Procedure.StatementRounds < 0:
		return fmt.Errorf("procedure.statement_rounds must not be negative")
	case c.Procedure.DebateRounds < 0:
		return fmt.Errorf("procedure.debate_rounds must not be negative")
	case c.Procedure.Concurrency < 1:
		return fmt.Errorf("procedure.concurrency must be at least 1")
	case c.Gateway.MaxAttempts < 1:
		return fmt.Errorf("gateway.max_attempts must be at least 1")
	case c.Gateway.AttemptTimeout.Duration <= 0:
		return fmt.Errorf("gateway.attempt_timeout must be positive")
	}
	switch c.Gateway.Backoff {
	case BackoffExponential, BackoffNone:
	default:
		return fmt.Errorf("gateway.backoff must be %q or %q, got %q", BackoffExponential, BackoffNone, c.Gateway.Backoff)
	}
	if c.Telemetry.Enabled {
		switch c.Telemetry.Protocol {
		case "stdout":
		case "otlp":
			if c.Telemetry.Endpoint == "" {
				return fmt.Errorf("telemetry.endpoint is required for otlp")
			}
		default:
			return fmt.Errorf("telemetry.protocol must be stdout or otlp, got %q", c.Telemetry.Protocol)
		}
	}
	if c.Storage.Record && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required when storage.record is on")
	}
	return nil
}

// SpeakerModel returns [speaker_llm] with unset fields taken from [llm].
func (c *Config) SpeakerModel() LLMConfig {
	s := c.SpeakerLLM
	if s.Model == "" {
		return c.LLM
	}
	if s.Provider == "" && s.BaseURL == "" {
		s.Provider = c.LLM.Provider
	}
	if s.APIKeyEnv == "" && s.Provider == c.LLM.Provider {
		s.APIKeyEnv = c.LLM.APIKeyEnv
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = c.LLM.MaxTokens
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = c.LLM.MaxRetries
	}
	if s.RetryBackoff == "" {
		s.RetryBackoff = c.LLM.RetryBackoff
	}
	return s
}

// GetAPIKey returns the faction model's API key from the environment.
func (c *Config) GetAPIKey() string {
	return c.LLM.APIKey()
}

// APIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (l LLMConfig) APIKey() string {
	envVar := l.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(l.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}
