package main

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vinayprograms/agentkit/credentials"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/parliament/internal/config"
	"github.com/vinayprograms/parliament/internal/structured"
)

// loadConfig reads path, or ./parliament.toml when path is empty.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.LoadDefault()
	} else {
		cfg, err = config.LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// parseRetryConfig converts config values to RetryConfig.
func parseRetryConfig(maxRetries int, backoffStr string) llm.RetryConfig {
	cfg := llm.RetryConfig{
		MaxRetries: maxRetries,
	}
	if backoffStr != "" {
		if d, err := time.ParseDuration(backoffStr); err == nil {
			cfg.MaxBackoff = d
		}
	}
	return cfg
}

// providerName returns the configured provider, inferring it from the model.
func providerName(l config.LLMConfig) string {
	if l.Provider != "" {
		return l.Provider
	}
	return llm.InferProviderFromModel(l.Model)
}

// apiKey prefers credentials.toml and falls back to the environment.
func apiKey(l config.LLMConfig, creds *credentials.Credentials) string {
	if creds != nil {
		if key := creds.GetAPIKey(providerName(l)); key != "" {
			return key
		}
	}
	return l.APIKey()
}

// newProvider creates the chat backend for l.
func newProvider(l config.LLMConfig, creds *credentials.Credentials) (llm.Provider, error) {
	if l.Model == "" {
		return nil, fmt.Errorf("LLM model not configured")
	}
	name := providerName(l)
	p, err := llm.NewProvider(llm.ProviderConfig{
		Provider:    name,
		Model:       l.Model,
		APIKey:      apiKey(l, creds),
		MaxTokens:   l.MaxTokens,
		BaseURL:     l.BaseURL,
		Thinking:    llm.ThinkingConfig{Level: llm.ThinkingLevel(l.Thinking)},
		RetryConfig: parseRetryConfig(l.MaxRetries, l.RetryBackoff),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", name, err)
	}
	return p, nil
}

// gatewayBackOff maps the configured policy to a backoff factory.
func gatewayBackOff(policy string) func() backoff.BackOff {
	if policy == config.BackoffNone {
		return structured.ZeroBackOff
	}
	return structured.DefaultBackOff
}
