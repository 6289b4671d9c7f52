package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/kbukum/graphflow/resilience"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderEcho      = "echo"
)

// Defaults.
const (
	DefaultProvider        = ProviderAnthropic
	DefaultModel           = "claude-3-7-sonnet-latest"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultAnthropicTokens = 1024
	DefaultTimeout         = 120 * time.Second
)

// ProviderConfig holds the connection settings of one provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// Config configures model routing.
type Config struct {
	// Provider is used by agent nodes that name none.
	Provider string `yaml:"provider" mapstructure:"provider"`
	// Model is the default model of the default provider.
	Model string `yaml:"model" mapstructure:"model"`
	// Timeout bounds each provider call.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// MaxTokens is used when a request sets none.
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens"`

	Retry     resilience.RetryConfig   `yaml:"retry" mapstructure:"retry"`
	RateLimit resilience.LimiterConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	OpenAI    ProviderConfig `yaml:"openai" mapstructure:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
}

// ApplyDefaults fills unset fields. API keys fall back to OPENAI_API_KEY and
// ANTHROPIC_API_KEY.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Model == "" && c.Provider == DefaultProvider {
		c.Model = DefaultModel
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	def := resilience.DefaultRetryConfig()
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = def.MaxAttempts
	}
	if c.Retry.InitialBackoff == 0 {
		c.Retry.InitialBackoff = def.InitialBackoff
	}
	if c.Retry.MaxBackoff == 0 {
		c.Retry.MaxBackoff = def.MaxBackoff
	}
	if c.Retry.BackoffFactor == 0 {
		c.Retry.BackoffFactor = def.BackoffFactor
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Anthropic.APIKey == "" {
		c.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// Validate validates the routing configuration.
func (c *Config) Validate() error {
	if _, ok := lookupFactory(c.Provider); !ok {
		return fmt.Errorf("llm.provider must be one of %v (got: %s)", Providers(), c.Provider)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must not be negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("llm.rate_limit.requests_per_second must not be negative")
	}
	return nil
}

// modelFor returns the default model of provider.
func (c *Config) modelFor(provider string, pc ProviderConfig, fallback string) string {
	switch {
	case pc.Model != "":
		return pc.Model
	case provider == c.Provider && c.Model != "":
		return c.Model
	}
	return fallback
}
