package dag

import (
	"fmt"
	"time"
)

// Config configures the execution engine.
type Config struct {
	// MaxParallel bounds concurrent nodes per stage (0 = unbounded).
	MaxParallel int `yaml:"max_parallel" mapstructure:"max_parallel"`
	// RunTimeout bounds a whole run (0 = none).
	RunTimeout time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`
	// NodeTimeout bounds each node invocation (0 = none).
	NodeTimeout time.Duration `yaml:"node_timeout" mapstructure:"node_timeout"`
	// Tracing wraps every node in a span.
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		RunTimeout:  10 * time.Minute,
		NodeTimeout: 3 * time.Minute,
	}
}

// ApplyDefaults fills zero timeouts. Use a negative value to disable one.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.RunTimeout == 0 {
		c.RunTimeout = d.RunTimeout
	}
	if c.NodeTimeout == 0 {
		c.NodeTimeout = d.NodeTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxParallel < 0 {
		return fmt.Errorf("engine: max_parallel must not be negative, got %d", c.MaxParallel)
	}
	return nil
}
