package main

import (
	"fmt"

	"github.com/kbukum/graphflow/config"
	"github.com/kbukum/graphflow/dag"
	"github.com/kbukum/graphflow/llm"
	"github.com/kbukum/graphflow/logic"
	"github.com/kbukum/graphflow/observability"
	"github.com/kbukum/graphflow/server"
	"github.com/kbukum/graphflow/version"
)

// Config is the graphflow binary configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	LLM           llm.Config           `yaml:"llm" mapstructure:"llm"`
	Engine        dag.Config           `yaml:"engine" mapstructure:"engine"`
	Logic         logic.Policy         `yaml:"logic" mapstructure:"logic"`
	Graphs        GraphsConfig         `yaml:"graphs" mapstructure:"graphs"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// GraphsConfig configures the graph registry.
type GraphsConfig struct {
	// SeedDir holds YAML or JSON documents imported at startup.
	SeedDir string `yaml:"seed_dir" mapstructure:"seed_dir"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = version.Name
	}
	if c.Version == "" {
		c.Version = version.Version
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.LLM.ApplyDefaults()
	c.Engine.ApplyDefaults()
	if len(c.Logic.AllowedSchemes) == 0 {
		c.Logic = logic.DefaultPolicy()
	}
	c.Observability.ApplyDefaults()
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	checks := []struct {
		section  string
		validate func() error
	}{
		{"server", c.Server.Validate},
		{"llm", c.LLM.Validate},
		{"engine", c.Engine.Validate},
		{"logic", c.Logic.Validate},
		{"observability", c.Observability.Validate},
	}
	for _, check := range checks {
		if err := check.validate(); err != nil {
			return fmt.Errorf("%s: %w", check.section, err)
		}
	}
	return nil
}
