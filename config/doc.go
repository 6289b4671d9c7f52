// Package config loads graphflow configuration from YAML, .env files and the
// environment.
//
// LoadConfig resolves config.yml and .env in the usual locations, reads the
// YAML with viper and then overlays environment variables. Variables map onto
// nested keys by their underscores, so LLM_PROVIDER sets llm.provider and
// ENGINE_RUN_TIMEOUT sets engine.run_timeout.
//
//	var cfg Config
//	if err := config.Load("graphflow", &cfg, config.WithConfigFile(path)); err != nil {
//		return err
//	}
//
// Load additionally applies defaults and validates any target implementing
// Defaulter.
package config
