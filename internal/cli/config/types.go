// Package config provides configuration management for the leapunits CLI.
//
// This package extends the shared project configuration from internal/config
// with CLI-specific fields such as the state database and output format.
package config

import (
	"fmt"

	sharedcfg "github.com/leapstack-labs/leapunits/internal/config"
)

// ProjectConfig is an alias for the shared project configuration.
type ProjectConfig = sharedcfg.ProjectConfig

// ServerConfig is an alias for the shared server configuration.
type ServerConfig = sharedcfg.ServerConfig

// Config holds all CLI configuration options.
type Config struct {
	ProjectConfig `koanf:",squash"`

	StatePath    string `koanf:"state_path"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
}

// Output formats.
const (
	OutputText     = "text"
	OutputMarkdown = "markdown"
	OutputJSON     = "json"
	OutputYAML     = "yaml"
)

// Default configuration values.
const (
	DefaultStateFile = ".leapunits/state.db"
	DefaultOutput    = OutputText
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case OutputText, OutputMarkdown, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("invalid output format %q (want text, markdown, json or yaml)", c.OutputFormat)
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	return c.ProjectConfig.Validate()
}
