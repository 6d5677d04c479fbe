// Package config provides shared configuration types for leapunits.
// This package is decoupled from CLI concerns so that the HTTP server and the
// watch loop can build a registry from the same project settings.
package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapunits/pkg/registry"
)

// ServerConfig holds configuration for the HTTP API.
type ServerConfig struct {
	Addr        string `koanf:"addr"`
	MetricsPath string `koanf:"metrics_path"`
}

// ProjectConfig holds the settings needed to build a registry.
type ProjectConfig struct {
	// Definitions replaces the embedded default definitions when set.
	Definitions string `koanf:"definitions"`

	// ExtraDefinitions are loaded in order after the base definitions.
	ExtraDefinitions []string `koanf:"extra_definitions"`

	// OnRedefinition is one of raise, warn or ignore.
	OnRedefinition string `koanf:"on_redefinition"`

	DefaultAsDelta    bool `koanf:"default_as_delta"`
	AutoconvertOffset bool `koanf:"autoconvert_offset"`

	// Contexts are enabled, in order, right after loading.
	Contexts      []string           `koanf:"contexts"`
	ContextParams map[string]float64 `koanf:"context_params"`

	Server *ServerConfig `koanf:"server"`
}

// Validate checks if the configuration is valid.
func (c *ProjectConfig) Validate() error {
	if _, err := registry.ParseRedefinitionPolicy(c.OnRedefinition); err != nil {
		return err
	}
	for _, name := range c.Contexts {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("contexts: empty context name")
		}
	}
	for name := range c.ContextParams {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("context_params: empty parameter name")
		}
	}
	return nil
}

// ResolvePaths makes every definitions path absolute relative to baseDir.
func (c *ProjectConfig) ResolvePaths(baseDir string) {
	c.Definitions = resolvePath(c.Definitions, baseDir)
	for i, p := range c.ExtraDefinitions {
		c.ExtraDefinitions[i] = resolvePath(p, baseDir)
	}
}

// DefinitionFiles returns every file the registry reads besides the
// embedded defaults.
func (c *ProjectConfig) DefinitionFiles() []string {
	var files []string
	if c.Definitions != "" {
		files = append(files, c.Definitions)
	}
	return append(files, c.ExtraDefinitions...)
}

// RegistryOptions translates the configuration into registry options.
func (c *ProjectConfig) RegistryOptions(logger *slog.Logger) ([]registry.Option, error) {
	policy, err := registry.ParseRedefinitionPolicy(c.OnRedefinition)
	if err != nil {
		return nil, err
	}

	opts := []registry.Option{
		registry.WithLogger(logger),
		registry.WithOnRedefinition(policy),
		registry.WithDefaultAsDelta(c.DefaultAsDelta),
		registry.WithAutoconvertOffsetToBaseUnit(c.AutoconvertOffset),
	}
	if c.Definitions != "" {
		opts = append(opts, registry.WithoutDefaults())
	}
	for _, f := range c.DefinitionFiles() {
		opts = append(opts, registry.WithDefinitionsFile(f))
	}
	return opts, nil
}

// NewRegistry builds a registry from the configuration and enables the
// configured contexts.
func (c *ProjectConfig) NewRegistry(logger *slog.Logger, extra ...registry.Option) (*registry.Registry, error) {
	opts, err := c.RegistryOptions(logger)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(append(opts, extra...)...)
	if err != nil {
		return nil, err
	}
	if len(c.Contexts) > 0 {
		if err := reg.EnableContexts(c.ContextParams, c.Contexts...); err != nil {
			return nil, fmt.Errorf("failed to enable contexts: %w", err)
		}
	}
	return reg, nil
}

// resolvePath resolves a path relative to baseDir if it's not absolute.
func resolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
