package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models crusade.yml.
type Config struct {
	Defaults struct {
		Priority      string `yaml:"priority"`
		MaxActionable int    `yaml:"max_actionable"`
	} `yaml:"defaults"`
	Hints struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"hints"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
}

var knownPriorities = map[string]bool{
	"critical": true,
	"high":     true,
	"medium":   true,
	"low":      true,
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Defaults.Priority == "" {
		return fmt.Errorf("config.defaults.priority is required")
	}
	if !knownPriorities[c.Defaults.Priority] {
		return fmt.Errorf("config.defaults.priority %q is not one of critical, high, medium, low", c.Defaults.Priority)
	}
	if c.Defaults.MaxActionable <= 0 {
		return fmt.Errorf("config.defaults.max_actionable must be positive")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "crusade.yml")
}

// Load reads and validates config from the workspace, falling back to
// defaults when the file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in Config.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML suitable for seeding a
// workspace.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `defaults:
  priority: medium
  max_actionable: 10

hints:
  enabled: true

server:
  addr: 127.0.0.1:8080
  base_path: /v0
`
