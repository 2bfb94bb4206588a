package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdonaldj/tarkeep/internal/policy"
)

type Config struct {
	TarsnapPath string `yaml:"tarsnap_path"`
	// Rules uses the spacing:horizon,... encoding; horizon -1 is unbounded.
	Rules string `yaml:"rules"`
	Retry struct {
		Attempts     int `yaml:"attempts"`
		DelaySeconds int `yaml:"delay_seconds"`
	} `yaml:"retry"`
}

func DefaultConfig() *Config {
	cfg := &Config{
		TarsnapPath: "tarsnap",
		Rules:       policy.FormatRules(policy.DefaultRules),
	}
	cfg.Retry.Attempts = 5
	cfg.Retry.DelaySeconds = 600
	return cfg
}

func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".tarkeep", "config.yaml")
}

func Load() (*Config, error) {
	cfg := DefaultConfig()

	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Save() error {
	path := ConfigPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ParsedRules parses and validates the configured rule string.
func (c *Config) ParsedRules() ([]policy.Rule, error) {
	return policy.ParseRules(c.Rules)
}

// RetryDelay returns the configured delay between tarsnap retries.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelaySeconds) * time.Second
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return unexpanded if home unavailable
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
