// Package config handles Concierge configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./concierge.yaml, ~/.config/concierge/concierge.yaml,
// /etc/concierge/concierge.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"concierge.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "concierge", "concierge.yaml"))
	}

	paths = append(paths, "/etc/concierge/concierge.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Concierge configuration.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	LogLevel string         `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// DatabaseConfig defines the record store connection.
type DatabaseConfig struct {
	// Driver selects the database/sql driver: "sqlite3" or "pgx".
	Driver string `yaml:"driver"`
	// DSN is the driver-specific connection string. For sqlite3 this is
	// a file path; for pgx a postgres:// URL or keyword/value string.
	DSN string `yaml:"dsn"`
}

// LLMConfig defines the language model provider settings.
type LLMConfig struct {
	// Provider is "openai" or "ollama".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// APIKey authenticates with the provider. Supports ${VAR} expansion,
	// e.g. api_key: ${OPENAI_API_KEY}.
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	// MaxIterations bounds the tool-calling loop per request (default 5).
	MaxIterations int `yaml:"max_iterations"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 5050},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "concierge.db",
		},
		LLM: LLMConfig{
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			MaxIterations: 5,
		},
		LogLevel: "info",
	}
}

// Validate checks for settings that would prevent startup.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("unknown database driver %q (valid: sqlite3, pgx)", c.Database.Driver)
	}

	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for the openai provider")
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown llm provider %q (valid: openai, ollama)", c.LLM.Provider)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	return nil
}
