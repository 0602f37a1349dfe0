// Package config loads the cmdbus host configuration from cmdbus.yaml with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up in the working directory.
const DefaultPath = "cmdbus.yaml"

// Config holds all cmdbus configuration.
type Config struct {
	// Command bus behaviour
	Bus BusConfig `yaml:"bus"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// User directory backing the user argument type and role checks
	Directory DirectoryConfig `yaml:"directory"`

	// Declarative command catalog
	Catalog CatalogConfig `yaml:"catalog"`
}

// BusConfig configures the command bus.
type BusConfig struct {
	Prefix         string `yaml:"prefix"`
	ProposalTTL    string `yaml:"proposal_ttl"`
	LogPath        string `yaml:"log_path"`
	DisableLogging bool   `yaml:"disable_logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			Prefix:         "",
			ProposalTTL:    "5m",
			LogPath:        filepath.Join(".data", "commands-events.ndjson"),
			DisableLogging: true,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},

		Directory: DirectoryConfig{
			Driver: DirectoryNone,
		},

		Catalog: CatalogConfig{
			Watch: false,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if prefix, ok := os.LookupEnv("CMDBUS_PREFIX"); ok {
		c.Bus.Prefix = prefix
	}
	if ttl := os.Getenv("CMDBUS_PROPOSAL_TTL"); ttl != "" {
		c.Bus.ProposalTTL = ttl
	}
	if path := os.Getenv("CMDBUS_LOG_PATH"); path != "" {
		c.Bus.LogPath = path
	}
	if v := os.Getenv("CMDBUS_DISABLE_LOGGING"); v != "" {
		if disabled, err := strconv.ParseBool(v); err == nil {
			c.Bus.DisableLogging = disabled
		}
	}
	if level := os.Getenv("CMDBUS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if path := os.Getenv("CMDBUS_DIRECTORY_PATH"); path != "" {
		c.Directory.Path = path
	}
}

// GetProposalTTL returns the proposal TTL as a duration.
func (c *Config) GetProposalTTL() time.Duration {
	d, err := time.ParseDuration(c.Bus.ProposalTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Bus.ProposalTTL != "" {
		d, err := time.ParseDuration(c.Bus.ProposalTTL)
		if err != nil {
			return fmt.Errorf("invalid bus.proposal_ttl %q: %w", c.Bus.ProposalTTL, err)
		}
		if d <= 0 {
			return fmt.Errorf("bus.proposal_ttl must be positive, got %s", c.Bus.ProposalTTL)
		}
	}
	if !c.Bus.DisableLogging && c.Bus.LogPath == "" {
		return fmt.Errorf("bus.log_path is required when the audit log is enabled")
	}

	if err := c.Logging.validate(); err != nil {
		return err
	}
	if err := c.Directory.validate(); err != nil {
		return err
	}
	return nil
}
