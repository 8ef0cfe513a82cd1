package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLManager is the default Manager, reading Config from a YAML file on
// disk, generalized from the teacher's internal/config.Manager.
type YAMLManager struct{}

// NewManager creates a new configuration manager.
func NewManager() *YAMLManager {
	return &YAMLManager{}
}

// Load reads and parses a YAML configuration file, then validates it.
func (m *YAMLManager) Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := m.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks a Config for internally-consistent, in-range values
// (spec §6.1 Options).
func (m *YAMLManager) Validate(cfg *Config) error {
	if cfg.Endpoint.Path == "" {
		return fmt.Errorf("endpoint path cannot be empty")
	}

	if cfg.Connection.TimeoutMS < 0 {
		return fmt.Errorf("invalid connection timeout: %d (must be >= 0)", cfg.Connection.TimeoutMS)
	}

	if cfg.Connection.InitialID != 0 && cfg.Connection.InitialID != 1 && cfg.Connection.InitialID != 2 {
		return fmt.Errorf("invalid initial id: %d (must be 1 or 2)", cfg.Connection.InitialID)
	}

	for _, name := range cfg.Connection.ReferenceTypes {
		if name == "" {
			return fmt.Errorf("reference type name cannot be empty")
		}
	}

	if cfg.Reconnect.Enabled {
		if cfg.Reconnect.MinDelayMS < 0 {
			return fmt.Errorf("invalid reconnect min delay: %d (must be >= 0)", cfg.Reconnect.MinDelayMS)
		}
		if cfg.Reconnect.MaxDelayMS < cfg.Reconnect.MinDelayMS {
			return fmt.Errorf("reconnect max delay (%d) cannot be less than min delay (%d)", cfg.Reconnect.MaxDelayMS, cfg.Reconnect.MinDelayMS)
		}
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}

	return nil
}

// GetDefaultConfig returns a Config populated with the bus's default
// settings, mirroring the teacher's GetDefaultConfig.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Endpoint.Path = "bus.ipc"
	cfg.Connection.TimeoutMS = 30000
	cfg.Connection.InitialID = 1
	cfg.Reconnect.Enabled = true
	cfg.Reconnect.MinDelayMS = 100
	cfg.Reconnect.MaxDelayMS = 5000
	cfg.Logging.Level = "info"
	return cfg
}
