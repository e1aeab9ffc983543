// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"

	"github.com/flowgate/flowgate/internal/logging"
)

// Config is the full FlowGate API server configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server" validate:"required"`
	Database DatabaseConfig `koanf:"database" validate:"required"`
	Logging  logging.Config `koanf:"logging"`
	Seed     SeedConfig     `koanf:"seed"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `koanf:"port" validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"gt=0"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// SeedConfig controls boot-time seeding of default data.
type SeedConfig struct {
	Policies bool `koanf:"policies"`
	Demo     bool `koanf:"demo"`
}

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "flowgate.db",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// FlagMappings maps CLI flag names to configuration keys for
// Loader.LoadFlags.
func FlagMappings() map[string]string {
	return map[string]string{
		"port":      "server.port",
		"db-path":   "database.path",
		"log-level": "logging.level",
	}
}

// Load loads, unmarshals, and validates the full configuration.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	loader := NewLoader("FLOWGATE")
	if err := loader.LoadWithDefaults(Defaults(), configPath); err != nil {
		return nil, err
	}
	if flags != nil {
		if err := loader.LoadFlags(flags, FlagMappings()); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := loader.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
