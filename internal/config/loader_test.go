// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoaderStructDefaults(t *testing.T) {
	loader := NewLoader("FG_TEST")
	if err := loader.LoadWithDefaults(Defaults(), ""); err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	var cfg Config
	if err := loader.Unmarshal("", &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("expected read_timeout 15s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected level info, got %s", cfg.Logging.Level)
	}
}

func TestLoaderYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  port: 9090\ndatabase:\n  path: /tmp/test.db\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader("FG_TEST")
	if err := loader.LoadWithDefaults(Defaults(), path); err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	var cfg Config
	if err := loader.Unmarshal("", &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("expected overridden db path, got %s", cfg.Database.Path)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Server.WriteTimeout != 15*time.Second {
		t.Errorf("expected default write_timeout, got %v", cfg.Server.WriteTimeout)
	}
}

func TestLoaderMissingConfigFile(t *testing.T) {
	loader := NewLoader("FG_TEST")
	if err := loader.LoadWithDefaults(Defaults(), "/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoaderEnvOverrides(t *testing.T) {
	t.Setenv("FG_TEST__SERVER__PORT", "7070")
	t.Setenv("FG_TEST__LOGGING__LEVEL", "debug")

	loader := NewLoader("FG_TEST")
	if err := loader.LoadWithDefaults(Defaults(), ""); err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	var cfg Config
	if err := loader.Unmarshal("", &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoaderFlagOverridesWin(t *testing.T) {
	t.Setenv("FG_TEST__SERVER__PORT", "7070")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	flags.String("db-path", "", "")
	if err := flags.Parse([]string{"--port=6060"}); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader("FG_TEST")
	if err := loader.LoadWithDefaults(Defaults(), ""); err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if err := loader.LoadFlags(flags, FlagMappings()); err != nil {
		t.Fatalf("LoadFlags failed: %v", err)
	}

	var cfg Config
	if err := loader.Unmarshal("", &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if cfg.Server.Port != 6060 {
		t.Errorf("expected flag port 6060 to beat env, got %d", cfg.Server.Port)
	}
	// Unset flags are not applied.
	if cfg.Database.Path != "flowgate.db" {
		t.Errorf("expected default db path, got %s", cfg.Database.Path)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}

	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for port 0")
	}

	cfg = Defaults()
	cfg.Database.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty database path")
	}
}
