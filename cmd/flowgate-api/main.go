// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/flowgate/flowgate/internal/abac"
	"github.com/flowgate/flowgate/internal/config"
	"github.com/flowgate/flowgate/internal/logging"
	"github.com/flowgate/flowgate/internal/metrics"
	"github.com/flowgate/flowgate/internal/seed"
	"github.com/flowgate/flowgate/internal/server"
	"github.com/flowgate/flowgate/internal/storage"
	"github.com/flowgate/flowgate/internal/workflow"
)

func main() {
	flags := pflag.NewFlagSet("flowgate-api", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to YAML configuration file")
	flags.Int("port", 0, "port the HTTP server listens on")
	flags.String("db-path", "", "path to the sqlite database file")
	flags.String("log-level", "", "minimum log level (debug, info, warn, error)")
	_ = flags.Parse(os.Args[1:])

	if *configPath == "" {
		*configPath = os.Getenv("FLOWGATE_CONFIG_PATH")
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	baseLogger := logging.New(cfg.Logging)
	slog.SetDefault(baseLogger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.Open(cfg.Database.Path, baseLogger.With("component", "storage"))
	if err != nil {
		baseLogger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := storage.Close(db); err != nil {
			baseLogger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	m := metrics.New()
	engine := abac.NewEngine(db, baseLogger.With("component", "engine"), m)
	policies := abac.NewPolicyService(db, baseLogger.With("component", "policies"))
	workflows := workflow.NewService(db, baseLogger.With("component", "workflows"), m)

	if cfg.Seed.Demo || cfg.Seed.Policies {
		seedLogger := baseLogger.With("component", "seed")
		var adminID uint
		if cfg.Seed.Demo {
			admin, err := seed.Demo(db, seedLogger)
			if err != nil {
				baseLogger.Error("failed to seed demo data", slog.Any("error", err))
				os.Exit(1)
			}
			if admin != nil {
				adminID = admin.ID
			}
		}
		if cfg.Seed.Policies {
			if adminID == 0 {
				adminID = seed.AdminID(db)
			}
			if err := seed.Policies(db, adminID, seedLogger); err != nil {
				baseLogger.Error("failed to seed policies", slog.Any("error", err))
				os.Exit(1)
			}
		}
	}

	srv := server.New(server.Config{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, db, engine, policies, workflows, m, baseLogger)

	if err := srv.Run(ctx); err != nil {
		baseLogger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}

	baseLogger.Info("server stopped gracefully")
}
