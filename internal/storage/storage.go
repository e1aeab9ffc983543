// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage owns the database connection and schema migration for
// the FlowGate core.
package storage

import (
	"fmt"
	"log/slog"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/flowgate/flowgate/internal/model"
)

// Open initializes a SQLite database connection and migrates the schema.
// Use ":memory:" for an ephemeral database in tests.
func Open(dbPath string, logger *slog.Logger) (*gorm.DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Subject{},
		&model.SubjectProfile{},
		&model.Policy{},
		&model.ResourceAttribute{},
		&model.AccessLog{},
		&model.WorkflowDefinition{},
		&model.WorkflowVersion{},
		&model.WorkflowStage{},
		&model.ConditionalRoute{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logger.Info("database opened", "path", dbPath)
	return db, nil
}

// Close closes the underlying database connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database connection: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}
