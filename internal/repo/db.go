// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping for the MySQL
// ledger and the idempotent schema self-healing that keeps legacy table
// shapes usable without an explicit migration step.
package repo

import (
	"context"
	"time"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/averbier/go-topic-bot/internal/config"
	"github.com/averbier/go-topic-bot/internal/domain"
)

// Open connects to the MySQL ledger. Connection establishment is retried up
// to cfg.ConnRetries times with cfg.RetryBackoff between attempts; each
// attempt is bounded by the connect timeout baked into the DSN. The last
// error is returned when the budget is exhausted.
//
// When traced is true the GORM OpenTelemetry plugin is installed so every
// ledger query produces a span.
func Open(cfg config.LedgerConfig, traced bool) (*gorm.DB, error) {
	var db *gorm.DB
	err := withRetry(cfg.ConnRetries, cfg.RetryBackoff, func() error {
		d, err := gorm.Open(gormmysql.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
		if err != nil {
			return err
		}
		// Verify the connection is actually usable before handing it out.
		sqlDB, err := d.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Ping(); err != nil {
			return err
		}
		db = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if traced {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// EnsureSchema creates missing tables and adds missing columns. It is
// idempotent and cheap when everything is in place, so callers run it both
// at bootstrap and opportunistically before message inserts.
//
// A fully legacy messages table (no topic_id, no username) is upgraded in
// place; existing rows keep NULL in the new columns and surface through
// history reads with sentinel topic fields.
func EnsureSchema(ctx context.Context, db *gorm.DB) error {
	m := db.WithContext(ctx).Migrator()

	if !m.HasTable(&domain.Topic{}) {
		if err := m.CreateTable(&domain.Topic{}); err != nil {
			return err
		}
	}

	if !m.HasTable(&domain.Message{}) {
		if err := m.CreateTable(&domain.Message{}); err != nil {
			return err
		}
	} else {
		for _, col := range []string{"topic_id", "username"} {
			if !m.HasColumn(&domain.Message{}, col) {
				if err := m.AddColumn(&domain.Message{}, col); err != nil {
					return err
				}
			}
		}
	}

	if !m.HasTable(&domain.ProcessedUpdate{}) {
		if err := m.CreateTable(&domain.ProcessedUpdate{}); err != nil {
			return err
		}
	}

	return nil
}
