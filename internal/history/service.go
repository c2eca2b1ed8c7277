/**
 * Copyright 2025-present VeraGuard Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package history

import (
	"context"
	"database/sql"
	"fmt"

	"veraguard-go/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Service owns the local state database: the persisted session identity, the
// audit recall cache, and the vault activity log.
type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.StateConfig) (*Service, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("state database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening local state database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Local state database initialized")
	return service, nil
}

// NewMemoryService opens an in-memory state store, used by tests and by
// flows run with persistence disabled.
func NewMemoryService(ctx context.Context) (*Service, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("unable to open in-memory database: %w", err)
	}
	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close state database", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Single-row local session identity. user_id survives logout.
	CREATE TABLE IF NOT EXISTS session (
		id TEXT PRIMARY KEY CHECK (id = 'local'),
		user_id TEXT NOT NULL,
		wallet_address TEXT NOT NULL DEFAULT '',
		is_member BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Completed audits keyed by lowercased target address.
	CREATE TABLE IF NOT EXISTS audit_history (
		address TEXT PRIMARY KEY,
		score INTEGER NOT NULL,
		warnings TEXT NOT NULL DEFAULT '[]',
		vitals TEXT,
		milestones TEXT NOT NULL DEFAULT '[]',
		cost_deducted INTEGER NOT NULL DEFAULT 0,
		credit_source TEXT NOT NULL DEFAULT '',
		report_hash TEXT NOT NULL DEFAULT '',
		is_proxy BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_history_created_at ON audit_history(created_at);

	-- Vault activity log: audits, purchases, referral rewards.
	CREATE TABLE IF NOT EXISTS activity (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		amount_eth TEXT NOT NULL DEFAULT '0',
		credits INTEGER NOT NULL DEFAULT 0,
		address TEXT NOT NULL DEFAULT '',
		score INTEGER,
		report_hash TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_activity_type ON activity(type);
	CREATE INDEX IF NOT EXISTS idx_activity_created_at ON activity(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}
