package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema DDL, applied in order. Statements are idempotent so Migrate can run
// on every start.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS daily_prices (
		stock_code  TEXT        NOT NULL,
		trade_date  DATE        NOT NULL,
		open_price  DOUBLE PRECISION NOT NULL,
		high_price  DOUBLE PRECISION NOT NULL,
		low_price   DOUBLE PRECISION NOT NULL,
		close_price DOUBLE PRECISION NOT NULL,
		volume      BIGINT      NOT NULL,
		inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (stock_code, trade_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_prices_code_date
		ON daily_prices (stock_code, trade_date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_prices_date
		ON daily_prices (trade_date DESC)`,
	`CREATE TABLE IF NOT EXISTS stock_master (
		code       TEXT        PRIMARY KEY,
		market     TEXT        NOT NULL,
		name       TEXT        NOT NULL DEFAULT '',
		sector     TEXT        NOT NULL DEFAULT '',
		is_etf     BOOLEAN     NOT NULL DEFAULT FALSE,
		is_etn     BOOLEAN     NOT NULL DEFAULT FALSE,
		is_active  BOOLEAN     NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_master_market
		ON stock_master (market) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS db_metadata (
		key        TEXT        PRIMARY KEY,
		value      TEXT        NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the schema if it does not exist yet
// ⭐ SSOT: 스키마 생성은 이 함수에서만
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
