package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stockhunter/internal/contracts"
	"github.com/wonny/stockhunter/pkg/logger"
)

// MasterStore persists the instrument master cache (stock_master).
type MasterStore struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewMasterStore creates a MasterStore
func NewMasterStore(pool *pgxpool.Pool, log *logger.Logger) *MasterStore {
	return &MasterStore{
		pool:   pool,
		logger: log.WithField("component", "master_store"),
	}
}

// Refresh replaces the master for one market transactionally: incoming
// instruments are upserted, everything else in that market is deactivated.
// 실패 시 이전 마스터 그대로 유지
func (s *MasterStore) Refresh(ctx context.Context, market contracts.Market, stocks []contracts.Stock) error {
	if len(stocks) == 0 {
		return fmt.Errorf("refresh %s: empty instrument list", market)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE stock_master SET is_active = FALSE, updated_at = now()
		WHERE market = $1`, string(market)); err != nil {
		return fmt.Errorf("deactivate market %s: %w", market, err)
	}

	batch := &pgx.Batch{}
	for _, stock := range stocks {
		batch.Queue(`
			INSERT INTO stock_master (code, market, name, sector, is_etf, is_etn, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT (code) DO UPDATE SET
				market     = EXCLUDED.market,
				name       = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE stock_master.name END,
				sector     = CASE WHEN EXCLUDED.sector <> '' THEN EXCLUDED.sector ELSE stock_master.sector END,
				is_etf     = EXCLUDED.is_etf,
				is_etn     = EXCLUDED.is_etn,
				is_active  = TRUE,
				updated_at = now()`,
			stock.Code, string(stock.Market), stock.Name, stock.Sector, stock.IsETF, stock.IsETN)
	}

	results := tx.SendBatch(ctx, batch)
	for range stocks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upsert instrument: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"market": market,
		"count":  len(stocks),
	}).Info("종목 마스터 갱신 완료")
	return nil
}

// AllActive returns every active instrument across all markets.
func (s *MasterStore) AllActive(ctx context.Context) ([]contracts.Stock, error) {
	return s.query(ctx, `
		SELECT code, market, name, sector, is_etf, is_etn, is_active, created_at, updated_at
		FROM stock_master WHERE is_active ORDER BY code`)
}

// ByMarket returns active instruments for one market.
func (s *MasterStore) ByMarket(ctx context.Context, market contracts.Market) ([]contracts.Stock, error) {
	return s.query(ctx, `
		SELECT code, market, name, sector, is_etf, is_etn, is_active, created_at, updated_at
		FROM stock_master WHERE is_active AND market = $1 ORDER BY code`, string(market))
}

// NameOf returns the cached name for code; empty string when unknown.
func (s *MasterStore) NameOf(ctx context.Context, code string) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `
		SELECT name FROM stock_master WHERE code = $1`, code).Scan(&name)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query name of %s: %w", code, err)
	}
	return name, nil
}

// MissingNames returns active instruments whose name is still empty.
// 이름 동기화 대상
func (s *MasterStore) MissingNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT code FROM stock_master WHERE is_active AND name = '' ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query missing names: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// SetName updates the cached name of one instrument.
func (s *MasterStore) SetName(ctx context.Context, code, name string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE stock_master SET name = $2, updated_at = now() WHERE code = $1`, code, name)
	if err != nil {
		return fmt.Errorf("set name of %s: %w", code, err)
	}
	return nil
}

// Stats aggregates master cache counters for the status endpoint.
func (s *MasterStore) Stats(ctx context.Context) (*contracts.MasterStats, error) {
	stats := &contracts.MasterStats{PerMarket: make(map[contracts.Market]int)}

	rows, err := s.pool.Query(ctx, `
		SELECT market, COUNT(*) FROM stock_master WHERE is_active GROUP BY market`)
	if err != nil {
		return nil, fmt.Errorf("query master stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var market string
		var count int
		if err := rows.Scan(&market, &count); err != nil {
			return nil, fmt.Errorf("scan master stats: %w", err)
		}
		stats.PerMarket[contracts.Market(market)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var last *time.Time
	if err := s.pool.QueryRow(ctx, `
		SELECT MAX(updated_at) FROM stock_master`).Scan(&last); err != nil {
		return nil, fmt.Errorf("query last refresh: %w", err)
	}
	stats.LastRefresh = last
	return stats, nil
}

func (s *MasterStore) query(ctx context.Context, sql string, args ...interface{}) ([]contracts.Stock, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var stocks []contracts.Stock
	for rows.Next() {
		var stock contracts.Stock
		var market string
		if err := rows.Scan(&stock.Code, &market, &stock.Name, &stock.Sector,
			&stock.IsETF, &stock.IsETN, &stock.IsActive, &stock.Created, &stock.Updated); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		stock.Market = contracts.Market(market)
		stocks = append(stocks, stock)
	}
	return stocks, rows.Err()
}
