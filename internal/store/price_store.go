package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stockhunter/internal/contracts"
	"github.com/wonny/stockhunter/pkg/logger"
)

// db_metadata 키
// ⭐ SSOT: 메타데이터 키는 여기서만 정의
const (
	MetaLastFullInit      = "last_full_init"
	MetaLastDailyUpdate   = "last_daily_update"
	MetaMasterRefreshedAt = "stock_master_refreshed_at"
)

// PriceStore persists daily OHLCV bars in PostgreSQL.
// Reads are safe for concurrent use; writes are serialized with writeMu so
// collector workers never interleave transactions for the same instrument.
type PriceStore struct {
	pool    *pgxpool.Pool
	logger  *logger.Logger
	writeMu sync.Mutex
}

// NewPriceStore creates a PriceStore
func NewPriceStore(pool *pgxpool.Pool, log *logger.Logger) *PriceStore {
	return &PriceStore{
		pool:   pool,
		logger: log.WithField("component", "price_store"),
	}
}

// UpsertBatch writes all bars for one instrument in a single transaction.
// 재실행해도 안전 (ON CONFLICT DO UPDATE)
func (s *PriceStore) UpsertBatch(ctx context.Context, bars []contracts.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, bar := range bars {
		batch.Queue(`
			INSERT INTO daily_prices (stock_code, trade_date, open_price, high_price, low_price, close_price, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (stock_code, trade_date) DO UPDATE SET
				open_price  = EXCLUDED.open_price,
				high_price  = EXCLUDED.high_price,
				low_price   = EXCLUDED.low_price,
				close_price = EXCLUDED.close_price,
				volume      = EXCLUDED.volume,
				updated_at  = now()`,
			bar.Code, bar.TradeDate, bar.Open, bar.High, bar.Low, bar.Close, int64(bar.Volume))
	}

	results := tx.SendBatch(ctx, batch)
	for range bars {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upsert daily bar: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Bars returns up to limit bars for code, newest first.
func (s *PriceStore) Bars(ctx context.Context, code string, limit int) ([]contracts.DailyBar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT stock_code, trade_date, open_price, high_price, low_price, close_price, volume
		FROM daily_prices
		WHERE stock_code = $1
		ORDER BY trade_date DESC
		LIMIT $2`, code, limit)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// LatestDate returns the most recent trade date stored for code,
// or nil when the instrument has no bars yet.
func (s *PriceStore) LatestDate(ctx context.Context, code string) (*time.Time, error) {
	var latest *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT MAX(trade_date) FROM daily_prices WHERE stock_code = $1`, code).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("query latest date: %w", err)
	}
	return latest, nil
}

// AllInstrumentsWithBars returns every distinct stock code that has at least
// one stored bar.
func (s *PriceStore) AllInstrumentsWithBars(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT stock_code FROM daily_prices ORDER BY stock_code`)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// PruneOlderThan deletes bars older than retentionDays and returns the count.
func (s *PriceStore) PruneOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM daily_prices WHERE trade_date < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune bars: %w", err)
	}

	if tag.RowsAffected() > 0 {
		s.logger.WithFields(map[string]interface{}{
			"deleted": tag.RowsAffected(),
			"cutoff":  cutoff.Format("2006-01-02"),
		}).Info("오래된 일봉 삭제 완료")
	}
	return tag.RowsAffected(), nil
}

// SetMeta writes a metadata key
func (s *PriceStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO db_metadata (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta reads a metadata key; empty string when the key is missing.
func (s *PriceStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM db_metadata WHERE key = $1`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, nil
}

// Initialized reports whether a full backfill has completed.
func (s *PriceStore) Initialized(ctx context.Context) (bool, error) {
	value, err := s.GetMeta(ctx, MetaLastFullInit)
	if err != nil {
		return false, err
	}
	return value != "", nil
}

// Statistics aggregates store-wide counters for the status endpoint.
func (s *PriceStore) Statistics(ctx context.Context) (*contracts.StoreStats, error) {
	stats := &contracts.StoreStats{}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT stock_code), MIN(trade_date), MAX(trade_date)
		FROM daily_prices`).Scan(&stats.BarCount, &stats.InstrumentCount, &stats.OldestDate, &stats.NewestDate)
	if err != nil {
		return nil, fmt.Errorf("query store stats: %w", err)
	}

	stats.LastFullInit, err = s.GetMeta(ctx, MetaLastFullInit)
	if err != nil {
		return nil, err
	}
	stats.LastDailyUpdate, err = s.GetMeta(ctx, MetaLastDailyUpdate)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func scanBars(rows pgx.Rows) ([]contracts.DailyBar, error) {
	var bars []contracts.DailyBar
	for rows.Next() {
		var bar contracts.DailyBar
		var volume int64
		if err := rows.Scan(&bar.Code, &bar.TradeDate, &bar.Open, &bar.High, &bar.Low, &bar.Close, &volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bar.Volume = uint64(volume)
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}
