package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/stockhunter/internal/contracts"
	"github.com/wonny/stockhunter/internal/market"
	"github.com/wonny/stockhunter/pkg/logger"
)

// ErrAlreadyInitialized is returned when a full backfill is requested but
// the store already holds one and force was not set.
var ErrAlreadyInitialized = errors.New("price store already initialized")

// ErrBusy is returned when a collection job is already running.
var ErrBusy = errors.New("collector job already running")

const (
	// Full backfill walks back 6 windows of 100 calendar days.
	backfillBatches   = 6
	backfillBatchDays = 100

	// Incremental update window cap; the broker returns at most 100 bars.
	updateMaxDays = 100

	// Pause between period queries of one instrument. The limiter already
	// paces requests, this just spreads bursts.
	interBatchSleep = 50 * time.Millisecond
)

// PriceStore is the slice of the store the collector writes to.
type PriceStore interface {
	UpsertBatch(ctx context.Context, bars []contracts.DailyBar) error
	LatestDate(ctx context.Context, code string) (*time.Time, error)
	AllInstrumentsWithBars(ctx context.Context) ([]string, error)
	PruneOlderThan(ctx context.Context, retentionDays int) (int64, error)
	SetMeta(ctx context.Context, key, value string) error
	Initialized(ctx context.Context) (bool, error)
}

// MasterStore is the slice of the master the name sync writes to.
type MasterStore interface {
	MissingNames(ctx context.Context) ([]string, error)
	SetName(ctx context.Context, code, name string) error
}

// Metadata keys written by collector jobs; mirrored from the store package
// via these setters to keep fakes simple.
const (
	metaLastFullInit    = "last_full_init"
	metaLastDailyUpdate = "last_daily_update"
)

// Config holds collector configuration
type Config struct {
	Workers       int
	RetentionDays int
}

// Collector fills and maintains the daily price store.
type Collector struct {
	prices  PriceStore
	masters MasterStore
	logger  *logger.Logger
	cfg     Config
	tracker *tracker
	runMu   sync.Mutex
	running bool
}

// New creates a Collector
func New(prices PriceStore, masters MasterStore, cfg Config, log *logger.Logger) *Collector {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 400
	}
	return &Collector{
		prices:  prices,
		masters: masters,
		logger:  log.WithField("component", "collector"),
		cfg:     cfg,
		tracker: newTracker(),
	}
}

// Progress returns the latest job snapshot
func (c *Collector) Progress() Progress {
	return c.tracker.Snapshot()
}

func (c *Collector) acquireRun() error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return ErrBusy
	}
	c.running = true
	return nil
}

func (c *Collector) releaseRun() {
	c.runMu.Lock()
	c.running = false
	c.runMu.Unlock()
}

// Backfill performs the full historical load for every instrument in the
// provider's universe. Refuses to run twice unless force is set.
// ⭐ SSOT: 전체 백필은 이 함수에서만
func (c *Collector) Backfill(ctx context.Context, provider *market.Provider, force bool) error {
	initialized, err := c.prices.Initialized(ctx)
	if err != nil {
		return err
	}
	if initialized && !force {
		return ErrAlreadyInitialized
	}

	if err := c.acquireRun(); err != nil {
		return err
	}
	defer c.releaseRun()

	universe, err := provider.Universe(ctx)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"instruments": len(universe),
		"workers":     c.cfg.Workers,
		"force":       force,
	}).Info("전체 백필 시작")

	c.tracker.start(PhaseInitializing, len(universe))

	stockCh := make(chan contracts.Stock, len(universe))
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stock := range stockCh {
				err := c.backfillOne(ctx, provider, stock, force)
				if err != nil {
					c.logger.WithError(err).WithField("code", stock.Code).Warn("백필 실패, 종목 건너뜀")
				}
				c.tracker.step(stock.Code, err == nil)
			}
		}()
	}
	for _, stock := range universe {
		stockCh <- stock
	}
	close(stockCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		c.tracker.finish(err)
		return err
	}

	if _, err := c.prices.PruneOlderThan(ctx, c.cfg.RetentionDays); err != nil {
		c.tracker.finish(err)
		return err
	}
	if err := c.prices.SetMeta(ctx, metaLastFullInit, time.Now().UTC().Format(time.RFC3339)); err != nil {
		c.tracker.finish(err)
		return err
	}

	c.tracker.finish(nil)
	c.logger.Info("전체 백필 완료")
	return nil
}

// backfillOne walks back in fixed windows from today and persists the union.
// First-window failure skips the instrument; later failures keep the bars
// already fetched.
func (c *Collector) backfillOne(ctx context.Context, provider *market.Provider, stock contracts.Stock, force bool) error {
	if err := provider.ValidateID(stock.Code); err != nil {
		return err
	}

	if !force {
		// 중단됐던 백필 재개: 이미 봉이 있는 종목은 다시 받지 않음
		latest, err := c.prices.LatestDate(ctx, stock.Code)
		if err != nil {
			return err
		}
		if latest != nil {
			return nil
		}
	}

	byDate := make(map[string]contracts.DailyBar)
	end := time.Now()

	for batch := 0; batch < backfillBatches; batch++ {
		start := end.AddDate(0, 0, -(backfillBatchDays - 1))

		bars, err := provider.RangeDaily(ctx, stock, start, end)
		if err != nil {
			if batch == 0 {
				return fmt.Errorf("first window failed: %w", err)
			}
			// 이후 구간 실패: 받은 만큼만 저장
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"code":  stock.Code,
				"batch": batch,
			}).Warn("기간 조회 실패, 부분 저장")
			break
		}

		for _, bar := range bars {
			byDate[bar.TradeDate.Format("2006-01-02")] = bar
		}

		end = start.AddDate(0, 0, -1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interBatchSleep):
		}
	}

	if len(byDate) == 0 {
		return fmt.Errorf("no bars returned for %s", stock.Code)
	}
	return c.prices.UpsertBatch(ctx, sortedBars(byDate))
}

// Update fills the gap since the latest stored bar for every instrument
// already present in the store. Never prunes.
// ⭐ SSOT: 증분 갱신은 이 함수에서만
func (c *Collector) Update(ctx context.Context, provider *market.Provider) error {
	initialized, err := c.prices.Initialized(ctx)
	if err != nil {
		return err
	}
	if !initialized {
		return fmt.Errorf("incremental update requires a completed backfill")
	}

	if err := c.acquireRun(); err != nil {
		return err
	}
	defer c.releaseRun()

	codes, err := c.prices.AllInstrumentsWithBars(ctx)
	if err != nil {
		return err
	}

	universe, err := provider.Universe(ctx)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	byCode := make(map[string]contracts.Stock, len(universe))
	for _, stock := range universe {
		byCode[stock.Code] = stock
	}

	c.logger.WithField("instruments", len(codes)).Info("증분 갱신 시작")
	c.tracker.start(PhaseUpdating, len(codes))

	codeCh := make(chan string, len(codes))
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range codeCh {
				err := c.updateOne(ctx, provider, byCode, code)
				if err != nil {
					c.logger.WithError(err).WithField("code", code).Warn("증분 갱신 실패")
				}
				c.tracker.step(code, err == nil)
			}
		}()
	}
	for _, code := range codes {
		codeCh <- code
	}
	close(codeCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		c.tracker.finish(err)
		return err
	}

	if err := c.prices.SetMeta(ctx, metaLastDailyUpdate, time.Now().UTC().Format(time.RFC3339)); err != nil {
		c.tracker.finish(err)
		return err
	}

	c.tracker.finish(nil)
	c.logger.Info("증분 갱신 완료")
	return nil
}

func (c *Collector) updateOne(ctx context.Context, provider *market.Provider, byCode map[string]contracts.Stock, code string) error {
	latest, err := c.prices.LatestDate(ctx, code)
	if err != nil {
		return err
	}
	if latest == nil {
		// 백필이 안 된 코드는 증분 대상이 아님
		return nil
	}

	stock, ok := byCode[code]
	if !ok {
		stock = contracts.Stock{Code: code}
	}

	gap := int(time.Since(*latest).Hours() / 24)
	days := gap + 1
	if days > updateMaxDays {
		days = updateMaxDays
	}
	if days < 1 {
		days = 1
	}

	bars, err := provider.RecentDaily(ctx, stock, days)
	if err != nil {
		return err
	}

	var fresh []contracts.DailyBar
	for _, bar := range bars {
		if bar.TradeDate.After(*latest) {
			fresh = append(fresh, bar)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	return c.prices.UpsertBatch(ctx, fresh)
}

// SyncStockNames fills empty master names via the provider's name lookup.
func (c *Collector) SyncStockNames(ctx context.Context, provider *market.Provider) (int, error) {
	codes, err := c.masters.MissingNames(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, code := range codes {
		select {
		case <-ctx.Done():
			return synced, ctx.Err()
		default:
		}

		name, err := provider.Name(ctx, contracts.Stock{Code: code})
		if err != nil {
			c.logger.WithError(err).WithField("code", code).Warn("종목명 조회 실패")
			continue
		}
		if name == "" {
			continue
		}
		if err := c.masters.SetName(ctx, code, name); err != nil {
			return synced, err
		}
		synced++
	}

	c.logger.WithFields(map[string]interface{}{
		"missing": len(codes),
		"synced":  synced,
	}).Info("종목명 동기화 완료")
	return synced, nil
}

func sortedBars(byDate map[string]contracts.DailyBar) []contracts.DailyBar {
	bars := make([]contracts.DailyBar, 0, len(byDate))
	for _, bar := range byDate {
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].TradeDate.Before(bars[j].TradeDate)
	})
	return bars
}
