package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/stockhunter/internal/collector"
	"github.com/wonny/stockhunter/internal/market"
	"github.com/wonny/stockhunter/internal/master"
	"github.com/wonny/stockhunter/pkg/logger"
)

// MasterRefreshJob refreshes the instrument master weekly when its TTL lapsed
// ⭐ SSOT: 종목 마스터 갱신 스케줄은 이 Job에서만
type MasterRefreshJob struct {
	cache     *master.Cache
	collector *collector.Collector
	provider  *market.Provider
	logger    *logger.Logger
}

// NewMasterRefreshJob creates a new master refresh job
func NewMasterRefreshJob(cache *master.Cache, col *collector.Collector, provider *market.Provider, log *logger.Logger) *MasterRefreshJob {
	return &MasterRefreshJob{
		cache:     cache,
		collector: col,
		provider:  provider,
		logger:    log,
	}
}

// Name returns the job name
func (j *MasterRefreshJob) Name() string {
	return "master_refresh"
}

// Schedule runs Monday mornings before the open
func (j *MasterRefreshJob) Schedule() string {
	return "0 0 6 * * 1"
}

// Run refreshes the master if stale, then fills missing names
func (j *MasterRefreshJob) Run(ctx context.Context) error {
	stale, err := j.cache.Stale(ctx)
	if err != nil {
		return fmt.Errorf("check master staleness: %w", err)
	}
	if !stale {
		j.logger.Info("Master still fresh, skipping refresh")
		return nil
	}

	if err := j.cache.RefreshFromNaver(ctx); err != nil {
		return fmt.Errorf("refresh master: %w", err)
	}

	if _, err := j.collector.SyncStockNames(ctx, j.provider); err != nil {
		return fmt.Errorf("sync names: %w", err)
	}
	return nil
}
