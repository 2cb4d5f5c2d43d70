package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/stockhunter/internal/collector"
	"github.com/wonny/stockhunter/internal/market"
	"github.com/wonny/stockhunter/pkg/logger"
)

// DailyUpdateJob runs the incremental price update after market close
// ⭐ SSOT: 일별 증분 갱신 스케줄은 이 Job에서만
type DailyUpdateJob struct {
	collector *collector.Collector
	provider  *market.Provider
	logger    *logger.Logger
}

// NewDailyUpdateJob creates a new daily update job
func NewDailyUpdateJob(col *collector.Collector, provider *market.Provider, log *logger.Logger) *DailyUpdateJob {
	return &DailyUpdateJob{
		collector: col,
		provider:  provider,
		logger:    log,
	}
}

// Name returns the job name
func (j *DailyUpdateJob) Name() string {
	return "daily_update"
}

// Schedule runs weekday evenings at 18:10 KST, after the closing auction
func (j *DailyUpdateJob) Schedule() string {
	return "0 10 18 * * 1-5"
}

// Run executes the incremental update
func (j *DailyUpdateJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled daily update")

	if err := j.collector.Update(ctx, j.provider); err != nil {
		return fmt.Errorf("daily update: %w", err)
	}
	return nil
}
