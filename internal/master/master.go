package master

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wonny/stockhunter/internal/contracts"
	"github.com/wonny/stockhunter/internal/store"
	"github.com/wonny/stockhunter/pkg/httputil"
	"github.com/wonny/stockhunter/pkg/logger"
)

// refreshTTL is how long a stored master is considered fresh.
const refreshTTL = 7 * 24 * time.Hour

// Cache resolves the tradable universe per market. Source precedence:
// stored master → embedded CSV → builtin list. Operator uploads and the
// Naver scrape refresh the stored master.
// ⭐ SSOT: 유니버스 조회는 이 타입을 통해서만
type Cache struct {
	masters *store.MasterStore
	meta    *store.PriceStore
	http    *httputil.Client
	logger  *logger.Logger
}

// NewCache creates a Cache
func NewCache(masters *store.MasterStore, meta *store.PriceStore, http *httputil.Client, log *logger.Logger) *Cache {
	return &Cache{
		masters: masters,
		meta:    meta,
		http:    http,
		logger:  log.WithField("component", "master_cache"),
	}
}

// Universe returns the active instruments for market. Stored rows win even
// when stale (a warn is logged); fallbacks only fill an empty store.
func (c *Cache) Universe(ctx context.Context, market contracts.Market) ([]contracts.Stock, error) {
	stocks, err := c.masters.ByMarket(ctx, market)
	if err != nil {
		return nil, err
	}
	if len(stocks) > 0 {
		if stale, err := c.Stale(ctx); err == nil && stale {
			c.logger.WithField("market", market).Warn("종목 마스터가 오래됨, 갱신 필요")
		}
		return stocks, nil
	}

	stocks = embeddedUniverse(market)
	if len(stocks) > 0 {
		c.logger.WithFields(map[string]interface{}{
			"market": market,
			"count":  len(stocks),
		}).Info("내장 CSV 유니버스 사용")
		return stocks, nil
	}

	return builtinUniverse(market), nil
}

// Stale reports whether the stored master is past its refresh TTL.
func (c *Cache) Stale(ctx context.Context) (bool, error) {
	value, err := c.meta.GetMeta(ctx, store.MetaMasterRefreshedAt)
	if err != nil {
		return false, err
	}
	if value == "" {
		return true, nil
	}
	refreshed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return true, nil
	}
	return time.Since(refreshed) > refreshTTL, nil
}

// ImportUpload ingests an operator-uploaded fixed-width master file.
// Market is taken from the filename (kospi/kosdaq). Returns the count stored.
func (c *Cache) ImportUpload(ctx context.Context, filename string, r io.Reader) (int, error) {
	market, err := marketFromFilename(filename)
	if err != nil {
		return 0, err
	}

	stocks, err := ParseMasterFile(r, market)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", filename, err)
	}
	if len(stocks) == 0 {
		return 0, fmt.Errorf("parse %s: no instruments found", filename)
	}

	if err := c.masters.Refresh(ctx, market, stocks); err != nil {
		return 0, err
	}
	if err := c.markRefreshed(ctx); err != nil {
		return 0, err
	}

	c.logger.WithFields(map[string]interface{}{
		"file":   filename,
		"market": market,
		"count":  len(stocks),
	}).Info("마스터 파일 업로드 반영 완료")
	return len(stocks), nil
}

func (c *Cache) markRefreshed(ctx context.Context) error {
	return c.meta.SetMeta(ctx, store.MetaMasterRefreshedAt, time.Now().UTC().Format(time.RFC3339))
}

func marketFromFilename(filename string) (contracts.Market, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.Contains(lower, "kosdaq"):
		return contracts.MarketKOSDAQ, nil
	case strings.Contains(lower, "kospi"):
		return contracts.MarketKOSPI, nil
	default:
		return "", fmt.Errorf("cannot infer market from filename %q (expected kospi/kosdaq)", filename)
	}
}
