package commands

import (
	"context"
	"fmt"

	"github.com/wonny/stockhunter/internal/broker/kis"
	"github.com/wonny/stockhunter/internal/collector"
	"github.com/wonny/stockhunter/internal/market"
	"github.com/wonny/stockhunter/internal/master"
	"github.com/wonny/stockhunter/internal/screener"
	"github.com/wonny/stockhunter/internal/store"
	"github.com/wonny/stockhunter/pkg/config"
	"github.com/wonny/stockhunter/pkg/database"
	"github.com/wonny/stockhunter/pkg/httputil"
	"github.com/wonny/stockhunter/pkg/logger"
	"github.com/wonny/stockhunter/pkg/redis"
)

// app wires the full object graph once per command invocation
// ⭐ SSOT: 의존성 조립은 이 파일에서만
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	cache *redis.Client

	http        *httputil.Client
	prices      *store.PriceStore
	masters     *store.MasterStore
	masterCache *master.Cache
	collector   *collector.Collector
	engine      *screener.Engine

	kr *market.Provider
	us *market.Provider
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := store.Migrate(ctx, db.Pool); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, caching disabled")
		redisClient = redis.NewDisabled()
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		cache: redisClient,
		http:  httputil.New(log),
	}

	a.prices = store.NewPriceStore(db.Pool, log)
	a.masters = store.NewMasterStore(db.Pool, log)
	a.masterCache = master.NewCache(a.masters, a.prices, a.http, log)
	a.collector = collector.New(a.prices, a.masters, collector.Config{
		Workers:       4,
		RetentionDays: cfg.Store.RetentionDays,
	}, log)
	a.engine = screener.NewEngine(a.prices, a.masters, redis.NewCache(redisClient, "stockhunter"), log)

	// 대화형 경로(스크리닝, 시세)는 여유 있는 한도, 수집은 보수적 한도
	interactive := a.newBroker(cfg.KIS, cfg.KIS.InteractiveRate)
	a.kr = market.NewKR(interactive, a.masterCache)
	a.us = market.NewUS(interactive, a.masterCache)

	return a, nil
}

func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// newBroker builds a KIS client sharing the app's HTTP transport
func (a *app) newBroker(kisCfg config.KISConfig, rps int) *kis.Client {
	tokens := kis.NewTokenManager(kisCfg, a.cfg.Store.HomeDir, a.log)
	return kis.NewClient(kisCfg, a.http, tokens, a.log, rps)
}

// buildKR returns a KR provider for the given credentials at collector pace.
// 빈 appKey 는 서버 설정 자격 사용
func (a *app) buildKR(appKey, appSecret string, isProduction bool) (*market.Provider, error) {
	kisCfg := a.cfg.KIS
	if appKey != "" {
		if appSecret == "" {
			return nil, fmt.Errorf("appSecret is required when appKey is given")
		}
		kisCfg.AppKey = appKey
		kisCfg.AppSecret = appSecret
		kisCfg.IsProduction = isProduction
	}
	if kisCfg.AppKey == "" {
		return nil, fmt.Errorf("no broker credentials configured")
	}
	broker := a.newBroker(kisCfg, a.cfg.KIS.CollectorRate)
	return market.NewKR(broker, a.masterCache), nil
}

// validateCredentials mint-tests credentials without touching the token cache
func (a *app) validateCredentials(ctx context.Context, appKey, appSecret string, isProduction bool) error {
	kisCfg := a.cfg.KIS
	kisCfg.AppKey = appKey
	kisCfg.AppSecret = appSecret
	kisCfg.IsProduction = isProduction

	client := a.newBroker(kisCfg, a.cfg.KIS.InteractiveRate)
	if _, err := client.MintToken(ctx); err != nil {
		return err
	}
	return nil
}
