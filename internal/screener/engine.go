package screener

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/wonny/stockhunter/internal/contracts"
	"github.com/wonny/stockhunter/internal/indicator"
	"github.com/wonny/stockhunter/internal/market"
	"github.com/wonny/stockhunter/pkg/logger"
	"github.com/wonny/stockhunter/pkg/redis"
)

// ErrNotInitialized is returned when screening runs against an empty store.
var ErrNotInitialized = errors.New("price store not initialized, run a full backfill first")

const (
	// Bars fetched per instrument; enough for MA224 plus warm-up.
	barWindow = 280

	// Universe is split into chunks this big; chunks run in parallel,
	// instruments inside a chunk run serially.
	chunkSize = 100
)

// 관리/경고 종목 이름 토큰
var managementTokens = []string{"관리", "정리매매", "거래정지", "투자주의", "투자경고", "투자위험", "환기"}

// BarReader is the slice of the price store the engine reads from.
type BarReader interface {
	Bars(ctx context.Context, code string, limit int) ([]contracts.DailyBar, error)
	Initialized(ctx context.Context) (bool, error)
}

// NameReader resolves instrument names from the master cache.
type NameReader interface {
	NameOf(ctx context.Context, code string) (string, error)
}

// Engine evaluates screening conditions over the stored bars.
type Engine struct {
	prices  BarReader
	masters NameReader
	cache   *redis.Cache
	logger  *logger.Logger
}

// NewEngine creates an Engine. cache may be backed by a disabled client.
func NewEngine(prices BarReader, masters NameReader, cache *redis.Cache, log *logger.Logger) *Engine {
	return &Engine{
		prices:  prices,
		masters: masters,
		cache:   cache,
		logger:  log.WithField("component", "screener"),
	}
}

// Screen runs cond over the provider's universe.
// ⭐ SSOT: 스크리닝 실행은 이 함수에서만
func (e *Engine) Screen(ctx context.Context, provider *market.Provider, cond *Condition) (*Result, error) {
	cond.Normalize()
	if err := cond.Validate(); err != nil {
		return nil, err
	}

	initialized, err := e.prices.Initialized(ctx)
	if err != nil {
		return nil, err
	}
	if !initialized {
		return nil, ErrNotInitialized
	}

	universe, err := provider.Universe(ctx)
	if err != nil {
		return nil, err
	}
	universe = restrictTargets(universe, cond.TargetCodes)

	started := time.Now()
	e.logger.WithFields(map[string]interface{}{
		"universe": len(universe),
		"kind":     provider.Kind,
	}).Info("스크리닝 시작")

	var (
		mu      sync.Mutex
		matches []Match
		wg      sync.WaitGroup
	)

	for offset := 0; offset < len(universe); offset += chunkSize {
		end := offset + chunkSize
		if end > len(universe) {
			end = len(universe)
		}
		chunk := universe[offset:end]

		wg.Add(1)
		go func(chunk []contracts.Stock) {
			defer wg.Done()
			local := make([]Match, 0, len(chunk))
			for _, stock := range chunk {
				select {
				case <-ctx.Done():
					return
				default:
				}

				match, ok, err := e.evaluate(ctx, provider, cond, stock)
				if err != nil {
					// 한 종목 실패는 전체를 막지 않음
					e.logger.WithError(err).WithField("code", stock.Code).Warn("종목 평가 실패, 건너뜀")
					continue
				}
				if ok {
					local = append(local, *match)
				}
			}
			mu.Lock()
			matches = append(matches, local...)
			mu.Unlock()
		}(chunk)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		Matches:      matches,
		TotalScanned: len(universe),
		MatchedCount: len(matches),
		ExecutionMs:  time.Since(started).Milliseconds(),
		CapturedAt:   time.Now().UTC(),
		Universe:     string(provider.Kind),
	}

	e.logger.WithFields(map[string]interface{}{
		"scanned": result.TotalScanned,
		"matched": result.MatchedCount,
		"ms":      result.ExecutionMs,
	}).Info("스크리닝 완료")
	return result, nil
}

// evaluate runs every enabled gate for one instrument.
// 반환: (결과, 통과 여부, 오류)
func (e *Engine) evaluate(ctx context.Context, provider *market.Provider, cond *Condition, stock contracts.Stock) (*Match, bool, error) {
	bars, err := e.prices.Bars(ctx, stock.Code, barWindow)
	if err != nil {
		return nil, false, err
	}
	if len(bars) == 0 {
		return nil, false, nil
	}

	name := stock.Name
	if name == "" {
		if cached, err := e.masters.NameOf(ctx, stock.Code); err == nil && cached != "" {
			name = cached
		}
	}
	stock.Name = name

	if excluded(provider, cond, stock) {
		return nil, false, nil
	}

	closes := make([]float64, len(bars))
	volumes := make([]uint64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
		volumes[i] = bar.Volume
	}
	currentPrice := closes[0]
	prevPrice := currentPrice
	if len(closes) > 1 {
		prevPrice = closes[1]
	}

	match := &Match{
		Code:   stock.Code,
		Name:   name,
		Market: stock.Market,
		Price:  roundPrice(currentPrice, provider.Currency),
		Volume: volumes[0],
	}

	mas := map[int]*float64{}
	for _, period := range []int{5, 20, 60, 112, 224} {
		if v, ok := indicator.SMA(period, closes); ok {
			rounded := indicator.Round2(v)
			mas[period] = &rounded
		}
	}
	match.MA5, match.MA20, match.MA60 = mas[5], mas[20], mas[60]
	match.MA112, match.MA224 = mas[112], mas[224]

	// 이동평균 비율 게이트 (경계 포함)
	type maGate struct {
		enabled  bool
		min, max int
		ma       *float64
		ratio    **float64
	}
	gates := []maGate{
		{cond.MA60Enabled, cond.MA60Min, cond.MA60Max, mas[60], &match.MA60Ratio},
		{cond.MA112Enabled, cond.MA112Min, cond.MA112Max, mas[112], &match.MA112Ratio},
		{cond.MA224Enabled, cond.MA224Min, cond.MA224Max, mas[224], &match.MA224Ratio},
	}
	for _, gate := range gates {
		if gate.ma != nil {
			ratio := indicator.Round2(indicator.Ratio(currentPrice, *gate.ma))
			*gate.ratio = &ratio
		}
		if !gate.enabled {
			continue
		}
		if gate.ma == nil {
			return nil, false, nil // 필요한 이동평균이 없으면 제외
		}
		ratio := indicator.Ratio(currentPrice, *gate.ma)
		if ratio < float64(gate.min) || ratio > float64(gate.max) {
			return nil, false, nil
		}
	}

	if cond.MAAlignment {
		// 정배열은 ma5 > ma20 > ma60 > ma112 전부 필요
		if mas[5] == nil || mas[20] == nil || mas[60] == nil || mas[112] == nil {
			return nil, false, nil
		}
		if !indicator.Aligned(*mas[5], *mas[20], *mas[60], *mas[112]) {
			return nil, false, nil
		}
	}

	if cond.BBEnabled {
		bands, ok := indicator.Bollinger(cond.BBPeriod, cond.BBMultiplier, closes)
		if !ok {
			return nil, false, nil
		}
		position := indicator.PositionOf(currentPrice, bands)

		upper := indicator.Round2(bands.Upper)
		middle := indicator.Round2(bands.Mid)
		lower := indicator.Round2(bands.Lower)
		match.BBUpper, match.BBMiddle, match.BBLower = &upper, &middle, &lower
		match.BBPosition = string(position)

		if cond.BBPosition != "all" && string(position) != cond.BBPosition {
			return nil, false, nil
		}
		if cond.BBUpperBreak && currentPrice < bands.Upper {
			return nil, false, nil
		}
		if cond.BBLowerBreak && currentPrice > bands.Lower {
			return nil, false, nil
		}
	}

	if cond.VolumeEnabled {
		avg, ok := indicator.AvgVolume(20, volumes)
		if !ok || avg == 0 {
			return nil, false, nil
		}
		ratio := float64(volumes[0]) / avg
		if ratio < cond.VolumeMultiple {
			return nil, false, nil
		}
		rounded := indicator.Round2(ratio)
		match.VolumeRatio = &rounded
	}

	changePct := 0.0
	if prevPrice != 0 {
		changePct = 100 * (currentPrice - prevPrice) / prevPrice
	}
	match.ChangePct = indicator.Round2(changePct)
	if cond.PriceChangeEnabled {
		if changePct < cond.PriceChangeMin || changePct > cond.PriceChangeMax {
			return nil, false, nil
		}
	}

	if cond.NeedsFundamentals() {
		ok, err := e.applyFundamentals(ctx, provider, cond, stock, match)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
	}

	return match, true, nil
}

// applyFundamentals fetches one quote (redis-cached) and applies the
// enabled fundamental gates. A missing gated field excludes conservatively;
// fields without an enabled gate are just carried through.
func (e *Engine) applyFundamentals(ctx context.Context, provider *market.Provider, cond *Condition, stock contracts.Stock, match *Match) (bool, error) {
	var quote contracts.Quote
	hit, err := e.cache.Get(ctx, redis.QuoteKey(stock.Code), &quote)
	if err != nil {
		e.logger.WithError(err).Debug("캐시 조회 실패")
		hit = false
	}
	if !hit {
		fetched, err := provider.Quote(ctx, stock)
		if err != nil {
			// 재무 게이트가 있는데 시세를 못 받으면 보수적으로 제외
			e.logger.WithError(err).WithField("code", stock.Code).Warn("현재가 조회 실패, 제외")
			return false, nil
		}
		quote = *fetched
		if err := e.cache.Set(ctx, redis.QuoteKey(stock.Code), quote, redis.TTLQuote); err != nil {
			e.logger.WithError(err).Debug("캐시 저장 실패")
		}
	}

	match.MarketCap = quote.MarketCap
	match.PER = roundOptional(quote.PER)
	match.PBR = roundOptional(quote.PBR)

	if cond.MarketCapEnabled {
		if quote.MarketCap == nil {
			return false, nil
		}
		if *quote.MarketCap < cond.MarketCapMin || *quote.MarketCap > cond.MarketCapMax {
			return false, nil
		}
	}
	if cond.PEREnabled {
		if quote.PER == nil {
			return false, nil
		}
		if *quote.PER < cond.PERMin || *quote.PER > cond.PERMax {
			return false, nil
		}
	}
	if cond.PBREnabled {
		if quote.PBR == nil {
			return false, nil
		}
		if *quote.PBR < cond.PBRMin || *quote.PBR > cond.PBRMax {
			return false, nil
		}
	}
	return true, nil
}

// excluded applies the name prefilter
func excluded(provider *market.Provider, cond *Condition, stock contracts.Stock) bool {
	if cond.ExcludeETF && (provider.LikelyETF(stock) || strings.Contains(stock.Name, "ETF")) {
		return true
	}
	if cond.ExcludeETN && (stock.IsETN || strings.Contains(stock.Name, "ETN")) {
		return true
	}
	if cond.ExcludeManagement {
		for _, token := range managementTokens {
			if strings.Contains(stock.Name, token) {
				return true
			}
		}
	}
	return false
}

func restrictTargets(universe []contracts.Stock, targets []string) []contracts.Stock {
	if len(targets) == 0 {
		return universe
	}
	wanted := make(map[string]bool, len(targets))
	for _, code := range targets {
		wanted[code] = true
	}
	var out []contracts.Stock
	for _, stock := range universe {
		if wanted[stock.Code] {
			out = append(out, stock)
		}
	}
	return out
}

// roundPrice rounds KRW to whole won, USD to cents
func roundPrice(price float64, currency string) float64 {
	if currency == "KRW" {
		return math.Round(price)
	}
	return indicator.Round2(price)
}

func roundOptional(v *float64) *float64 {
	if v == nil {
		return nil
	}
	rounded := indicator.Round2(*v)
	return &rounded
}
