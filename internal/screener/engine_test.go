package screener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockhunter/internal/contracts"
	"github.com/wonny/stockhunter/internal/market"
	"github.com/wonny/stockhunter/pkg/logger"
	"github.com/wonny/stockhunter/pkg/redis"
)

// fakeBars serves canned bars per code
type fakeBars struct {
	bars        map[string][]contracts.DailyBar
	initialized bool
}

func (f *fakeBars) Bars(ctx context.Context, code string, limit int) ([]contracts.DailyBar, error) {
	bars := f.bars[code]
	if len(bars) > limit {
		bars = bars[:limit]
	}
	return bars, nil
}

func (f *fakeBars) Initialized(ctx context.Context) (bool, error) {
	return f.initialized, nil
}

type fakeNames map[string]string

func (f fakeNames) NameOf(ctx context.Context, code string) (string, error) {
	return f[code], nil
}

// flatBars builds count bars all at the same close, newest first
func flatBars(code string, count int, close float64, volume uint64) []contracts.DailyBar {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	bars := make([]contracts.DailyBar, count)
	for i := range bars {
		bars[i] = contracts.DailyBar{
			Code: code, TradeDate: day.AddDate(0, 0, -i),
			Open: close, High: close, Low: close, Close: close, Volume: volume,
		}
	}
	return bars
}

func fakeKRProvider(universe []contracts.Stock, quote func(code string) (*contracts.Quote, error)) *market.Provider {
	return &market.Provider{
		Kind:     market.KindKR,
		Markets:  []contracts.Market{contracts.MarketKOSPI},
		Currency: "KRW",
		Universe: func(ctx context.Context) ([]contracts.Stock, error) { return universe, nil },
		Quote: func(ctx context.Context, stock contracts.Stock) (*contracts.Quote, error) {
			if quote == nil {
				return nil, errors.New("no quote configured")
			}
			return quote(stock.Code)
		},
		ValidateID: market.ValidateKRCode,
		LikelyETF: func(stock contracts.Stock) bool {
			return stock.IsETF
		},
	}
}

func newTestEngine(bars *fakeBars, names fakeNames) *Engine {
	cache := redis.NewCache(redis.NewDisabled(), "test")
	return NewEngine(bars, names, cache, logger.NewNop())
}

func TestScreen_RequiresInitializedStore(t *testing.T) {
	engine := newTestEngine(&fakeBars{initialized: false}, fakeNames{})
	provider := fakeKRProvider(nil, nil)

	_, err := engine.Screen(context.Background(), provider, &Condition{})
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestScreen_EmptyConditionMatchesEverythingWithBars(t *testing.T) {
	bars := &fakeBars{initialized: true, bars: map[string][]contracts.DailyBar{
		"005930": flatBars("005930", 280, 70000, 1000),
	}}
	universe := []contracts.Stock{
		{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI},
		{Code: "000660", Name: "SK하이닉스", Market: contracts.MarketKOSPI}, // 봉 없음
	}
	engine := newTestEngine(bars, fakeNames{})

	result, err := engine.Screen(context.Background(), fakeKRProvider(universe, nil), &Condition{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalScanned)
	require.Equal(t, 1, result.MatchedCount)
	assert.Equal(t, "005930", result.Matches[0].Code)
	assert.Equal(t, 70000.0, result.Matches[0].Price)
}

func TestScreen_ExclusionPrefilter(t *testing.T) {
	barsByCode := map[string][]contracts.DailyBar{}
	universe := []contracts.Stock{
		{Code: "069500", Name: "KODEX 200", Market: contracts.MarketKOSPI, IsETF: true},
		{Code: "580011", Name: "신한 ETN 원유", Market: contracts.MarketKOSPI, IsETN: true},
		{Code: "123450", Name: "관리종목지정", Market: contracts.MarketKOSPI},
		{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI},
	}
	for _, stock := range universe {
		barsByCode[stock.Code] = flatBars(stock.Code, 100, 10000, 500)
	}
	engine := newTestEngine(&fakeBars{initialized: true, bars: barsByCode}, fakeNames{})

	cond := &Condition{ExcludeETF: true, ExcludeETN: true, ExcludeManagement: true}
	result, err := engine.Screen(context.Background(), fakeKRProvider(universe, nil), cond)
	require.NoError(t, err)

	require.Equal(t, 1, result.MatchedCount)
	assert.Equal(t, "005930", result.Matches[0].Code)
}

func TestScreen_MARatioBoundsInclusive(t *testing.T) {
	// 모든 종가가 같으면 가격/MA 비율은 정확히 100
	bars := &fakeBars{initialized: true, bars: map[string][]contracts.DailyBar{
		"005930": flatBars("005930", 280, 50000, 1000),
	}}
	universe := []contracts.Stock{{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI}}
	engine := newTestEngine(bars, fakeNames{})
	provider := fakeKRProvider(universe, nil)

	// 경계값 100 포함
	cond := &Condition{MA60Enabled: true, MA60Min: 100, MA60Max: 100}
	result, err := engine.Screen(context.Background(), provider, cond)
	require.NoError(t, err)
	require.Equal(t, 1, result.MatchedCount)
	require.NotNil(t, result.Matches[0].MA60Ratio)
	assert.Equal(t, 100.0, *result.Matches[0].MA60Ratio)

	// 경계 밖
	cond = &Condition{MA60Enabled: true, MA60Min: 101, MA60Max: 110}
	result, err = engine.Screen(context.Background(), provider, cond)
	require.NoError(t, err)
	assert.Zero(t, result.MatchedCount)
}

func TestScreen_AbsentMAExcludes(t *testing.T) {
	// 봉 30개: ma224 계산 불가
	bars := &fakeBars{initialized: true, bars: map[string][]contracts.DailyBar{
		"005930": flatBars("005930", 30, 50000, 1000),
	}}
	universe := []contracts.Stock{{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI}}
	engine := newTestEngine(bars, fakeNames{})

	cond := &Condition{MA224Enabled: true, MA224Min: 0, MA224Max: 200}
	result, err := engine.Screen(context.Background(), fakeKRProvider(universe, nil), cond)
	require.NoError(t, err)
	assert.Zero(t, result.MatchedCount)
}

func TestScreen_MAAlignmentRequiresAllFourAverages(t *testing.T) {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	rising := func(count int) []contracts.DailyBar {
		bars := make([]contracts.DailyBar, count)
		for i := range bars {
			bars[i] = contracts.DailyBar{
				Code: "005930", TradeDate: day.AddDate(0, 0, -i),
				Close: 1000 - float64(i), Volume: 1000,
			}
		}
		return bars
	}
	universe := []contracts.Stock{{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI}}
	cond := &Condition{MAAlignment: true}

	// 봉 80개: ma112 계산 불가 → 제외
	store := &fakeBars{initialized: true, bars: map[string][]contracts.DailyBar{"005930": rising(80)}}
	result, err := newTestEngine(store, fakeNames{}).Screen(context.Background(), fakeKRProvider(universe, nil), cond)
	require.NoError(t, err)
	assert.Zero(t, result.MatchedCount)

	// 120개 연속 상승: ma5 > ma20 > ma60 > ma112 → 매칭
	store = &fakeBars{initialized: true, bars: map[string][]contracts.DailyBar{"005930": rising(120)}}
	result, err = newTestEngine(store, fakeNames{}).Screen(context.Background(), fakeKRProvider(universe, nil), cond)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MatchedCount)

	// 최근 60일만 상승, 그 이전은 고점: ma60 < ma112 → 제외
	bars := make([]contracts.DailyBar, 150)
	for i := range bars {
		close := 2000.0
		if i < 60 {
			close = 300 - float64(i)
		}
		bars[i] = contracts.DailyBar{
			Code: "005930", TradeDate: day.AddDate(0, 0, -i),
			Close: close, Volume: 1000,
		}
	}
	store = &fakeBars{initialized: true, bars: map[string][]contracts.DailyBar{"005930": bars}}
	result, err = newTestEngine(store, fakeNames{}).Screen(context.Background(), fakeKRProvider(universe, nil), cond)
	require.NoError(t, err)
	assert.Zero(t, result.MatchedCount)
}

func TestScreen_BollingerGates(t *testing.T) {
	// 교대 시세: mid 100, stddev 5, 2.0배 밴드 = [90, 110]
	day := time.Now().UTC().Truncate(24 * time.Hour)
	var bars []contracts.DailyBar
	for i := 0; i < 40; i++ {
		close := 105.0
		if i%2 == 1 {
			close = 95.0
		}
		bars = append(bars, contracts.DailyBar{
			Code: "005930", TradeDate: day.AddDate(0, 0, -i),
			Close: close, Volume: 1000,
		})
	}
	store := &fakeBars{initialized: true, bars: map[string][]contracts.DailyBar{"005930": bars}}
	universe := []contracts.Stock{{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI}}
	engine := newTestEngine(store, fakeNames{})
	provider := fakeKRProvider(universe, nil)

	// 현재가 105는 밴드 중앙 구역
	cond := &Condition{BBEnabled: true, BBPeriod: 20, BBMultiplier: 2.0, BBPosition: "middle"}
	result, err := engine.Screen(context.Background(), provider, cond)
	require.NoError(t, err)
	require.Equal(t, 1, result.MatchedCount)
	assert.Equal(t, "middle", result.Matches[0].BBPosition)

	// 상단 돌파 요구: 105 < upper(110) → 제외
	cond = &Condition{BBEnabled: true, BBPeriod: 20, BBMultiplier: 2.0, BBPosition: "all", BBUpperBreak: true}
	result, err = engine.Screen(context.Background(), provider, cond)
	require.NoError(t, err)
	assert.Zero(t, result.MatchedCount)
}

func TestScreen_VolumeGate(t *testing.T) {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	var bars []contracts.DailyBar
	for i := 0; i < 40; i++ {
		volume := uint64(1000)
		if i == 0 {
			volume = 3000 // 당일 거래량 급증
		}
		bars = append(bars, contracts.DailyBar{
			Code: "005930", TradeDate: day.AddDate(0, 0, -i),
			Close: 100, Volume: volume,
		})
	}
	store := &fakeBars{initialized: true, bars: map[string][]contracts.DailyBar{"005930": bars}}
	universe := []contracts.Stock{{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI}}
	engine := newTestEngine(store, fakeNames{})
	provider := fakeKRProvider(universe, nil)

	// avg20 = (3000 + 19*1000)/20 = 1100, ratio ≈ 2.73
	cond := &Condition{VolumeEnabled: true, VolumeMultiple: 2.0}
	result, err := engine.Screen(context.Background(), provider, cond)
	require.NoError(t, err)
	require.Equal(t, 1, result.MatchedCount)

	cond = &Condition{VolumeEnabled: true, VolumeMultiple: 3.0}
	result, err = engine.Screen(context.Background(), provider, cond)
	require.NoError(t, err)
	assert.Zero(t, result.MatchedCount)
}

func TestScreen_PriceChangeGate(t *testing.T) {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	bars := []contracts.DailyBar{
		{Code: "005930", TradeDate: day, Close: 110, Volume: 100},
		{Code: "005930", TradeDate: day.AddDate(0, 0, -1), Close: 100, Volume: 100},
	}
	store := &fakeBars{initialized: true, bars: map[string][]contracts.DailyBar{"005930": bars}}
	universe := []contracts.Stock{{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI}}
	engine := newTestEngine(store, fakeNames{})
	provider := fakeKRProvider(universe, nil)

	cond := &Condition{PriceChangeEnabled: true, PriceChangeMin: 5, PriceChangeMax: 15}
	result, err := engine.Screen(context.Background(), provider, cond)
	require.NoError(t, err)
	require.Equal(t, 1, result.MatchedCount)
	assert.Equal(t, 10.0, result.Matches[0].ChangePct)

	cond = &Condition{PriceChangeEnabled: true, PriceChangeMin: 11, PriceChangeMax: 20}
	result, err = engine.Screen(context.Background(), provider, cond)
	require.NoError(t, err)
	assert.Zero(t, result.MatchedCount)
}

func TestScreen_FundamentalGates(t *testing.T) {
	store := &fakeBars{initialized: true, bars: map[string][]contracts.DailyBar{
		"005930": flatBars("005930", 50, 70000, 1000),
		"000660": flatBars("000660", 50, 200000, 1000),
	}}
	universe := []contracts.Stock{
		{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI},
		{Code: "000660", Name: "SK하이닉스", Market: contracts.MarketKOSPI},
	}
	engine := newTestEngine(store, fakeNames{})

	per1, per2 := 10.0, 40.0
	cap1 := int64(400_0000_0000_0000)
	provider := fakeKRProvider(universe, func(code string) (*contracts.Quote, error) {
		switch code {
		case "005930":
			return &contracts.Quote{Code: code, Price: 70000, PER: &per1, MarketCap: &cap1}, nil
		default:
			return &contracts.Quote{Code: code, Price: 200000, PER: &per2}, nil
		}
	})

	cond := &Condition{PEREnabled: true, PERMin: 5, PERMax: 20}
	result, err := engine.Screen(context.Background(), provider, cond)
	require.NoError(t, err)
	require.Equal(t, 1, result.MatchedCount)
	assert.Equal(t, "005930", result.Matches[0].Code)

	// 시총 게이트: 000660 은 시총 없음 → 보수적으로 제외
	cond = &Condition{MarketCapEnabled: true, MarketCapMin: 0, MarketCapMax: 1 << 62}
	result, err = engine.Screen(context.Background(), provider, cond)
	require.NoError(t, err)
	require.Equal(t, 1, result.MatchedCount)
	assert.Equal(t, "005930", result.Matches[0].Code)
}

func TestScreen_QuoteFailureExcludesOnlyThatInstrument(t *testing.T) {
	store := &fakeBars{initialized: true, bars: map[string][]contracts.DailyBar{
		"005930": flatBars("005930", 50, 70000, 1000),
		"000660": flatBars("000660", 50, 200000, 1000),
	}}
	universe := []contracts.Stock{
		{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI},
		{Code: "000660", Name: "SK하이닉스", Market: contracts.MarketKOSPI},
	}
	engine := newTestEngine(store, fakeNames{})

	per := 10.0
	provider := fakeKRProvider(universe, func(code string) (*contracts.Quote, error) {
		if code == "000660" {
			return nil, errors.New("broker down")
		}
		return &contracts.Quote{Code: code, PER: &per}, nil
	})

	cond := &Condition{PEREnabled: true, PERMin: 0, PERMax: 100}
	result, err := engine.Screen(context.Background(), provider, cond)
	require.NoError(t, err)
	require.Equal(t, 1, result.MatchedCount)
	assert.Equal(t, "005930", result.Matches[0].Code)
}

func TestScreen_TargetCodesRestrictUniverse(t *testing.T) {
	store := &fakeBars{initialized: true, bars: map[string][]contracts.DailyBar{
		"005930": flatBars("005930", 50, 70000, 1000),
		"000660": flatBars("000660", 50, 200000, 1000),
	}}
	universe := []contracts.Stock{
		{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI},
		{Code: "000660", Name: "SK하이닉스", Market: contracts.MarketKOSPI},
	}
	engine := newTestEngine(store, fakeNames{})

	cond := &Condition{TargetCodes: []string{"000660"}}
	result, err := engine.Screen(context.Background(), fakeKRProvider(universe, nil), cond)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalScanned)
	require.Equal(t, 1, result.MatchedCount)
	assert.Equal(t, "000660", result.Matches[0].Code)
}

func TestCondition_Validate(t *testing.T) {
	cond := &Condition{}
	cond.Normalize()
	assert.Equal(t, 20, cond.BBPeriod)
	assert.Equal(t, 2.0, cond.BBMultiplier)
	assert.Equal(t, "all", cond.BBPosition)
	assert.NoError(t, cond.Validate())

	bad := &Condition{BBEnabled: true, BBPeriod: 15, BBMultiplier: 2.0, BBPosition: "all"}
	assert.Error(t, bad.Validate())

	bad = &Condition{BBEnabled: true, BBPeriod: 20, BBMultiplier: 2.5, BBPosition: "all"}
	assert.Error(t, bad.Validate())

	bad = &Condition{VolumeEnabled: true, VolumeMultiple: 0.5}
	assert.Error(t, bad.Validate())

	bad = &Condition{MA60Enabled: true, MA60Min: 110, MA60Max: 100}
	assert.Error(t, bad.Validate())
}
