package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockhunter/internal/contracts"
)

func TestValidateKRCode(t *testing.T) {
	assert.NoError(t, ValidateKRCode("005930"))
	assert.NoError(t, ValidateKRCode("000020"))

	for _, code := range []string{"", "12345", "1234567", "12A456", "AAPL"} {
		assert.Error(t, ValidateKRCode(code), "code %q", code)
	}
}

func TestValidateUSSymbol(t *testing.T) {
	for _, symbol := range []string{"AAPL", "BRK-B", "BF.B", "V", "TSLA"} {
		assert.NoError(t, ValidateUSSymbol(symbol), "symbol %q", symbol)
	}
	for _, symbol := range []string{"", "aapl", "005930", "-ABC", "TOOLONGSYMBOL"} {
		assert.Error(t, ValidateUSSymbol(symbol), "symbol %q", symbol)
	}
}

func TestKRLikelyETF(t *testing.T) {
	assert.True(t, krLikelyETF(contracts.Stock{Name: "KODEX 200"}))
	assert.True(t, krLikelyETF(contracts.Stock{Name: "TIGER 미국나스닥100"}))
	assert.True(t, krLikelyETF(contracts.Stock{Name: "삼성 인버스 2X WTI원유 선물 ETN"}))
	assert.True(t, krLikelyETF(contracts.Stock{Name: "평범한이름", IsETF: true}))
	assert.False(t, krLikelyETF(contracts.Stock{Name: "삼성전자"}))
	assert.False(t, krLikelyETF(contracts.Stock{Name: "현대차"}))
}

func TestUSLikelyETF(t *testing.T) {
	assert.True(t, usLikelyETF(contracts.Stock{Code: "QQQ", Name: "Invesco QQQ"}))
	assert.True(t, usLikelyETF(contracts.Stock{Code: "SPY"}))
	assert.True(t, usLikelyETF(contracts.Stock{Code: "VEA", Name: "Vanguard FTSE Developed Markets ETF"}))
	assert.False(t, usLikelyETF(contracts.Stock{Code: "AAPL", Name: "Apple"}))
}

func TestProviderContains(t *testing.T) {
	p := &Provider{Markets: []contracts.Market{contracts.MarketKOSPI, contracts.MarketKOSDAQ}}
	assert.True(t, p.Contains(contracts.MarketKOSPI))
	assert.False(t, p.Contains(contracts.MarketNASDAQ))
}

// fakeUSBroker serves daily bars backward from the requested base date,
// the way the overseas dailyprice endpoint pages with BYMD.
type fakeUSBroker struct {
	calls []time.Time
}

func (b *fakeUSBroker) RecentDaily(ctx context.Context, code string, days int) ([]contracts.DailyBar, error) {
	return nil, nil
}

func (b *fakeUSBroker) PeriodDaily(ctx context.Context, code string, start, end time.Time) ([]contracts.DailyBar, error) {
	return nil, nil
}

func (b *fakeUSBroker) CurrentQuote(ctx context.Context, code string) (*contracts.Quote, error) {
	return nil, nil
}

func (b *fakeUSBroker) LookupName(ctx context.Context, code string) (string, error) {
	return "", nil
}

func (b *fakeUSBroker) USQuote(ctx context.Context, exchange, symbol string) (*contracts.Quote, error) {
	return nil, nil
}

func (b *fakeUSBroker) USDaily(ctx context.Context, exchange, symbol string, base time.Time, days int) ([]contracts.DailyBar, error) {
	b.calls = append(b.calls, base)
	if base.IsZero() {
		base = time.Now().UTC().Truncate(24 * time.Hour)
	}
	bars := make([]contracts.DailyBar, days)
	for i := range bars {
		bars[i] = contracts.DailyBar{Code: symbol, TradeDate: base.AddDate(0, 0, -i), Close: 100}
	}
	return bars, nil
}

func TestNewUS_RangeDailyWalksBackFromWindowEnd(t *testing.T) {
	broker := &fakeUSBroker{}
	provider := NewUS(broker, nil)
	stock := contracts.Stock{Code: "AAPL", Market: contracts.MarketNASDAQ}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -199)
	end := today.AddDate(0, 0, -100)

	bars, err := provider.RangeDaily(context.Background(), stock, start, end)
	require.NoError(t, err)
	require.Len(t, bars, 100, "과거 구간도 봉이 비면 안 됨")

	require.Len(t, broker.calls, 1)
	assert.Equal(t, end, broker.calls[0], "구간 끝을 기준일로 전달")

	for _, bar := range bars {
		assert.False(t, bar.TradeDate.Before(start) || bar.TradeDate.After(end))
	}
}
