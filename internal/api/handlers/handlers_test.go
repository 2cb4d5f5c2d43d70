package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockhunter/internal/contracts"
	"github.com/wonny/stockhunter/internal/market"
	"github.com/wonny/stockhunter/internal/screener"
	"github.com/wonny/stockhunter/pkg/logger"
	"github.com/wonny/stockhunter/pkg/redis"
)

type emptyBars struct{ initialized bool }

func (e emptyBars) Bars(ctx context.Context, code string, limit int) ([]contracts.DailyBar, error) {
	return nil, nil
}
func (e emptyBars) Initialized(ctx context.Context) (bool, error) { return e.initialized, nil }

type noNames struct{}

func (noNames) NameOf(ctx context.Context, code string) (string, error) { return "", nil }

func testScreenHandler(initialized bool) *ScreenHandler {
	engine := screener.NewEngine(emptyBars{initialized}, noNames{}, redis.NewCache(redis.NewDisabled(), "test"), logger.NewNop())
	universe := []contracts.Stock{
		{Code: "AAPL", Name: "Apple", Market: contracts.MarketNASDAQ},
		{Code: "JPM", Name: "JPMorgan Chase", Market: contracts.MarketNYSE},
	}
	us := &market.Provider{
		Kind:    market.KindUS,
		Markets: []contracts.Market{contracts.MarketNASDAQ, contracts.MarketNYSE, contracts.MarketAMEX},
		Universe: func(ctx context.Context) ([]contracts.Stock, error) {
			return universe, nil
		},
	}
	kr := &market.Provider{
		Kind:    market.KindKR,
		Markets: []contracts.Market{contracts.MarketKOSPI},
		Universe: func(ctx context.Context) ([]contracts.Stock, error) {
			return []contracts.Stock{{Code: "005930", Name: "삼성전자", Market: contracts.MarketKOSPI}}, nil
		},
	}
	return NewScreenHandler(engine, kr, us, logger.NewNop())
}

func TestScreenKR_InvalidBody(t *testing.T) {
	handler := testScreenHandler(true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/screen", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ScreenKR(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScreenKR_NotInitialized(t *testing.T) {
	handler := testScreenHandler(false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/screen", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	handler.ScreenKR(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not initialized")
}

func TestScreenKR_InvalidCondition(t *testing.T) {
	handler := testScreenHandler(true)

	body := `{"bbEnabled": true, "bbPeriod": 15}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/screen", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ScreenKR(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bbPeriod")
}

func TestStockCodes(t *testing.T) {
	handler := testScreenHandler(true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stock-codes", nil)
	rec := httptest.NewRecorder()
	handler.StockCodes(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "005930")
}

func TestUSSymbols_ExchangeFilter(t *testing.T) {
	handler := testScreenHandler(true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/us/symbols?exchange=NAS", nil)
	rec := httptest.NewRecorder()
	handler.USSymbols(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AAPL")
	assert.NotContains(t, rec.Body.String(), "JPM")
}

func TestUSSymbols_BadExchange(t *testing.T) {
	handler := testScreenHandler(true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/us/symbols?exchange=LSE", nil)
	rec := httptest.NewRecorder()
	handler.USSymbols(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUSSymbols_ExchangeOutsideProvider(t *testing.T) {
	// 나스닥만 커버하는 프로바이더에 NYS 요청
	engine := screener.NewEngine(emptyBars{true}, noNames{}, redis.NewCache(redis.NewDisabled(), "test"), logger.NewNop())
	us := &market.Provider{
		Kind:    market.KindUS,
		Markets: []contracts.Market{contracts.MarketNASDAQ},
		Universe: func(ctx context.Context) ([]contracts.Stock, error) {
			return []contracts.Stock{{Code: "AAPL", Market: contracts.MarketNASDAQ}}, nil
		},
	}
	handler := NewScreenHandler(engine, nil, us, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/us/symbols?exchange=NYS", nil)
	rec := httptest.NewRecorder()
	handler.USSymbols(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateCredentials(t *testing.T) {
	ok := NewAuthHandler(func(ctx context.Context, appKey, appSecret string, isProduction bool) error {
		return nil
	}, logger.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate-credentials",
		strings.NewReader(`{"appKey":"k","appSecret":"s","isProduction":false}`))
	rec := httptest.NewRecorder()
	ok.ValidateCredentials(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	bad := NewAuthHandler(func(ctx context.Context, appKey, appSecret string, isProduction bool) error {
		return errors.New("invalid app key")
	}, logger.NewNop())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/validate-credentials",
		strings.NewReader(`{"appKey":"k","appSecret":"s"}`))
	rec = httptest.NewRecorder()
	bad.ValidateCredentials(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/validate-credentials",
		strings.NewReader(`{"appKey":""}`))
	rec = httptest.NewRecorder()
	ok.ValidateCredentials(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
