package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/stockhunter/internal/contracts"
	"github.com/wonny/stockhunter/pkg/config"
	"github.com/wonny/stockhunter/pkg/httputil"
	"github.com/wonny/stockhunter/pkg/logger"
)

// Transaction IDs per operation
const (
	trDailyPrice  = "FHKST01010400" // 국내주식 일별 시세
	trPeriodChart = "FHKST03010100" // 국내주식 기간별 시세
	trCurrent     = "FHKST01010100" // 국내주식 현재가
	trSearchInfo  = "CTPF1604R"     // 상품기본정보
	trUSDaily     = "HHDFS76240000" // 해외주식 기간별 시세
	trUSDetail    = "HHDFS76200200" // 해외주식 현재가상세
)

// Client handles communication with the KIS open API. Every wire call is
// gated by the per-client rate limiter first and the token manager second.
// ⭐ SSOT: KIS API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.KISConfig
	tokens     *TokenManager
	limiter    *rate.Limiter
}

// NewClient creates a KIS client pacing outbound calls at rps requests per
// second. Collector clients run at 15 rps, interactive read clients at 20;
// the limiters are per client instance, not shared.
func NewClient(cfg config.KISConfig, httpClient *httputil.Client, tokens *TokenManager, log *logger.Logger, rps int) *Client {
	if rps <= 0 {
		rps = 15
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "kis_client"),
		cfg:        cfg,
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// validateCode rejects malformed domestic identifiers before they reach
// the wire (KR codes are exactly six digits).
func validateCode(code string) error {
	if len(code) != 6 {
		return fmt.Errorf("invalid stock code %q: must be 6 digits", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid stock code %q: must be numeric", code)
		}
	}
	return nil
}

// MintToken issues a new access token. Subject to the once-per-day issuance
// etiquette; callers must go through the TokenManager, never call this in a
// loop.
func (c *Client) MintToken(ctx context.Context) (*TokenGrant, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/oauth2/tokenP", c.cfg.ActiveBaseURL())
	body := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.cfg.AppKey,
		"appsecret":  c.cfg.AppSecret,
	}

	resp, err := c.httpClient.PostJSON(ctx, url, body)
	if err != nil {
		return nil, &AuthError{Reason: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &AuthError{Reason: fmt.Sprintf("token request status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))}
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, &AuthError{Reason: "decode token response", Err: err}
	}
	if tokenResp.AccessToken == "" {
		return nil, &AuthError{Reason: "empty access token in response"}
	}

	now := time.Now()
	return &TokenGrant{
		Token:     tokenResp.AccessToken,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

// Acquire returns a usable token via the token manager
func (c *Client) Acquire(ctx context.Context) (string, error) {
	return c.tokens.Acquire(ctx, c.MintToken)
}

// get performs an authenticated GET against the KIS API
func (c *Client) get(ctx context.Context, path, trID string, params string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	token, err := c.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s%s?%s", c.cfg.ActiveBaseURL(), path, params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("appkey", c.cfg.AppKey)
	req.Header.Set("appsecret", c.cfg.AppSecret)
	req.Header.Set("tr_id", trID)
	if trID == trSearchInfo {
		req.Header.Set("custtype", "P")
	}

	return c.httpClient.Do(req)
}

// decodeEnvelope reads the response body into dst, converting HTTP-level
// failures into transport errors
func decodeEnvelope(resp *http.Response, dst interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// RecentDaily fetches up to days most-recent daily bars, newest-first.
// The endpoint caps its answer at 30 bars regardless of the requested
// window; backfill uses PeriodDaily for that reason.
func (c *Client) RecentDaily(ctx context.Context, code string, days int) ([]contracts.DailyBar, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}

	params := fmt.Sprintf("fid_cond_mrkt_div_code=J&fid_input_iscd=%s&fid_period_div_code=D&fid_org_adj_prc=0", code)
	resp, err := c.get(ctx, "/uapi/domestic-stock/v1/quotations/inquire-daily-price", trDailyPrice, params)
	if err != nil {
		return nil, err
	}

	var result dailyPriceResponse
	if err := decodeEnvelope(resp, &result); err != nil {
		return nil, err
	}
	if result.RtCd != "0" {
		return nil, &APIError{ReturnCode: result.RtCd, MsgCode: result.MsgCd, Msg: result.Msg1}
	}

	bars := parseDailyOutputs(code, result.Output)
	if days > 0 && len(bars) > days {
		bars = bars[:days]
	}
	return bars, nil
}

// PeriodDaily fetches daily bars within [start, end], newest-first.
// Windows up to ~100 calendar days come back in one response.
func (c *Client) PeriodDaily(ctx context.Context, code string, start, end time.Time) ([]contracts.DailyBar, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}

	params := fmt.Sprintf(
		"FID_COND_MRKT_DIV_CODE=J&FID_INPUT_ISCD=%s&FID_INPUT_DATE_1=%s&FID_INPUT_DATE_2=%s&FID_PERIOD_DIV_CODE=D&FID_ORG_ADJ_PRC=0",
		code, start.Format("20060102"), end.Format("20060102"))
	resp, err := c.get(ctx, "/uapi/domestic-stock/v1/quotations/inquire-daily-itemchartprice", trPeriodChart, params)
	if err != nil {
		return nil, err
	}

	var result periodChartResponse
	if err := decodeEnvelope(resp, &result); err != nil {
		return nil, err
	}
	if result.RtCd != "0" {
		return nil, &APIError{ReturnCode: result.RtCd, MsgCode: result.MsgCd, Msg: result.Msg1}
	}

	return parseDailyOutputs(code, result.Output2), nil
}

// CurrentQuote fetches the current price with fundamental ratios
func (c *Client) CurrentQuote(ctx context.Context, code string) (*contracts.Quote, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}

	params := fmt.Sprintf("fid_cond_mrkt_div_code=J&fid_input_iscd=%s", code)
	resp, err := c.get(ctx, "/uapi/domestic-stock/v1/quotations/inquire-price", trCurrent, params)
	if err != nil {
		return nil, err
	}

	var result currentPriceResponse
	if err := decodeEnvelope(resp, &result); err != nil {
		return nil, err
	}
	if result.RtCd != "0" {
		return nil, &APIError{ReturnCode: result.RtCd, MsgCode: result.MsgCd, Msg: result.Msg1}
	}

	quote := &contracts.Quote{
		Code:      code,
		Price:     parseFloat(result.Output.CurrentPrice),
		PER:       parseOptionalFloat(result.Output.PER),
		PBR:       parseOptionalFloat(result.Output.PBR),
		EPS:       parseOptionalFloat(result.Output.EPS),
		BPS:       parseOptionalFloat(result.Output.BPS),
		FetchedAt: time.Now(),
	}

	// hts_avls 단위는 억원
	if capEok := parseOptionalFloat(result.Output.MarketCap); capEok != nil {
		marketCap := int64(*capEok * 1e8)
		quote.MarketCap = &marketCap
	}

	return quote, nil
}

// LookupName fetches the human-readable short name for a code
func (c *Client) LookupName(ctx context.Context, code string) (string, error) {
	if err := validateCode(code); err != nil {
		return "", err
	}

	params := fmt.Sprintf("PRDT_TYPE_CD=300&PDNO=%s", code)
	resp, err := c.get(ctx, "/uapi/domestic-stock/v1/quotations/search-info", trSearchInfo, params)
	if err != nil {
		return "", err
	}

	var result searchInfoResponse
	if err := decodeEnvelope(resp, &result); err != nil {
		return "", err
	}
	if result.RtCd != "0" {
		return "", &APIError{ReturnCode: result.RtCd, MsgCode: result.MsgCd, Msg: result.Msg1}
	}

	name := result.Output.ProductShortName
	if name == "" {
		name = result.Output.ProductName
	}
	return name, nil
}

// USExchange maps a market to the KIS overseas exchange code
func USExchange(market contracts.Market) string {
	switch market {
	case contracts.MarketNASDAQ:
		return "NAS"
	case contracts.MarketNYSE:
		return "NYS"
	case contracts.MarketAMEX:
		return "AMS"
	default:
		return ""
	}
}

// USDaily fetches daily bars for a US symbol, newest-first.
// base 가 지정되면 그 날짜 이하 봉부터 거꾸로 조회 (BYMD), 영시각이면 최신 봉부터
func (c *Client) USDaily(ctx context.Context, exchange, symbol string, base time.Time, days int) ([]contracts.DailyBar, error) {
	if exchange == "" || symbol == "" {
		return nil, fmt.Errorf("invalid US instrument %q/%q", exchange, symbol)
	}

	bymd := ""
	if !base.IsZero() {
		bymd = base.Format("20060102")
	}
	params := fmt.Sprintf("AUTH=&EXCD=%s&SYMB=%s&GUBN=0&BYMD=%s&MODP=0", exchange, symbol, bymd)
	resp, err := c.get(ctx, "/uapi/overseas-price/v1/quotations/dailyprice", trUSDaily, params)
	if err != nil {
		return nil, err
	}

	var result usDailyResponse
	if err := decodeEnvelope(resp, &result); err != nil {
		return nil, err
	}
	if result.RtCd != "0" {
		return nil, &APIError{ReturnCode: result.RtCd, MsgCode: result.MsgCd, Msg: result.Msg1}
	}

	bars := make([]contracts.DailyBar, 0, len(result.Output2))
	for _, out := range result.Output2 {
		date, err := time.Parse("20060102", out.TradeDate)
		if err != nil {
			continue
		}
		bars = append(bars, contracts.DailyBar{
			Code:      symbol,
			TradeDate: date,
			Open:      parseFloat(out.OpenPrice),
			High:      parseFloat(out.HighPrice),
			Low:       parseFloat(out.LowPrice),
			Close:     parseFloat(out.ClosePrice),
			Volume:    parseUint(out.Volume),
		})
	}
	if days > 0 && len(bars) > days {
		bars = bars[:days]
	}
	return bars, nil
}

// USQuote fetches the current price detail for a US symbol
func (c *Client) USQuote(ctx context.Context, exchange, symbol string) (*contracts.Quote, error) {
	if exchange == "" || symbol == "" {
		return nil, fmt.Errorf("invalid US instrument %q/%q", exchange, symbol)
	}

	params := fmt.Sprintf("AUTH=&EXCD=%s&SYMB=%s", exchange, symbol)
	resp, err := c.get(ctx, "/uapi/overseas-price/v1/quotations/price-detail", trUSDetail, params)
	if err != nil {
		return nil, err
	}

	var result usPriceDetailResponse
	if err := decodeEnvelope(resp, &result); err != nil {
		return nil, err
	}
	if result.RtCd != "0" {
		return nil, &APIError{ReturnCode: result.RtCd, MsgCode: result.MsgCd, Msg: result.Msg1}
	}

	quote := &contracts.Quote{
		Code:      symbol,
		Price:     parseFloat(result.Output.Last),
		PER:       parseOptionalFloat(result.Output.PER),
		PBR:       parseOptionalFloat(result.Output.PBR),
		EPS:       parseOptionalFloat(result.Output.EPS),
		BPS:       parseOptionalFloat(result.Output.BPS),
		FetchedAt: time.Now(),
	}
	if capUSD := parseOptionalFloat(result.Output.MarketCap); capUSD != nil {
		marketCap := int64(*capUSD)
		quote.MarketCap = &marketCap
	}

	return quote, nil
}

// parseDailyOutputs converts wire bars to domain bars, skipping malformed rows
func parseDailyOutputs(code string, outputs []dailyPriceOutput) []contracts.DailyBar {
	bars := make([]contracts.DailyBar, 0, len(outputs))
	for _, out := range outputs {
		if out.TradeDate == "" {
			continue
		}
		date, err := time.Parse("20060102", out.TradeDate)
		if err != nil {
			continue
		}
		bars = append(bars, contracts.DailyBar{
			Code:      code,
			TradeDate: date,
			Open:      parseFloat(out.OpenPrice),
			High:      parseFloat(out.HighPrice),
			Low:       parseFloat(out.LowPrice),
			Close:     parseFloat(out.ClosePrice),
			Volume:    parseUint(out.Volume),
		})
	}
	return bars
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func parseUint(s string) uint64 {
	v, _ := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return v
}

// parseOptionalFloat returns nil for missing/zero broker fields
func parseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v == 0 {
		return nil
	}
	return &v
}
