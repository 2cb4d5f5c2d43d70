package kis

// ============================================================
// KIS API Response Types (Internal)
// ============================================================

// tokenResponse represents the OAuth token response
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// dailyPriceOutput is one bar of inquire-daily-price output
type dailyPriceOutput struct {
	TradeDate  string `json:"stck_bsop_date"` // YYYYMMDD
	OpenPrice  string `json:"stck_oprc"`
	HighPrice  string `json:"stck_hgpr"`
	LowPrice   string `json:"stck_lwpr"`
	ClosePrice string `json:"stck_clpr"`
	Volume     string `json:"acml_vol"`
}

// dailyPriceResponse represents inquire-daily-price
type dailyPriceResponse struct {
	RtCd   string             `json:"rt_cd"`
	MsgCd  string             `json:"msg_cd"`
	Msg1   string             `json:"msg1"`
	Output []dailyPriceOutput `json:"output"`
}

// periodChartResponse represents inquire-daily-itemchartprice
type periodChartResponse struct {
	RtCd    string             `json:"rt_cd"`
	MsgCd   string             `json:"msg_cd"`
	Msg1    string             `json:"msg1"`
	Output2 []dailyPriceOutput `json:"output2"`
}

// currentPriceResponse represents inquire-price
type currentPriceResponse struct {
	RtCd   string `json:"rt_cd"`
	MsgCd  string `json:"msg_cd"`
	Msg1   string `json:"msg1"`
	Output struct {
		CurrentPrice string `json:"stck_prpr"`
		MarketCap    string `json:"hts_avls"` // 시가총액 (억원)
		PER          string `json:"per"`
		PBR          string `json:"pbr"`
		EPS          string `json:"eps"`
		BPS          string `json:"bps"`
	} `json:"output"`
}

// searchInfoResponse represents search-info
type searchInfoResponse struct {
	RtCd   string `json:"rt_cd"`
	MsgCd  string `json:"msg_cd"`
	Msg1   string `json:"msg1"`
	Output struct {
		ProductName      string `json:"prdt_name"`      // 상품명
		ProductShortName string `json:"prdt_abrv_name"` // 상품약어명
	} `json:"output"`
}

// usDailyOutput is one bar of overseas dailyprice output2
type usDailyOutput struct {
	TradeDate  string `json:"xymd"` // YYYYMMDD
	ClosePrice string `json:"clos"`
	OpenPrice  string `json:"open"`
	HighPrice  string `json:"high"`
	LowPrice   string `json:"low"`
	Volume     string `json:"tvol"`
}

// usDailyResponse represents overseas-price dailyprice
type usDailyResponse struct {
	RtCd    string          `json:"rt_cd"`
	MsgCd   string          `json:"msg_cd"`
	Msg1    string          `json:"msg1"`
	Output2 []usDailyOutput `json:"output2"`
}

// usPriceDetailResponse represents overseas-price price-detail
type usPriceDetailResponse struct {
	RtCd   string `json:"rt_cd"`
	MsgCd  string `json:"msg_cd"`
	Msg1   string `json:"msg1"`
	Output struct {
		Last      string `json:"last"` // 현재가
		MarketCap string `json:"tomv"` // 시가총액 (USD)
		PER       string `json:"perx"`
		PBR       string `json:"pbrx"`
		EPS       string `json:"epsx"`
		BPS       string `json:"bpsx"`
	} `json:"output"`
}
