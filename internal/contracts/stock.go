package contracts

import "time"

// Market identifies the listing venue of an instrument
type Market string

const (
	MarketKOSPI  Market = "KOSPI"
	MarketKOSDAQ Market = "KOSDAQ"
	MarketNASDAQ Market = "NASDAQ"
	MarketNYSE   Market = "NYSE"
	MarketAMEX   Market = "AMEX"
)

// IsKorean reports whether the market trades in Korean won
func (m Market) IsKorean() bool {
	return m == MarketKOSPI || m == MarketKOSDAQ
}

// Stock represents one listed instrument in the master cache
// ⭐ SSOT: 종목 식별은 (market, code) 쌍으로만
type Stock struct {
	Code     string    `json:"code"` // KR: 6자리 숫자, US: 티커
	Name     string    `json:"name"`
	Market   Market    `json:"market"`
	IsETF    bool      `json:"is_etf"`
	IsETN    bool      `json:"is_etn"`
	IsActive bool      `json:"is_active"`
	Sector   string    `json:"sector,omitempty"`
	Created  time.Time `json:"created_at"`
	Updated  time.Time `json:"updated_at"`
}

// MasterStats summarises the state of the instrument master cache
type MasterStats struct {
	Total       int            `json:"total"`
	PerMarket   map[Market]int `json:"per_market"`
	LastRefresh *time.Time     `json:"last_refresh,omitempty"`
}
