package contracts

import "time"

// DailyBar is one day of OHLCV data for an instrument.
// Identity is (stock code, trade date); duplicates overwrite on upsert.
type DailyBar struct {
	Code      string    `json:"code"`
	TradeDate time.Time `json:"trade_date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    uint64    `json:"volume"`
}

// Quote is a point-in-time snapshot with fundamentals, fetched from the
// broker when a screening condition gates on them. Nullable fields stay nil
// when the broker omits them.
type Quote struct {
	Code      string   `json:"code"`
	Price     float64  `json:"price"`
	MarketCap *int64   `json:"market_cap,omitempty"` // 원 단위
	PER       *float64 `json:"per,omitempty"`
	PBR       *float64 `json:"pbr,omitempty"`
	EPS       *float64 `json:"eps,omitempty"`
	BPS       *float64 `json:"bps,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// StoreStats summarises the state of the price store
type StoreStats struct {
	InstrumentCount int        `json:"instrument_count"`
	BarCount        int64      `json:"bar_count"`
	OldestDate      *time.Time `json:"oldest_date,omitempty"`
	NewestDate      *time.Time `json:"newest_date,omitempty"`
	LastFullInit    string     `json:"last_full_init,omitempty"`
	LastDailyUpdate string     `json:"last_daily_update,omitempty"`
}
