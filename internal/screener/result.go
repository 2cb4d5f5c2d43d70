package screener

import (
	"time"

	"github.com/wonny/stockhunter/internal/contracts"
)

// Match is one instrument that passed every enabled gate, enriched with the
// indicator values computed during evaluation.
type Match struct {
	Code      string           `json:"code"`
	Name      string           `json:"name"`
	Market    contracts.Market `json:"market"`
	Price     float64          `json:"price"`
	ChangePct float64          `json:"changePct"`
	Volume    uint64           `json:"volume"`

	MA5   *float64 `json:"ma5,omitempty"`
	MA20  *float64 `json:"ma20,omitempty"`
	MA60  *float64 `json:"ma60,omitempty"`
	MA112 *float64 `json:"ma112,omitempty"`
	MA224 *float64 `json:"ma224,omitempty"`

	MA60Ratio  *float64 `json:"ma60Ratio,omitempty"`
	MA112Ratio *float64 `json:"ma112Ratio,omitempty"`
	MA224Ratio *float64 `json:"ma224Ratio,omitempty"`

	BBUpper    *float64 `json:"bbUpper,omitempty"`
	BBMiddle   *float64 `json:"bbMiddle,omitempty"`
	BBLower    *float64 `json:"bbLower,omitempty"`
	BBPosition string   `json:"bbPosition,omitempty"`

	VolumeRatio *float64 `json:"volumeRatio,omitempty"`

	MarketCap *int64   `json:"marketCap,omitempty"`
	PER       *float64 `json:"per,omitempty"`
	PBR       *float64 `json:"pbr,omitempty"`
}

// Result is the immutable outcome of one screening run. Match order follows
// chunk completion, not input order.
type Result struct {
	Matches      []Match   `json:"matches"`
	TotalScanned int       `json:"totalScanned"`
	MatchedCount int       `json:"matchedCount"`
	ExecutionMs  int64     `json:"executionMs"`
	CapturedAt   time.Time `json:"capturedAt"`
	Universe     string    `json:"universe"`
}
