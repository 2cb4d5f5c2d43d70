package market

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wonny/stockhunter/internal/contracts"
)

// Kind names a provider family
type Kind string

const (
	KindKR Kind = "KR"
	KindUS Kind = "US"
)

// Broker is the slice of the KIS client the providers need.
// 테스트에서 fake 로 대체
type Broker interface {
	RecentDaily(ctx context.Context, code string, days int) ([]contracts.DailyBar, error)
	PeriodDaily(ctx context.Context, code string, start, end time.Time) ([]contracts.DailyBar, error)
	CurrentQuote(ctx context.Context, code string) (*contracts.Quote, error)
	LookupName(ctx context.Context, code string) (string, error)
	USDaily(ctx context.Context, exchange, symbol string, base time.Time, days int) ([]contracts.DailyBar, error)
	USQuote(ctx context.Context, exchange, symbol string) (*contracts.Quote, error)
}

// Provider is the capability record of one market family: how to list the
// universe, fetch bars and quotes, resolve names, validate identifiers and
// spot ETFs. Collector and screener only talk to this record.
type Provider struct {
	Kind     Kind
	Markets  []contracts.Market
	Currency string // KRW | USD

	Universe    func(ctx context.Context) ([]contracts.Stock, error)
	RecentDaily func(ctx context.Context, stock contracts.Stock, days int) ([]contracts.DailyBar, error)
	RangeDaily  func(ctx context.Context, stock contracts.Stock, start, end time.Time) ([]contracts.DailyBar, error)
	Quote       func(ctx context.Context, stock contracts.Stock) (*contracts.Quote, error)
	Name        func(ctx context.Context, stock contracts.Stock) (string, error)
	ValidateID  func(code string) error
	LikelyETF   func(stock contracts.Stock) bool
}

// Contains reports whether the provider covers market
func (p *Provider) Contains(market contracts.Market) bool {
	for _, m := range p.Markets {
		if m == market {
			return true
		}
	}
	return false
}

var (
	krCodePattern  = regexp.MustCompile(`^\d{6}$`)
	usCodePattern  = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)
	krETFTokens    = []string{"ETF", "ETN", "KODEX", "TIGER", "KBSTAR", "ARIRANG", "HANARO", "레버리지", "인버스", "선물"}
	usETFSymbols   = map[string]bool{"QQQ": true, "SPY": true, "DIA": true, "IWM": true, "EEM": true, "GLD": true, "SLV": true, "VOO": true, "VTI": true, "TQQQ": true, "SQQQ": true, "SOXL": true, "SOXS": true}
	usETFNameHints = []string{"ETF", "Trust", "Shares", "Fund"}
)

// ValidateKRCode checks the 6-digit domestic identifier form
func ValidateKRCode(code string) error {
	if !krCodePattern.MatchString(code) {
		return fmt.Errorf("invalid KR stock code %q: must be 6 digits", code)
	}
	return nil
}

// ValidateUSSymbol checks the US ticker form
func ValidateUSSymbol(symbol string) error {
	if !usCodePattern.MatchString(symbol) {
		return fmt.Errorf("invalid US symbol %q", symbol)
	}
	return nil
}

func krLikelyETF(stock contracts.Stock) bool {
	if stock.IsETF || stock.IsETN {
		return true
	}
	upper := strings.ToUpper(stock.Name)
	for _, token := range krETFTokens {
		if strings.Contains(upper, strings.ToUpper(token)) {
			return true
		}
	}
	return false
}

func usLikelyETF(stock contracts.Stock) bool {
	if stock.IsETF || usETFSymbols[stock.Code] {
		return true
	}
	for _, hint := range usETFNameHints {
		if strings.Contains(stock.Name, hint) {
			return true
		}
	}
	return false
}
