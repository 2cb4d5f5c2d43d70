package market

import (
	"context"
	"time"

	"github.com/wonny/stockhunter/internal/broker/kis"
	"github.com/wonny/stockhunter/internal/contracts"
	"github.com/wonny/stockhunter/internal/master"
)

// NewKR builds the domestic provider over the KIS broker and the master cache.
func NewKR(broker Broker, cache *master.Cache) *Provider {
	markets := []contracts.Market{contracts.MarketKOSPI, contracts.MarketKOSDAQ}

	return &Provider{
		Kind:     KindKR,
		Markets:  markets,
		Currency: "KRW",

		Universe: func(ctx context.Context) ([]contracts.Stock, error) {
			var all []contracts.Stock
			for _, m := range markets {
				stocks, err := cache.Universe(ctx, m)
				if err != nil {
					return nil, err
				}
				all = append(all, stocks...)
			}
			return all, nil
		},
		RecentDaily: func(ctx context.Context, stock contracts.Stock, days int) ([]contracts.DailyBar, error) {
			return broker.RecentDaily(ctx, stock.Code, days)
		},
		RangeDaily: func(ctx context.Context, stock contracts.Stock, start, end time.Time) ([]contracts.DailyBar, error) {
			return broker.PeriodDaily(ctx, stock.Code, start, end)
		},
		Quote: func(ctx context.Context, stock contracts.Stock) (*contracts.Quote, error) {
			return broker.CurrentQuote(ctx, stock.Code)
		},
		Name: func(ctx context.Context, stock contracts.Stock) (string, error) {
			return broker.LookupName(ctx, stock.Code)
		},
		ValidateID: ValidateKRCode,
		LikelyETF:  krLikelyETF,
	}
}

// NewUS builds the overseas provider. The universe is the builtin symbol
// list per exchange; KIS overseas endpoints serve bars and quotes.
func NewUS(broker Broker, cache *master.Cache) *Provider {
	markets := []contracts.Market{contracts.MarketNASDAQ, contracts.MarketNYSE, contracts.MarketAMEX}

	return &Provider{
		Kind:     KindUS,
		Markets:  markets,
		Currency: "USD",

		Universe: func(ctx context.Context) ([]contracts.Stock, error) {
			var all []contracts.Stock
			for _, m := range markets {
				stocks, err := cache.Universe(ctx, m)
				if err != nil {
					return nil, err
				}
				all = append(all, stocks...)
			}
			return all, nil
		},
		RecentDaily: func(ctx context.Context, stock contracts.Stock, days int) ([]contracts.DailyBar, error) {
			return broker.USDaily(ctx, kis.USExchange(stock.Market), stock.Code, time.Time{}, days)
		},
		RangeDaily: func(ctx context.Context, stock contracts.Stock, start, end time.Time) ([]contracts.DailyBar, error) {
			// 해외 일봉은 기간 조회가 없어 구간 끝을 기준일로 거꾸로 받아 구간 필터
			days := int(end.Sub(start).Hours()/24) + 1
			if days > 100 {
				days = 100
			}
			bars, err := broker.USDaily(ctx, kis.USExchange(stock.Market), stock.Code, end, days)
			if err != nil {
				return nil, err
			}
			var out []contracts.DailyBar
			for _, bar := range bars {
				if !bar.TradeDate.Before(start) && !bar.TradeDate.After(end) {
					out = append(out, bar)
				}
			}
			return out, nil
		},
		Quote: func(ctx context.Context, stock contracts.Stock) (*contracts.Quote, error) {
			return broker.USQuote(ctx, kis.USExchange(stock.Market), stock.Code)
		},
		Name: func(ctx context.Context, stock contracts.Stock) (string, error) {
			// 해외 종목명 조회 API 미사용: 마스터 이름 그대로
			return stock.Name, nil
		},
		ValidateID: ValidateUSSymbol,
		LikelyETF:  usLikelyETF,
	}
}
