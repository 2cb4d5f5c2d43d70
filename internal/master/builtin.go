package master

import "github.com/wonny/stockhunter/internal/contracts"

// Last-resort universe when even the embedded CSV is unusable.
// 대형주 위주 최소 목록
var builtinCodes = map[contracts.Market][]struct{ code, name string }{
	contracts.MarketKOSPI: {
		{"005930", "삼성전자"},
		{"000660", "SK하이닉스"},
		{"005380", "현대차"},
		{"035420", "NAVER"},
		{"051910", "LG화학"},
		{"105560", "KB금융"},
		{"005490", "POSCO홀딩스"},
		{"068270", "셀트리온"},
	},
	contracts.MarketKOSDAQ: {
		{"247540", "에코프로비엠"},
		{"086520", "에코프로"},
		{"293490", "카카오게임즈"},
		{"263750", "펄어비스"},
	},
	contracts.MarketNASDAQ: {
		{"AAPL", "Apple"},
		{"MSFT", "Microsoft"},
		{"NVDA", "NVIDIA"},
		{"GOOGL", "Alphabet"},
		{"AMZN", "Amazon"},
		{"META", "Meta Platforms"},
		{"TSLA", "Tesla"},
	},
	contracts.MarketNYSE: {
		{"BRK-B", "Berkshire Hathaway"},
		{"JPM", "JPMorgan Chase"},
		{"V", "Visa"},
		{"UNH", "UnitedHealth"},
		{"XOM", "Exxon Mobil"},
	},
	contracts.MarketAMEX: {
		{"SPY", "SPDR S&P 500 ETF"},
		{"GLD", "SPDR Gold Shares"},
	},
}

func builtinUniverse(market contracts.Market) []contracts.Stock {
	entries := builtinCodes[market]
	stocks := make([]contracts.Stock, 0, len(entries))
	for _, entry := range entries {
		stocks = append(stocks, contracts.Stock{
			Code:     entry.code,
			Name:     entry.name,
			Market:   market,
			IsETF:    market == contracts.MarketAMEX, // AMEX builtin entries are ETFs
			IsActive: true,
		})
	}
	return stocks
}
