package master

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/stockhunter/internal/contracts"
)

// sosok query values of the Naver market-sum listing
var naverMarketCode = map[contracts.Market]string{
	contracts.MarketKOSPI:  "0",
	contracts.MarketKOSDAQ: "1",
}

// RefreshFromNaver rebuilds the KR master by scraping the Naver Finance
// market-sum listing pages. Used by the weekly refresh job when no operator
// upload happened within the TTL.
// ⭐ SSOT: Naver 종목 목록 스크랩은 이 함수에서만
func (c *Cache) RefreshFromNaver(ctx context.Context) error {
	for market, sosok := range naverMarketCode {
		stocks, err := c.scrapeMarket(ctx, market, sosok)
		if err != nil {
			return fmt.Errorf("scrape %s listing: %w", market, err)
		}
		if len(stocks) == 0 {
			return fmt.Errorf("scrape %s listing: no instruments found", market)
		}
		if err := c.masters.Refresh(ctx, market, stocks); err != nil {
			return err
		}
	}
	return c.markRefreshed(ctx)
}

func (c *Cache) scrapeMarket(ctx context.Context, market contracts.Market, sosok string) ([]contracts.Stock, error) {
	var stocks []contracts.Stock
	seen := make(map[string]bool)

	// 페이지당 50종목, 시총 하위까지 내려가면 빈 페이지
	for page := 1; page <= 60; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		url := fmt.Sprintf("https://finance.naver.com/sise/sise_market_sum.naver?sosok=%s&page=%d", sosok, page)
		resp, err := c.http.Get(ctx, url)
		if err != nil {
			c.logger.WithError(err).WithField("page", page).Warn("종목 목록 페이지 조회 실패")
			continue
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			c.logger.WithError(err).WithField("page", page).Warn("종목 목록 페이지 파싱 실패")
			continue
		}

		before := len(stocks)
		doc.Find("table.type_2 tr").Each(func(i int, row *goquery.Selection) {
			link := row.Find("td a.tltle")
			href, ok := link.Attr("href")
			if !ok {
				return
			}
			// href: /item/main.naver?code=005930
			idx := strings.Index(href, "code=")
			if idx < 0 {
				return
			}
			code := href[idx+len("code="):]
			if len(code) != 6 || seen[code] {
				return
			}

			name := strings.TrimSpace(link.Text())
			seen[code] = true
			stocks = append(stocks, contracts.Stock{
				Code:   code,
				Name:   name,
				Market: market,
				IsETF:  looksLikeETF(name),
				IsETN:  looksLikeETN(name),
			})
		})

		if len(stocks) == before {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"market": market,
		"count":  len(stocks),
	}).Info("Naver 종목 목록 수집 완료")
	return stocks, nil
}
