package master

import (
	"bytes"
	"encoding/csv"
	"io"
	"sync"

	_ "embed"

	"github.com/wonny/stockhunter/internal/contracts"
)

// Fallback universe shipped with the binary, used when the stored master is
// empty and no upload has happened yet. Format: code,name,market[,sector]
//
//go:embed data/stock_master.csv
var embeddedCSV []byte

var (
	embeddedOnce   sync.Once
	embeddedStocks []contracts.Stock
)

func embeddedUniverse(market contracts.Market) []contracts.Stock {
	embeddedOnce.Do(loadEmbedded)

	var out []contracts.Stock
	for _, stock := range embeddedStocks {
		if stock.Market == market {
			out = append(out, stock)
		}
	}
	return out
}

func loadEmbedded() {
	reader := csv.NewReader(bytes.NewReader(embeddedCSV))
	reader.FieldsPerRecord = -1
	for {
		record, err := reader.Read()
		if err == io.EOF || err != nil {
			return
		}
		if len(record) < 3 || record[0] == "code" {
			continue
		}
		stock := contracts.Stock{
			Code:     record[0],
			Name:     record[1],
			Market:   contracts.Market(record[2]),
			IsETF:    looksLikeETF(record[1]),
			IsETN:    looksLikeETN(record[1]),
			IsActive: true,
		}
		if len(record) > 3 {
			stock.Sector = record[3]
		}
		embeddedStocks = append(embeddedStocks, stock)
	}
}
