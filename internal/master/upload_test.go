package master

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"github.com/wonny/stockhunter/internal/contracts"
)

// masterLine builds one fixed-width record: 6-char code, 40-char name
func masterLine(code, name string) string {
	return fmt.Sprintf("%-6s%-40s%s", code, name, "STANDARD000000000")
}

func TestParseMasterFile(t *testing.T) {
	input := strings.Join([]string{
		masterLine("005930", "삼성전자"),
		masterLine("000660", "SK하이닉스"),
		masterLine("069500", "KODEX 200"),
		masterLine("580011", "신한 인버스 2X WTI원유 선물 ETN"),
	}, "\n")

	stocks, err := ParseMasterFile(strings.NewReader(input), contracts.MarketKOSPI)
	require.NoError(t, err)
	require.Len(t, stocks, 4)

	assert.Equal(t, "005930", stocks[0].Code)
	assert.Equal(t, "삼성전자", stocks[0].Name)
	assert.Equal(t, contracts.MarketKOSPI, stocks[0].Market)
	assert.False(t, stocks[0].IsETF)

	assert.True(t, stocks[2].IsETF, "KODEX 종목은 ETF")
	assert.True(t, stocks[3].IsETN)
	assert.False(t, stocks[3].IsETF)
}

func TestParseMasterFile_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		"garbage",
		masterLine("ABC123", "코드가 숫자가 아님"),
		masterLine("005930", "삼성전자"),
		masterLine("005930", "중복 코드"),
		"", // blank
	}, "\n")

	stocks, err := ParseMasterFile(strings.NewReader(input), contracts.MarketKOSDAQ)
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, "삼성전자", stocks[0].Name)
}

func TestParseMasterFile_DecodesEUCKRNames(t *testing.T) {
	encode := func(s string) string {
		out, _, err := transform.String(korean.EUCKR.NewEncoder(), s)
		require.NoError(t, err)
		return out
	}

	// 이름 필드 마지막 바이트가 2바이트 글자의 앞부분에서 잘린 레코드
	name := encode("삼성전자")
	half := encode("우")[:1]
	field := name + strings.Repeat(" ", 40-len(name)-1) + half
	line := "005930" + field + "STANDARD000000000"

	stocks, err := ParseMasterFile(strings.NewReader(line), contracts.MarketKOSPI)
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, "삼성전자", stocks[0].Name)

	// EUC-KR 이름에서도 ETF 브랜드 토큰 인식
	etf := encode("KODEX 레버리지")
	line = "122630" + etf + strings.Repeat(" ", 40-len(etf)) + "STANDARD000000000"
	stocks, err = ParseMasterFile(strings.NewReader(line), contracts.MarketKOSPI)
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, "KODEX 레버리지", stocks[0].Name)
	assert.True(t, stocks[0].IsETF)
}

func TestMarketFromFilename(t *testing.T) {
	market, err := marketFromFilename("kospi_code.mst")
	require.NoError(t, err)
	assert.Equal(t, contracts.MarketKOSPI, market)

	market, err = marketFromFilename("KOSDAQ_CODE.MST")
	require.NoError(t, err)
	assert.Equal(t, contracts.MarketKOSDAQ, market)

	_, err = marketFromFilename("nasdaq.mst")
	assert.Error(t, err)
}

func TestEmbeddedUniverse(t *testing.T) {
	kospi := embeddedUniverse(contracts.MarketKOSPI)
	require.NotEmpty(t, kospi)
	for _, stock := range kospi {
		assert.Len(t, stock.Code, 6)
		assert.Equal(t, contracts.MarketKOSPI, stock.Market)
		assert.True(t, stock.IsActive)
	}

	kosdaq := embeddedUniverse(contracts.MarketKOSDAQ)
	require.NotEmpty(t, kosdaq)

	// US markets are not in the embedded CSV: builtin fallback covers them
	assert.Empty(t, embeddedUniverse(contracts.MarketNASDAQ))
	assert.NotEmpty(t, builtinUniverse(contracts.MarketNASDAQ))
}
