package master

import (
	"bufio"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"github.com/wonny/stockhunter/internal/contracts"
)

// Fixed-width KRX master file layout.
// 레코드: [0:6) 단축코드, [6:46) 한글종목명, 이후 속성 필드
const (
	uploadCodeEnd = 6
	uploadNameEnd = 46
)

var numericCode = regexp.MustCompile(`^\d{6}$`)

// ParseMasterFile parses a fixed-width master file into instruments.
// Malformed lines are skipped, not fatal.
func ParseMasterFile(r io.Reader, market contracts.Market) ([]contracts.Stock, error) {
	var stocks []contracts.Stock
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < uploadNameEnd {
			continue
		}

		code := strings.TrimSpace(line[:uploadCodeEnd])
		if !numericCode.MatchString(code) || seen[code] {
			continue
		}
		name := decodeName(line[uploadCodeEnd:uploadNameEnd])

		seen[code] = true
		stocks = append(stocks, contracts.Stock{
			Code:   code,
			Name:   name,
			Market: market,
			IsETF:  looksLikeETF(name),
			IsETN:  looksLikeETN(name),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return stocks, nil
}

// decodeName converts the raw name field to UTF-8. KRX 원본은 EUC-KR 이라
// 바이트 경계에서 잘린 마지막 글자는 버림
func decodeName(raw string) string {
	if !utf8.ValidString(raw) {
		if decoded, _, err := transform.String(korean.EUCKR.NewDecoder(), raw); err == nil {
			raw = decoded
		}
	}
	name := strings.TrimSpace(raw)
	name = strings.TrimRight(name, string(utf8.RuneError))
	return strings.TrimSpace(name)
}

// looksLikeETF flags names carrying ETF brand tokens
func looksLikeETF(name string) bool {
	for _, token := range []string{"ETF", "KODEX", "TIGER", "KBSTAR", "ARIRANG", "HANARO", "SOL ", "ACE "} {
		if strings.Contains(name, token) {
			return true
		}
	}
	return false
}

func looksLikeETN(name string) bool {
	return strings.Contains(name, "ETN")
}
