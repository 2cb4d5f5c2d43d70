// Package indicator implements the technical indicator kernel used by the
// screening engine. Every function is pure: inputs are most-recent-first
// slices of closes/volumes, outputs are (value, ok) where ok is false when
// the input is shorter than the requested period.
package indicator

import "math"

// SMA returns the simple moving average of the first period entries.
func SMA(period int, prices []float64) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	return sum / float64(period), true
}

// EMA returns the exponential moving average with the conventional SMA seed.
// The seed is the arithmetic mean of the oldest period entries of a window of
// up to 2*period bars; smoothing then walks forward toward the newest bar
// with k = 2/(period+1).
func EMA(period int, prices []float64) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}

	window := prices
	if len(window) > 2*period {
		window = window[:2*period]
	}

	// Seed: mean of the oldest `period` entries (tail of the newest-first window)
	seedStart := len(window) - period
	sum := 0.0
	for i := seedStart; i < len(window); i++ {
		sum += window[i]
	}
	ema := sum / float64(period)

	k := 2.0 / (float64(period) + 1.0)
	for i := seedStart - 1; i >= 0; i-- {
		ema = window[i]*k + ema*(1-k)
	}

	return ema, true
}

// Bands holds Bollinger band values for a single point in time.
type Bands struct {
	Mid    float64
	StdDev float64
	Upper  float64
	Lower  float64
}

// Bollinger computes Bollinger bands over the first period entries using the
// population standard deviation.
func Bollinger(period int, multiplier float64, prices []float64) (Bands, bool) {
	mid, ok := SMA(period, prices)
	if !ok {
		return Bands{}, false
	}

	sumSqDiff := 0.0
	for i := 0; i < period; i++ {
		diff := prices[i] - mid
		sumSqDiff += diff * diff
	}
	stdDev := math.Sqrt(sumSqDiff / float64(period))

	return Bands{
		Mid:    mid,
		StdDev: stdDev,
		Upper:  mid + multiplier*stdDev,
		Lower:  mid - multiplier*stdDev,
	}, true
}

// BandPosition locates a price relative to Bollinger bands.
type BandPosition string

const (
	BandUpper  BandPosition = "upper"
	BandMiddle BandPosition = "middle"
	BandLower  BandPosition = "lower"
)

// PositionOf classifies a price against the given bands.
func PositionOf(price float64, b Bands) BandPosition {
	switch {
	case price >= b.Upper:
		return BandUpper
	case price <= b.Lower:
		return BandLower
	default:
		return BandMiddle
	}
}

// RSI computes the classical Wilder RSI over the first period diffs.
// avg_loss == 0 yields 100.
func RSI(period int, prices []float64) (float64, bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}

	sumGain := 0.0
	sumLoss := 0.0
	for i := 0; i < period; i++ {
		change := prices[i] - prices[i+1]
		if change > 0 {
			sumGain += change
		} else {
			sumLoss -= change
		}
	}

	avgGain := sumGain / float64(period)
	avgLoss := sumLoss / float64(period)

	if avgLoss == 0 {
		return 100, true
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

const (
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
)

// MACD computes the MACD(12,26) line and its 9-period EMA signal line.
// With fewer than 26+9 bars the signal falls back to 0.9*macd, which is what
// short histories can support.
func MACD(prices []float64) (macd, signal float64, ok bool) {
	fast, fastOK := EMA(macdFastPeriod, prices)
	slow, slowOK := EMA(macdSlowPeriod, prices)
	if !fastOK || !slowOK {
		return 0, 0, false
	}
	macd = fast - slow

	// Build the MACD series newest-first for as many offsets as history allows
	maxPoints := 2 * macdSignalPeriod
	series := make([]float64, 0, maxPoints)
	for i := 0; i < maxPoints && len(prices)-i >= macdSlowPeriod; i++ {
		f, _ := EMA(macdFastPeriod, prices[i:])
		s, _ := EMA(macdSlowPeriod, prices[i:])
		series = append(series, f-s)
	}

	if sig, sigOK := EMA(macdSignalPeriod, series); sigOK {
		return macd, sig, true
	}
	return macd, macd * 0.9, true
}

// AvgVolume returns the arithmetic mean of the first period volumes.
func AvgVolume(period int, volumes []uint64) (float64, bool) {
	if period <= 0 || len(volumes) < period {
		return 0, false
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += float64(volumes[i])
	}
	return sum / float64(period), true
}

// Aligned reports whether the moving averages are in a strict descending
// arrangement (정배열): each shorter-period MA above the next longer one.
func Aligned(mas ...float64) bool {
	if len(mas) < 2 {
		return false
	}
	for i := 0; i < len(mas)-1; i++ {
		if mas[i] <= mas[i+1] {
			return false
		}
	}
	return true
}

// Ratio expresses price relative to a moving average as a percentage.
func Ratio(price, ma float64) float64 {
	if ma == 0 {
		return 0
	}
	return 100 * price / ma
}

// IchimokuValues holds one snapshot of the Ichimoku cloud components.
type IchimokuValues struct {
	Tenkan float64 // 전환선 (9)
	Kijun  float64 // 기준선 (26)
	SpanA  float64 // 선행스팬1
	SpanB  float64 // 선행스팬2 (52)
	Chikou float64 // 후행스팬 (최근 종가)
}

// Ichimoku computes the cloud components; requires at least 52 bars.
func Ichimoku(highs, lows, closes []float64) (IchimokuValues, bool) {
	if len(highs) < 52 || len(lows) < 52 || len(closes) < 1 {
		return IchimokuValues{}, false
	}

	tenkan := midpoint(highs[:9], lows[:9])
	kijun := midpoint(highs[:26], lows[:26])
	spanB := midpoint(highs[:52], lows[:52])

	return IchimokuValues{
		Tenkan: tenkan,
		Kijun:  kijun,
		SpanA:  (tenkan + kijun) / 2,
		SpanB:  spanB,
		Chikou: closes[0],
	}, true
}

// midpoint returns (max(highs)+min(lows))/2 over the given window
func midpoint(highs, lows []float64) float64 {
	hi := highs[0]
	for _, h := range highs[1:] {
		if h > hi {
			hi = h
		}
	}
	lo := lows[0]
	for _, l := range lows[1:] {
		if l < lo {
			lo = l
		}
	}
	return (hi + lo) / 2
}

// Round2 rounds to two decimal places; used when composing screening results.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
