package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	// Newest-first closes
	prices := []float64{110, 108, 106, 104, 102}

	sma, ok := SMA(5, prices)
	require.True(t, ok)
	assert.InDelta(t, 106.0, sma, 1e-9)

	ratio := Ratio(110, sma)
	assert.InDelta(t, 103.77, ratio, 0.01)
}

func TestSMA_Absent(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	// 112-period MA over a 30-bar series has no value
	_, ok := SMA(112, prices)
	assert.False(t, ok)

	_, ok = EMA(112, prices)
	assert.False(t, ok)
}

func TestSMA_ScaleInvariantRatio(t *testing.T) {
	prices := []float64{110, 108, 106, 104, 102}
	scaled := make([]float64, len(prices))
	for i, p := range prices {
		scaled[i] = p * 1000
	}

	ma1, _ := SMA(5, prices)
	ma2, _ := SMA(5, scaled)

	assert.InDelta(t, Ratio(prices[0], ma1), Ratio(scaled[0], ma2), 1e-9)
}

func TestEMA_SeedEqualsSMAWithExactPeriod(t *testing.T) {
	prices := []float64{12, 11, 10, 9, 8}

	ema, ok := EMA(5, prices)
	require.True(t, ok)
	sma, _ := SMA(5, prices)
	assert.InDelta(t, sma, ema, 1e-9)
}

func TestEMA_WalksForward(t *testing.T) {
	// 6 entries, period 3: seed over the oldest 3, then two smoothing steps
	prices := []float64{15, 14, 13, 12, 11, 10}

	ema, ok := EMA(3, prices)
	require.True(t, ok)

	k := 2.0 / 4.0
	want := (10.0 + 11.0 + 12.0) / 3.0
	want = 13*k + want*(1-k)
	want = 14*k + want*(1-k)
	want = 15*k + want*(1-k)
	assert.InDelta(t, want, ema, 1e-9)
}

func TestBollinger(t *testing.T) {
	// 20 closes alternating 105 / 95 → mid 100, population stddev 5
	prices := make([]float64, 20)
	for i := range prices {
		if i%2 == 0 {
			prices[i] = 105
		} else {
			prices[i] = 95
		}
	}

	bands, ok := Bollinger(20, 2.0, prices)
	require.True(t, ok)
	assert.InDelta(t, 100.0, bands.Mid, 1e-9)
	assert.InDelta(t, 5.0, bands.StdDev, 1e-9)
	assert.InDelta(t, 110.0, bands.Upper, 1e-9)
	assert.InDelta(t, 90.0, bands.Lower, 1e-9)

	assert.Equal(t, BandLower, PositionOf(88, bands))
	assert.Equal(t, BandMiddle, PositionOf(97, bands))
	assert.Equal(t, BandUpper, PositionOf(111, bands))
}

func TestBollinger_Absent(t *testing.T) {
	_, ok := Bollinger(20, 2.0, []float64{1, 2, 3})
	assert.False(t, ok)
}

func TestRSI(t *testing.T) {
	t.Run("all gains returns 100", func(t *testing.T) {
		prices := make([]float64, 15)
		for i := range prices {
			prices[i] = float64(115 - i) // monotonically rising toward the present
		}

		rsi, ok := RSI(14, prices)
		require.True(t, ok)
		assert.Equal(t, 100.0, rsi)
	})

	t.Run("balanced moves near 50", func(t *testing.T) {
		prices := make([]float64, 15)
		for i := range prices {
			if i%2 == 0 {
				prices[i] = 101
			} else {
				prices[i] = 100
			}
		}

		rsi, ok := RSI(14, prices)
		require.True(t, ok)
		assert.Greater(t, rsi, 0.0)
		assert.Less(t, rsi, 100.0)
	})

	t.Run("too short", func(t *testing.T) {
		_, ok := RSI(14, make([]float64, 14))
		assert.False(t, ok)
	})
}

func TestMACD(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + float64(60-i)*0.5 // uptrend toward the present
	}

	macd, signal, ok := MACD(prices)
	require.True(t, ok)
	assert.Greater(t, macd, 0.0, "uptrend should give positive MACD")
	assert.Greater(t, signal, 0.0)

	_, _, ok = MACD(make([]float64, 20))
	assert.False(t, ok)
}

func TestAvgVolume(t *testing.T) {
	volumes := []uint64{100, 200, 300, 400}

	avg, ok := AvgVolume(4, volumes)
	require.True(t, ok)
	assert.InDelta(t, 250.0, avg, 1e-9)

	_, ok = AvgVolume(5, volumes)
	assert.False(t, ok)
}

func TestAligned(t *testing.T) {
	assert.True(t, Aligned(110, 105, 100, 95))
	assert.False(t, Aligned(110, 105, 105, 95), "equal neighbours are not aligned")
	assert.False(t, Aligned(95, 100, 105, 110))
}

func TestIchimoku(t *testing.T) {
	n := 60
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 110
		lows[i] = 90
		closes[i] = 100
	}
	highs[0] = 120 // newest high

	v, ok := Ichimoku(highs, lows, closes)
	require.True(t, ok)
	assert.InDelta(t, (120.0+90.0)/2, v.Tenkan, 1e-9)
	assert.InDelta(t, (120.0+90.0)/2, v.Kijun, 1e-9)
	assert.InDelta(t, (v.Tenkan+v.Kijun)/2, v.SpanA, 1e-9)
	assert.InDelta(t, (120.0+90.0)/2, v.SpanB, 1e-9)
	assert.Equal(t, 100.0, v.Chikou)

	_, ok = Ichimoku(highs[:51], lows[:51], closes[:51])
	assert.False(t, ok)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 103.77, Round2(103.7735849))
	assert.Equal(t, -1.23, Round2(-1.2345))
}
