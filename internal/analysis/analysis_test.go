package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarsten/tickersync/internal/models"
)

// seriesFromCloses builds a flat series where open, high, low, close, and
// adjusted close all equal the given values, dated consecutively from
// 2024-01-01.
func seriesFromCloses(closes ...string) models.Series {
	start, _ := models.ParseDate("2024-01-01")
	s := make(models.Series, len(closes))
	for i, c := range closes {
		s[i] = models.Bar{
			Date:     start.AddDate(0, 0, i),
			Open:     c,
			High:     c,
			Low:      c,
			Close:    c,
			AdjClose: c,
			Volume:   "1000",
			Ticker:   "TEST",
		}
	}
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewAnalyzer(t *testing.T) {
	_, err := NewAnalyzer(models.Series{})
	assert.Error(t, err, "empty series cannot be analyzed")

	a, err := NewAnalyzer(seriesFromCloses("100", "102"))
	require.NoError(t, err)
	assert.Equal(t, 2, a.Len())
	assert.True(t, a.LatestClose().Equal(dec("102")))

	bad := seriesFromCloses("100")
	bad[0].AdjClose = "garbage"
	_, err = NewAnalyzer(bad)
	assert.Error(t, err)
}

func TestReturns(t *testing.T) {
	a, err := NewAnalyzer(seriesFromCloses("100", "110", "99"))
	require.NoError(t, err)

	daily, cumulative := a.Returns()
	require.Len(t, daily, 2)
	require.Len(t, cumulative, 2)

	assert.True(t, daily[0].Value.Equal(dec("0.1")), "100 -> 110 is +10%%, got %s", daily[0].Value)
	assert.True(t, daily[1].Value.Equal(dec("-0.1")), "110 -> 99 is -10%%, got %s", daily[1].Value)

	// 1.1 * 0.9 = 0.99 cumulative growth.
	assert.True(t, cumulative[1].Value.Equal(dec("0.99")), "got %s", cumulative[1].Value)

	// Points carry the date of the later day of each pair.
	start, _ := models.ParseDate("2024-01-01")
	assert.Equal(t, start.AddDate(0, 0, 1), daily[0].Date)
}

func TestMovingAverage(t *testing.T) {
	a, err := NewAnalyzer(seriesFromCloses("1", "2", "3", "4", "5"))
	require.NoError(t, err)

	sma := a.MovingAverage(3)
	require.Len(t, sma, 3)
	assert.True(t, sma[0].Value.Equal(dec("2")), "mean(1,2,3), got %s", sma[0].Value)
	assert.True(t, sma[1].Value.Equal(dec("3")))
	assert.True(t, sma[2].Value.Equal(dec("4")))

	assert.Nil(t, a.MovingAverage(0))
	assert.Nil(t, a.MovingAverage(6), "window larger than series")

	whole := a.MovingAverage(5)
	require.Len(t, whole, 1)
	assert.True(t, whole[0].Value.Equal(dec("3")))
}

func TestBollingerBands(t *testing.T) {
	a, err := NewAnalyzer(seriesFromCloses("2", "4", "6", "8"))
	require.NoError(t, err)

	bands := a.BollingerBands(3, 2)
	require.Len(t, bands, 2)

	// Window (2,4,6): mean 4, sample std 2, so bands at 0 and 8.
	b := bands[0]
	assert.True(t, b.Middle.Equal(dec("4")), "got %s", b.Middle)
	assert.True(t, b.Upper.Sub(dec("8")).Abs().LessThan(dec("0.0001")), "got %s", b.Upper)
	assert.True(t, b.Lower.Abs().LessThan(dec("0.0001")), "got %s", b.Lower)

	assert.Nil(t, a.BollingerBands(1, 2))
	assert.Nil(t, a.BollingerBands(5, 2))
}

func TestBollingerBandsFlatSeries(t *testing.T) {
	a, err := NewAnalyzer(seriesFromCloses("50", "50", "50", "50"))
	require.NoError(t, err)

	bands := a.BollingerBands(3, 2)
	require.NotEmpty(t, bands)
	for _, b := range bands {
		assert.True(t, b.Upper.Equal(b.Lower), "zero variance collapses the bands")
		assert.True(t, b.Middle.Equal(dec("50")))
	}
}

func TestRSI(t *testing.T) {
	t.Run("all gains saturate at 100", func(t *testing.T) {
		a, err := NewAnalyzer(seriesFromCloses("1", "2", "3", "4", "5"))
		require.NoError(t, err)

		rsi := a.RSI(3)
		require.NotEmpty(t, rsi)
		for _, p := range rsi {
			assert.True(t, p.Value.Equal(dec("100")), "got %s", p.Value)
		}
	})

	t.Run("balanced gains and losses sit at 50", func(t *testing.T) {
		a, err := NewAnalyzer(seriesFromCloses("10", "11", "10", "11", "10", "11", "10"))
		require.NoError(t, err)

		rsi := a.RSI(2)
		require.NotEmpty(t, rsi)
		last := rsi[len(rsi)-1]
		assert.True(t, last.Value.Equal(dec("50")), "got %s", last.Value)
	})

	t.Run("window bounds", func(t *testing.T) {
		a, err := NewAnalyzer(seriesFromCloses("1", "2"))
		require.NoError(t, err)
		assert.Nil(t, a.RSI(0))
		assert.Nil(t, a.RSI(2), "window must leave at least one delta")
	})
}

func TestMACD(t *testing.T) {
	closes := make([]string, 40)
	for i := range closes {
		closes[i] = fmt.Sprintf("%d", 100+i)
	}
	a, err := NewAnalyzer(seriesFromCloses(closes...))
	require.NoError(t, err)

	macd, signal := a.MACD(12, 26, 9)
	require.Len(t, macd, 40)
	require.Len(t, signal, 40)

	// A steadily rising series keeps the fast EMA above the slow one.
	last := macd[len(macd)-1]
	assert.True(t, last.Value.IsPositive(), "got %s", last.Value)

	badFast, badSignal := a.MACD(26, 12, 9)
	assert.Nil(t, badFast, "fast span must be below slow span")
	assert.Nil(t, badSignal)
}

func TestATR(t *testing.T) {
	start, _ := models.ParseDate("2024-01-01")
	s := models.Series{}
	for i := 0; i < 5; i++ {
		s = append(s, models.Bar{
			Date:     start.AddDate(0, 0, i),
			Open:     "100",
			High:     "102",
			Low:      "98",
			Close:    "100",
			AdjClose: "100",
			Volume:   "1000",
			Ticker:   "TEST",
		})
	}

	a, err := NewAnalyzer(s)
	require.NoError(t, err)

	atr := a.ATR(3)
	require.NotEmpty(t, atr)
	// Every day's true range is the constant high-low spread of 4.
	for _, p := range atr {
		assert.True(t, p.Value.Equal(dec("4")), "got %s", p.Value)
	}

	assert.Nil(t, a.ATR(5), "window must leave at least one true range")
}

func TestSqrtDecimal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0", "0"},
		{"1", "1"},
		{"4", "2"},
		{"2", "1.41421356237"},
		{"0.25", "0.5"},
	}
	for _, tt := range tests {
		got := sqrtDecimal(dec(tt.in))
		diff := got.Sub(dec(tt.want)).Abs()
		assert.True(t, diff.LessThan(dec("0.0000001")), "sqrt(%s) = %s, want ~%s", tt.in, got, tt.want)
	}

	assert.True(t, sqrtDecimal(dec("-4")).IsZero())
}

func TestPointDatesAscend(t *testing.T) {
	a, err := NewAnalyzer(seriesFromCloses("5", "6", "7", "8", "9", "10"))
	require.NoError(t, err)

	for _, points := range [][]Point{a.MovingAverage(3), a.RSI(2), a.ATR(2)} {
		var prev time.Time
		for _, p := range points {
			assert.True(t, p.Date.After(prev))
			prev = p.Date
		}
	}
}
