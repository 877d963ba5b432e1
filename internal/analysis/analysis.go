// Package analysis provides derived computations over a cached series:
// returns, moving averages, Bollinger bands, RSI, MACD, and ATR. All
// functions are pure; they hold no state and touch no store.
package analysis

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tkarsten/tickersync/internal/models"
)

// Point is one dated value of a derived indicator.
type Point struct {
	Date  time.Time
	Value decimal.Decimal
}

// Analyzer computes indicators over one ticker's series. Prices are the
// adjusted closes, parsed once at construction.
type Analyzer struct {
	dates  []time.Time
	closes []decimal.Decimal
	highs  []decimal.Decimal
	lows   []decimal.Decimal
}

// NewAnalyzer parses the series' price fields. The series must be sorted.
func NewAnalyzer(s models.Series) (*Analyzer, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("cannot analyze an empty series")
	}

	a := &Analyzer{
		dates:  make([]time.Time, len(s)),
		closes: make([]decimal.Decimal, len(s)),
		highs:  make([]decimal.Decimal, len(s)),
		lows:   make([]decimal.Decimal, len(s)),
	}
	for i := range s {
		adjClose, err := s[i].GetAdjCloseDecimal()
		if err != nil {
			return nil, fmt.Errorf("bar %s: %w", s[i].Date.Format(models.DateLayout), err)
		}
		high, err := s[i].GetHighDecimal()
		if err != nil {
			return nil, fmt.Errorf("bar %s: %w", s[i].Date.Format(models.DateLayout), err)
		}
		low, err := s[i].GetLowDecimal()
		if err != nil {
			return nil, fmt.Errorf("bar %s: %w", s[i].Date.Format(models.DateLayout), err)
		}
		a.dates[i] = s[i].Date
		a.closes[i] = adjClose
		a.highs[i] = high
		a.lows[i] = low
	}
	return a, nil
}

// Len returns the number of observations.
func (a *Analyzer) Len() int {
	return len(a.closes)
}

// LatestClose returns the most recent adjusted close.
func (a *Analyzer) LatestClose() decimal.Decimal {
	return a.closes[len(a.closes)-1]
}

// Returns computes day-over-day percentage returns and the cumulative growth
// factor. The first observation has no prior close, so both slices start at
// the second date.
func (a *Analyzer) Returns() (daily, cumulative []Point) {
	one := decimal.NewFromInt(1)
	cum := one
	for i := 1; i < len(a.closes); i++ {
		if a.closes[i-1].IsZero() {
			continue
		}
		r := a.closes[i].Sub(a.closes[i-1]).Div(a.closes[i-1])
		cum = cum.Mul(one.Add(r))
		daily = append(daily, Point{Date: a.dates[i], Value: r})
		cumulative = append(cumulative, Point{Date: a.dates[i], Value: cum})
	}
	return daily, cumulative
}

// MovingAverage computes the simple moving average over the given window.
// Output starts at the first date with a full window.
func (a *Analyzer) MovingAverage(window int) []Point {
	if window <= 0 || window > len(a.closes) {
		return nil
	}

	n := decimal.NewFromInt(int64(window))
	sum := decimal.Zero
	var out []Point
	for i := range a.closes {
		sum = sum.Add(a.closes[i])
		if i >= window {
			sum = sum.Sub(a.closes[i-window])
		}
		if i >= window-1 {
			out = append(out, Point{Date: a.dates[i], Value: sum.Div(n)})
		}
	}
	return out
}

// Band is one date's Bollinger band values.
type Band struct {
	Date   time.Time
	Upper  decimal.Decimal
	Middle decimal.Decimal
	Lower  decimal.Decimal
}

// BollingerBands computes bands at numStd standard deviations around the
// window-length moving average.
func (a *Analyzer) BollingerBands(window int, numStd int) []Band {
	if window <= 1 || window > len(a.closes) {
		return nil
	}

	n := decimal.NewFromInt(int64(window))
	k := decimal.NewFromInt(int64(numStd))
	var out []Band
	for i := window - 1; i < len(a.closes); i++ {
		win := a.closes[i-window+1 : i+1]

		sum := decimal.Zero
		for _, v := range win {
			sum = sum.Add(v)
		}
		mean := sum.Div(n)

		variance := decimal.Zero
		for _, v := range win {
			d := v.Sub(mean)
			variance = variance.Add(d.Mul(d))
		}
		// Sample variance, matching the usual charting convention.
		std := sqrtDecimal(variance.Div(decimal.NewFromInt(int64(window - 1))))

		spread := std.Mul(k)
		out = append(out, Band{
			Date:   a.dates[i],
			Upper:  mean.Add(spread),
			Middle: mean,
			Lower:  mean.Sub(spread),
		})
	}
	return out
}

// RSI computes the relative strength index over the given window using
// simple moving averages of gains and losses.
func (a *Analyzer) RSI(window int) []Point {
	if window <= 0 || window >= len(a.closes) {
		return nil
	}

	gains := make([]decimal.Decimal, len(a.closes)-1)
	losses := make([]decimal.Decimal, len(a.closes)-1)
	for i := 1; i < len(a.closes); i++ {
		delta := a.closes[i].Sub(a.closes[i-1])
		if delta.IsPositive() {
			gains[i-1] = delta
		} else {
			losses[i-1] = delta.Neg()
		}
	}

	hundred := decimal.NewFromInt(100)
	n := decimal.NewFromInt(int64(window))
	var out []Point
	for i := window - 1; i < len(gains); i++ {
		sumGain, sumLoss := decimal.Zero, decimal.Zero
		for j := i - window + 1; j <= i; j++ {
			sumGain = sumGain.Add(gains[j])
			sumLoss = sumLoss.Add(losses[j])
		}
		avgGain := sumGain.Div(n)
		avgLoss := sumLoss.Div(n)

		var rsi decimal.Decimal
		if avgLoss.IsZero() {
			rsi = hundred
		} else {
			rs := avgGain.Div(avgLoss)
			rsi = hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
		}
		out = append(out, Point{Date: a.dates[i+1], Value: rsi})
	}
	return out
}

// MACD computes the moving average convergence/divergence line and its
// signal line using exponential moving averages.
func (a *Analyzer) MACD(fast, slow, signal int) (macd, signalLine []Point) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(a.closes) == 0 {
		return nil, nil
	}

	emaFast := ema(a.closes, fast)
	emaSlow := ema(a.closes, slow)

	line := make([]decimal.Decimal, len(a.closes))
	for i := range a.closes {
		line[i] = emaFast[i].Sub(emaSlow[i])
	}
	sig := ema(line, signal)

	for i := range a.closes {
		macd = append(macd, Point{Date: a.dates[i], Value: line[i]})
		signalLine = append(signalLine, Point{Date: a.dates[i], Value: sig[i]})
	}
	return macd, signalLine
}

// ATR computes the average true range over the given window.
func (a *Analyzer) ATR(window int) []Point {
	if window <= 0 || window >= len(a.closes) {
		return nil
	}

	trueRanges := make([]decimal.Decimal, len(a.closes)-1)
	for i := 1; i < len(a.closes); i++ {
		hl := a.highs[i].Sub(a.lows[i])
		hc := a.highs[i].Sub(a.closes[i-1]).Abs()
		lc := a.lows[i].Sub(a.closes[i-1]).Abs()
		trueRanges[i-1] = decimal.Max(hl, decimal.Max(hc, lc))
	}

	n := decimal.NewFromInt(int64(window))
	var out []Point
	sum := decimal.Zero
	for i := range trueRanges {
		sum = sum.Add(trueRanges[i])
		if i >= window {
			sum = sum.Sub(trueRanges[i-window])
		}
		if i >= window-1 {
			out = append(out, Point{Date: a.dates[i+1], Value: sum.Div(n)})
		}
	}
	return out
}

// ema computes an exponential moving average with alpha = 2/(span+1),
// seeded with the first value.
func ema(values []decimal.Decimal, span int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	if len(values) == 0 {
		return out
	}

	alpha := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(span + 1)))
	oneMinus := decimal.NewFromInt(1).Sub(alpha)

	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i].Mul(alpha).Add(out[i-1].Mul(oneMinus))
	}
	return out
}

// sqrtDecimal computes a square root via Newton's method, sufficient for
// indicator display precision.
func sqrtDecimal(d decimal.Decimal) decimal.Decimal {
	if d.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	two := decimal.NewFromInt(2)
	x := d
	for i := 0; i < 24; i++ {
		next := x.Add(d.Div(x)).Div(two)
		if next.Sub(x).Abs().LessThan(decimal.New(1, -12)) {
			return next
		}
		x = next
	}
	return x
}
