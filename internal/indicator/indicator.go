// Package indicator computes technical indicators over candle columns.
//
// Every function returns a slice aligned with its input where the first
// values (the warm-up window) are zero. Inputs shorter than the required
// window yield nil or a neutral result; nothing here panics on short data.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Default windows.
const (
	RSIPeriod        = 14
	ATRPeriod        = 14
	BollingerPeriod  = 20
	BollingerK       = 2.0
	MACDFast         = 12
	MACDSlow         = 26
	MACDSignalPeriod = 9
	StochK           = 14
	StochD           = 3
	TrendShort       = 20
	TrendLong        = 50
	VolumePeriod     = 5
	CrossFast        = 9
	CrossSlow        = 21
)

// SMA is the simple moving average.
func SMA(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return nil
	}
	return talib.Sma(values, period)
}

// EMA is the exponential moving average seeded with the SMA of the first window.
func EMA(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return nil
	}
	return talib.Ema(values, period)
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and uses high-low.
func TrueRange(high, low, close []float64) []float64 {
	if len(close) == 0 || len(high) != len(close) || len(low) != len(close) {
		return nil
	}
	tr := talib.TRange(high, low, close)
	tr[0] = high[0] - low[0]
	return tr
}

// ATR is the rolling mean of the true range.
func ATR(high, low, close []float64, period int) []float64 {
	tr := TrueRange(high, low, close)
	if tr == nil {
		return nil
	}
	return SMA(tr, period)
}

// RSI is the Wilder relative strength index.
func RSI(values []float64, period int) []float64 {
	if period < 2 || len(values) <= period {
		return nil
	}
	return talib.Rsi(values, period)
}

// Bands holds Bollinger bands.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger returns SMA(period) ± k·stddev(period).
func Bollinger(values []float64, period int, k float64) Bands {
	if period < 2 || len(values) < period {
		return Bands{}
	}
	up, mid, low := talib.BBands(values, period, k, k, talib.SMA)
	return Bands{Upper: up, Middle: mid, Lower: low}
}

// MACDResult holds the MACD line, its signal line and the histogram.
type MACDResult struct {
	MACD   []float64
	Signal []float64
	Hist   []float64
}

// MACD needs at least slow+signal bars.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	if fast < 1 || slow <= fast || signal < 1 || len(values) < slow+signal {
		return MACDResult{}
	}
	m, s, h := talib.Macd(values, fast, slow, signal)
	return MACDResult{MACD: m, Signal: s, Hist: h}
}

// StochasticResult holds %K and %D.
type StochasticResult struct {
	K []float64
	D []float64
}

// Stochastic computes %K = 100·(close−lowestLow)/(highestHigh−lowestLow)
// over kPeriod and %D = SMA(dPeriod) of %K. A flat window gives %K 50.
func Stochastic(high, low, close []float64, kPeriod, dPeriod int) StochasticResult {
	n := len(close)
	if kPeriod < 2 || dPeriod < 1 || len(high) != n || len(low) != n || n < kPeriod+dPeriod-1 {
		return StochasticResult{}
	}
	hh := talib.Max(high, kPeriod)
	ll := talib.Min(low, kPeriod)
	k := make([]float64, n)
	for i := kPeriod - 1; i < n; i++ {
		rng := hh[i] - ll[i]
		if rng == 0 {
			k[i] = 50
			continue
		}
		k[i] = 100 * (close[i] - ll[i]) / rng
	}
	d := make([]float64, n)
	smoothed := talib.Sma(k[kPeriod-1:], dPeriod)
	copy(d[kPeriod-1:], smoothed)
	return StochasticResult{K: k, D: d}
}

// Trend is a coarse trend classification.
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// DetectTrend compares a short and a long EMA. Bullish needs short above
// long with both rising over the last two samples; bearish is the mirror.
func DetectTrend(closes []float64, short, long int) Trend {
	n := len(closes)
	if short < 1 || long < short || n < long+2 {
		return TrendNeutral
	}
	s := EMA(closes, short)
	l := EMA(closes, long)
	sNow, sPrev := s[n-1], s[n-3]
	lNow, lPrev := l[n-1], l[n-3]
	switch {
	case sNow > lNow && sNow > sPrev && lNow > lPrev:
		return TrendBullish
	case sNow < lNow && sNow < sPrev && lNow < lPrev:
		return TrendBearish
	default:
		return TrendNeutral
	}
}

// IsHighVolatility reports whether the current ATR exceeds threshold times
// the mean of the last period ATR values. It needs 2·period bars.
func IsHighVolatility(high, low, close []float64, period int, threshold float64) bool {
	n := len(close)
	if period < 1 || n < 2*period {
		return false
	}
	atr := ATR(high, low, close, period)
	if atr == nil {
		return false
	}
	avg := Mean(atr[n-period:])
	return avg > 0 && atr[n-1] > avg*threshold
}

// VolumeIncreasing reports Mean(last period) > Mean(prior period)·1.2.
func VolumeIncreasing(volumes []float64, period int) bool {
	last, prior, ok := volumeWindows(volumes, period)
	return ok && last > prior*1.2
}

// VolumeDecreasing reports Mean(last period) < Mean(prior period)·0.8.
func VolumeDecreasing(volumes []float64, period int) bool {
	last, prior, ok := volumeWindows(volumes, period)
	return ok && last < prior*0.8
}

func volumeWindows(volumes []float64, period int) (float64, float64, bool) {
	n := len(volumes)
	if period < 1 || n < 2*period {
		return 0, 0, false
	}
	return Mean(volumes[n-period:]), Mean(volumes[n-2*period : n-period]), true
}

// Crossover classifies the fast/slow SMA relationship.
type Crossover string

const (
	CrossBullish   Crossover = "bullish_cross"
	CrossBearish   Crossover = "bearish_cross"
	AlignedBullish Crossover = "bullish_aligned"
	AlignedBearish Crossover = "bearish_aligned"
	CrossNone      Crossover = "none"
)

// MACrossover compares fast and slow SMAs on the current and previous bar.
func MACrossover(closes []float64, fast, slow int) Crossover {
	n := len(closes)
	if fast < 1 || slow <= fast || n < slow+1 {
		return CrossNone
	}
	f := SMA(closes, fast)
	s := SMA(closes, slow)
	fNow, fPrev := f[n-1], f[n-2]
	sNow, sPrev := s[n-1], s[n-2]
	switch {
	case fPrev <= sPrev && fNow > sNow:
		return CrossBullish
	case fPrev >= sPrev && fNow < sNow:
		return CrossBearish
	case fNow > sNow:
		return AlignedBullish
	case fNow < sNow:
		return AlignedBearish
	default:
		return CrossNone
	}
}

// Last returns the final value of a series.
func Last(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	v := values[len(values)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
