package indicator

import (
	"math"
	"testing"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{0, 0, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		assertClose(t, "sma", got[i], want[i], 1e-9)
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	got := EMA([]float64{1, 2, 3, 4, 5}, 3)
	assertClose(t, "ema[2]", got[2], 2, 1e-9)
	assertClose(t, "ema[3]", got[3], 3, 1e-9)
	assertClose(t, "ema[4]", got[4], 4, 1e-9)
}

func TestShortInputsAreNeutral(t *testing.T) {
	short := []float64{1, 2, 3}
	if SMA(short, 5) != nil || EMA(short, 5) != nil || RSI(short, 14) != nil {
		t.Fatalf("expected nil for short input")
	}
	if ATR(short, short, short, 14) != nil {
		t.Fatalf("expected nil atr")
	}
	if b := Bollinger(short, 20, 2); b.Middle != nil {
		t.Fatalf("expected empty bands")
	}
	if m := MACD(short, 12, 26, 9); m.MACD != nil {
		t.Fatalf("expected empty macd")
	}
	if s := Stochastic(short, short, short, 14, 3); s.K != nil {
		t.Fatalf("expected empty stochastic")
	}
	if DetectTrend(short, 20, 50) != TrendNeutral {
		t.Fatalf("expected neutral trend")
	}
	if IsHighVolatility(short, short, short, 14, 2) {
		t.Fatalf("expected no volatility flag")
	}
	if VolumeIncreasing(short, 5) || VolumeDecreasing(short, 5) {
		t.Fatalf("expected no volume flag")
	}
	if MACrossover(short, 9, 21) != CrossNone {
		t.Fatalf("expected none")
	}
}

func TestATRIsRollingMeanOfTrueRange(t *testing.T) {
	high := []float64{2, 3, 4}
	low := []float64{1, 1, 2}
	cl := []float64{1.5, 2, 3}
	tr := TrueRange(high, low, cl)
	assertClose(t, "tr[0]", tr[0], 1, 1e-9)
	assertClose(t, "tr[1]", tr[1], 2, 1e-9)
	assertClose(t, "tr[2]", tr[2], 2, 1e-9)
	atr := ATR(high, low, cl, 2)
	assertClose(t, "atr[1]", atr[1], 1.5, 1e-9)
	assertClose(t, "atr[2]", atr[2], 2, 1e-9)
}

func TestRSIExtremes(t *testing.T) {
	up := RSI(ramp(20, 1, 1), 14)
	assertClose(t, "rsi rising", up[len(up)-1], 100, 1e-9)
	down := RSI(ramp(20, 100, -1), 14)
	assertClose(t, "rsi falling", down[len(down)-1], 0, 1e-9)
}

func TestBollingerFlatSeries(t *testing.T) {
	b := Bollinger(constant(25, 10), 20, 2)
	n := len(b.Middle)
	assertClose(t, "upper", b.Upper[n-1], 10, 1e-9)
	assertClose(t, "middle", b.Middle[n-1], 10, 1e-9)
	assertClose(t, "lower", b.Lower[n-1], 10, 1e-9)
}

func TestMACDRisingSeriesIsPositive(t *testing.T) {
	m := MACD(ramp(60, 1, 0.5), 12, 26, 9)
	v, ok := Last(m.MACD)
	if !ok || v <= 0 {
		t.Fatalf("expected positive macd, got %v", v)
	}
}

func TestStochasticAtHigh(t *testing.T) {
	cl := ramp(20, 10, 1)
	high := cl
	low := ramp(20, 9, 1)
	s := Stochastic(high, low, cl, 14, 3)
	assertClose(t, "k", s.K[19], 100, 1e-9)
	assertClose(t, "d", s.D[19], 100, 1e-9)
}

func TestDetectTrend(t *testing.T) {
	if got := DetectTrend(ramp(60, 1, 1), 20, 50); got != TrendBullish {
		t.Fatalf("rising: got %s", got)
	}
	if got := DetectTrend(ramp(60, 100, -1), 20, 50); got != TrendBearish {
		t.Fatalf("falling: got %s", got)
	}
	if got := DetectTrend(constant(60, 5), 20, 50); got != TrendNeutral {
		t.Fatalf("flat: got %s", got)
	}
}

func TestIsHighVolatility(t *testing.T) {
	n := 28
	cl := constant(n, 100)
	high := constant(n, 100.5)
	low := constant(n, 99.5)
	high[n-1] = 105
	low[n-1] = 95
	if !IsHighVolatility(high, low, cl, 14, 1.5) {
		t.Fatalf("expected high volatility at 1.5x")
	}
	if IsHighVolatility(high, low, cl, 14, 2.0) {
		t.Fatalf("expected normal volatility at 2.0x")
	}
}

func TestVolumeTrend(t *testing.T) {
	vol := []float64{1, 1, 1, 1, 1, 2, 2, 2, 2, 2}
	if !VolumeIncreasing(vol, 5) || VolumeDecreasing(vol, 5) {
		t.Fatalf("expected increasing volume")
	}
	rev := []float64{2, 2, 2, 2, 2, 1, 1, 1, 1, 1}
	if VolumeIncreasing(rev, 5) || !VolumeDecreasing(rev, 5) {
		t.Fatalf("expected decreasing volume")
	}
	flat := constant(10, 3)
	if VolumeIncreasing(flat, 5) || VolumeDecreasing(flat, 5) {
		t.Fatalf("expected no volume change")
	}
}

func TestMACrossover(t *testing.T) {
	up := append(constant(21, 10), 20)
	if got := MACrossover(up, 9, 21); got != CrossBullish {
		t.Fatalf("got %s, want bullish_cross", got)
	}
	down := append(constant(21, 10), 0)
	if got := MACrossover(down, 9, 21); got != CrossBearish {
		t.Fatalf("got %s, want bearish_cross", got)
	}
	if got := MACrossover(ramp(40, 1, 1), 9, 21); got != AlignedBullish {
		t.Fatalf("got %s, want bullish_aligned", got)
	}
	if got := MACrossover(ramp(40, 100, -1), 9, 21); got != AlignedBearish {
		t.Fatalf("got %s, want bearish_aligned", got)
	}
	if got := MACrossover(constant(40, 1), 9, 21); got != CrossNone {
		t.Fatalf("got %s, want none", got)
	}
}
