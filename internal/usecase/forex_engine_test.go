package usecase

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"

	"SignalScan/internal/domain/models"
)

// buySetup has a resistance pivot at 1.13, a support pivot at 1.095 and
// ends on a 10 bar rally to 1.104.
func buySetup() []float64 {
	closes := make([]float64, 0, 40)
	for i := 0; i < 10; i++ {
		closes = append(closes, 1.1)
	}
	closes = append(closes, 1.1, 1.11, 1.13, 1.11, 1.1)
	for i := 0; i < 10; i++ {
		closes = append(closes, 1.1)
	}
	closes = append(closes, 1.099, 1.097, 1.095, 1.097, 1.099)
	for k := 0; k < 10; k++ {
		closes = append(closes, 1.0995+0.0005*float64(k))
	}
	return closes
}

func envelope(closes []float64, pad float64) (high, low []float64) {
	high = make([]float64, len(closes))
	low = make([]float64, len(closes))
	for i, c := range closes {
		high[i] = c + pad
		low[i] = c - pad
	}
	return high, low
}

func assertClose(t *testing.T, got, want, tol float64, what string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s: got %v, want %v", what, got, want)
	}
}

func TestClusterLevelsKeepsFirstOfEachRun(t *testing.T) {
	got := ClusterLevels([]float64{1.0012, 1.0, 1.0006, 1.0003, 1.0013}, 0.0005)
	want := []float64{1.0, 1.0006, 1.0012}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		assertClose(t, got[i], want[i], 1e-12, "level")
	}
	for i := 1; i < len(got); i++ {
		if got[i]-got[i-1] <= 0.0005 {
			t.Fatalf("levels %v and %v closer than threshold", got[i-1], got[i])
		}
	}
	if ClusterLevels(nil, 0.0005) != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestPivotLevels(t *testing.T) {
	s, r := PivotLevels(buySetup())
	if len(s) != 1 || len(r) != 1 {
		t.Fatalf("supports %v resistances %v", s, r)
	}
	assertClose(t, s[0], 1.095, 1e-12, "support")
	assertClose(t, r[0], 1.13, 1e-12, "resistance")
}

func TestForexTrendAndATR(t *testing.T) {
	closes := buySetup()
	if got := ForexTrend(closes); got != models.TrendUp {
		t.Fatalf("trend = %s", got)
	}
	if got := ForexTrend(closes[:19]); got != models.TrendSideways {
		t.Fatalf("short series trend = %s", got)
	}
	h, l := envelope(closes, 0.0002)
	assertClose(t, ForexATR(h, l, closes), 0.0158/14, 1e-9, "atr")
	if ForexATR(h[:14], l[:14], closes[:14]) != 0 {
		t.Fatalf("expected 0 atr below 15 bars")
	}
}

func TestGenerateSignalBuy(t *testing.T) {
	closes := buySetup()
	h, l := envelope(closes, 0.0002)
	e := NewForexEngine(nil, nil)

	a := e.AnalyzePair("EURUSD", h, l, closes, "M15", 1.5)
	if len(a.Signals) != 1 {
		t.Fatalf("expected one signal, got %d (%s)", len(a.Signals), a.Recommendation)
	}
	sig := a.Signals[0]
	if sig.Direction != models.DirectionBuy || sig.Pattern != "Support Bounce" {
		t.Fatalf("unexpected signal %+v", sig)
	}
	assertClose(t, sig.TakeProfit, 1.13, 1e-12, "take profit")
	assertClose(t, sig.StopLoss, 1.095-1.5*0.0158/14, 1e-9, "stop loss")
	assertClose(t, sig.RiskRewardRatio, 2.43, 1e-9, "rr")
	assertClose(t, sig.PipsTarget, 260.0, 0.05, "pips target")
	assertClose(t, sig.PipsStop, 106.9, 0.05, "pips stop")
	if sig.Confidence != 75 {
		t.Fatalf("confidence = %v", sig.Confidence)
	}
	if sig.Confluences[0] != "Uptrend" || !strings.HasPrefix(sig.Confluences[2], "ATR: ") {
		t.Fatalf("confluences = %v", sig.Confluences)
	}
	if a.Recommendation != "Wait for pullback to 1.09500 for BUY" {
		t.Fatalf("recommendation = %q", a.Recommendation)
	}
}

func TestGenerateSignalSellMirrorsBuy(t *testing.T) {
	buy := buySetup()
	closes := make([]float64, len(buy))
	for i, c := range buy {
		closes[i] = 2.2 - c
	}
	h, l := envelope(closes, 0.0002)

	a := NewForexEngine(nil, nil).AnalyzePair("EURUSD", h, l, closes, "H1", 1.5)
	if a.Trend != models.TrendDown || len(a.Signals) != 1 {
		t.Fatalf("trend %s signals %d", a.Trend, len(a.Signals))
	}
	sig := a.Signals[0]
	if sig.Direction != models.DirectionSell {
		t.Fatalf("direction = %s", sig.Direction)
	}
	if !(sig.TakeProfit < sig.EntryPrice && sig.EntryPrice < sig.StopLoss) {
		t.Fatalf("levels out of order: %+v", sig)
	}
	assertClose(t, sig.RiskRewardRatio, 2.43, 1e-9, "rr")
}

func TestGenerateSignalRespectsMinRiskReward(t *testing.T) {
	closes := buySetup()
	h, l := envelope(closes, 0.0002)
	e := NewForexEngine(nil, nil)
	for _, minRR := range []float64{1.0, 1.5, 2.0, 2.4, 2.5, 3.0} {
		sig := e.GenerateSignal("EURUSD", closes[len(closes)-1], h, l, closes, "M15", minRR)
		if minRR > 2.44 {
			if sig != nil {
				t.Fatalf("minRR %.2f: expected no signal, got rr %.2f", minRR, sig.RiskRewardRatio)
			}
			continue
		}
		if sig == nil {
			t.Fatalf("minRR %.2f: expected signal", minRR)
		}
		risk := sig.EntryPrice - sig.StopLoss
		reward := sig.TakeProfit - sig.EntryPrice
		if risk <= 0 || reward <= 0 || reward/risk < minRR {
			t.Fatalf("minRR %.2f: risk %v reward %v", minRR, risk, reward)
		}
	}
}

// targetlessSetup is buySetup with the resistance pivot lowered to 1.101,
// below the final close, so no organic target exists above entry.
func targetlessSetup() []float64 {
	closes := buySetup()
	copy(closes[10:15], []float64{1.1, 1.1005, 1.101, 1.1005, 1.1})
	return closes
}

func TestGenerateSignalFallbackTargetMeetsRatio(t *testing.T) {
	closes := targetlessSetup()
	h, l := envelope(closes, 0.0002)
	e := NewForexEngine(nil, nil)
	price := closes[len(closes)-1]

	cases := []struct {
		minRR, want float64
	}{
		{1.5, 1.5},
		{1.503, 1.51},
		{2.0, 2.0},
		{1.999, 2.0},
	}
	for _, tc := range cases {
		sig := e.GenerateSignal("EURUSD", price, h, l, closes, "M15", tc.minRR)
		if sig == nil {
			t.Fatalf("minRR %v: expected a signal on the fallback target", tc.minRR)
		}
		if sig.RiskRewardRatio != tc.want || sig.RiskRewardRatio < tc.minRR {
			t.Fatalf("minRR %v: rr = %v, want %v", tc.minRR, sig.RiskRewardRatio, tc.want)
		}
	}
}

func TestGenerateSignalRatioOnRandomWalks(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	e := NewForexEngine(nil, nil)
	emitted := 0
	for trial := 0; trial < 400; trial++ {
		closes := make([]float64, 80)
		closes[0] = 1.1
		for i := 1; i < len(closes); i++ {
			closes[i] = closes[i-1] + 0.001*rng.NormFloat64()
		}
		h, l := envelope(closes, 0.0003)
		price := closes[len(closes)-1]

		for _, minRR := range []float64{1.0, 1.5, 1.503, 2.25} {
			sig := e.GenerateSignal("EURUSD", price, h, l, closes, "H1", minRR)
			if sig == nil {
				continue
			}
			emitted++
			risk := math.Abs(sig.EntryPrice - sig.StopLoss)
			reward := math.Abs(sig.TakeProfit - sig.EntryPrice)
			if risk <= 0 || reward <= 0 {
				t.Fatalf("trial %d minRR %v: risk %v reward %v", trial, minRR, risk, reward)
			}
			if sig.RiskRewardRatio < minRR {
				t.Fatalf("trial %d: rr %v below minimum %v", trial, sig.RiskRewardRatio, minRR)
			}
			if reward/risk+1e-9 < sig.RiskRewardRatio {
				t.Fatalf("trial %d: reported rr %v exceeds actual %v", trial, sig.RiskRewardRatio, reward/risk)
			}
		}
	}
	if emitted == 0 {
		t.Fatalf("no signals emitted over the random walks")
	}
}

func TestMonotonicRampUsesSyntheticLevels(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 0.1*float64(i)
	}
	h, l := envelope(closes, 0.05)

	s, r := PivotLevels(closes)
	if len(s) != 0 || len(r) != 0 {
		t.Fatalf("ramp should have no pivots, got %v %v", s, r)
	}
	synthS, synthR := SyntheticLevels(closes[59])
	assertClose(t, synthS[0], closes[59]*0.998, 1e-9, "support 0")
	assertClose(t, synthR[2], closes[59]*1.008, 1e-9, "resistance 2")

	a := NewForexEngine(nil, nil).AnalyzePair("EURUSD", h, l, closes, "M15", 1.5)
	if a.Trend != models.TrendUp {
		t.Fatalf("trend = %s", a.Trend)
	}
	// A synthetic target 0.2% away never covers a stop beyond the 0.2% support.
	if len(a.Signals) != 0 || a.Recommendation != "No clear setup" {
		t.Fatalf("expected no setup, got %d signals %q", len(a.Signals), a.Recommendation)
	}
}

func TestAnalyzePairEmptyInput(t *testing.T) {
	a := NewForexEngine(nil, nil).AnalyzePair("EURUSD", nil, nil, nil, "M15", 1.5)
	if a.CurrentPrice != 0 || len(a.Signals) != 0 || a.Trend != models.TrendSideways {
		t.Fatalf("unexpected analysis %+v", a)
	}
}

func TestPipValueAndCatalog(t *testing.T) {
	if PipValue("USDJPY") != 0.01 || PipValue("EURUSD") != 0.0001 {
		t.Fatalf("unexpected pip values")
	}
	if n := len(AvailablePairs(true)); n != 7 {
		t.Fatalf("majors = %d", n)
	}
	if n := len(AvailablePairs(false)); n != 12 {
		t.Fatalf("catalog = %d", n)
	}
	if len(ForexSymbols) != 28 {
		t.Fatalf("symbols = %d", len(ForexSymbols))
	}
}

type staticSeries map[string][]float64

func (s staticSeries) GetSeries(_ context.Context, symbol string, timeframe, _ int) (*models.Series, error) {
	closes, ok := s[symbol]
	if !ok {
		closes = make([]float64, 60)
		for i := range closes {
			closes[i] = 1 + 0.001*float64(i)
		}
	}
	h, l := envelope(closes, 0.0002)
	out := &models.Series{Symbol: symbol, Timeframe: timeframe}
	for i, c := range closes {
		out.Candles = append(out.Candles, models.Candle{Open: c, High: h[i], Low: l[i], Close: c})
	}
	return out, nil
}

func TestForexScan(t *testing.T) {
	e := NewForexEngine(staticSeries{"EURUSD": buySetup()}, nil)
	got, err := e.ForexScan(context.Background(), models.ForexScanConfig{
		Pairs:      []string{"eurusd", "GBPUSD", "XAUUSD"},
		Timeframes: []string{"M15"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Pair != "EURUSD" {
		t.Fatalf("expected only EURUSD, got %+v", got)
	}

	if _, err := e.ForexScan(context.Background(), models.ForexScanConfig{MinRiskReward: 0.5}); err == nil {
		t.Fatalf("expected validation error")
	}
}
