package detector

import (
	"testing"
	"time"

	"SignalScan/internal/domain/models"
)

func series(cs ...models.Candle) *models.Series {
	t0 := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	for i := range cs {
		cs[i].Time = t0.Add(time.Duration(i) * time.Minute)
	}
	return &models.Series{Symbol: "EURUSD", Timeframe: 1, Candles: cs}
}

func ohlc(o, h, l, c float64) models.Candle {
	return models.Candle{Open: o, High: h, Low: l, Close: c, Volume: 1}
}

func TestBullishEngulfing(t *testing.T) {
	s := series(
		ohlc(1.10, 1.105, 1.095, 1.10),
		ohlc(1.102, 1.103, 1.097, 1.098),
		ohlc(1.097, 1.106, 1.096, 1.105),
	)
	ps := NewPatternDetector().DetectPatterns(s)
	if len(ps) == 0 {
		t.Fatalf("expected a pattern")
	}
	last := ps[len(ps)-1]
	if last.Type != models.PatternEngulfingBullish || last.CandleIndex != 2 {
		t.Fatalf("got %+v", last)
	}
}

func TestPinBarAndDoji(t *testing.T) {
	s := series(
		ohlc(1.0, 1.01, 0.99, 1.0),
		ohlc(1.008, 1.0095, 0.995, 1.009),
		ohlc(1.0, 1.02, 0.98, 1.0005),
	)
	ps := NewPatternDetector().DetectPatterns(s)
	if len(ps) != 2 {
		t.Fatalf("expected 2 patterns, got %+v", ps)
	}
	if ps[0].Type != models.PatternPinBar {
		t.Fatalf("first = %s, want pin_bar", ps[0].Type)
	}
	if ps[1].Type != models.PatternDoji {
		t.Fatalf("second = %s, want doji", ps[1].Type)
	}
}

func TestLevelsFromPivots(t *testing.T) {
	lows := []float64{1.05, 1.04, 1.00, 1.04, 1.05, 1.04, 1.0005, 1.04, 1.05}
	cs := make([]models.Candle, len(lows))
	for i, l := range lows {
		cs[i] = ohlc(l+0.01, l+0.02, l, l+0.01)
	}
	d := NewLevelDetector()
	levels := d.DetectLevels(series(cs...))

	var support *models.Level
	for i := range levels {
		if levels[i].Kind == models.LevelSupport {
			support = &levels[i]
		}
	}
	if support == nil {
		t.Fatalf("expected a support level, got %+v", levels)
	}
	if support.Touches != 2 || support.Strength != 2 {
		t.Fatalf("expected 2 touches, got %+v", support)
	}

	near, lvl := d.IsNearLevel(1.0010, levels)
	if !near || lvl.Kind != models.LevelSupport {
		t.Fatalf("expected near support, got %v %+v", near, lvl)
	}
	if near, _ := d.IsNearLevel(1.2, levels); near {
		t.Fatalf("expected not near")
	}
}
