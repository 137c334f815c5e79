package detector

import (
	"fmt"
	"math"

	"SignalScan/internal/domain/models"
	domsvc "SignalScan/internal/domain/service"
)

// PatternDetector is a rule based price-action detector. It reports at most
// one pattern per candle over the last Lookback candles.
type PatternDetector struct {
	Lookback    int
	BOSWindow   int
	DojiBodyPct float64
}

func NewPatternDetector() *PatternDetector {
	return &PatternDetector{Lookback: 10, BOSWindow: 20, DojiBodyPct: 0.1}
}

// DetectPatterns returns patterns oldest first.
func (d *PatternDetector) DetectPatterns(s *models.Series) []models.Pattern {
	n := s.Len()
	if n < 2 {
		return nil
	}
	start := n - d.Lookback
	if start < 1 {
		start = 1
	}
	var out []models.Pattern
	for i := start; i < n; i++ {
		if p, ok := d.classify(s.Candles, i); ok {
			out = append(out, p)
		}
	}
	return out
}

func (d *PatternDetector) classify(cs []models.Candle, i int) (models.Pattern, bool) {
	cur, prev := cs[i], cs[i-1]
	body := math.Abs(cur.Close - cur.Open)
	rng := cur.High - cur.Low
	if rng <= 0 {
		return models.Pattern{}, false
	}

	switch {
	case prev.Close < prev.Open && cur.Close > cur.Open &&
		cur.Open <= prev.Close && cur.Close >= prev.Open:
		return pattern(models.PatternEngulfingBullish, i, "Bullish engulfing"), true
	case prev.Close > prev.Open && cur.Close < cur.Open &&
		cur.Open >= prev.Close && cur.Close <= prev.Open:
		return pattern(models.PatternEngulfingBearish, i, "Bearish engulfing"), true
	}

	if d.BOSWindow > 0 && i >= d.BOSWindow {
		hi, lo := cs[i-d.BOSWindow].High, cs[i-d.BOSWindow].Low
		for _, c := range cs[i-d.BOSWindow : i] {
			hi = math.Max(hi, c.High)
			lo = math.Min(lo, c.Low)
		}
		if cur.Close > hi {
			return pattern(models.PatternBOSBullish, i, fmt.Sprintf("Break of structure above %.5f", hi)), true
		}
		if cur.Close < lo {
			return pattern(models.PatternBOSBearish, i, fmt.Sprintf("Break of structure below %.5f", lo)), true
		}
	}

	lowerWick := math.Min(cur.Open, cur.Close) - cur.Low
	if lowerWick >= 2*body && lowerWick >= 0.6*rng {
		return pattern(models.PatternPinBar, i, "Bullish pin bar"), true
	}
	if cur.High < prev.High && cur.Low > prev.Low {
		return pattern(models.PatternInsideBar, i, "Inside bar"), true
	}
	if body <= d.DojiBodyPct*rng {
		return pattern(models.PatternDoji, i, "Doji"), true
	}
	return models.Pattern{}, false
}

func pattern(t models.PatternType, idx int, desc string) models.Pattern {
	return models.Pattern{Type: t, Description: desc, CandleIndex: idx}
}

var _ domsvc.PatternDetector = (*PatternDetector)(nil)
