package detector

import (
	"math"
	"sort"

	"SignalScan/internal/domain/models"
	domsvc "SignalScan/internal/domain/service"
)

// LevelDetector finds support/resistance from 5-point pivots and groups
// nearby pivots into levels whose strength is the touch count capped at 5.
type LevelDetector struct {
	Lookback   int
	ClusterPct float64 // pivot grouping tolerance, fraction of price
	NearPct    float64 // IsNearLevel tolerance, fraction of price
}

func NewLevelDetector() *LevelDetector {
	return &LevelDetector{Lookback: 100, ClusterPct: 0.001, NearPct: 0.0015}
}

func (d *LevelDetector) DetectLevels(s *models.Series) []models.Level {
	cs := s.Candles
	if len(cs) > d.Lookback {
		cs = cs[len(cs)-d.Lookback:]
	}
	var lows, highs []float64
	for i := 2; i < len(cs)-2; i++ {
		if isPivotLow(cs, i) {
			lows = append(lows, cs[i].Low)
		}
		if isPivotHigh(cs, i) {
			highs = append(highs, cs[i].High)
		}
	}
	out := d.group(lows, models.LevelSupport)
	return append(out, d.group(highs, models.LevelResistance)...)
}

// IsNearLevel picks the closest level within NearPct of price.
func (d *LevelDetector) IsNearLevel(price float64, levels []models.Level) (bool, *models.Level) {
	var best *models.Level
	bestDist := math.Inf(1)
	for i := range levels {
		dist := math.Abs(levels[i].Price - price)
		if dist <= price*d.NearPct && dist < bestDist {
			best = &levels[i]
			bestDist = dist
		}
	}
	return best != nil, best
}

func (d *LevelDetector) group(prices []float64, kind models.LevelKind) []models.Level {
	if len(prices) == 0 {
		return nil
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	var out []models.Level
	sum, count := sorted[0], 1
	anchor := sorted[0]
	flush := func() {
		strength := count
		if strength > 5 {
			strength = 5
		}
		out = append(out, models.Level{Price: sum / float64(count), Kind: kind, Strength: strength, Touches: count})
	}
	for _, p := range sorted[1:] {
		if p-anchor <= anchor*d.ClusterPct {
			sum += p
			count++
			continue
		}
		flush()
		sum, count, anchor = p, 1, p
	}
	flush()
	return out
}

func isPivotLow(cs []models.Candle, i int) bool {
	l := cs[i].Low
	return l < cs[i-1].Low && l < cs[i-2].Low && l < cs[i+1].Low && l < cs[i+2].Low
}

func isPivotHigh(cs []models.Candle, i int) bool {
	h := cs[i].High
	return h > cs[i-1].High && h > cs[i-2].High && h > cs[i+1].High && h > cs[i+2].High
}

var _ domsvc.LevelDetector = (*LevelDetector)(nil)
