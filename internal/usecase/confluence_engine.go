package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"SignalScan/internal/domain/models"
	domsvc "SignalScan/internal/domain/service"
	"SignalScan/internal/indicator"
	xutil "SignalScan/pkg/util"
)

// MinCandles is the hard minimum series length for an evaluation.
const MinCandles = 50

// Outcome is the terminal state of one evaluation.
type Outcome string

const (
	OutcomeInsufficientData Outcome = "insufficient_data"
	OutcomeNoPattern        Outcome = "no_pattern"
	OutcomeNoDirection      Outcome = "no_direction"
	OutcomeFilteredOut      Outcome = "filtered_out"
	OutcomeLowConfluence    Outcome = "low_confluence"
	OutcomeEmit             Outcome = "emit"
)

// ConfluenceEngine turns detected patterns and indicator readings into a
// binary-option signal, or nothing.
type ConfluenceEngine struct {
	patterns domsvc.PatternDetector
	levels   domsvc.LevelDetector
	now      func() time.Time
}

func NewConfluenceEngine(patterns domsvc.PatternDetector, levels domsvc.LevelDetector) *ConfluenceEngine {
	return &ConfluenceEngine{patterns: patterns, levels: levels, now: time.Now}
}

// snapshot holds the indicator readings an evaluation needs, computed once.
type snapshot struct {
	price      float64
	trend      indicator.Trend
	rsi        float64
	hasRSI     bool
	macd       float64
	macdSignal float64
	hasMACD    bool
	cross      indicator.Crossover
	stochK     float64
	stochD     float64
	hasStoch   bool
	volUp      bool
	volDown    bool
	highs      []float64
	lows       []float64
	closes     []float64
}

func takeSnapshot(s *models.Series) snapshot {
	closes := s.Closes()
	highs := s.Highs()
	lows := s.Lows()
	vols := s.Volumes()

	snap := snapshot{
		price:   closes[len(closes)-1],
		trend:   indicator.DetectTrend(closes, indicator.TrendShort, indicator.TrendLong),
		cross:   indicator.MACrossover(closes, indicator.CrossFast, indicator.CrossSlow),
		volUp:   indicator.VolumeIncreasing(vols, indicator.VolumePeriod),
		volDown: indicator.VolumeDecreasing(vols, indicator.VolumePeriod),
		highs:   highs,
		lows:    lows,
		closes:  closes,
	}
	snap.rsi, snap.hasRSI = indicator.Last(indicator.RSI(closes, indicator.RSIPeriod))
	m := indicator.MACD(closes, indicator.MACDFast, indicator.MACDSlow, indicator.MACDSignalPeriod)
	if mv, ok := indicator.Last(m.MACD); ok {
		snap.macd = mv
		snap.macdSignal, snap.hasMACD = indicator.Last(m.Signal)
	}
	st := indicator.Stochastic(highs, lows, closes, indicator.StochK, indicator.StochD)
	if k, ok := indicator.Last(st.K); ok {
		snap.stochK = k
		snap.stochD, snap.hasStoch = indicator.Last(st.D)
	}
	return snap
}

func (s snapshot) highVolatility(threshold float64) bool {
	return indicator.IsHighVolatility(s.highs, s.lows, s.closes, indicator.ATRPeriod, threshold)
}

// Evaluate runs the decision pipeline for one series. It returns a signal
// only when every gate passes; otherwise the signal is nil and the outcome
// names the gate that stopped it.
func (e *ConfluenceEngine) Evaluate(symbol string, series *models.Series, cfg models.ScanConfig) (*models.Signal, Outcome) {
	if series.Len() < MinCandles {
		return nil, OutcomeInsufficientData
	}

	patterns := e.patterns.DetectPatterns(series)
	if len(patterns) == 0 {
		return nil, OutcomeNoPattern
	}
	pattern := patterns[len(patterns)-1]

	snap := takeSnapshot(series)

	var level *models.Level
	if e.levels != nil {
		levels := e.levels.DetectLevels(series)
		if near, lvl := e.levels.IsNearLevel(snap.price, levels); near && lvl != nil {
			l := *lvl
			level = &l
		}
	}

	dir, ok := direction(pattern, snap)
	if !ok {
		return nil, OutcomeNoDirection
	}

	if !passesFilters(cfg, dir, snap) {
		return nil, OutcomeFilteredOut
	}

	confluences := collectConfluences(pattern, level, dir, snap)
	minConfluences := 2
	if cfg.Sensitivity == models.SensitivityConservative {
		minConfluences = 3
	}
	if len(confluences) < minConfluences {
		return nil, OutcomeLowConfluence
	}

	now := e.now()
	entry := xutil.NextMinute(now)
	if cfg.Sensitivity == models.SensitivityAggressive {
		entry = entry.Add(time.Minute)
	}
	tf := cfg.Timeframe
	expiryMinutes := max(tf, 2)

	return &models.Signal{
		ID:             uuid.NewString(),
		GeneratedAt:    now,
		Symbol:         symbol,
		Timeframe:      tf,
		Direction:      dir,
		EntryPrice:     snap.price,
		EntryTime:      entry,
		ExpiryTime:     entry.Add(time.Duration(expiryMinutes) * time.Minute),
		Pattern:        pattern,
		NearestLevel:   level,
		Confluences:    confluences,
		Confidence:     confidence(len(confluences), pattern, level),
		ExpiryMinutes:  expiryMinutes,
		SyntheticInput: series.Synthetic,
	}, OutcomeEmit
}

func direction(p models.Pattern, snap snapshot) (models.Direction, bool) {
	switch p.Type {
	case models.PatternPinBar, models.PatternEngulfingBullish, models.PatternBOSBullish:
		return models.DirectionCall, true
	case models.PatternEngulfingBearish, models.PatternBOSBearish:
		return models.DirectionPut, true
	case models.PatternDoji:
		if !snap.hasRSI {
			return "", false
		}
		if snap.rsi < 30 {
			return models.DirectionCall, true
		}
		if snap.rsi > 70 {
			return models.DirectionPut, true
		}
	case models.PatternInsideBar:
		switch snap.trend {
		case indicator.TrendBullish:
			return models.DirectionCall, true
		case indicator.TrendBearish:
			return models.DirectionPut, true
		}
	}
	return "", false
}

func opposesTrend(dir models.Direction, trend indicator.Trend) bool {
	return (dir == models.DirectionCall && trend == indicator.TrendBearish) ||
		(dir == models.DirectionPut && trend == indicator.TrendBullish)
}

func alignedWithTrend(dir models.Direction, trend indicator.Trend) bool {
	return (dir == models.DirectionCall && trend == indicator.TrendBullish) ||
		(dir == models.DirectionPut && trend == indicator.TrendBearish)
}

// passesFilters applies the sensitivity filters. The Use*Filter switches
// can only disable a check, never add one.
func passesFilters(cfg models.ScanConfig, dir models.Direction, snap snapshot) bool {
	switch cfg.Sensitivity {
	case models.SensitivityAggressive:
		if cfg.UseTrendFilter && opposesTrend(dir, snap.trend) {
			return false
		}
		if cfg.UseVolatilityFilter && snap.highVolatility(4.0) {
			return false
		}
	case models.SensitivityConservative:
		if cfg.UseVolumeFilter && !snap.volUp {
			return false
		}
		if cfg.UseVolatilityFilter && snap.highVolatility(2.0) {
			return false
		}
		if cfg.UseTrendFilter && !alignedWithTrend(dir, snap.trend) {
			return false
		}
	default:
		if cfg.UseTrendFilter && opposesTrend(dir, snap.trend) {
			return false
		}
		if cfg.UseVolatilityFilter && snap.highVolatility(2.5) {
			return false
		}
		if cfg.UseVolumeFilter && snap.volDown {
			return false
		}
	}
	return true
}

func collectConfluences(p models.Pattern, level *models.Level, dir models.Direction, snap snapshot) []string {
	out := []string{"Pattern: " + p.Description}

	if level != nil {
		kind := "Support"
		if level.Kind == models.LevelResistance {
			kind = "Resistance"
		}
		out = append(out, fmt.Sprintf("%s at %.5f (strength %d/5)", kind, level.Price, level.Strength))
	}
	if alignedWithTrend(dir, snap.trend) {
		out = append(out, fmt.Sprintf("Trend %s aligned", snap.trend))
	}
	if snap.volUp {
		out = append(out, "Rising volume confirms the move")
	}
	if snap.hasRSI {
		if dir == models.DirectionCall && snap.rsi < 30 {
			out = append(out, fmt.Sprintf("RSI oversold (%.1f)", snap.rsi))
		} else if dir == models.DirectionPut && snap.rsi > 70 {
			out = append(out, fmt.Sprintf("RSI overbought (%.1f)", snap.rsi))
		}
	}
	if snap.hasMACD {
		if dir == models.DirectionCall && snap.macd > snap.macdSignal {
			out = append(out, "MACD bullish")
		} else if dir == models.DirectionPut && snap.macd < snap.macdSignal {
			out = append(out, "MACD bearish")
		}
	}
	switch {
	case dir == models.DirectionCall && snap.cross == indicator.CrossBullish:
		out = append(out, "MA9 crossed above MA21")
	case dir == models.DirectionPut && snap.cross == indicator.CrossBearish:
		out = append(out, "MA9 crossed below MA21")
	case dir == models.DirectionCall && snap.cross == indicator.AlignedBullish:
		out = append(out, "MA9 above MA21")
	case dir == models.DirectionPut && snap.cross == indicator.AlignedBearish:
		out = append(out, "MA9 below MA21")
	}
	if snap.hasStoch {
		k, d := snap.stochK, snap.stochD
		switch {
		case dir == models.DirectionCall && k < 20 && d < 20:
			out = append(out, fmt.Sprintf("Stochastic oversold (%.1f)", k))
		case dir == models.DirectionPut && k > 80 && d > 80:
			out = append(out, fmt.Sprintf("Stochastic overbought (%.1f)", k))
		case dir == models.DirectionCall && k > d && k < 30:
			out = append(out, fmt.Sprintf("Stochastic turning up (%.1f)", k))
		case dir == models.DirectionPut && k < d && k > 70:
			out = append(out, fmt.Sprintf("Stochastic turning down (%.1f)", k))
		}
	}
	return out
}

// confidence is clamped to [35, 85].
func confidence(n int, p models.Pattern, level *models.Level) float64 {
	c := 30.0 + 3*float64(n)
	switch p.Type {
	case models.PatternEngulfingBullish, models.PatternEngulfingBearish:
		c += 12
	case models.PatternBOSBullish, models.PatternBOSBearish:
		c += 8
	case models.PatternPinBar:
		c += 10
	}
	if level != nil {
		c += 2 * float64(level.Strength)
	}
	if c < 35 {
		c = 35
	}
	if c > 85 {
		c = 85
	}
	return c
}
