package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"SignalScan/internal/domain/models"
	"SignalScan/internal/domain/repository"
	"SignalScan/internal/indicator"
	"SignalScan/pkg/logger"
)

const (
	forexPivotLookback  = 50
	forexClusterGap     = 0.0005
	forexMaxLevels      = 3
	forexTrendWindow    = 20
	forexTrendFast      = 10
	forexATRPeriod      = 14
	forexStopATRFactor  = 1.5
	forexConfidence     = 75.0
	forexScanCandles    = 100
	forexScanConcurrent = 5
	ratioEpsilon        = 1e-9
)

// ForexEngine derives entry, stop and target levels for currency pairs and
// only emits a setup whose reward covers the risk by the configured ratio.
type ForexEngine struct {
	series repository.SeriesProvider
	log    *logger.Logger
	now    func() time.Time
}

func NewForexEngine(series repository.SeriesProvider, log *logger.Logger) *ForexEngine {
	if log == nil {
		log = logger.Nop()
	}
	return &ForexEngine{series: series, log: log.With(logger.String("component", "forex_engine")), now: time.Now}
}

// ClusterLevels merges levels closer than gap. The input is sorted
// ascending and the first level of each run is kept.
func ClusterLevels(levels []float64, gap float64) []float64 {
	if len(levels) == 0 {
		return nil
	}
	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)

	out := []float64{sorted[0]}
	for _, v := range sorted[1:] {
		if math.Abs(v-out[len(out)-1]) > gap {
			out = append(out, v)
		}
	}
	return out
}

// PivotLevels finds 5-point strict local minima (supports) and maxima
// (resistances) over the last 50 closes, clusters them and keeps the top
// three of each side.
func PivotLevels(closes []float64) (supports, resistances []float64) {
	recent := closes
	if len(recent) > forexPivotLookback {
		recent = recent[len(recent)-forexPivotLookback:]
	}

	var lows, highs []float64
	for i := 2; i < len(recent)-2; i++ {
		v := recent[i]
		if v < recent[i-1] && v < recent[i-2] && v < recent[i+1] && v < recent[i+2] {
			lows = append(lows, v)
		}
		if v > recent[i-1] && v > recent[i-2] && v > recent[i+1] && v > recent[i+2] {
			highs = append(highs, v)
		}
	}
	return lastN(ClusterLevels(lows, forexClusterGap), forexMaxLevels),
		lastN(ClusterLevels(highs, forexClusterGap), forexMaxLevels)
}

// SyntheticLevels places supports 0.2/0.5/0.8% below and resistances the
// same distance above price.
func SyntheticLevels(price float64) (supports, resistances []float64) {
	return []float64{price * 0.998, price * 0.995, price * 0.992},
		[]float64{price * 1.002, price * 1.005, price * 1.008}
}

// ForexTrend compares the 10-bar mean with the 20-bar mean.
func ForexTrend(closes []float64) string {
	if len(closes) < forexTrendWindow {
		return models.TrendSideways
	}
	recent := closes[len(closes)-forexTrendWindow:]
	fast := indicator.Mean(recent[len(recent)-forexTrendFast:])
	slow := indicator.Mean(recent)
	switch {
	case fast > slow*1.001:
		return models.TrendUp
	case fast < slow*0.999:
		return models.TrendDown
	default:
		return models.TrendSideways
	}
}

// ForexATR is the mean of the last 14 true ranges, 0 when fewer than 15
// bars are available.
func ForexATR(high, low, close []float64) float64 {
	n := len(high)
	if n < forexATRPeriod+1 || len(low) != n || len(close) != n {
		return 0
	}
	tr := indicator.TrueRange(high, low, close)[1:]
	return indicator.Mean(tr[len(tr)-forexATRPeriod:])
}

// AnalyzePair runs the full forex analysis of one pair. The reported
// levels are the organic pivots; synthetic levels are only used to price a
// setup when no pivots exist.
func (e *ForexEngine) AnalyzePair(pair string, high, low, close []float64, timeframe string, minRR float64) models.ForexAnalysis {
	out := models.ForexAnalysis{
		Pair:             pair,
		Trend:            ForexTrend(close),
		SupportLevels:    []float64{},
		ResistanceLevels: []float64{},
		Signals:          []models.ForexSignal{},
	}
	if len(close) == 0 {
		out.Recommendation = "No clear setup"
		return out
	}
	out.CurrentPrice = close[len(close)-1]

	supports, resistances := PivotLevels(close)
	if supports != nil {
		out.SupportLevels = supports
	}
	if resistances != nil {
		out.ResistanceLevels = resistances
	}

	sig := e.GenerateSignal(pair, out.CurrentPrice, high, low, close, timeframe, minRR)
	if sig != nil {
		out.Signals = append(out.Signals, *sig)
	}

	synthS, synthR := SyntheticLevels(out.CurrentPrice)
	switch {
	case sig != nil && out.Trend == models.TrendUp:
		out.Recommendation = fmt.Sprintf("Wait for pullback to %.5f for BUY", firstOr(supports, synthS))
	case sig != nil && out.Trend == models.TrendDown:
		out.Recommendation = fmt.Sprintf("Wait for rally to %.5f for SELL", firstOr(resistances, synthR))
	default:
		out.Recommendation = "No clear setup"
	}
	return out
}

// GenerateSignal prices a BUY in an up or sideways trend and a SELL in a
// downtrend. Nil is returned when risk is not positive or the reward to
// risk ratio is below minRR.
func (e *ForexEngine) GenerateSignal(pair string, price float64, high, low, close []float64, timeframe string, minRR float64) *models.ForexSignal {
	if price <= 0 {
		return nil
	}
	supports, resistances := PivotLevels(close)
	synthS, synthR := SyntheticLevels(price)
	if len(supports) == 0 {
		supports = synthS
	}
	if len(resistances) == 0 {
		resistances = synthR
	}

	trend := ForexTrend(close)
	atr := ForexATR(high, low, close)
	if atr == 0 {
		atr = price * 0.001
	}
	pip := PipValue(pair)
	// Ratios are reported with two decimals, so the fallback target aims at
	// minRR rounded up to that precision.
	targetRR := ceilTo(minRR, 2)

	var (
		dir         models.Direction
		stop, tp    float64
		pattern     string
		confluences []string
	)
	entry := price
	if trend == models.TrendDown {
		dir = models.DirectionSell
		stop = nearest(resistances, price) + atr*forexStopATRFactor
		tp = entry - (stop-entry)*targetRR
		if below := filter(supports, func(v float64) bool { return v < entry }); len(below) > 0 {
			tp = maxOf(below)
		}
		pattern = "Resistance Rejection"
		confluences = []string{"Downtrend", "Resistance Level"}
	} else {
		dir = models.DirectionBuy
		stop = nearest(supports, price) - atr*forexStopATRFactor
		tp = entry + (entry-stop)*targetRR
		if above := filter(resistances, func(v float64) bool { return v > entry }); len(above) > 0 {
			tp = minOf(above)
		}
		pattern = "Support Bounce"
		label := "Uptrend"
		if trend == models.TrendSideways {
			label = "Sideways"
		}
		confluences = []string{label, "Support Level"}
	}

	risk := math.Abs(entry - stop)
	reward := math.Abs(tp - entry)
	if dir == models.DirectionBuy && (stop >= entry || tp <= entry) {
		return nil
	}
	if dir == models.DirectionSell && (stop <= entry || tp >= entry) {
		return nil
	}
	if risk <= 0 || reward <= 0 {
		return nil
	}
	rr := floorTo(reward/risk+ratioEpsilon, 2)
	if rr < minRR {
		return nil
	}

	return &models.ForexSignal{
		ID:              uuid.NewString(),
		GeneratedAt:     e.now(),
		Pair:            pair,
		Direction:       dir,
		EntryPrice:      entry,
		StopLoss:        stop,
		TakeProfit:      tp,
		RiskRewardRatio: rr,
		Timeframe:       timeframe,
		Pattern:         pattern,
		Confluences:     append(confluences, fmt.Sprintf("ATR: %.5f", atr)),
		Confidence:      forexConfidence,
		PipsTarget:      roundTo(reward/pip, 1),
		PipsStop:        roundTo(risk/pip, 1),
	}
}

// ForexScan analyses every requested pair and timeframe and returns the
// analyses that produced a signal, best first.
func (e *ForexEngine) ForexScan(ctx context.Context, cfg models.ForexScanConfig) ([]models.ForexAnalysis, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pairs := cfg.Pairs
	if len(pairs) == 0 {
		for _, p := range AvailablePairs(cfg.OnlyMajorPairs) {
			pairs = append(pairs, p.Symbol)
		}
	}

	type job struct{ pair, tf string }
	var jobs []job
	for _, p := range pairs {
		if !IsKnownPair(p) {
			e.log.Debug("skipping unknown pair", logger.String("pair", p))
			continue
		}
		for _, tf := range cfg.Timeframes {
			jobs = append(jobs, job{p, tf})
		}
	}

	ch := make(chan models.ForexAnalysis, len(jobs))
	gate := semaphore.NewWeighted(forexScanConcurrent)
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			if err := gate.Acquire(ctx, 1); err != nil {
				return
			}
			defer gate.Release(1)
			a, err := e.AnalyzeFromProvider(ctx, j.pair, j.tf, cfg.MinRiskReward)
			if err != nil {
				e.log.Warn("forex analysis failed", logger.String("pair", j.pair), logger.String("timeframe", j.tf), logger.Error(err))
				return
			}
			if len(a.Signals) > 0 {
				ch <- a
			}
		}(j)
	}
	go func() { wg.Wait(); close(ch) }()

	var out []models.ForexAnalysis
	for a := range ch {
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Signals[0], out[j].Signals[0]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.RiskRewardRatio != b.RiskRewardRatio {
			return a.RiskRewardRatio > b.RiskRewardRatio
		}
		return out[i].Pair < out[j].Pair
	})
	return out, ctx.Err()
}

// AnalyzeFromProvider loads 100 candles for pair at the forex timeframe
// label and analyses them.
func (e *ForexEngine) AnalyzeFromProvider(ctx context.Context, pair, timeframe string, minRR float64) (models.ForexAnalysis, error) {
	timeframe = repository.NormalizeForexTimeframe(timeframe)
	s, err := e.series.GetSeries(ctx, pair, repository.ForexMinutes(timeframe), forexScanCandles)
	if err != nil {
		return models.ForexAnalysis{}, err
	}
	return e.AnalyzePair(pair, s.Highs(), s.Lows(), s.Closes(), timeframe, minRR), nil
}

func nearest(levels []float64, price float64) float64 {
	best := levels[0]
	for _, v := range levels[1:] {
		if math.Abs(v-price) < math.Abs(best-price) {
			best = v
		}
	}
	return best
}

func filter(levels []float64, keep func(float64) bool) []float64 {
	var out []float64
	for _, v := range levels {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func minOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Max(m, x)
	}
	return m
}

func lastN(v []float64, n int) []float64 {
	if len(v) > n {
		return v[len(v)-n:]
	}
	return v
}

func firstOr(v, fallback []float64) float64 {
	if len(v) > 0 {
		return v[0]
	}
	return fallback[0]
}

func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func floorTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).RoundFloor(places).InexactFloat64()
}

func ceilTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).RoundCeil(places).InexactFloat64()
}
