package provider

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"SignalScan/internal/domain/models"
	xutil "SignalScan/pkg/util"
)

var basePrices = map[string]float64{
	"EURUSD": 1.0850,
	"GBPUSD": 1.2650,
	"USDJPY": 149.50,
	"USDCHF": 0.8950,
	"AUDUSD": 0.6550,
	"USDCAD": 1.3650,
	"NZDUSD": 0.6050,
	"EURJPY": 162.20,
	"GBPJPY": 189.10,
	"EURGBP": 0.8580,
}

// BasePrice is the starting price of the synthetic walk for symbol.
// OTC suffixes are ignored.
func BasePrice(symbol string) float64 {
	if p, ok := basePrices[stripOTC(symbol)]; ok {
		return p
	}
	return 1.0
}

// KnownSymbols lists the symbols with a configured base price, sorted.
func KnownSymbols() []string {
	out := make([]string, 0, len(basePrices))
	for s := range basePrices {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// GenerateSeries builds a synthetic walk for (symbol, timeframe) whose last
// candle opens at end truncated to the timeframe. The walk is seeded from the
// symbol and timeframe so repeated calls produce the same prices.
func GenerateSeries(symbol string, timeframe, count int, end time.Time) *models.Series {
	if timeframe <= 0 {
		timeframe = 1
	}
	if count < 0 {
		count = 0
	}
	step := time.Duration(timeframe) * time.Minute
	last := xutil.AlignToTimeframe(end.UTC(), timeframe)
	rng := rand.New(rand.NewSource(seed(symbol, timeframe)))

	base := BasePrice(symbol)
	vol := base * 0.0003
	cur := base

	candles := make([]models.Candle, count)
	for i := 0; i < count; i++ {
		trend := math.Sin(float64(i)/20) * 0.001
		cur += uniform(rng, -vol, vol) + trend

		high := cur + uniform(rng, 0, vol*0.5)
		low := cur - uniform(rng, 0, vol*0.5)
		candles[i] = models.Candle{
			Time:   last.Add(-time.Duration(count-1-i) * step),
			Open:   cur,
			High:   high,
			Low:    low,
			Close:  uniform(rng, low, high),
			Volume: 1000 + uniform(rng, 0, 500),
		}
		cur = candles[i].Close
	}

	return &models.Series{
		Symbol:    symbol,
		Timeframe: timeframe,
		Candles:   candles,
		Synthetic: true,
		FetchedAt: end,
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func seed(symbol string, timeframe int) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol + "_" + strconv.Itoa(timeframe)))
	return int64(h.Sum64())
}

func stripOTC(symbol string) string {
	for _, suffix := range []string{"-OTC", "_OTC", "OTC"} {
		if n := len(symbol) - len(suffix); n > 0 && symbol[n:] == suffix {
			return symbol[:n]
		}
	}
	return symbol
}
