package models

import "time"

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an ordered run of candles for one (symbol, timeframe).
// A Series is never mutated after it is produced; derived values are
// computed into new slices.
type Series struct {
	Symbol    string    `json:"symbol"`
	Timeframe int       `json:"timeframe"` // minutes
	Candles   []Candle  `json:"candles"`
	Synthetic bool      `json:"synthetic"`
	FetchedAt time.Time `json:"fetched_at"`
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Candles)
}

// Last returns the most recent candle. ok is false for an empty series.
func (s *Series) Last() (Candle, bool) {
	if s.Len() == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

func (s *Series) Opens() []float64   { return s.column(func(c Candle) float64 { return c.Open }) }
func (s *Series) Highs() []float64   { return s.column(func(c Candle) float64 { return c.High }) }
func (s *Series) Lows() []float64    { return s.column(func(c Candle) float64 { return c.Low }) }
func (s *Series) Closes() []float64  { return s.column(func(c Candle) float64 { return c.Close }) }
func (s *Series) Volumes() []float64 { return s.column(func(c Candle) float64 { return c.Volume }) }

func (s *Series) column(pick func(Candle) float64) []float64 {
	out := make([]float64, s.Len())
	for i := 0; i < s.Len(); i++ {
		out[i] = pick(s.Candles[i])
	}
	return out
}
