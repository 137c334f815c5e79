package models

import "time"

// Direction of a signal. CALL/PUT for binary options, BUY/SELL for forex.
type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Signal is a binary-option trade signal produced by the confluence engine.
type Signal struct {
	ID             string    `json:"id"`
	GeneratedAt    time.Time `json:"generated_at"`
	Symbol         string    `json:"symbol"`
	Timeframe      int       `json:"timeframe"`
	Direction      Direction `json:"direction"`
	EntryPrice     float64   `json:"entry_price"`
	EntryTime      time.Time `json:"entry_time"`
	ExpiryTime     time.Time `json:"expiry_time"`
	Pattern        Pattern   `json:"pattern"`
	NearestLevel   *Level    `json:"nearest_level,omitempty"`
	Confluences    []string  `json:"confluences"`
	Confidence     float64   `json:"confidence"`
	ExpiryMinutes  int       `json:"expiry_minutes"`
	SyntheticInput bool      `json:"synthetic_input"`
}

// Key returns the latest-signal table key, e.g. "EURUSD_5M".
func (s *Signal) Key() string { return SignalKey(s.Symbol, s.Timeframe) }

// ForexSignal is an entry/stop/target setup produced by the forex engine.
type ForexSignal struct {
	ID              string    `json:"id"`
	GeneratedAt     time.Time `json:"generated_at"`
	Pair            string    `json:"pair"`
	Direction       Direction `json:"direction"`
	EntryPrice      float64   `json:"entry_price"`
	StopLoss        float64   `json:"stop_loss"`
	TakeProfit      float64   `json:"take_profit"`
	RiskRewardRatio float64   `json:"risk_reward_ratio"`
	Timeframe       string    `json:"timeframe"`
	Pattern         string    `json:"pattern"`
	Confluences     []string  `json:"confluences"`
	Confidence      float64   `json:"confidence"`
	PipsTarget      float64   `json:"pips_target"`
	PipsStop        float64   `json:"pips_stop"`
}

// Trend labels used by the forex engine.
const (
	TrendUp       = "uptrend"
	TrendDown     = "downtrend"
	TrendSideways = "sideways"
)

// ForexAnalysis is the result of analysing one pair.
type ForexAnalysis struct {
	Pair             string        `json:"pair"`
	CurrentPrice     float64       `json:"current_price"`
	Trend            string        `json:"trend"`
	SupportLevels    []float64     `json:"support_levels"`
	ResistanceLevels []float64     `json:"resistance_levels"`
	Recommendation   string        `json:"recommendation"`
	Signals          []ForexSignal `json:"signals"`
}

// Asset is an instrument listed by a broker.
type Asset struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
	IsOTC    bool   `json:"is_otc"`
}

// ScannerStatus is a snapshot of the scanner run state.
type ScannerStatus struct {
	Running     bool        `json:"is_running"`
	ActiveKeys  []string    `json:"active_pairs"`
	SignalCount int         `json:"signals_generated"`
	LatestCount int         `json:"latest_signals"`
	Config      *ScanConfig `json:"config,omitempty"`
	LastError   string      `json:"last_error,omitempty"`
}
