package models

// PatternType is a price-action pattern label.
type PatternType string

const (
	PatternPinBar           PatternType = "pin_bar"
	PatternEngulfingBullish PatternType = "engulfing_bullish"
	PatternEngulfingBearish PatternType = "engulfing_bearish"
	PatternInsideBar        PatternType = "inside_bar"
	PatternDoji             PatternType = "doji"
	PatternBOSBullish       PatternType = "bos_bullish"
	PatternBOSBearish       PatternType = "bos_bearish"
)

// Pattern is a detected price-action pattern.
type Pattern struct {
	Type        PatternType `json:"type"`
	Description string      `json:"description"`
	CandleIndex int         `json:"candle_index"`
}

// LevelKind tells support from resistance.
type LevelKind string

const (
	LevelSupport    LevelKind = "support"
	LevelResistance LevelKind = "resistance"
)

// Level is a support or resistance price.
type Level struct {
	Price    float64   `json:"price"`
	Kind     LevelKind `json:"kind"`
	Strength int       `json:"strength"` // 1..5
	Touches  int       `json:"touches"`
}
