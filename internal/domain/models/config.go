package models

import (
	"fmt"
	"strings"
)

// Sensitivity controls how strict the confluence filters are.
type Sensitivity string

const (
	SensitivityConservative Sensitivity = "conservative"
	SensitivityModerate     Sensitivity = "moderate"
	SensitivityAggressive   Sensitivity = "aggressive"
)

func (s Sensitivity) IsValid() bool {
	switch s {
	case SensitivityConservative, SensitivityModerate, SensitivityAggressive:
		return true
	default:
		return false
	}
}

// ValidTimeframes are the scanner timeframes in minutes.
var ValidTimeframes = []int{1, 5, 15, 30, 60}

func IsValidTimeframe(tf int) bool {
	for _, v := range ValidTimeframes {
		if v == tf {
			return true
		}
	}
	return false
}

// SignalKey builds the latest-signal table key for a symbol and timeframe.
func SignalKey(symbol string, timeframe int) string {
	return fmt.Sprintf("%s_%dM", symbol, timeframe)
}

// ScanConfig configures the scanner and the confluence engine.
type ScanConfig struct {
	Mode                string      `json:"mode" yaml:"mode" default:"auto" validate:"omitempty,oneof=auto manual"`
	Symbols             []string    `json:"symbols" yaml:"symbols"`
	Timeframe           int         `json:"timeframe" yaml:"timeframe" default:"5"`
	Timeframes          []int       `json:"timeframes" yaml:"timeframes"`
	Sensitivity         Sensitivity `json:"sensitivity" yaml:"sensitivity" default:"moderate"`
	UseVolumeFilter     bool        `json:"use_volume_filter" yaml:"use_volume_filter"`
	UseVolatilityFilter bool        `json:"use_volatility_filter" yaml:"use_volatility_filter"`
	UseTrendFilter      bool        `json:"use_trend_filter" yaml:"use_trend_filter"`
	OnlyOTC             bool        `json:"only_otc" yaml:"only_otc"`
	OnlyOpenMarket      bool        `json:"only_open_market" yaml:"only_open_market"`
}

// DefaultScanConfig returns a moderate 5 minute configuration.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		Mode:                "auto",
		Timeframe:           5,
		Timeframes:          []int{5},
		Sensitivity:         SensitivityModerate,
		UseVolumeFilter:     true,
		UseVolatilityFilter: true,
		UseTrendFilter:      true,
	}
}

// Normalize fills zero values, upper-cases symbols and makes sure the
// primary timeframe is part of Timeframes.
func (c *ScanConfig) Normalize() {
	if c.Timeframe == 0 {
		c.Timeframe = 5
		if len(c.Timeframes) > 0 {
			c.Timeframe = c.Timeframes[0]
		}
	}
	if c.Sensitivity == "" {
		c.Sensitivity = SensitivityModerate
	}
	for i, s := range c.Symbols {
		c.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	found := false
	for _, tf := range c.Timeframes {
		if tf == c.Timeframe {
			found = true
			break
		}
	}
	if !found {
		c.Timeframes = append([]int{c.Timeframe}, c.Timeframes...)
	}
}

// ResolveTimeframes takes both timeframe fields from def when neither was
// set. A bare Timeframes list makes its first entry the primary timeframe.
func (c *ScanConfig) ResolveTimeframes(def ScanConfig) {
	switch {
	case c.Timeframe == 0 && len(c.Timeframes) == 0:
		c.Timeframe = def.Timeframe
		c.Timeframes = append([]int(nil), def.Timeframes...)
	case c.Timeframe == 0:
		c.Timeframe = c.Timeframes[0]
	}
}

// Validate reports configuration errors wrapped in ErrInvalidConfiguration.
func (c *ScanConfig) Validate() error {
	if c.OnlyOTC && c.OnlyOpenMarket {
		return fmt.Errorf("%w: only_otc and only_open_market are mutually exclusive", ErrInvalidConfiguration)
	}
	if !c.Sensitivity.IsValid() {
		return fmt.Errorf("%w: sensitivity must be one of conservative, moderate, aggressive, got %q", ErrInvalidConfiguration, c.Sensitivity)
	}
	if !IsValidTimeframe(c.Timeframe) {
		return fmt.Errorf("%w: timeframe %d not in %v", ErrInvalidConfiguration, c.Timeframe, ValidTimeframes)
	}
	for _, tf := range c.Timeframes {
		if !IsValidTimeframe(tf) {
			return fmt.Errorf("%w: timeframe %d not in %v", ErrInvalidConfiguration, tf, ValidTimeframes)
		}
	}
	return nil
}

// ForexScanConfig configures a forex scan.
type ForexScanConfig struct {
	Pairs          []string `json:"pairs" yaml:"pairs"`
	Timeframes     []string `json:"timeframes" yaml:"timeframes"`
	MinRiskReward  float64  `json:"min_risk_reward" yaml:"min_risk_reward" default:"1.5" validate:"gte=1"`
	OnlyMajorPairs bool     `json:"only_major_pairs" yaml:"only_major_pairs"`
}

func (c *ForexScanConfig) Normalize() {
	if len(c.Timeframes) == 0 {
		c.Timeframes = []string{"M5", "M15", "H1"}
	}
	if c.MinRiskReward == 0 {
		c.MinRiskReward = 1.5
	}
	for i, p := range c.Pairs {
		c.Pairs[i] = strings.ToUpper(strings.TrimSpace(p))
	}
}

func (c *ForexScanConfig) Validate() error {
	if c.MinRiskReward < 1.0 {
		return fmt.Errorf("%w: min_risk_reward must be >= 1.0, got %.2f", ErrInvalidConfiguration, c.MinRiskReward)
	}
	for _, tf := range c.Timeframes {
		if _, ok := ForexTimeframeMinutes[tf]; !ok {
			return fmt.Errorf("%w: unknown forex timeframe %q", ErrInvalidConfiguration, tf)
		}
	}
	return nil
}

// ForexTimeframeMinutes maps forex timeframe labels to minutes.
var ForexTimeframeMinutes = map[string]int{
	"M5":  5,
	"M15": 15,
	"M30": 30,
	"H1":  60,
	"H4":  240,
	"D1":  1440,
}
