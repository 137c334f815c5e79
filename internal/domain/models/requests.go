package models

// Requests for the HTTP endpoints. Validation and defaults are tag driven.

type EvaluateRequest struct {
	Symbol      string      `json:"symbol" query:"symbol" validate:"required"`
	Timeframe   int         `json:"timeframe" query:"timeframe" default:"5" validate:"oneof=1 5 15 30 60"`
	Sensitivity Sensitivity `json:"sensitivity" query:"sensitivity" default:"moderate" validate:"oneof=conservative moderate aggressive"`
}

type ForexAnalyzeRequest struct {
	Pair          string  `query:"pair" json:"pair" validate:"required"`
	Timeframe     string  `query:"timeframe" json:"timeframe" default:"M15" validate:"oneof=M5 M15 M30 H1 H4 D1"`
	MinRiskReward float64 `query:"min_risk_reward" json:"min_risk_reward" default:"1.5" validate:"gte=1"`
}

type ForexScanRequest struct {
	Pairs          []string `json:"pairs"`
	Timeframes     []string `json:"timeframes" validate:"dive,oneof=M5 M15 M30 H1 H4 D1"`
	MinRiskReward  float64  `json:"min_risk_reward" default:"1.5" validate:"gte=1"`
	OnlyMajorPairs bool     `json:"only_major_pairs"`
}

func (r *ForexScanRequest) Config() ForexScanConfig {
	return ForexScanConfig{
		Pairs:          r.Pairs,
		Timeframes:     r.Timeframes,
		MinRiskReward:  r.MinRiskReward,
		OnlyMajorPairs: r.OnlyMajorPairs,
	}
}
