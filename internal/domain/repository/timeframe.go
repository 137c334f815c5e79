package repository

import "SignalScan/internal/domain/models"

// TimeframeSeconds converts a scanner timeframe in minutes to the upstream
// resolution in seconds.
func TimeframeSeconds(minutes int) int { return minutes * 60 }

// DefaultForexTimeframe is used when a request does not name one.
func DefaultForexTimeframe() string { return "M15" }

// NormalizeForexTimeframe returns s when it is a known forex timeframe label,
// the default otherwise.
func NormalizeForexTimeframe(s string) string {
	if _, ok := models.ForexTimeframeMinutes[s]; ok {
		return s
	}
	return DefaultForexTimeframe()
}

// ForexMinutes returns the minutes for a forex timeframe label.
func ForexMinutes(s string) int {
	return models.ForexTimeframeMinutes[NormalizeForexTimeframe(s)]
}
