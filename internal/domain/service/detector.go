package service

import "SignalScan/internal/domain/models"

// PatternDetector finds price-action patterns in a series, oldest first.
type PatternDetector interface {
	DetectPatterns(s *models.Series) []models.Pattern
}

// LevelDetector finds support and resistance levels.
type LevelDetector interface {
	DetectLevels(s *models.Series) []models.Level
	// IsNearLevel reports whether price is close to one of levels and returns it.
	IsNearLevel(price float64, levels []models.Level) (bool, *models.Level)
}
