package usecase

import (
	"sort"
	"strings"
)

// ForexPair describes a tradeable currency pair.
type ForexPair struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	PipValue float64 `json:"pip_value"`
	IsActive bool    `json:"is_active"`
	Major    bool    `json:"major"`
}

var majorPairs = map[string]string{
	"EURUSD": "Euro vs US Dollar",
	"GBPUSD": "British Pound vs US Dollar",
	"USDJPY": "US Dollar vs Japanese Yen",
	"USDCHF": "US Dollar vs Swiss Franc",
	"AUDUSD": "Australian Dollar vs US Dollar",
	"USDCAD": "US Dollar vs Canadian Dollar",
	"NZDUSD": "New Zealand Dollar vs US Dollar",
}

var crossPairs = map[string]string{
	"EURJPY": "Euro vs Japanese Yen",
	"GBPJPY": "British Pound vs Japanese Yen",
	"EURGBP": "Euro vs British Pound",
	"EURAUD": "Euro vs Australian Dollar",
	"GBPAUD": "British Pound vs Australian Dollar",
}

// ForexSymbols is every regular-market pair the broker quotes.
var ForexSymbols = []string{
	"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "AUDUSD", "USDCAD", "NZDUSD",
	"EURJPY", "GBPJPY", "EURGBP", "AUDJPY", "EURAUD", "EURCHF", "GBPAUD",
	"GBPCAD", "GBPCHF", "AUDCAD", "AUDCHF", "AUDNZD", "CHFJPY", "CADJPY",
	"NZDJPY", "EURCAD", "EURNZD", "GBPNZD", "CADCHF", "NZDCAD", "NZDCHF",
}

// PipValue is 0.01 for yen-quoted pairs and 0.0001 otherwise.
func PipValue(pair string) float64 {
	if strings.HasSuffix(strings.ToUpper(pair), "JPY") {
		return 0.01
	}
	return 0.0001
}

// IsKnownPair reports whether pair is in the analysed catalog.
func IsKnownPair(pair string) bool {
	_, major := majorPairs[pair]
	_, cross := crossPairs[pair]
	return major || cross
}

// AvailablePairs lists the catalog, majors first, each group sorted by symbol.
func AvailablePairs(onlyMajor bool) []ForexPair {
	out := catalogGroup(majorPairs, true)
	if !onlyMajor {
		out = append(out, catalogGroup(crossPairs, false)...)
	}
	return out
}

func catalogGroup(m map[string]string, major bool) []ForexPair {
	out := make([]ForexPair, 0, len(m))
	for sym, name := range m {
		out = append(out, ForexPair{Symbol: sym, Name: name, PipValue: PipValue(sym), IsActive: true, Major: major})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
