package repository

// Default lookback windows for collaborator queries.
const (
	DefaultLookbackDays     = 90
	DefaultHistoryMonths    = 6
	DefaultSearchDays       = 30
	DefaultElasticityWindow = 180
	MaxLookbackDays         = 730
)

// NormalizeLookbackDays converts a raw day count to a supported window (or default).
func NormalizeLookbackDays(days int) int {
	if days <= 0 {
		return DefaultLookbackDays
	}
	if days > MaxLookbackDays {
		return MaxLookbackDays
	}
	return days
}

// NormalizeMonths clamps a month window to [1, 24], defaulting to six months.
func NormalizeMonths(months int) int {
	switch {
	case months <= 0:
		return DefaultHistoryMonths
	case months > 24:
		return 24
	default:
		return months
	}
}
