package stats

import "RoomArb/internal/domain/models"

const (
	DefaultTrendWindow   = 14
	DefaultTrendDeadZone = 5.0
)

// Trend classifies the last `window` values by comparing the average of the
// older half with the newer half. Changes within ±deadZone percent are stable.
// It returns the label and the percent change between the two halves.
func Trend(values []float64, window int, deadZone float64) (string, float64) {
	if window <= 1 {
		window = DefaultTrendWindow
	}
	if len(values) > window {
		values = values[len(values)-window:]
	}
	if len(values) < 2 {
		return models.TrendStable, 0
	}
	half := len(values) / 2
	older := Mean(values[:half])
	newer := Mean(values[len(values)-half:])
	change := PctChange(older, newer)
	switch {
	case change > deadZone:
		return models.TrendRising, change
	case change < -deadZone:
		return models.TrendFalling, change
	default:
		return models.TrendStable, change
	}
}

// Momentum compares the mean of the last n values with the n before them.
func Momentum(values []float64, n int) float64 {
	if n <= 0 || len(values) < 2*n {
		return 0
	}
	recent := Mean(values[len(values)-n:])
	prev := Mean(values[len(values)-2*n : len(values)-n])
	return PctChange(prev, recent)
}
