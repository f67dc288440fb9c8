package agents

import (
	"fmt"
	"sort"
	"time"

	"RoomArb/internal/domain/models"
	"RoomArb/internal/services/stats"
)

const (
	marketMinBookings     = 10
	marketMomentumWindow  = 5
	marketPositionPct     = 10.0
	marketVolatilityPct   = 20.0
	marketConfidenceSat   = 100.0
	marketConfidenceLimit = 0.95
)

// Market computes price statistics, trend, seasonality and market indicators
// over the scoped bookings.
func Market(batch models.SignalBatch, p Params) models.AgentReport {
	bookings := batch.FilterBookings(p.Scope)
	if len(bookings) < marketMinBookings {
		return insufficient(models.AgentMarket, "bookings", len(bookings), marketMinBookings)
	}

	series := prices(bookings)
	summary := stats.Summarize(series)
	trend, change := stats.Trend(series, stats.DefaultTrendWindow, stats.DefaultTrendDeadZone)

	mean := stats.Mean(series)
	ind := models.MarketIndicators{
		PricePositionPct: stats.Round2(stats.PctChange(mean, series[len(series)-1])),
		VolatilityPct:    stats.Round2(stats.CV(series) * 100),
		MomentumPct:      stats.Round2(stats.Momentum(series, marketMomentumWindow)),
	}

	analysis := &models.MarketAnalysis{
		Prices:         summary,
		Trend:          trend,
		TrendChangePct: stats.Round2(change),
		DayOfWeek:      weekdayBuckets(bookings),
		Months:         monthBuckets(bookings),
		Indicators:     ind,
	}

	return models.AgentReport{
		Agent:           models.AgentMarket,
		Success:         true,
		Confidence:      stats.SampleConfidence(float64(len(bookings)), marketConfidenceSat, marketConfidenceLimit),
		SampleSize:      len(bookings),
		Recommendations: marketRecommendations(ind, trend),
		Market:          analysis,
	}
}

func marketRecommendations(ind models.MarketIndicators, trend string) []models.Recommendation {
	var recs []models.Recommendation
	if ind.PricePositionPct < -marketPositionPct {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionBuy,
			Reason:  fmt.Sprintf("current price %.1f%% below market average", -ind.PricePositionPct),
			Urgency: models.UrgencyHigh,
		})
	}
	if ind.PricePositionPct > marketPositionPct {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionSell,
			Reason:  fmt.Sprintf("current price %.1f%% above market average", ind.PricePositionPct),
			Urgency: models.UrgencyMedium,
		})
	}
	if ind.VolatilityPct > marketVolatilityPct {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionCaution,
			Reason:  fmt.Sprintf("high price volatility %.1f%%", ind.VolatilityPct),
			Urgency: models.UrgencyHigh,
		})
	}
	if trend == models.TrendFalling {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionWait,
			Reason:  "prices trending down",
			Urgency: models.UrgencyMedium,
		})
	}
	if len(recs) == 0 {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionHold,
			Reason:  "market stable",
			Urgency: models.UrgencyLow,
		})
	}
	return recs
}

func weekdayBuckets(bookings []models.BookingRecord) []models.SeasonBucket {
	var sums [7]float64
	var counts [7]int
	for _, b := range bookings {
		d := b.CheckIn.Weekday()
		sums[d] += b.Price
		counts[d]++
	}
	out := make([]models.SeasonBucket, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if counts[d] == 0 {
			continue
		}
		out = append(out, models.SeasonBucket{
			Key:      d.String(),
			Count:    counts[d],
			AvgPrice: stats.Round2(sums[d] / float64(counts[d])),
		})
	}
	return out
}

func monthBuckets(bookings []models.BookingRecord) []models.SeasonBucket {
	sums := map[time.Month]float64{}
	counts := map[time.Month]int{}
	for _, b := range bookings {
		m := b.CheckIn.Month()
		sums[m] += b.Price
		counts[m]++
	}
	months := make([]time.Month, 0, len(counts))
	for m := range counts {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
	out := make([]models.SeasonBucket, 0, len(months))
	for _, m := range months {
		out = append(out, models.SeasonBucket{
			Key:      m.String(),
			Count:    counts[m],
			AvgPrice: stats.Round2(sums[m] / float64(counts[m])),
		})
	}
	return out
}
