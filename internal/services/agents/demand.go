package agents

import (
	"fmt"
	"math"
	"time"

	"RoomArb/internal/domain/models"
	"RoomArb/internal/services/stats"
)

const (
	demandMinBookings       = 5
	demandRecentDays        = 30
	demandDefaultForecast   = 14
	demandSearchWeight      = 10.0 // searches per booking-equivalent sample
	demandConfidenceSat     = 50.0
	demandConfidenceLimit   = 0.95
	demandAccelerating      = 1.2
	demandDecelerating      = 0.8
	demandForecastHighRatio = 1.2
	demandForecastLowRatio  = 0.8
)

// WeekdayMultiplier is the fixed day-of-week demand multiplier table.
var WeekdayMultiplier = map[time.Weekday]float64{
	time.Monday:    0.85,
	time.Tuesday:   0.80,
	time.Wednesday: 0.85,
	time.Thursday:  0.95,
	time.Friday:    1.25,
	time.Saturday:  1.40,
	time.Sunday:    1.00,
}

var leadTimeLabels = []struct {
	label string
	max   int
}{
	{"0-7", 7},
	{"8-14", 14},
	{"15-30", 30},
	{"31-60", 60},
	{"60+", math.MaxInt},
}

// Demand estimates booking velocity, lead-time mix, a forward demand forecast
// and the search-intent signal for the scoped hotel or city.
func Demand(batch models.SignalBatch, p Params) models.AgentReport {
	bookings := batch.FilterBookings(p.Scope)
	if len(bookings) < demandMinBookings {
		return insufficient(models.AgentDemand, "bookings", len(bookings), demandMinBookings)
	}
	searches := batch.FilterSearches(p.Scope)
	now := asOf(batch)

	first := bookings[0].InsertedAt
	for _, b := range bookings {
		if b.InsertedAt.Before(first) {
			first = b.InsertedAt
		}
	}
	span := math.Max(1, daysBetween(first, now))
	velocity := float64(len(bookings)) / span

	recentFrom := now.AddDate(0, 0, -demandRecentDays)
	recent := 0
	for _, b := range bookings {
		if !b.InsertedAt.Before(recentFrom) {
			recent++
		}
	}
	recentVelocity := float64(recent) / math.Min(demandRecentDays, span)
	acceleration := 0.0
	if velocity > 0 {
		acceleration = recentVelocity / velocity
	}

	days := p.ForecastDays
	if days <= 0 {
		days = demandDefaultForecast
	}

	search := searchIntent(searches, now, batch.LookbackDays)
	analysis := &models.DemandAnalysis{
		VelocityPerDay:        stats.Round2(velocity),
		RecentVelocityPerDay:  stats.Round2(recentVelocity),
		Acceleration:          stats.Round2(acceleration),
		LeadTime:              leadTimeDistribution(bookings),
		Forecast:              forecast(bookings, now, days, velocity),
		Search:                search,
		SearchRecommendations: searchRecommendations(search),
	}

	samples := float64(len(bookings)) + float64(len(searches))/demandSearchWeight
	return models.AgentReport{
		Agent:           models.AgentDemand,
		Success:         true,
		Confidence:      stats.SampleConfidence(samples, demandConfidenceSat, demandConfidenceLimit),
		SampleSize:      len(bookings) + len(searches),
		Recommendations: velocityRecommendations(acceleration),
		Demand:          analysis,
	}
}

func velocityRecommendations(acceleration float64) []models.Recommendation {
	switch {
	case acceleration > demandAccelerating:
		return []models.Recommendation{{
			Action:  models.ActionBuy,
			Reason:  fmt.Sprintf("booking velocity accelerating (%.2fx)", acceleration),
			Urgency: models.UrgencyHigh,
		}}
	case acceleration < demandDecelerating:
		return []models.Recommendation{{
			Action:  models.ActionCaution,
			Reason:  fmt.Sprintf("booking velocity slowing (%.2fx)", acceleration),
			Urgency: models.UrgencyMedium,
		}}
	default:
		return []models.Recommendation{{
			Action:  models.ActionHold,
			Reason:  "booking velocity steady",
			Urgency: models.UrgencyLow,
		}}
	}
}

func leadTimeDistribution(bookings []models.BookingRecord) []models.LeadTimeBucket {
	out := make([]models.LeadTimeBucket, len(leadTimeLabels))
	for i, l := range leadTimeLabels {
		out[i].Label = l.label
	}
	for _, b := range bookings {
		lead := int(math.Max(0, math.Floor(daysBetween(b.InsertedAt, b.CheckIn))))
		for i, l := range leadTimeLabels {
			if lead <= l.max {
				out[i].Count++
				break
			}
		}
	}
	for i := range out {
		out[i].Share = stats.Round2(float64(out[i].Count) / float64(len(bookings)))
	}
	return out
}

// forecast projects demand for the next days. Days with historical check-ins
// on the same month and day use that count; the rest fall back to the base
// daily rate. Both are scaled by the weekday multiplier.
func forecast(bookings []models.BookingRecord, now time.Time, days int, baseRate float64) []models.DemandForecastDay {
	sameDay := map[[2]int]int{}
	for _, b := range bookings {
		sameDay[[2]int{int(b.CheckIn.Month()), b.CheckIn.Day()}]++
	}
	out := make([]models.DemandForecastDay, 0, days)
	for i := 1; i <= days; i++ {
		date := now.AddDate(0, 0, i).Truncate(24 * time.Hour)
		base := baseRate
		if n := sameDay[[2]int{int(date.Month()), date.Day()}]; n > 0 {
			base = float64(n)
		}
		mult := WeekdayMultiplier[date.Weekday()]
		expected := base * mult

		level := models.DemandMedium
		if baseRate > 0 {
			switch ratio := expected / baseRate; {
			case ratio > demandForecastHighRatio:
				level = models.DemandHigh
			case ratio < demandForecastLowRatio:
				level = models.DemandLow
			}
		}
		out = append(out, models.DemandForecastDay{
			Date:       date,
			Expected:   stats.Round2(expected),
			Multiplier: mult,
			Level:      level,
		})
	}
	return out
}

func searchIntent(searches []models.SearchRecord, now time.Time, lookbackDays int) models.SearchIntent {
	si := models.SearchIntent{Searches: len(searches), Trend: models.TrendStable}
	if len(searches) == 0 {
		return si
	}
	first := searches[0].UpdatedAt
	for _, s := range searches {
		if s.UpdatedAt.Before(first) {
			first = s.UpdatedAt
		}
	}
	span := int(daysBetween(first, now)) + 1
	if lookbackDays > 0 && span > lookbackDays {
		span = lookbackDays
	}
	if span < 1 {
		span = 1
	}
	daily := make([]float64, span)
	for _, s := range searches {
		age := int(daysBetween(s.UpdatedAt, now))
		if age < 0 || age >= span {
			continue
		}
		daily[span-1-age]++
	}
	si.PerDay = stats.Round2(float64(len(searches)) / float64(span))
	trend, change := stats.Trend(daily, stats.DefaultTrendWindow, stats.DefaultTrendDeadZone)
	si.Trend = trend
	si.TrendChangePct = stats.Round2(change)
	return si
}

func searchRecommendations(si models.SearchIntent) []models.Recommendation {
	switch si.Trend {
	case models.TrendRising:
		return []models.Recommendation{{
			Action:  models.ActionBuy,
			Reason:  fmt.Sprintf("search interest rising %.1f%%", si.TrendChangePct),
			Urgency: models.UrgencyMedium,
		}}
	case models.TrendFalling:
		return []models.Recommendation{{
			Action:  models.ActionHold,
			Reason:  fmt.Sprintf("search interest falling %.1f%%", -si.TrendChangePct),
			Urgency: models.UrgencyLow,
		}}
	default:
		return nil
	}
}
