package agents

import (
	"fmt"
	"sort"

	"RoomArb/internal/domain/models"
	"RoomArb/internal/services/stats"
)

const (
	competitionMinBookings     = 10
	competitionGapPct          = 20.0
	competitionLeaderConv      = 0.5
	competitionLaggardVolume   = 10
	competitionLaggardConv     = 0.2
	competitionConfidenceSat   = 100.0
	competitionConfidenceLimit = 0.9
)

// Composite score weights.
const (
	weightVolume     = 0.3
	weightConversion = 0.3
	weightPrice      = 0.2
	weightInventory  = 0.2
)

// Competition ranks the hotels of the scoped city against each other. It
// ignores the hotel part of the scope; a hotel-scoped batch carries the
// bookings of the hotel's whole city.
func Competition(batch models.SignalBatch, p Params) models.AgentReport {
	bookings := batch.FilterBookings(models.Scope{City: p.Scope.City})
	if len(bookings) < competitionMinBookings {
		return insufficient(models.AgentCompetition, "bookings", len(bookings), competitionMinBookings)
	}

	groups, ids := groupByHotel(bookings)
	ranking := make([]models.CompetitorStats, 0, len(ids))
	maxVolume, maxActive := 0, 0
	minAvg := 0.0
	for _, id := range ids {
		hb := groups[id]
		ps := prices(hb)
		cs := models.CompetitorStats{
			HotelID:       id,
			HotelName:     hb[0].HotelName,
			Volume:        len(hb),
			AvgPrice:      stats.Round2(stats.Mean(ps)),
			VolatilityPct: stats.Round2(stats.CV(ps) * 100),
		}
		sold := 0
		for _, b := range hb {
			if b.Sold {
				sold++
			}
			if b.Active {
				cs.ActiveInventory++
			}
		}
		cs.ConversionRate = stats.Round2(float64(sold) / float64(len(hb)))
		if cs.Volume > maxVolume {
			maxVolume = cs.Volume
		}
		if cs.ActiveInventory > maxActive {
			maxActive = cs.ActiveInventory
		}
		if cs.AvgPrice > 0 && (minAvg == 0 || cs.AvgPrice < minAvg) {
			minAvg = cs.AvgPrice
		}
		ranking = append(ranking, cs)
	}

	for i := range ranking {
		ranking[i].Score = stats.Round2(compositeScore(ranking[i], maxVolume, maxActive, minAvg))
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].Score != ranking[j].Score {
			return ranking[i].Score > ranking[j].Score
		}
		return ranking[i].HotelID < ranking[j].HotelID
	})
	var leaders, laggards []string
	for i := range ranking {
		ranking[i].Rank = i + 1
		if ranking[i].ConversionRate > competitionLeaderConv {
			leaders = append(leaders, ranking[i].HotelID)
		}
		if ranking[i].Volume > competitionLaggardVolume && ranking[i].ConversionRate < competitionLaggardConv {
			laggards = append(laggards, ranking[i].HotelID)
		}
	}

	analysis := &models.CompetitionAnalysis{
		HotelCount:      len(ranking),
		Ranking:         ranking,
		PriceGaps:       priceGaps(ranking),
		Leaders:         leaders,
		Underperformers: laggards,
	}
	return models.AgentReport{
		Agent:           models.AgentCompetition,
		Success:         true,
		Confidence:      stats.SampleConfidence(float64(len(bookings)), competitionConfidenceSat, competitionConfidenceLimit),
		SampleSize:      len(bookings),
		Recommendations: competitionRecommendations(analysis),
		Competition:     analysis,
	}
}

func compositeScore(cs models.CompetitorStats, maxVolume, maxActive int, minAvg float64) float64 {
	score := 0.0
	if maxVolume > 0 {
		score += weightVolume * float64(cs.Volume) / float64(maxVolume)
	}
	score += weightConversion * cs.ConversionRate
	if cs.AvgPrice > 0 {
		score += weightPrice * minAvg / cs.AvgPrice
	}
	if maxActive > 0 {
		score += weightInventory * float64(cs.ActiveInventory) / float64(maxActive)
	}
	return stats.ClampPct(score * 100)
}

// priceGaps reports jumps above the gap threshold between adjacent hotels
// ordered by average price.
func priceGaps(ranking []models.CompetitorStats) []models.PriceGap {
	byPrice := make([]models.CompetitorStats, 0, len(ranking))
	for _, cs := range ranking {
		if cs.AvgPrice > 0 {
			byPrice = append(byPrice, cs)
		}
	}
	sort.SliceStable(byPrice, func(i, j int) bool {
		if byPrice[i].AvgPrice != byPrice[j].AvgPrice {
			return byPrice[i].AvgPrice < byPrice[j].AvgPrice
		}
		return byPrice[i].HotelID < byPrice[j].HotelID
	})
	var gaps []models.PriceGap
	for i := 1; i < len(byPrice); i++ {
		lo, hi := byPrice[i-1], byPrice[i]
		gap := stats.PctChange(lo.AvgPrice, hi.AvgPrice)
		if gap > competitionGapPct {
			gaps = append(gaps, models.PriceGap{
				LowerHotelID: lo.HotelID,
				UpperHotelID: hi.HotelID,
				LowerPrice:   lo.AvgPrice,
				UpperPrice:   hi.AvgPrice,
				GapPct:       stats.Round2(gap),
			})
		}
	}
	return gaps
}

func competitionRecommendations(a *models.CompetitionAnalysis) []models.Recommendation {
	var recs []models.Recommendation
	if len(a.PriceGaps) > 0 {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionBuy,
			Reason:  fmt.Sprintf("%d price gaps above %.0f%% between competitors", len(a.PriceGaps), competitionGapPct),
			Urgency: models.UrgencyMedium,
		})
	}
	if len(a.Leaders) > 0 {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionBuy,
			Reason:  fmt.Sprintf("%d market leaders converting above %.0f%%", len(a.Leaders), competitionLeaderConv*100),
			Urgency: models.UrgencyMedium,
		})
	}
	if len(a.Underperformers) > 0 {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionCaution,
			Reason:  fmt.Sprintf("%d high-volume hotels converting below %.0f%%", len(a.Underperformers), competitionLaggardConv*100),
			Urgency: models.UrgencyLow,
		})
	}
	if len(recs) == 0 {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionHold,
			Reason:  "no competitive edge detected",
			Urgency: models.UrgencyLow,
		})
	}
	return recs
}
