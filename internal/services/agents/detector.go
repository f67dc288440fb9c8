package agents

import (
	"fmt"
	"math"
	"sort"
	"time"

	"RoomArb/internal/domain/models"
	"RoomArb/internal/services/stats"
)

const (
	detectorMinBookings     = 5
	detectorAnomalySigma    = 2.0
	detectorBuyRatio        = 0.85
	detectorSellRatio       = 1.10
	detectorArbitragePct    = 15.0
	detectorArbitrageHigh   = 30.0
	detectorTimingDays      = 7
	detectorTimingUrgent    = 3
	detectorConfidenceSat   = 50.0
	detectorConfidenceLimit = 0.9
	detectorArbitrageBoost  = 1.2
)

// PriorityMultiplier normalizes opportunity scores across classes.
var PriorityMultiplier = map[models.Priority]float64{
	models.PriorityHigh:   1.5,
	models.PriorityMedium: 1.0,
	models.PriorityLow:    0.7,
}

type hotelProfile struct {
	mean, median, std float64
}

// Detector flags price anomalies and derives buy, sell, arbitrage and timing
// opportunities from the scoped bookings, sorted by final score.
func Detector(batch models.SignalBatch, p Params) models.AgentReport {
	bookings := batch.FilterBookings(p.Scope)
	if len(bookings) < detectorMinBookings {
		return insufficient(models.AgentDetector, "bookings", len(bookings), detectorMinBookings)
	}
	now := asOf(batch)

	groups, ids := groupByHotel(bookings)
	profiles := make(map[string]hotelProfile, len(groups))
	for _, id := range ids {
		ps := prices(groups[id])
		profiles[id] = hotelProfile{mean: stats.Mean(ps), median: stats.Median(ps), std: stats.StdDev(ps)}
	}

	scan := &models.OpportunityScan{Counts: map[models.DetectedKind]int{}}
	var opps []models.DetectedOpportunity
	for _, b := range bookings {
		hp := profiles[b.HotelID]
		if hp.std > 0 {
			if z := (b.Price - hp.mean) / hp.std; math.Abs(z) > detectorAnomalySigma {
				scan.Anomalies = append(scan.Anomalies, models.PriceAnomaly{
					BookingID: b.ID,
					HotelID:   b.HotelID,
					Price:     b.Price,
					HotelMean: stats.Round2(hp.mean),
					ZScore:    stats.Round2(z),
				})
			}
		}
		if o, ok := buyOpportunity(b, hp, now); ok {
			opps = append(opps, o)
		}
		if o, ok := sellOpportunity(b, hp, now); ok {
			opps = append(opps, o)
		}
		if o, ok := timingOpportunity(b, now); ok {
			opps = append(opps, o)
		}
	}
	opps = append(opps, arbitrageOpportunities(bookings, now)...)

	for i := range opps {
		final := opps[i].Score * PriorityMultiplier[opps[i].Priority]
		if opps[i].Kind == models.KindArbitrage {
			final *= detectorArbitrageBoost
		}
		opps[i].FinalScore = stats.Round2(final)
	}
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].FinalScore != opps[j].FinalScore {
			return opps[i].FinalScore > opps[j].FinalScore
		}
		if opps[i].BookingID != opps[j].BookingID {
			return opps[i].BookingID < opps[j].BookingID
		}
		return opps[i].Kind < opps[j].Kind
	})

	before := len(opps)
	if p.Filter != nil {
		opps = p.Filter.Apply(opps)
	}
	if p.Instruction != "" {
		f := ParseInstruction(p.Instruction, now)
		opps = f.Apply(opps)
	}
	scan.Filtered = before - len(opps)
	scan.Opportunities = opps
	for _, o := range opps {
		scan.Counts[o.Kind]++
	}

	return models.AgentReport{
		Agent:           models.AgentDetector,
		Success:         true,
		Confidence:      stats.SampleConfidence(float64(len(bookings)), detectorConfidenceSat, detectorConfidenceLimit),
		SampleSize:      len(bookings),
		Recommendations: detectorRecommendations(scan, len(bookings)),
		Opportunities:   scan,
	}
}

func newDetected(kind models.DetectedKind, b models.BookingRecord, now time.Time) models.DetectedOpportunity {
	return models.DetectedOpportunity{
		Kind:               kind,
		BookingID:          b.ID,
		HotelID:            b.HotelID,
		HotelName:          b.HotelName,
		Price:              b.Price,
		DaysToCheckIn:      daysToCheckIn(b.CheckIn, now),
		CheckIn:            b.CheckIn,
		Sold:               b.Sold,
		Pushed:             b.Pushed,
		CancellationPolicy: b.CancellationPolicy,
	}
}

func daysToCheckIn(checkIn, now time.Time) int {
	return int(math.Ceil(daysBetween(now, checkIn)))
}

// Buy discounts are measured against the hotel median so that the cheap
// bookings themselves do not drag the reference down.
func buyOpportunity(b models.BookingRecord, hp hotelProfile, now time.Time) (models.DetectedOpportunity, bool) {
	if !b.Active || b.Price <= 0 || b.Price >= detectorBuyRatio*hp.mean {
		return models.DetectedOpportunity{}, false
	}
	if hp.median <= b.Price {
		return models.DetectedOpportunity{}, false
	}
	discount := (hp.median - b.Price) / hp.median * 100
	o := newDetected(models.KindBuy, b, now)
	o.ReferencePrice = stats.Round2(hp.median)
	o.DiscountPct = stats.Round2(discount)
	profit := hp.median - b.Price
	o.ExpectedProfit = stats.Round2(profit)
	o.MarginPct = stats.Round2(profit / hp.median * 100)
	o.ROIPct = stats.Round2(profit / b.Price * 100)
	o.Priority = discountPriority(discount)
	o.Score = stats.ClampPct(discount)
	o.Reason = fmt.Sprintf("priced %.1f%% below hotel median %.2f", discount, hp.median)
	return o, true
}

func sellOpportunity(b models.BookingRecord, hp hotelProfile, now time.Time) (models.DetectedOpportunity, bool) {
	if b.Sold || !b.Active || b.Price <= detectorSellRatio*hp.mean {
		return models.DetectedOpportunity{}, false
	}
	premium := stats.PctChange(hp.mean, b.Price)
	o := newDetected(models.KindSell, b, now)
	o.ReferencePrice = stats.Round2(hp.mean)
	o.PremiumPct = stats.Round2(premium)
	profit := b.Price - hp.mean
	o.ExpectedProfit = stats.Round2(profit)
	o.MarginPct = stats.Round2(profit / b.Price * 100)
	o.ROIPct = stats.Round2(profit / hp.mean * 100)
	o.Priority = discountPriority(premium)
	o.Score = stats.ClampPct(premium)
	o.Reason = fmt.Sprintf("priced %.1f%% above hotel mean %.2f", premium, hp.mean)
	return o, true
}

func timingOpportunity(b models.BookingRecord, now time.Time) (models.DetectedOpportunity, bool) {
	if b.Sold || !b.Active {
		return models.DetectedOpportunity{}, false
	}
	days := daysToCheckIn(b.CheckIn, now)
	if days < 0 || days > detectorTimingDays {
		return models.DetectedOpportunity{}, false
	}
	o := newDetected(models.KindTiming, b, now)
	o.ReferencePrice = b.ListPrice
	if b.ListPrice > b.Price {
		profit := b.ListPrice - b.Price
		o.ExpectedProfit = stats.Round2(profit)
		o.MarginPct = stats.Round2(profit / b.ListPrice * 100)
		o.ROIPct = stats.Round2(profit / b.Price * 100)
	}
	o.Priority = models.PriorityMedium
	if days <= detectorTimingUrgent {
		o.Priority = models.PriorityHigh
	}
	o.Score = float64(detectorTimingDays+1-days) * 10
	o.Reason = fmt.Sprintf("unsold with check-in in %d days", days)
	return o, true
}

// arbitrageOpportunities pairs the cheapest and dearest active booking of the
// same hotel and check-in day across distinct sources.
func arbitrageOpportunities(bookings []models.BookingRecord, now time.Time) []models.DetectedOpportunity {
	type key struct {
		hotel string
		day   string
	}
	groups := map[key][]models.BookingRecord{}
	var keys []key
	for _, b := range bookings {
		if !b.Active || b.Price <= 0 {
			continue
		}
		k := key{b.HotelID, b.CheckIn.Format("2006-01-02")}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], b)
	}

	var out []models.DetectedOpportunity
	for _, k := range keys {
		g := groups[k]
		lo, hi := g[0], g[0]
		for _, b := range g[1:] {
			if b.Price < lo.Price {
				lo = b
			}
			if b.Price > hi.Price {
				hi = b
			}
		}
		if lo.Source == hi.Source {
			continue
		}
		spread := stats.PctChange(lo.Price, hi.Price)
		if spread <= detectorArbitragePct {
			continue
		}
		o := newDetected(models.KindArbitrage, lo, now)
		o.ReferencePrice = hi.Price
		o.SpreadPct = stats.Round2(spread)
		profit := hi.Price - lo.Price
		o.ExpectedProfit = stats.Round2(profit)
		o.MarginPct = stats.Round2(profit / hi.Price * 100)
		o.ROIPct = stats.Round2(profit / lo.Price * 100)
		o.Priority = models.PriorityMedium
		if spread > detectorArbitrageHigh {
			o.Priority = models.PriorityHigh
		}
		o.Score = stats.ClampPct(spread)
		o.Reason = fmt.Sprintf("%.1f%% spread between %s and %s", spread, lo.Source, hi.Source)
		out = append(out, o)
	}
	return out
}

func discountPriority(pct float64) models.Priority {
	switch {
	case pct > 25:
		return models.PriorityHigh
	case pct > 15:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func detectorRecommendations(scan *models.OpportunityScan, samples int) []models.Recommendation {
	var recs []models.Recommendation
	urgencyOf := func(kind models.DetectedKind) models.Urgency {
		for _, o := range scan.Opportunities {
			if o.Kind == kind && o.Priority == models.PriorityHigh {
				return models.UrgencyHigh
			}
		}
		return models.UrgencyMedium
	}
	if n := scan.Counts[models.KindBuy]; n > 0 {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionBuy,
			Reason:  fmt.Sprintf("%d underpriced bookings", n),
			Urgency: urgencyOf(models.KindBuy),
		})
	}
	if n := scan.Counts[models.KindArbitrage]; n > 0 {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionBuy,
			Reason:  fmt.Sprintf("%d cross-source arbitrage spreads", n),
			Urgency: urgencyOf(models.KindArbitrage),
		})
	}
	if n := scan.Counts[models.KindSell]; n > 0 {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionSell,
			Reason:  fmt.Sprintf("%d overpriced unsold bookings", n),
			Urgency: models.UrgencyMedium,
		})
	}
	if n := scan.Counts[models.KindTiming]; n > 0 {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionSell,
			Reason:  fmt.Sprintf("%d unsold rooms close to check-in", n),
			Urgency: urgencyOf(models.KindTiming),
		})
	}
	if samples > 0 && float64(len(scan.Anomalies))/float64(samples) > 0.1 {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionCaution,
			Reason:  fmt.Sprintf("%d price anomalies", len(scan.Anomalies)),
			Urgency: models.UrgencyMedium,
		})
	}
	if len(recs) == 0 {
		recs = append(recs, models.Recommendation{
			Action:  models.ActionHold,
			Reason:  "no actionable opportunities",
			Urgency: models.UrgencyLow,
		})
	}
	return recs
}
