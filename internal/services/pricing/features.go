package pricing

import (
	"context"
	"math"
	"sync"
	"time"

	"RoomArb/internal/domain/models"
	domrepo "RoomArb/internal/domain/repository"
	"RoomArb/internal/services/stats"
	"RoomArb/pkg/logger"
)

// Fallback multipliers of the buy price used when upstream data is missing.
const (
	FallbackHistoricalAvg = 1.25
	FallbackCompetitorAvg = 1.30
	FallbackCompetitorMin = 1.15
	FallbackCompetitorMax = 1.50
	FallbackOccupancy     = 0.70
)

var highSeasonMonths = map[time.Month]bool{
	time.June:     true,
	time.July:     true,
	time.August:   true,
	time.December: true,
}

// extractFeatures joins the request with hotel history, competitor prices,
// search volume and occupancy. The four lookups run concurrently; a failed or
// empty lookup is replaced with its fallback constant.
func (p *Predictor) extractFeatures(ctx context.Context, req PredictRequest, lead int) models.PriceFeatures {
	f := models.PriceFeatures{
		BuyPrice:     req.BuyPrice,
		LeadTimeDays: lead,
		DemandLevel:  req.DemandLevel,
		Month:        int(req.CheckIn.Month()),
		Weekend:      isWeekend(req.CheckIn),
		HighSeason:   highSeasonMonths[req.CheckIn.Month()],
	}

	type item struct {
		name string
		val  interface{}
		ok   bool
		err  error
	}
	ch := make(chan item, 4)
	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		v, err := p.signals.FetchHistoricalPerformance(ctx, req.HotelID, domrepo.DefaultHistoryMonths)
		ch <- item{"history", v, err == nil, err}
	}()
	go func() {
		defer wg.Done()
		v, err := p.competitors.FetchCompetitorSnapshot(ctx, req.HotelID, req.CheckIn, req.CheckOut)
		ch <- item{"competitors", v, err == nil, err}
	}()
	go func() {
		defer wg.Done()
		v, err := p.signals.FetchSearchVolume(ctx, req.HotelID, domrepo.DefaultSearchDays)
		ch <- item{"search", v, err == nil, err}
	}()
	go func() {
		defer wg.Done()
		v, ok, err := p.signals.FetchOccupancy(ctx, req.HotelID, req.CheckIn.Month())
		ch <- item{"occupancy", v, ok && err == nil, err}
	}()
	go func() { wg.Wait(); close(ch) }()

	var (
		hist    models.HotelPerformance
		comp    models.CompetitorSnapshot
		haveH   bool
		haveC   bool
		haveOcc bool
	)
	for it := range ch {
		if it.err != nil {
			p.metrics.RecordUpstreamError(it.name)
			p.log.Warn("feature lookup failed, using fallback",
				logger.String("feature", it.name),
				logger.String("hotel_id", req.HotelID),
				logger.Error(it.err),
			)
			continue
		}
		switch it.name {
		case "history":
			hist = it.val.(models.HotelPerformance)
			haveH = it.ok
		case "competitors":
			comp = it.val.(models.CompetitorSnapshot)
			haveC = it.ok
		case "search":
			f.SearchVolume = it.val.(int)
		case "occupancy":
			if it.ok {
				f.Occupancy = it.val.(float64)
				haveOcc = true
			}
		}
	}

	if haveH && hist.BookingCount > 0 && hist.AvgPrice > 0 {
		f.HistoricalAvg = hist.AvgPrice
		f.HistoricalConversion = stats.Clamp01(hist.SuccessRate)
		f.HistoricalSamples = hist.BookingCount
	} else {
		f.HistoricalAvg = req.BuyPrice * FallbackHistoricalAvg
		f.HistoryFallback = true
	}

	if haveC && comp.CompetitorCount > 0 && comp.Avg > 0 {
		f.CompetitorAvg = comp.Avg
		f.CompetitorMin = comp.Min
		f.CompetitorMax = comp.Max
		f.CompetitorCount = comp.CompetitorCount
	} else {
		f.CompetitorAvg = req.BuyPrice * FallbackCompetitorAvg
		f.CompetitorMin = req.BuyPrice * FallbackCompetitorMin
		f.CompetitorMax = req.BuyPrice * FallbackCompetitorMax
		f.CompetitorFallback = true
	}

	if !haveOcc {
		f.Occupancy = FallbackOccupancy
		f.OccupancyFallback = true
	}
	f.Occupancy = stats.Clamp01(f.Occupancy)
	return f
}

// isWeekend is true for Friday and Saturday check-ins.
func isWeekend(t time.Time) bool {
	d := t.Weekday()
	return d == time.Friday || d == time.Saturday
}

// leadTime derives whole days from now to check-in, never negative.
func leadTime(now, checkIn time.Time) int {
	d := checkIn.Sub(now).Hours() / 24
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d))
}
