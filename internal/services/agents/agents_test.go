package agents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoomArb/internal/domain/models"
)

// Monday.
var testNow = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

func booking(id, hotel string, price float64, insertedDaysAgo, checkInInDays int) models.BookingRecord {
	return models.BookingRecord{
		ID:         id,
		HotelID:    hotel,
		HotelName:  "Hotel " + hotel,
		City:       "Lisbon",
		Source:     "direct",
		Price:      price,
		ListPrice:  price * 1.2,
		Active:     true,
		InsertedAt: testNow.AddDate(0, 0, -insertedDaysAgo),
		CheckIn:    testNow.AddDate(0, 0, checkInInDays),
		CheckOut:   testNow.AddDate(0, 0, checkInInDays+2),
	}
}

func batchOf(bookings ...models.BookingRecord) models.SignalBatch {
	return models.SignalBatch{AsOf: testNow, LookbackDays: 90, Bookings: bookings}
}

func TestAgentsDeclineOnEmptyBatch(t *testing.T) {
	for _, a := range Default() {
		t.Run(string(a.ID), func(t *testing.T) {
			r := a.Fn(models.SignalBatch{AsOf: testNow}, Params{})
			assert.False(t, r.Success)
			assert.Zero(t, r.Confidence)
			assert.Contains(t, r.Reason, "insufficient")
		})
	}
}

func TestDetectorFlagsDiscountedBookings(t *testing.T) {
	var bs []models.BookingRecord
	for i := 0; i < 20; i++ {
		bs = append(bs, booking(fmt.Sprintf("n%02d", i), "H", 100, 10, 45))
	}
	for i := 0; i < 5; i++ {
		bs = append(bs, booking(fmt.Sprintf("d%02d", i), "H", 40, 5, 45))
	}

	r := Detector(batchOf(bs...), Params{})
	require.True(t, r.Success)
	require.NotNil(t, r.Opportunities)
	assert.Equal(t, 5, r.Opportunities.Counts[models.KindBuy])

	for _, o := range r.Opportunities.Opportunities[:5] {
		assert.Equal(t, models.KindBuy, o.Kind)
		assert.InDelta(t, 60.0, o.DiscountPct, 0.5)
		assert.Equal(t, models.PriorityHigh, o.Priority)
		assert.InDelta(t, 90.0, o.FinalScore, 0.01)
	}
	assert.Equal(t, models.ActionBuy, r.Recommendations[0].Action)
}

func TestDetectorArbitrageAcrossSources(t *testing.T) {
	bs := []models.BookingRecord{
		booking("a1", "H", 100, 3, 20),
		booking("a2", "H", 140, 3, 20),
		booking("a3", "H", 120, 3, 30),
		booking("a4", "H", 120, 3, 30),
		booking("a5", "H", 120, 3, 30),
	}
	bs[1].Source = "wholesaler"

	r := Detector(batchOf(bs...), Params{})
	require.True(t, r.Success)
	var arb *models.DetectedOpportunity
	for i, o := range r.Opportunities.Opportunities {
		if o.Kind == models.KindArbitrage {
			arb = &r.Opportunities.Opportunities[i]
		}
	}
	require.NotNil(t, arb)
	assert.Equal(t, "a1", arb.BookingID)
	assert.InDelta(t, 40.0, arb.SpreadPct, 0.01)
	assert.Equal(t, models.PriorityHigh, arb.Priority)
	assert.InDelta(t, 72.0, arb.FinalScore, 0.01)
}

func TestDetectorTimingOpportunities(t *testing.T) {
	bs := []models.BookingRecord{
		booking("t1", "H", 100, 20, 2),
		booking("t2", "H", 100, 20, 6),
		booking("t3", "H", 100, 20, 40),
		booking("t4", "H", 100, 20, 40),
		booking("t5", "H", 100, 20, 40),
	}
	bs[1].Sold = true

	r := Detector(batchOf(bs...), Params{})
	require.True(t, r.Success)
	require.Equal(t, 1, r.Opportunities.Counts[models.KindTiming])
	o := r.Opportunities.Opportunities[0]
	assert.Equal(t, "t1", o.BookingID)
	assert.Equal(t, models.PriorityHigh, o.Priority)
	assert.Equal(t, 2, o.DaysToCheckIn)
}

func TestDetectorFiltersOnlyNarrow(t *testing.T) {
	var bs []models.BookingRecord
	for i := 0; i < 20; i++ {
		bs = append(bs, booking(fmt.Sprintf("n%02d", i), "H", 100, 10, 45))
	}
	for i := 0; i < 5; i++ {
		bs = append(bs, booking(fmt.Sprintf("d%02d", i), "H", 40, 5, 45))
	}
	batch := batchOf(bs...)

	all := Detector(batch, Params{})
	narrowed := Detector(batch, Params{
		Filter:      &Filter{MinMarginPct: 10},
		Instruction: "margin above 50%",
	})
	require.True(t, narrowed.Success)
	assert.Less(t, len(narrowed.Opportunities.Opportunities), len(all.Opportunities.Opportunities))
	assert.Equal(t, 5, len(narrowed.Opportunities.Opportunities))
	assert.Equal(t, 20, narrowed.Opportunities.Filtered)

	// A looser instruction cannot undo the structured filter.
	loose := Detector(batch, Params{
		Filter:      &Filter{MinMarginPct: 50},
		Instruction: "margin above 1%",
	})
	assert.Equal(t, 5, len(loose.Opportunities.Opportunities))
}

func TestMarketAnalysis(t *testing.T) {
	var bs []models.BookingRecord
	for i := 0; i < 7; i++ {
		bs = append(bs, booking(fmt.Sprintf("o%d", i), "H", 100, 30-i, 40))
	}
	for i := 0; i < 7; i++ {
		bs = append(bs, booking(fmt.Sprintf("n%d", i), "H", 130, 10-i, 40))
	}
	batch := batchOf(bs...)

	r := Market(batch, Params{Scope: models.Scope{HotelID: "H"}})
	require.True(t, r.Success)
	require.NotNil(t, r.Market)
	assert.Equal(t, models.TrendRising, r.Market.Trend)
	assert.InDelta(t, 115.0, r.Market.Prices.Mean, 0.01)
	assert.InDelta(t, 13.04, r.Market.Indicators.PricePositionPct, 0.01)
	require.Len(t, r.Recommendations, 1)
	assert.Equal(t, models.ActionSell, r.Recommendations[0].Action)
	assert.Greater(t, r.Confidence, 0.0)
	assert.LessOrEqual(t, r.Confidence, 1.0)

	again := Market(batch, Params{Scope: models.Scope{HotelID: "H"}})
	assert.Equal(t, r.Market.Trend, again.Market.Trend)
}

func TestMarketScopeExcludesOtherHotels(t *testing.T) {
	var bs []models.BookingRecord
	for i := 0; i < 12; i++ {
		bs = append(bs, booking(fmt.Sprintf("x%d", i), "X", 100, i, 40))
	}
	r := Market(batchOf(bs...), Params{Scope: models.Scope{HotelID: "H"}})
	assert.False(t, r.Success)
	assert.Zero(t, r.SampleSize)
}

func TestDemandForecastAndSearchIntent(t *testing.T) {
	var bs []models.BookingRecord
	for i := 0; i < 10; i++ {
		bs = append(bs, booking(fmt.Sprintf("b%d", i), "H", 100, 60-i*6, 20+i))
	}
	batch := batchOf(bs...)
	for age := 13; age >= 0; age-- {
		n := 1
		if age < 7 {
			n = 3
		}
		for j := 0; j < n; j++ {
			batch.Searches = append(batch.Searches, models.SearchRecord{
				HotelID:   "H",
				City:      "Lisbon",
				UpdatedAt: testNow.AddDate(0, 0, -age),
			})
		}
	}

	r := Demand(batch, Params{Scope: models.Scope{HotelID: "H"}})
	require.True(t, r.Success)
	require.NotNil(t, r.Demand)
	require.Len(t, r.Demand.Forecast, 14)
	assert.Equal(t, time.Tuesday, r.Demand.Forecast[0].Date.Weekday())
	assert.Equal(t, 0.80, r.Demand.Forecast[0].Multiplier)
	assert.Equal(t, 1.40, r.Demand.Forecast[4].Multiplier)

	assert.Equal(t, 28, r.Demand.Search.Searches)
	assert.Equal(t, models.TrendRising, r.Demand.Search.Trend)
	require.Len(t, r.Demand.SearchRecommendations, 1)
	assert.Equal(t, models.ActionBuy, r.Demand.SearchRecommendations[0].Action)

	var total int
	for _, b := range r.Demand.LeadTime {
		total += b.Count
	}
	assert.Equal(t, 10, total)
}

func TestCompetitionRanksAndFindsGaps(t *testing.T) {
	var bs []models.BookingRecord
	for i := 0; i < 6; i++ {
		a := booking(fmt.Sprintf("a%d", i), "A", 100, 10, 30)
		a.Sold = i < 4
		bs = append(bs, a, booking(fmt.Sprintf("b%d", i), "B", 150, 10, 30))
	}

	r := Competition(batchOf(bs...), Params{Scope: models.Scope{HotelID: "A", City: "Lisbon"}})
	require.True(t, r.Success)
	require.NotNil(t, r.Competition)
	c := r.Competition
	assert.Equal(t, 2, c.HotelCount)
	assert.Equal(t, "A", c.Ranking[0].HotelID)
	assert.Equal(t, 1, c.Ranking[0].Rank)
	require.Len(t, c.PriceGaps, 1)
	assert.InDelta(t, 50.0, c.PriceGaps[0].GapPct, 0.01)
	assert.Equal(t, []string{"A"}, c.Leaders)
	assert.Empty(t, c.Underperformers)
	for _, cs := range c.Ranking {
		assert.GreaterOrEqual(t, cs.Score, 0.0)
		assert.LessOrEqual(t, cs.Score, 100.0)
	}
}

func TestRunRecoversPanicsAndKeepsOrder(t *testing.T) {
	boom := func(models.SignalBatch, Params) models.AgentReport { panic("boom") }
	ok := func(models.SignalBatch, Params) models.AgentReport {
		return models.AgentReport{Success: true, Confidence: 0.8}
	}
	reports := Run(context.Background(), models.SignalBatch{}, Params{}, []Named{
		{ID: models.AgentMarket, Fn: ok},
		{ID: models.AgentDemand, Fn: boom},
	})
	require.Len(t, reports, 2)
	assert.Equal(t, models.AgentMarket, reports[0].Agent)
	assert.True(t, reports[0].Success)
	assert.Equal(t, models.AgentDemand, reports[1].Agent)
	assert.False(t, reports[1].Success)
	assert.Zero(t, reports[1].Confidence)
	assert.Contains(t, reports[1].Reason, "boom")
	assert.Len(t, Successful(reports), 1)
}

func TestRunHonoursCancelledContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	slow := func(models.SignalBatch, Params) models.AgentReport {
		<-block
		return models.AgentReport{Success: true}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reports := Run(ctx, models.SignalBatch{}, Params{}, []Named{{ID: models.AgentMarket, Fn: slow}})
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Success)
	assert.Equal(t, models.AgentMarket, reports[0].Agent)
}

func TestFailedReportHasZeroConfidence(t *testing.T) {
	liar := func(models.SignalBatch, Params) models.AgentReport {
		return models.AgentReport{Success: false, Confidence: 0.9}
	}
	reports := Run(context.Background(), models.SignalBatch{}, Params{}, []Named{{ID: models.AgentDetector, Fn: liar}})
	assert.Zero(t, reports[0].Confidence)
}
