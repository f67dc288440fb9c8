package pricing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoomArb/internal/domain/models"
)

type fakeSignals struct {
	perf      models.HotelPerformance
	perfErr   error
	search    int
	occupancy float64
	hasOcc    bool
	outcomes  []models.PriceOutcome
	calls     int32
}

func (f *fakeSignals) FetchHistoricalPerformance(context.Context, string, int) (models.HotelPerformance, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.perf, f.perfErr
}

func (f *fakeSignals) FetchSearchVolume(context.Context, string, int) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.search, nil
}

func (f *fakeSignals) FetchOccupancy(context.Context, string, time.Month) (float64, bool, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.occupancy, f.hasOcc, nil
}

func (f *fakeSignals) FetchPriceOutcomes(context.Context, string, int) ([]models.PriceOutcome, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.outcomes, nil
}

type fakeCompetitors struct {
	snap models.CompetitorSnapshot
	err  error
}

func (f *fakeCompetitors) FetchCompetitorSnapshot(context.Context, string, time.Time, time.Time) (models.CompetitorSnapshot, error) {
	return f.snap, f.err
}

// A Thursday in March, 30 days after the pinned clock.
var (
	clock   = time.Date(2025, 2, 4, 12, 0, 0, 0, time.UTC)
	checkIn = time.Date(2025, 3, 6, 12, 0, 0, 0, time.UTC)
)

func newTestPredictor(s *fakeSignals, c *fakeCompetitors) *Predictor {
	return NewPredictor(s, c, WithClock(func() time.Time { return clock }))
}

func TestPredictPriceFallsBackWithoutData(t *testing.T) {
	p := newTestPredictor(&fakeSignals{}, &fakeCompetitors{err: errors.New("clickhouse down")})
	pred, err := p.PredictPrice(context.Background(), PredictRequest{
		HotelID:  "H1",
		CheckIn:  checkIn,
		CheckOut: checkIn.AddDate(0, 0, 2),
		BuyPrice: 100,
	})
	require.NoError(t, err)

	f := pred.Features
	assert.True(t, f.CompetitorFallback)
	assert.True(t, f.HistoryFallback)
	assert.True(t, f.OccupancyFallback)
	assert.Equal(t, 130.0, f.CompetitorAvg)
	assert.Equal(t, 115.0, f.CompetitorMin)
	assert.Equal(t, 150.0, f.CompetitorMax)
	assert.Equal(t, 125.0, f.HistoricalAvg)
	assert.Equal(t, 30, f.LeadTimeDays)
	assert.Equal(t, models.DemandMedium, f.DemandLevel)

	assert.GreaterOrEqual(t, pred.OptimalPrice, 110.0)
	assert.LessOrEqual(t, pred.OptimalPrice, 200.0)
	assert.InDelta(t, 129.23, pred.OptimalPrice, 0.05)
	assert.InDelta(t, 0.3, pred.Confidence, 1e-9)
	assert.Equal(t, models.RiskHigh, pred.Risk)
	assert.InDelta(t, 0.98, pred.Components.SeasonalFactor, 1e-9)
	assert.InDelta(t, -0.9, pred.Components.Elasticity, 1e-9)
	assert.Less(t, pred.Bounds.Min, pred.OptimalPrice)
	assert.Greater(t, pred.Bounds.Max, pred.OptimalPrice)
}

func TestPredictPriceRejectsInvalidInputBeforeCalls(t *testing.T) {
	s := &fakeSignals{}
	p := newTestPredictor(s, &fakeCompetitors{})
	tests := []struct {
		name  string
		req   PredictRequest
		field string
	}{
		{"zero buy price", PredictRequest{HotelID: "H", CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 1)}, "buy_price"},
		{"negative buy price", PredictRequest{HotelID: "H", CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 1), BuyPrice: -5}, "buy_price"},
		{"reversed stay", PredictRequest{HotelID: "H", CheckIn: checkIn, CheckOut: checkIn, BuyPrice: 100}, "check_out"},
		{"missing hotel", PredictRequest{CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 1), BuyPrice: 100}, "hotel_id"},
		{"bad demand", PredictRequest{HotelID: "H", CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 1), BuyPrice: 100, DemandLevel: "extreme"}, "demand_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.PredictPrice(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrInvalidConstraint)
			var ce *models.ConstraintError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
	assert.Zero(t, atomic.LoadInt32(&s.calls))
}

func TestPredictPriceUsesObservedData(t *testing.T) {
	s := &fakeSignals{
		perf:      models.HotelPerformance{BookingCount: 80, AvgPrice: 150, SuccessRate: 0.6},
		search:    150,
		occupancy: 0.9,
		hasOcc:    true,
	}
	c := &fakeCompetitors{snap: models.CompetitorSnapshot{Avg: 160, Min: 140, Max: 190, CompetitorCount: 8}}
	pred, err := newTestPredictor(s, c).PredictPrice(context.Background(), PredictRequest{
		HotelID:     "H1",
		CheckIn:     checkIn,
		CheckOut:    checkIn.AddDate(0, 0, 2),
		BuyPrice:    100,
		DemandLevel: "HIGH",
	})
	require.NoError(t, err)
	assert.False(t, pred.Features.CompetitorFallback)
	assert.False(t, pred.Features.HistoryFallback)
	assert.InDelta(t, 0.95, pred.Confidence, 1e-9)
	assert.GreaterOrEqual(t, pred.OptimalPrice, 110.0)
	assert.LessOrEqual(t, pred.OptimalPrice, 200.0)
	assert.GreaterOrEqual(t, pred.ExpectedConversion, 0.0)
	assert.LessOrEqual(t, pred.ExpectedConversion, 1.0)
}

func TestEnsembleRespectsBoundsForExtremeFeatures(t *testing.T) {
	cases := []models.PriceFeatures{
		{BuyPrice: 100, HistoricalAvg: 10, CompetitorAvg: 10, DemandLevel: models.DemandLow, Month: 1, Occupancy: 0.1},
		{BuyPrice: 100, HistoricalAvg: 900, CompetitorAvg: 900, CompetitorCount: 30, DemandLevel: models.DemandVeryHigh, Month: 7, Weekend: true, HighSeason: true, Occupancy: 0.95},
	}
	for _, f := range cases {
		pred := Ensemble(f)
		assert.GreaterOrEqual(t, pred.OptimalPrice, 110.0)
		assert.LessOrEqual(t, pred.OptimalPrice, 200.0)
		assert.GreaterOrEqual(t, pred.Confidence, 0.0)
		assert.LessOrEqual(t, pred.Confidence, 0.95)
		assert.GreaterOrEqual(t, pred.ExpectedConversion, 0.0)
		assert.LessOrEqual(t, pred.ExpectedConversion, 1.0)
	}
}

func TestEnsembleStaysInBandForFractionalBuyPrices(t *testing.T) {
	buys := []float64{100.004, 99.995, 0.37, 57.333, 123.456789, 1e-3, 45000.015}
	for _, buy := range buys {
		low := models.PriceFeatures{BuyPrice: buy, HistoricalAvg: buy * 0.1, CompetitorAvg: buy * 0.1, DemandLevel: models.DemandLow, Month: 1, Occupancy: 0.1}
		high := models.PriceFeatures{BuyPrice: buy, HistoricalAvg: buy * 9, CompetitorAvg: buy * 9, CompetitorCount: 30, DemandLevel: models.DemandVeryHigh, Month: 7, Weekend: true, HighSeason: true, Occupancy: 0.95}
		for _, f := range []models.PriceFeatures{low, high} {
			pred := Ensemble(f)
			assert.GreaterOrEqual(t, pred.OptimalPrice, buy*MinMarginMultiplier, "buy %v", buy)
			assert.LessOrEqual(t, pred.OptimalPrice, buy*MaxPriceMultiplier, "buy %v", buy)
			assert.GreaterOrEqual(t, pred.ExpectedConversion, 0.0)
			assert.LessOrEqual(t, pred.ExpectedConversion, 1.0)
		}
	}
}

func TestPriceWithinBand(t *testing.T) {
	assert.Equal(t, 110.01, PriceWithinBand(50, 100.004))
	assert.Equal(t, 200.0, PriceWithinBand(1e6, 100.004))
	assert.Equal(t, 150.25, PriceWithinBand(150.2549, 100))
	// narrower than a cent: unrounded clamp
	assert.InDelta(t, 0.0011, PriceWithinBand(0, 0.001), 1e-12)
}

func TestSubModels(t *testing.T) {
	f := models.PriceFeatures{BuyPrice: 100, LeadTimeDays: 3, CompetitorCount: 12}
	assert.InDelta(t, -1.3, EstimateElasticity(f), 1e-9)
	f.LeadTimeDays, f.CompetitorCount = 90, 1
	assert.InDelta(t, -1.2, EstimateElasticity(f), 1e-9)

	assert.InDelta(t, 15.0, ElasticityAdjustment(100, 2), 1e-9)
	assert.InDelta(t, -15.0, ElasticityAdjustment(100, -3), 1e-9)

	near := models.PriceFeatures{CompetitorAvg: 102, CompetitorCount: 0}
	far := models.PriceFeatures{CompetitorAvg: 150, CompetitorCount: 20}
	assert.InDelta(t, 2*0.25*0.5*0.3, CompetitorAdjustment(near, 100), 1e-9)
	assert.InDelta(t, 50*0.25*1.0, CompetitorAdjustment(far, 100), 1e-9)

	assert.InDelta(t, 1.18+0.05+0.05, SeasonalFactor(models.PriceFeatures{Month: 7, Weekend: true, Occupancy: 0.9}), 1e-9)
	assert.InDelta(t, 0.90+0.02, SeasonalFactor(models.PriceFeatures{Month: 1, Occupancy: 0.75}), 1e-9)
}

func TestConversionBlendsHistory(t *testing.T) {
	f := models.PriceFeatures{CompetitorAvg: 100, DemandLevel: models.DemandMedium, LeadTimeDays: 14}
	assert.InDelta(t, 0.35, ConversionRate(f, 95), 1e-9)
	f.HistoricalSamples, f.HistoricalConversion = 20, 0.8
	assert.InDelta(t, 0.6*0.35+0.4*0.8, ConversionRate(f, 95), 1e-9)
}

func TestPredictionRisk(t *testing.T) {
	assert.Equal(t, models.RiskLow, PredictionRisk(0.8, 20, 0.3))
	assert.Equal(t, models.RiskMedium, PredictionRisk(0.8, 10, 0.3))
	assert.Equal(t, models.RiskHigh, PredictionRisk(0.4, 30, 0.3))
	assert.Equal(t, models.RiskHigh, PredictionRisk(0.9, 30, 0.1))
}
