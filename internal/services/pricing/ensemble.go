// Package pricing implements the ensemble price predictor and the
// elasticity optimizer.
package pricing

import (
	"context"
	"math"
	"strings"
	"time"

	"RoomArb/internal/domain/models"
	domrepo "RoomArb/internal/domain/repository"
	"RoomArb/internal/services/stats"
	"RoomArb/pkg/logger"
	"RoomArb/pkg/metrics"
)

// Price bounds as multiples of the buy price.
const (
	MinMarginMultiplier = 1.10
	MaxPriceMultiplier  = 2.0
)

// FeatureSource is the subset of the signal store the predictor reads.
type FeatureSource interface {
	FetchHistoricalPerformance(ctx context.Context, hotelID string, months int) (models.HotelPerformance, error)
	FetchSearchVolume(ctx context.Context, hotelID string, days int) (int, error)
	FetchOccupancy(ctx context.Context, hotelID string, month time.Month) (float64, bool, error)
}

// CompetitorSource serves competitor snapshots.
type CompetitorSource interface {
	FetchCompetitorSnapshot(ctx context.Context, hotelID string, checkIn, checkOut time.Time) (models.CompetitorSnapshot, error)
}

// PredictRequest describes the room being priced. LeadTimeDays of 0 is
// derived from CheckIn; an empty DemandLevel means medium.
type PredictRequest struct {
	HotelID      string
	CheckIn      time.Time
	CheckOut     time.Time
	BuyPrice     float64
	RoomType     string
	LeadTimeDays int
	DemandLevel  string
}

// Predictor combines four sub-models into one recommended resale price.
type Predictor struct {
	signals     FeatureSource
	competitors CompetitorSource
	log         *logger.Logger
	metrics     domrepo.Metrics
	now         func() time.Time
}

type PredictorOption func(*Predictor)

func WithPredictorLogger(l *logger.Logger) PredictorOption {
	return func(p *Predictor) { p.log = l }
}

func WithPredictorMetrics(m domrepo.Metrics) PredictorOption {
	return func(p *Predictor) { p.metrics = m }
}

// WithClock overrides time.Now, used to pin lead-time derivation in tests.
func WithClock(now func() time.Time) PredictorOption {
	return func(p *Predictor) { p.now = now }
}

func NewPredictor(signals FeatureSource, competitors CompetitorSource, opts ...PredictorOption) *Predictor {
	p := &Predictor{
		signals:     signals,
		competitors: competitors,
		metrics:     metrics.Nop{},
		now:         time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// PredictPrice validates the request before any collaborator call, then runs
// feature extraction and the ensemble. Missing upstream data never fails the
// prediction; it is replaced by fallback constants.
func (p *Predictor) PredictPrice(ctx context.Context, req PredictRequest) (models.PricePrediction, error) {
	if err := validatePredict(&req); err != nil {
		return models.PricePrediction{}, err
	}
	start := time.Now()
	now := p.now()

	lead := req.LeadTimeDays
	if lead == 0 {
		lead = leadTime(now, req.CheckIn)
	}
	f := p.extractFeatures(ctx, req, lead)
	pred := Ensemble(f)
	pred.HotelID = req.HotelID
	pred.RoomType = req.RoomType
	pred.GeneratedAt = now.UTC()

	p.metrics.RecordPrediction(pred.Risk, pred.Confidence)
	p.metrics.RecordLatency("predict_price", time.Since(start).Seconds())
	p.log.Debug("price predicted",
		logger.String("hotel_id", req.HotelID),
		logger.Float64("buy_price", req.BuyPrice),
		logger.Float64("optimal_price", pred.OptimalPrice),
		logger.Float64("confidence", pred.Confidence),
		logger.String("risk", pred.Risk),
	)
	return pred, nil
}

func validatePredict(req *PredictRequest) error {
	if strings.TrimSpace(req.HotelID) == "" {
		return models.InvalidConstraint("hotel_id", "required")
	}
	if req.BuyPrice <= 0 || math.IsNaN(req.BuyPrice) || math.IsInf(req.BuyPrice, 0) {
		return models.InvalidConstraint("buy_price", "must be positive, got %v", req.BuyPrice)
	}
	if req.CheckIn.IsZero() {
		return models.InvalidConstraint("check_in", "required")
	}
	if !req.CheckOut.After(req.CheckIn) {
		return models.InvalidConstraint("check_out", "must be after check_in")
	}
	if req.LeadTimeDays < 0 {
		return models.InvalidConstraint("lead_time_days", "must not be negative")
	}
	switch req.DemandLevel = strings.ToLower(req.DemandLevel); req.DemandLevel {
	case "":
		req.DemandLevel = models.DemandMedium
	case models.DemandLow, models.DemandMedium, models.DemandHigh, models.DemandVeryHigh:
	default:
		return models.InvalidConstraint("demand_level", "unknown level %q", req.DemandLevel)
	}
	return nil
}

// Ensemble runs the sub-models over a feature set. It is pure.
func Ensemble(f models.PriceFeatures) models.PricePrediction {
	base := BaseModel(f)
	elasticity := EstimateElasticity(f)
	elastAdj := ElasticityAdjustment(base, elasticity)
	compAdj := CompetitorAdjustment(f, base)
	seasonal := SeasonalFactor(f)

	price := PriceWithinBand((base+elastAdj+compAdj)*seasonal, f.BuyPrice)

	conversion := ConversionRate(f, price)
	confidence := Confidence(f)
	spread := (1 - confidence) * 0.15
	margin := (price - f.BuyPrice) / price * 100

	return models.PricePrediction{
		OptimalPrice:       price,
		Confidence:         stats.Round2(confidence),
		Bounds:             models.PriceBounds{Min: stats.Round2(price * (1 - spread)), Max: stats.Round2(price * (1 + spread))},
		ExpectedConversion: stats.Round2(conversion),
		ExpectedProfit:     stats.Round2((price - f.BuyPrice) * conversion),
		MarginPct:          stats.Round2(margin),
		Risk:               PredictionRisk(confidence, margin, conversion),
		Components: models.PriceComponents{
			Base:           stats.Round2(base),
			ElasticityAdj:  stats.Round2(elastAdj),
			CompetitorAdj:  stats.Round2(compAdj),
			SeasonalFactor: stats.Round2(seasonal),
			Elasticity:     stats.Round2(elasticity),
		},
		Features: f,
	}
}

// PriceWithinBand rounds raw to cents and clamps it to
// [buy×MinMarginMultiplier, buy×MaxPriceMultiplier]. The band edges are rounded
// inward so the rounded price never leaves it. A band narrower than a cent
// keeps the unrounded clamp.
func PriceWithinBand(raw, buy float64) float64 {
	lo, hi := buy*MinMarginMultiplier, buy*MaxPriceMultiplier
	loC, hiC := stats.CeilCents(lo), stats.FloorCents(hi)
	if loC > hiC {
		return stats.Clamp(raw, lo, hi)
	}
	return stats.Clamp(stats.Round2(raw), loC, hiC)
}

var demandAdjustment = map[string]float64{
	models.DemandLow:      -0.05,
	models.DemandMedium:   0,
	models.DemandHigh:     0.05,
	models.DemandVeryHigh: 0.10,
}

// BaseModel is a linear blend of historical and competitor deltas with
// lead-time, demand, occupancy and calendar adjustments, floored at the
// minimum margin.
func BaseModel(f models.PriceFeatures) float64 {
	start := f.BuyPrice * 1.2
	price := start
	price += 0.3 * (f.HistoricalAvg - start)
	price += 0.4 * (f.CompetitorAvg - start)
	price += start * 0.10 * math.Exp(-float64(f.LeadTimeDays)/30)

	price *= 1 + demandAdjustment[f.DemandLevel]
	switch {
	case f.Occupancy > 0.8:
		price *= 1.05
	case f.Occupancy < 0.5:
		price *= 0.97
	}
	if f.Weekend {
		price *= 1.05
	}
	if f.HighSeason {
		price *= 1.08
	}
	return math.Max(price, f.BuyPrice*MinMarginMultiplier)
}

// EstimateElasticity derives an elasticity from lead time and competition density.
func EstimateElasticity(f models.PriceFeatures) float64 {
	e := DefaultElasticity
	switch {
	case f.LeadTimeDays < 7:
		e += 0.4
	case f.LeadTimeDays > 60:
		e -= 0.3
	}
	switch {
	case f.CompetitorCount >= 10:
		e -= 0.5
	case f.CompetitorCount < 3:
		e += 0.3
	}
	return e
}

// ElasticityAdjustment moves the base price by at most ±15%: up for
// inelastic demand, down for elastic demand.
func ElasticityAdjustment(base, elasticity float64) float64 {
	return base * stats.Clamp((1+elasticity)*0.15, -0.15, 0.15)
}

// CompetitorAdjustment nudges the base toward the competitor average, scaled
// by competitive pressure and damped near parity.
func CompetitorAdjustment(f models.PriceFeatures, base float64) float64 {
	if f.CompetitorAvg <= 0 {
		return 0
	}
	gap := f.CompetitorAvg - base
	pressure := 0.5 + math.Min(float64(f.CompetitorCount), 20)/40
	damp := 1.0
	if math.Abs(gap)/f.CompetitorAvg < 0.05 {
		damp = 0.3
	}
	return gap * 0.25 * pressure * damp
}

var monthFactor = map[int]float64{
	1: 0.90, 2: 0.92, 3: 0.98, 4: 1.02, 5: 1.05, 6: 1.12,
	7: 1.18, 8: 1.15, 9: 1.02, 10: 1.00, 11: 0.93, 12: 1.08,
}

// SeasonalFactor is the month table plus weekend and occupancy bumps.
func SeasonalFactor(f models.PriceFeatures) float64 {
	factor, ok := monthFactor[f.Month]
	if !ok {
		factor = 1.0
	}
	if f.Weekend {
		factor += 0.05
	}
	switch {
	case f.Occupancy > 0.85:
		factor += 0.05
	case f.Occupancy > 0.7:
		factor += 0.02
	}
	return factor
}

var demandConversion = map[string]float64{
	models.DemandLow:      0.8,
	models.DemandMedium:   1.0,
	models.DemandHigh:     1.2,
	models.DemandVeryHigh: 1.4,
}

// ConversionRate estimates the sell-through probability at price, blended
// 60/40 with the hotel's historical conversion when one exists.
func ConversionRate(f models.PriceFeatures, price float64) float64 {
	rate := 0.25
	if f.CompetitorAvg > 0 {
		switch ratio := price / f.CompetitorAvg; {
		case ratio <= 0.9:
			rate = 0.45
		case ratio <= 1.0:
			rate = 0.35
		case ratio <= 1.1:
			rate = 0.25
		case ratio <= 1.2:
			rate = 0.15
		default:
			rate = 0.08
		}
	}
	if m, ok := demandConversion[f.DemandLevel]; ok {
		rate *= m
	}
	switch {
	case f.LeadTimeDays <= 7:
		rate *= 0.9
	case f.LeadTimeDays > 30:
		rate *= 1.1
	}
	rate = stats.Clamp01(rate)
	if f.HistoricalSamples > 0 {
		rate = 0.6*rate + 0.4*stats.Clamp01(f.HistoricalConversion)
	}
	return stats.Clamp01(rate)
}

// Confidence accumulates data-availability bonuses, capped at 0.95.
func Confidence(f models.PriceFeatures) float64 {
	c := 0.3
	switch {
	case f.HistoricalSamples >= 50:
		c += 0.2
	case f.HistoricalSamples >= 10:
		c += 0.1
	}
	switch {
	case f.CompetitorCount >= 5:
		c += 0.2
	case f.CompetitorCount >= 1:
		c += 0.1
	}
	switch {
	case f.SearchVolume >= 100:
		c += 0.15
	case f.SearchVolume >= 10:
		c += 0.05
	}
	if !f.OccupancyFallback {
		c += 0.1
	}
	return math.Min(c, 0.95)
}

// PredictionRisk labels a prediction from its confidence, margin and conversion.
func PredictionRisk(confidence, marginPct, conversion float64) string {
	switch {
	case confidence < 0.5 || conversion < 0.15:
		return models.RiskHigh
	case confidence >= 0.75 && marginPct >= 15:
		return models.RiskLow
	default:
		return models.RiskMedium
	}
}
