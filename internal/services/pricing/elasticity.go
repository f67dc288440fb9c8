package pricing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"RoomArb/internal/domain/models"
	domrepo "RoomArb/internal/domain/repository"
	"RoomArb/internal/services/stats"
	"RoomArb/pkg/logger"
	"RoomArb/pkg/metrics"
)

const (
	// DefaultElasticity is used when no adjacent bucket pair qualifies.
	DefaultElasticity = -1.2

	BucketWidth          = 25.0
	MinBucketSamples     = 3
	DefaultMinDataPoints = 10
	// AssumedCostRatio estimates unit cost from the current price for the profit objective.
	AssumedCostRatio = 0.8
)

// OutcomeSource serves historical (price, sold) pairs.
type OutcomeSource interface {
	FetchPriceOutcomes(ctx context.Context, hotelID string, timeframeDays int) ([]models.PriceOutcome, error)
}

// Optimizer estimates price elasticity per hotel and recommends prices.
type Optimizer struct {
	source  OutcomeSource
	log     *logger.Logger
	metrics domrepo.Metrics
}

type OptimizerOption func(*Optimizer)

func WithOptimizerLogger(l *logger.Logger) OptimizerOption {
	return func(o *Optimizer) { o.log = l }
}

func WithOptimizerMetrics(m domrepo.Metrics) OptimizerOption {
	return func(o *Optimizer) { o.metrics = m }
}

func NewOptimizer(source OutcomeSource, opts ...OptimizerOption) *Optimizer {
	o := &Optimizer{source: source, metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CalculateElasticity loads the hotel's outcomes over the timeframe and builds
// its profile. Too few records yield Success=false with a reason, not an error.
func (o *Optimizer) CalculateElasticity(ctx context.Context, hotelID string, timeframeDays, minDataPoints int) (models.ElasticityProfile, error) {
	if strings.TrimSpace(hotelID) == "" {
		return models.ElasticityProfile{}, models.InvalidConstraint("hotel_id", "required")
	}
	if minDataPoints < 0 {
		return models.ElasticityProfile{}, models.InvalidConstraint("min_data_points", "must not be negative")
	}
	if timeframeDays <= 0 {
		timeframeDays = domrepo.DefaultElasticityWindow
	}
	start := time.Now()
	outcomes, err := o.source.FetchPriceOutcomes(ctx, hotelID, timeframeDays)
	if err != nil {
		o.metrics.RecordUpstreamError("price_outcomes")
		return models.ElasticityProfile{}, models.Upstream("fetch price outcomes", err)
	}
	p := BuildProfile(outcomes, minDataPoints)
	p.HotelID = hotelID
	p.TimeframeDays = timeframeDays
	o.metrics.RecordLatency("calculate_elasticity", time.Since(start).Seconds())
	o.log.Debug("elasticity calculated",
		logger.String("hotel_id", hotelID),
		logger.Int("data_points", p.DataPoints),
		logger.Float64("elasticity", p.Elasticity),
		logger.String("demand_type", p.DemandType),
	)
	return p, nil
}

// BuildProfile buckets outcomes into fixed-width price bins and averages the
// point elasticity of adjacent bins that both hold enough samples.
func BuildProfile(outcomes []models.PriceOutcome, minDataPoints int) models.ElasticityProfile {
	valid := make([]models.PriceOutcome, 0, len(outcomes))
	for _, oc := range outcomes {
		if oc.Price > 0 && !math.IsNaN(oc.Price) {
			valid = append(valid, oc)
		}
	}
	p := models.ElasticityProfile{DataPoints: len(valid)}
	if len(valid) < minDataPoints {
		p.Reason = fmt.Sprintf("insufficient data points: have %d, need %d", len(valid), minDataPoints)
		return p
	}

	p.Success = true
	p.Buckets = bucketize(valid)

	var sum float64
	for i := 1; i < len(p.Buckets); i++ {
		e, ok := pointElasticity(p.Buckets[i-1], p.Buckets[i])
		if !ok {
			continue
		}
		sum += e
		p.PairCount++
	}
	p.Elasticity = DefaultElasticity
	if p.PairCount > 0 {
		p.Elasticity = stats.Round2(sum / float64(p.PairCount))
	}
	p.DemandType = ClassifyDemand(p.Elasticity)
	return p
}

func bucketize(outcomes []models.PriceOutcome) []models.PriceBucket {
	type acc struct {
		sum  float64
		n    int
		sold int
	}
	bins := map[int]*acc{}
	for _, oc := range outcomes {
		k := int(math.Floor(oc.Price / BucketWidth))
		a, ok := bins[k]
		if !ok {
			a = &acc{}
			bins[k] = a
		}
		a.sum += oc.Price
		a.n++
		if oc.Sold {
			a.sold++
		}
	}
	keys := make([]int, 0, len(bins))
	for k := range bins {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]models.PriceBucket, 0, len(keys))
	for _, k := range keys {
		a := bins[k]
		out = append(out, models.PriceBucket{
			Lower:          float64(k) * BucketWidth,
			Price:          stats.Round2(a.sum / float64(a.n)),
			ConversionRate: stats.Round2(float64(a.sold) / float64(a.n)),
			SampleSize:     a.n,
		})
	}
	return out
}

// pointElasticity is %Δconversion / %Δprice from bucket a to the next bucket b.
// Pairs with a zero base conversion or an unchanged price carry no signal.
func pointElasticity(a, b models.PriceBucket) (float64, bool) {
	if a.SampleSize < MinBucketSamples || b.SampleSize < MinBucketSamples {
		return 0, false
	}
	if a.Price <= 0 || a.ConversionRate == 0 || a.Price == b.Price {
		return 0, false
	}
	dConv := (b.ConversionRate - a.ConversionRate) / a.ConversionRate
	dPrice := (b.Price - a.Price) / a.Price
	return dConv / dPrice, true
}

// ClassifyDemand maps an elasticity onto the demand type ladder.
func ClassifyDemand(e float64) string {
	switch {
	case e >= -0.5:
		return models.DemandHighlyInelastic
	case e >= -0.9:
		return models.DemandInelastic
	case e >= -1.1:
		return models.DemandUnitary
	case e >= -2.0:
		return models.DemandElastic
	default:
		return models.DemandHighlyElastic
	}
}

// RecommendPrice picks the bucket price maximizing the objective and compares
// it with the bucket nearest to currentPrice.
func (o *Optimizer) RecommendPrice(ctx context.Context, hotelID string, currentPrice float64, objective string) (models.PriceRecommendation, error) {
	objective = strings.ToLower(strings.TrimSpace(objective))
	if objective == "" {
		objective = models.ObjectiveRevenue
	}
	switch objective {
	case models.ObjectiveRevenue, models.ObjectiveProfit, models.ObjectiveConversion:
	default:
		return models.PriceRecommendation{}, models.InvalidConstraint("objective", "unknown objective %q", objective)
	}
	if currentPrice <= 0 {
		return models.PriceRecommendation{}, models.InvalidConstraint("current_price", "must be positive, got %v", currentPrice)
	}

	profile, err := o.CalculateElasticity(ctx, hotelID, domrepo.DefaultElasticityWindow, DefaultMinDataPoints)
	if err != nil {
		return models.PriceRecommendation{}, err
	}
	rec := Recommend(profile, currentPrice, objective)
	rec.HotelID = hotelID
	return rec, nil
}

// Recommend is the pure part of RecommendPrice.
func Recommend(profile models.ElasticityProfile, currentPrice float64, objective string) models.PriceRecommendation {
	rec := models.PriceRecommendation{
		HotelID:      profile.HotelID,
		Objective:    objective,
		CurrentPrice: currentPrice,
		AssumedCost:  stats.Round2(currentPrice * AssumedCostRatio),
		Elasticity:   profile.Elasticity,
		DemandType:   profile.DemandType,
	}
	if !profile.Success || len(profile.Buckets) == 0 {
		rec.Reason = profile.Reason
		if rec.Reason == "" {
			rec.Reason = "no price buckets"
		}
		return rec
	}

	candidates := make([]models.PriceBucket, 0, len(profile.Buckets))
	for _, b := range profile.Buckets {
		if b.SampleSize >= MinBucketSamples {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		candidates = profile.Buckets
	}

	best := candidates[0]
	bestScore := objectiveScore(best, objective, rec.AssumedCost)
	for _, b := range candidates[1:] {
		if s := objectiveScore(b, objective, rec.AssumedCost); s > bestScore {
			best, bestScore = b, s
		}
	}

	current := profile.Buckets[0]
	for _, b := range profile.Buckets[1:] {
		if math.Abs(b.Price-currentPrice) < math.Abs(current.Price-currentPrice) {
			current = b
		}
	}

	rec.Success = true
	rec.RecommendedPrice = best.Price
	rec.RecommendedBucket = best
	rec.CurrentBucket = current
	currentRevenue := currentPrice * current.ConversionRate
	delta := best.Price*best.ConversionRate - currentRevenue
	rec.ExpectedRevenueDelta = stats.Round2(delta)
	if currentRevenue > 0 {
		rec.RevenueChangePct = stats.Round2(delta / currentRevenue * 100)
	}
	rec.ConversionDelta = stats.Round2(best.ConversionRate - current.ConversionRate)
	return rec
}

func objectiveScore(b models.PriceBucket, objective string, cost float64) float64 {
	switch objective {
	case models.ObjectiveProfit:
		return (b.Price - cost) * b.ConversionRate
	case models.ObjectiveConversion:
		return b.ConversionRate
	default:
		return b.Price * b.ConversionRate
	}
}
