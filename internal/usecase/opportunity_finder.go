package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"RoomArb/internal/domain/models"
	domrepo "RoomArb/internal/domain/repository"
	"RoomArb/internal/services/pricing"
	"RoomArb/internal/services/stats"
	"RoomArb/pkg/logger"
	"RoomArb/pkg/metrics"
	"RoomArb/pkg/util"
)

const (
	DefaultAdults           = 2
	DefaultOpportunityLimit = 20
	MaxOpportunityLimit     = 100
	DefaultCandidateHotels  = 30
	DefaultLookupTimeout    = 30 * time.Second
	DefaultLookupWorkers    = 8
	MaxStayNights           = 30

	marginBonusPct = 5.0
	marginCapPct   = 25.0
)

var errNoAvailability = errors.New("no availability")

// FindParams describes one city scan. MaxRiskScore of 0 accepts every risk.
type FindParams struct {
	City           string
	CheckIn        time.Time
	CheckOut       time.Time
	Adults         int
	MinMarginPct   float64
	MaxRiskScore   float64
	Limit          int
	HistoryMonths  int
	WithPrediction bool
}

// OpportunityFinder ranks live-priced hotels against their own history.
type OpportunityFinder struct {
	store      domrepo.SignalStore
	live       domrepo.LivePriceSource
	predictor  *pricing.Predictor
	publisher  domrepo.Publisher
	metrics    domrepo.Metrics
	log        *logger.Logger
	candidates int
	workers    int
	timeout    time.Duration
	now        func() time.Time
}

type FinderOption func(*OpportunityFinder)

func WithFinderPredictor(p *pricing.Predictor) FinderOption {
	return func(f *OpportunityFinder) { f.predictor = p }
}

func WithFinderPublisher(p domrepo.Publisher) FinderOption {
	return func(f *OpportunityFinder) { f.publisher = p }
}

func WithFinderMetrics(m domrepo.Metrics) FinderOption {
	return func(f *OpportunityFinder) { f.metrics = m }
}

func WithFinderLogger(l *logger.Logger) FinderOption {
	return func(f *OpportunityFinder) { f.log = l }
}

func WithCandidateHotels(n int) FinderOption {
	return func(f *OpportunityFinder) {
		if n > 0 {
			f.candidates = n
		}
	}
}

func WithLookupWorkers(n int) FinderOption {
	return func(f *OpportunityFinder) {
		if n > 0 {
			f.workers = n
		}
	}
}

func WithLookupTimeout(d time.Duration) FinderOption {
	return func(f *OpportunityFinder) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithFinderClock(now func() time.Time) FinderOption {
	return func(f *OpportunityFinder) { f.now = now }
}

func NewOpportunityFinder(store domrepo.SignalStore, live domrepo.LivePriceSource, opts ...FinderOption) *OpportunityFinder {
	f := &OpportunityFinder{
		store:      store,
		live:       live,
		metrics:    metrics.Nop{},
		candidates: DefaultCandidateHotels,
		workers:    DefaultLookupWorkers,
		timeout:    DefaultLookupTimeout,
		now:        time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *OpportunityFinder) normalize(p *FindParams) error {
	p.City = strings.TrimSpace(p.City)
	if p.City == "" {
		return models.InvalidConstraint("city", "is required")
	}
	if p.CheckIn.IsZero() {
		return models.InvalidConstraint("check_in", "is required")
	}
	if p.CheckOut.IsZero() {
		p.CheckOut = p.CheckIn.AddDate(0, 0, 1)
	}
	if !p.CheckOut.After(p.CheckIn) {
		return models.InvalidConstraint("check_out", "must be after check_in")
	}
	if p.CheckIn.UTC().Before(util.StartOfDay(f.now())) {
		return models.InvalidConstraint("check_in", "must not be in the past")
	}
	if n := util.Nights(p.CheckIn, p.CheckOut); n > MaxStayNights {
		return models.InvalidConstraint("check_out", "stay of %d nights exceeds %d", n, MaxStayNights)
	}
	if p.Adults == 0 {
		p.Adults = DefaultAdults
	}
	if p.Adults < 0 {
		return models.InvalidConstraint("adults", "must be positive")
	}
	if p.MinMarginPct < 0 || p.MinMarginPct > 100 {
		return models.InvalidConstraint("min_margin_pct", "must be within [0,100], got %.2f", p.MinMarginPct)
	}
	if p.MaxRiskScore < 0 || p.MaxRiskScore > 100 {
		return models.InvalidConstraint("max_risk", "must be within [0,100], got %.2f", p.MaxRiskScore)
	}
	if p.MaxRiskScore == 0 {
		p.MaxRiskScore = 100
	}
	if p.Limit < 0 {
		return models.InvalidConstraint("limit", "must not be negative")
	}
	if p.Limit == 0 {
		p.Limit = DefaultOpportunityLimit
	}
	if p.Limit > MaxOpportunityLimit {
		p.Limit = MaxOpportunityLimit
	}
	if p.HistoryMonths < 0 {
		return models.InvalidConstraint("history_months", "must not be negative")
	}
	p.HistoryMonths = domrepo.NormalizeMonths(p.HistoryMonths)
	return nil
}

// FindOpportunities scans one city. A hotel whose live lookup fails or has no
// availability is dropped and recorded in Failures; the scan itself only fails
// on bad input or when the candidate hotels cannot be loaded.
func (f *OpportunityFinder) FindOpportunities(ctx context.Context, p FindParams) (*models.ScanResult, error) {
	if err := f.normalize(&p); err != nil {
		return nil, err
	}
	start := time.Now()

	hotels, err := f.store.FetchTopHotels(ctx, p.City, p.HistoryMonths, f.candidates)
	if err != nil {
		f.metrics.RecordUpstreamError("top_hotels")
		return nil, models.Upstream("fetch top hotels for "+p.City, err)
	}

	res := &models.ScanResult{
		City:       p.City,
		Candidates: len(hotels),
		Failures:   map[string]string{},
		ScannedAt:  f.now().UTC(),
	}

	for _, q := range f.quote(ctx, hotels, p) {
		if q.err != nil {
			res.Failures[q.perf.HotelID] = q.err.Error()
			continue
		}
		res.Priced++
		opp := f.score(ctx, q, p)
		if opp.ExpectedMarginPct < p.MinMarginPct || opp.RiskScore > p.MaxRiskScore {
			continue
		}
		res.Opportunities = append(res.Opportunities, opp)
	}

	sortOpportunities(res.Opportunities)
	if len(res.Opportunities) > p.Limit {
		res.Opportunities = res.Opportunities[:p.Limit]
	}
	if res.Opportunities == nil {
		res.Opportunities = []models.Opportunity{}
	}
	if len(res.Failures) == 0 {
		res.Failures = nil
	}

	f.metrics.RecordOpportunities(p.City, len(res.Opportunities))
	f.metrics.RecordLatency("find_opportunities", time.Since(start).Seconds())
	f.log.Info("opportunity scan completed",
		logger.String("city", p.City),
		logger.Int("candidates", res.Candidates),
		logger.Int("priced", res.Priced),
		logger.Int("opportunities", len(res.Opportunities)),
		logger.Int("failures", len(res.Failures)),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return res, nil
}

// ScanAllCities runs FindOpportunities per city concurrently and merges the
// results. City-level failures are keyed by city; hotel-level ones by city/hotel.
func (f *OpportunityFinder) ScanAllCities(ctx context.Context, cities []string, p FindParams) (*models.ScanResult, error) {
	if len(cities) == 0 {
		return nil, models.InvalidConstraint("cities", "at least one city is required")
	}
	for _, c := range cities {
		cp := p
		cp.City = c
		if err := f.normalize(&cp); err != nil {
			return nil, err
		}
	}

	type item struct {
		city string
		res  *models.ScanResult
		err  error
	}
	ch := make(chan item, len(cities))
	var wg sync.WaitGroup
	for _, c := range cities {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()
			cp := p
			cp.City = city
			r, err := f.FindOpportunities(ctx, cp)
			ch <- item{strings.TrimSpace(city), r, err}
		}(c)
	}
	go func() { wg.Wait(); close(ch) }()

	merged := &models.ScanResult{
		Failures:      map[string]string{},
		Opportunities: []models.Opportunity{},
		ScannedAt:     f.now().UTC(),
	}
	for it := range ch {
		merged.Cities = append(merged.Cities, it.city)
		if it.err != nil {
			merged.Failures[it.city] = it.err.Error()
			f.log.Warn("city scan failed", logger.String("city", it.city), logger.Error(it.err))
			continue
		}
		merged.Candidates += it.res.Candidates
		merged.Priced += it.res.Priced
		merged.Opportunities = append(merged.Opportunities, it.res.Opportunities...)
		for hotel, reason := range it.res.Failures {
			merged.Failures[it.city+"/"+hotel] = reason
		}
	}
	sort.Strings(merged.Cities)
	sortOpportunities(merged.Opportunities)
	if len(merged.Failures) == 0 {
		merged.Failures = nil
	}

	if f.publisher != nil && len(merged.Opportunities) > 0 {
		if err := f.publisher.PublishOpportunities(ctx, merged.Opportunities); err != nil {
			f.log.Error("failed to publish opportunities", logger.Error(err))
		}
	}
	return merged, nil
}

type quote struct {
	perf   models.HotelPerformance
	price  *models.LivePrice
	search int
	err    error
}

// quote fetches live prices with bounded concurrency, keeping candidate order.
func (f *OpportunityFinder) quote(ctx context.Context, hotels []models.HotelPerformance, p FindParams) []quote {
	out := make([]quote, len(hotels))
	sem := make(chan struct{}, f.workers)
	var wg sync.WaitGroup
	for i, h := range hotels {
		wg.Add(1)
		go func(i int, h models.HotelPerformance) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out[i] = f.quoteOne(ctx, h, p)
		}(i, h)
	}
	wg.Wait()
	return out
}

func (f *OpportunityFinder) quoteOne(ctx context.Context, h models.HotelPerformance, p FindParams) quote {
	q := quote{perf: h}
	lctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	price, err := f.live.FetchLivePrice(lctx, h.HotelID, p.CheckIn, p.CheckOut, p.Adults)
	switch {
	case err != nil:
		f.metrics.RecordUpstreamError("live_price")
		q.err = models.Upstream("fetch live price", err)
		return q
	case price == nil:
		q.err = errNoAvailability
		return q
	case price.Price <= 0:
		q.err = fmt.Errorf("invalid live price %.2f", price.Price)
		return q
	}
	q.price = price

	searches, err := f.store.FetchSearchVolume(lctx, h.HotelID, domrepo.DefaultSearchDays)
	if err != nil {
		f.metrics.RecordUpstreamError("search_volume")
		f.log.Warn("search volume unavailable", logger.String("hotel_id", h.HotelID), logger.Error(err))
		searches = 0
	}
	q.search = searches
	return q
}

func (f *OpportunityFinder) score(ctx context.Context, q quote, p FindParams) models.Opportunity {
	h := q.perf
	now := f.now().UTC()
	buy := q.price.Price
	lead := int(math.Ceil(p.CheckIn.Sub(now).Hours() / 24))
	if lead < 0 {
		lead = 0
	}

	diff := 0.0
	if h.AvgPrice > 0 {
		diff = (h.AvgPrice - buy) / h.AvgPrice * 100
	}
	success := stats.Clamp01(h.SuccessRate)
	margin := SuggestedMarginPct(h.AvgMarginPct)
	sell := stats.Round2(buy * (1 + margin/100))

	risk := RiskScore(h, lead, q.search)
	level := RiskScoreLevel(risk)

	opp := models.Opportunity{
		ID:                 uuid.NewString(),
		HotelID:            h.HotelID,
		HotelName:          h.HotelName,
		City:               p.City,
		CheckIn:            p.CheckIn,
		CheckOut:           p.CheckOut,
		RoomType:           q.price.RoomType,
		Currency:           q.price.Currency,
		BuyPrice:           buy,
		HistoricalAvgPrice: stats.Round2(h.AvgPrice),
		PriceDiffPct:       stats.Round2(diff),
		SuccessRate:        success,
		SuggestedSellPrice: sell,
		ExpectedMargin:     stats.Round2(sell - buy),
		ExpectedMarginPct:  margin,
		SuccessProbability: stats.Clamp01(success * (1 - risk/200)),
		Confidence:         stats.SampleConfidence(float64(h.BookingCount), 50, 0.95),
		SearchDemand:       q.search,
		RiskScore:          risk,
		RiskLevel:          level,
		Recommendation:     RecommendationFor(diff, success, risk),
		DetectedAt:         now,
	}
	opp.Reasons = reasonsFor(opp, h, lead)

	if p.WithPrediction && f.predictor != nil {
		pred, err := f.predictor.PredictPrice(ctx, pricing.PredictRequest{
			HotelID:      h.HotelID,
			CheckIn:      p.CheckIn,
			CheckOut:     p.CheckOut,
			BuyPrice:     buy,
			RoomType:     q.price.RoomType,
			LeadTimeDays: lead,
			DemandLevel:  demandFromSearches(q.search),
		})
		if err != nil {
			f.log.Warn("price prediction failed", logger.String("hotel_id", h.HotelID), logger.Error(err))
		} else {
			opp.Prediction = &pred
		}
	}
	return opp
}

// SuggestedMarginPct adds the markup bonus to the historical margin, capped.
func SuggestedMarginPct(historical float64) float64 {
	m := historical + marginBonusPct
	if m > marginCapPct {
		m = marginCapPct
	}
	if m < 0 {
		m = 0
	}
	return stats.Round2(m)
}

// RiskScore sums five bounded penalties into a 0-100 score.
func RiskScore(h models.HotelPerformance, leadDays, searches int) float64 {
	var risk float64

	if h.AvgPrice > 0 {
		risk += math.Min(25, h.PriceStdDev/h.AvgPrice*100)
	}

	switch {
	case leadDays <= 3:
		risk += 20
	case leadDays <= 7:
		risk += 15
	case leadDays <= 14:
		risk += 10
	case leadDays <= 30:
		risk += 5
	}

	risk += math.Min(20, stats.Clamp01(h.CancellationRate)*40)
	risk += (1 - stats.Clamp01(h.SuccessRate)) * 20

	switch {
	case searches >= 50:
	case searches >= 20:
		risk += 5
	case searches >= 5:
		risk += 10
	default:
		risk += 15
	}
	return stats.Round2(stats.ClampPct(risk))
}

func RiskScoreLevel(score float64) string {
	switch {
	case score < 30:
		return models.RiskLow
	case score < 60:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

func RecommendationFor(diffPct, successRate, risk float64) string {
	switch {
	case diffPct >= 15 && successRate >= 0.7 && risk < 30:
		return models.RecommendStrongBuy
	case diffPct >= 5 && successRate >= 0.5 && risk < 50:
		return models.RecommendBuy
	case diffPct >= 0 && risk < 70:
		return models.RecommendConsider
	default:
		return models.RecommendPass
	}
}

func reasonsFor(o models.Opportunity, h models.HotelPerformance, lead int) []string {
	var out []string
	if o.PriceDiffPct > 0 {
		out = append(out, fmt.Sprintf("live price %.1f%% below historical average %.2f", o.PriceDiffPct, h.AvgPrice))
	} else if o.PriceDiffPct < 0 {
		out = append(out, fmt.Sprintf("live price %.1f%% above historical average %.2f", -o.PriceDiffPct, h.AvgPrice))
	}
	out = append(out, fmt.Sprintf("historical success rate %.0f%% over %d bookings", o.SuccessRate*100, h.BookingCount))
	if lead <= 7 {
		out = append(out, fmt.Sprintf("check-in in %d days", lead))
	}
	if o.SearchDemand < 5 {
		out = append(out, "low search demand")
	}
	out = append(out, fmt.Sprintf("risk score %.0f (%s)", o.RiskScore, o.RiskLevel))
	return out
}

func demandFromSearches(n int) string {
	switch {
	case n >= 100:
		return models.DemandVeryHigh
	case n >= 50:
		return models.DemandHigh
	case n >= 10:
		return models.DemandMedium
	default:
		return models.DemandLow
	}
}

func sortOpportunities(opps []models.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].ExpectedMargin != opps[j].ExpectedMargin {
			return opps[i].ExpectedMargin > opps[j].ExpectedMargin
		}
		return opps[i].HotelID < opps[j].HotelID
	})
}
