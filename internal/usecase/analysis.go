package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"RoomArb/internal/domain/models"
	domrepo "RoomArb/internal/domain/repository"
	"RoomArb/internal/services/agents"
	"RoomArb/internal/services/decision"
	"RoomArb/pkg/logger"
	"RoomArb/pkg/metrics"
)

// AnalysisUseCase builds a signal batch, runs the analysis agents over it and
// synthesizes a decision.
type AnalysisUseCase struct {
	store        domrepo.SignalStore
	synth        *decision.Synthesizer
	publisher    domrepo.Publisher
	metrics      domrepo.Metrics
	log          *logger.Logger
	agents       []agents.Named
	timeout      time.Duration
	forecastDays int
	now          func() time.Time
}

type AnalysisOption func(*AnalysisUseCase)

func WithAnalysisPublisher(p domrepo.Publisher) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.publisher = p }
}

func WithAnalysisMetrics(m domrepo.Metrics) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.metrics = m }
}

func WithAnalysisLogger(l *logger.Logger) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.log = l }
}

func WithAnalysisTimeout(d time.Duration) AnalysisOption {
	return func(uc *AnalysisUseCase) {
		if d > 0 {
			uc.timeout = d
		}
	}
}

func WithForecastDays(n int) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.forecastDays = n }
}

func WithAnalysisClock(now func() time.Time) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.now = now }
}

// WithAgents replaces the default agent set.
func WithAgents(a []agents.Named) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.agents = a }
}

func NewAnalysisUseCase(store domrepo.SignalStore, synth *decision.Synthesizer, opts ...AnalysisOption) *AnalysisUseCase {
	uc := &AnalysisUseCase{
		store:   store,
		synth:   synth,
		metrics: metrics.Nop{},
		agents:  agents.Default(),
		timeout: 15 * time.Second,
		now:     time.Now,
	}
	for _, o := range opts {
		o(uc)
	}
	return uc
}

type AnalyzeParams struct {
	HotelID       string
	City          string
	LookbackDays  int
	RiskTolerance string
	Instruction   string
	Filter        *agents.Filter
	Publish       bool
}

// Analyze runs one analysis cycle. A failed booking fetch fails the call; a
// failed search fetch is recorded and the agents run without search signals.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, p AnalyzeParams) (*models.AnalysisResult, error) {
	if p.LookbackDays < 0 {
		return nil, models.InvalidConstraint("lookback_days", "must not be negative")
	}
	p.LookbackDays = domrepo.NormalizeLookbackDays(p.LookbackDays)
	scope := models.Scope{HotelID: p.HotelID, City: p.City}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	start := time.Now()
	now := uc.now().UTC()
	res := &models.AnalysisResult{
		RequestID:    uuid.NewString(),
		Scope:        scope,
		LookbackDays: p.LookbackDays,
		Timestamp:    now,
		Errors:       map[string]string{},
	}

	batch, err := uc.buildBatch(ctx, scope, now, p.LookbackDays, res.Errors)
	if err != nil {
		return nil, err
	}
	res.Bookings = len(batch.FilterBookings(scope))
	res.Searches = len(batch.Searches)

	res.Reports = agents.Run(ctx, batch, agents.Params{
		Scope:        scope,
		ForecastDays: uc.forecastDays,
		Filter:       p.Filter,
		Instruction:  p.Instruction,
	}, uc.agents)
	for _, r := range res.Reports {
		uc.metrics.RecordAgentRun(string(r.Agent), r.Success, r.Duration.Seconds())
		if !r.Success {
			res.Errors[string(r.Agent)] = r.Reason
		}
	}

	res.Decision = uc.synth.Synthesize(res.Reports, p.RiskTolerance)
	if res.Decision.Success {
		uc.metrics.RecordDecision(string(res.Decision.Consensus.Primary), res.Decision.Consensus.Strength, res.Decision.Risk.Level)
	}
	uc.metrics.RecordLatency("analyze", time.Since(start).Seconds())

	if p.Publish && uc.publisher != nil && res.Decision.Success {
		if err := uc.publisher.PublishDecision(ctx, scope, res.Decision); err != nil {
			res.Errors["publish"] = err.Error()
			uc.log.Error("failed to publish decision",
				logger.String("request_id", res.RequestID),
				logger.Error(err),
			)
		}
	}

	uc.log.Info("analysis completed",
		logger.String("request_id", res.RequestID),
		logger.String("hotel_id", scope.HotelID),
		logger.String("city", scope.City),
		logger.Int("bookings", res.Bookings),
		logger.Int("searches", res.Searches),
		logger.Int("agents_used", res.Decision.AgentsUsed),
		logger.Bool("decision", res.Decision.Success),
		logger.Duration("duration_ms", time.Since(start)),
	)

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}

func (uc *AnalysisUseCase) buildBatch(ctx context.Context, scope models.Scope, now time.Time, lookback int, errs map[string]string) (models.SignalBatch, error) {
	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.store.FetchBookingSignals(ctx, domrepo.BookingFilter{
			HotelID: scope.HotelID,
			City:    scope.City,
			From:    now.AddDate(0, 0, -lookback),
		})
		ch <- item{"bookings", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.store.FetchSearchSignals(ctx, domrepo.SearchFilter{
			HotelID:      scope.HotelID,
			City:         scope.City,
			LookbackDays: lookback,
		})
		ch <- item{"searches", v, err}
	}()

	go func() { wg.Wait(); close(ch) }()

	batch := models.SignalBatch{Scope: scope, AsOf: now, LookbackDays: lookback}
	var bookingErr error
	for it := range ch {
		if it.err != nil {
			uc.metrics.RecordUpstreamError(it.name)
			errs[it.name] = it.err.Error()
			if it.name == "bookings" {
				bookingErr = it.err
			}
			continue
		}
		switch it.name {
		case "bookings":
			batch.Bookings = it.val.([]models.BookingRecord)
		case "searches":
			batch.Searches = it.val.([]models.SearchRecord)
		}
	}
	if bookingErr != nil {
		return models.SignalBatch{}, models.Upstream(fmt.Sprintf("fetch booking signals for %+v", scope), bookingErr)
	}
	if scope.HotelID != "" {
		batch.Bookings = uc.withCityPeers(ctx, scope, batch.Bookings, now.AddDate(0, 0, -lookback), errs)
	}
	return batch, nil
}

// withCityPeers swaps a hotel's own bookings for the bookings of its whole
// city so the competition agent has peers to rank against. Agents that
// read the hotel scope still filter back down to the hotel. The hotel's
// records are kept when the city is unknown or the peer fetch fails.
func (uc *AnalysisUseCase) withCityPeers(ctx context.Context, scope models.Scope, own []models.BookingRecord, from time.Time, errs map[string]string) []models.BookingRecord {
	city := scope.City
	if city == "" && len(own) > 0 {
		city = own[0].City
	}
	if city == "" {
		return own
	}
	peers, err := uc.store.FetchBookingSignals(ctx, domrepo.BookingFilter{City: city, From: from})
	if err != nil {
		uc.metrics.RecordUpstreamError("city_bookings")
		errs["city_bookings"] = err.Error()
		return own
	}
	n := 0
	for _, b := range peers {
		if b.HotelID == scope.HotelID {
			n++
		}
	}
	if n < len(own) {
		// A lagging read must not shrink the hotel's own signal.
		return own
	}
	return peers
}
