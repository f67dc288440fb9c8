package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"RoomArb/internal/domain/models"
	domrepo "RoomArb/internal/domain/repository"
)

var testNow = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type fakeStore struct {
	bookings   []models.BookingRecord
	bookingErr error
	cityErr    error
	searches   []models.SearchRecord
	searchErr  error
	top        map[string][]models.HotelPerformance
	topErr     map[string]error
	volume     map[string]int
	calls      atomic.Int32
}

func (s *fakeStore) FetchBookingSignals(_ context.Context, f domrepo.BookingFilter) ([]models.BookingRecord, error) {
	s.calls.Add(1)
	if s.bookingErr != nil {
		return nil, s.bookingErr
	}
	if f.City == "" && f.HotelID == "" {
		return s.bookings, nil
	}
	if f.HotelID == "" && s.cityErr != nil {
		return nil, s.cityErr
	}
	var out []models.BookingRecord
	for _, b := range s.bookings {
		if (f.HotelID == "" || b.HotelID == f.HotelID) && (f.City == "" || b.City == f.City) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) FetchSearchSignals(context.Context, domrepo.SearchFilter) ([]models.SearchRecord, error) {
	s.calls.Add(1)
	return s.searches, s.searchErr
}

func (s *fakeStore) FetchHistoricalPerformance(_ context.Context, hotelID string, _ int) (models.HotelPerformance, error) {
	s.calls.Add(1)
	for _, hs := range s.top {
		for _, h := range hs {
			if h.HotelID == hotelID {
				return h, nil
			}
		}
	}
	return models.HotelPerformance{HotelID: hotelID}, nil
}

func (s *fakeStore) FetchTopHotels(_ context.Context, city string, _, limit int) ([]models.HotelPerformance, error) {
	s.calls.Add(1)
	if err := s.topErr[city]; err != nil {
		return nil, err
	}
	hs := s.top[city]
	if limit > 0 && len(hs) > limit {
		hs = hs[:limit]
	}
	return hs, nil
}

func (s *fakeStore) FetchSearchVolume(_ context.Context, hotelID string, _ int) (int, error) {
	s.calls.Add(1)
	return s.volume[hotelID], nil
}

func (s *fakeStore) FetchOccupancy(context.Context, string, time.Month) (float64, bool, error) {
	s.calls.Add(1)
	return 0, false, nil
}

func (s *fakeStore) FetchPriceOutcomes(context.Context, string, int) ([]models.PriceOutcome, error) {
	s.calls.Add(1)
	return nil, nil
}

func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

type fakeLive struct {
	prices map[string]*models.LivePrice
	errs   map[string]error
	delay  map[string]time.Duration
	calls  atomic.Int32
}

func (l *fakeLive) FetchLivePrice(ctx context.Context, hotelID string, _, _ time.Time, _ int) (*models.LivePrice, error) {
	l.calls.Add(1)
	if d := l.delay[hotelID]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := l.errs[hotelID]; err != nil {
		return nil, err
	}
	return l.prices[hotelID], nil
}

type fakeCompetitors struct{}

func (fakeCompetitors) FetchCompetitorSnapshot(context.Context, string, time.Time, time.Time) (models.CompetitorSnapshot, error) {
	return models.CompetitorSnapshot{}, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	decisions []models.Decision
	opps      []models.Opportunity
	err       error
}

func (p *fakePublisher) PublishOpportunities(_ context.Context, opps []models.Opportunity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opps = append(p.opps, opps...)
	return p.err
}

func (p *fakePublisher) PublishDecision(_ context.Context, _ models.Scope, d models.Decision) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, d)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }
