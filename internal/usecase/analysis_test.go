package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoomArb/internal/domain/models"
	"RoomArb/internal/services/decision"
)

func discountedBookings() []models.BookingRecord {
	var bs []models.BookingRecord
	add := func(id string, price float64, insertedDaysAgo int) {
		bs = append(bs, models.BookingRecord{
			ID:         id,
			HotelID:    "H",
			HotelName:  "Hotel H",
			City:       "Lisbon",
			Source:     "direct",
			Price:      price,
			ListPrice:  price * 1.2,
			Active:     true,
			InsertedAt: testNow.AddDate(0, 0, -insertedDaysAgo),
			CheckIn:    testNow.AddDate(0, 0, 45),
			CheckOut:   testNow.AddDate(0, 0, 47),
		})
	}
	for i := 0; i < 20; i++ {
		add(fmt.Sprintf("n%02d", i), 100, 20-i/2)
	}
	for i := 0; i < 5; i++ {
		add(fmt.Sprintf("d%02d", i), 40, 5)
	}
	return bs
}

func newAnalysis(store *fakeStore, opts ...AnalysisOption) *AnalysisUseCase {
	opts = append([]AnalysisOption{WithAnalysisClock(clock)}, opts...)
	return NewAnalysisUseCase(store, decision.New(decision.DefaultConfig()), opts...)
}

func TestAnalyzeProducesDecision(t *testing.T) {
	store := &fakeStore{bookings: discountedBookings()}
	pub := &fakePublisher{}
	uc := newAnalysis(store, WithAnalysisPublisher(pub))

	res, err := uc.Analyze(context.Background(), AnalyzeParams{HotelID: "H", Publish: true})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, 25, res.Bookings)
	assert.Equal(t, 90, res.LookbackDays)
	require.Len(t, res.Reports, 4)
	assert.True(t, res.Decision.Success)
	assert.GreaterOrEqual(t, res.Decision.AgentsUsed, 2)
	assert.LessOrEqual(t, res.Decision.Confidence, 1.0)
	require.Len(t, pub.decisions, 1)
}

func withPeers(bs []models.BookingRecord) []models.BookingRecord {
	add := func(hotel, city string, n int) {
		for i := 0; i < n; i++ {
			bs = append(bs, models.BookingRecord{
				ID:         fmt.Sprintf("%s%02d", hotel, i),
				HotelID:    hotel,
				HotelName:  "Hotel " + hotel,
				City:       city,
				Price:      120,
				Sold:       i%2 == 0,
				Active:     true,
				InsertedAt: testNow.AddDate(0, 0, -10),
			})
		}
	}
	add("P", "Lisbon", 12)
	add("Q", "Porto", 6)
	return bs
}

func reportOf(res *models.AnalysisResult, id models.AgentID) models.AgentReport {
	for _, r := range res.Reports {
		if r.Agent == id {
			return r
		}
	}
	return models.AgentReport{}
}

func TestAnalyzeHotelScopeRanksAgainstCityPeers(t *testing.T) {
	store := &fakeStore{bookings: withPeers(discountedBookings())}
	uc := newAnalysis(store)

	res, err := uc.Analyze(context.Background(), AnalyzeParams{HotelID: "H"})
	require.NoError(t, err)

	assert.Equal(t, 25, res.Bookings)
	comp := reportOf(res, models.AgentCompetition)
	require.True(t, comp.Success)
	require.NotNil(t, comp.Competition)
	assert.Equal(t, 2, comp.Competition.HotelCount)
	assert.Equal(t, 37, comp.SampleSize)

	market := reportOf(res, models.AgentMarket)
	require.True(t, market.Success)
	assert.Equal(t, 25, market.SampleSize)
}

func TestAnalyzeCityPeerFailureKeepsHotelBookings(t *testing.T) {
	store := &fakeStore{bookings: withPeers(discountedBookings()), cityErr: errors.New("replica lag")}
	uc := newAnalysis(store)

	res, err := uc.Analyze(context.Background(), AnalyzeParams{HotelID: "H"})
	require.NoError(t, err)

	assert.Equal(t, "replica lag", res.Errors["city_bookings"])
	assert.Equal(t, 25, res.Bookings)
	comp := reportOf(res, models.AgentCompetition)
	require.True(t, comp.Success)
	assert.Equal(t, 1, comp.Competition.HotelCount)
}

func TestAnalyzeFailsClosedWithoutBookings(t *testing.T) {
	uc := newAnalysis(&fakeStore{})

	res, err := uc.Analyze(context.Background(), AnalyzeParams{City: "Lisbon"})
	require.NoError(t, err)

	assert.False(t, res.Decision.Success)
	for _, r := range res.Reports {
		assert.False(t, r.Success)
		assert.Zero(t, r.Confidence)
	}
	assert.Len(t, res.Errors, 4)
}

func TestAnalyzeBookingFailureIsUpstream(t *testing.T) {
	uc := newAnalysis(&fakeStore{bookingErr: errors.New("connection refused")})

	_, err := uc.Analyze(context.Background(), AnalyzeParams{HotelID: "H"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAnalyzeSearchFailureIsRecorded(t *testing.T) {
	store := &fakeStore{bookings: discountedBookings(), searchErr: errors.New("timeout")}
	uc := newAnalysis(store)

	res, err := uc.Analyze(context.Background(), AnalyzeParams{HotelID: "H"})
	require.NoError(t, err)
	assert.Equal(t, "timeout", res.Errors["searches"])
	assert.Zero(t, res.Searches)
	assert.True(t, res.Decision.Success)
}

func TestAnalyzeRejectsNegativeLookback(t *testing.T) {
	store := &fakeStore{}
	uc := newAnalysis(store)

	_, err := uc.Analyze(context.Background(), AnalyzeParams{LookbackDays: -1})
	assert.ErrorIs(t, err, models.ErrInvalidConstraint)
	assert.Zero(t, store.calls.Load())
}

func TestAnalyzePublishFailureDoesNotFail(t *testing.T) {
	store := &fakeStore{bookings: discountedBookings()}
	uc := newAnalysis(store, WithAnalysisPublisher(&fakePublisher{err: errors.New("broker down")}))

	res, err := uc.Analyze(context.Background(), AnalyzeParams{HotelID: "H", Publish: true})
	require.NoError(t, err)
	assert.Equal(t, "broker down", res.Errors["publish"])
}
