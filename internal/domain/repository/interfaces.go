package repository

import (
	"context"
	"time"

	"RoomArb/internal/domain/models"
)

// BookingFilter scopes booking signal queries. Empty fields are ignored.
type BookingFilter struct {
	HotelID string
	City    string
	From    time.Time
}

// SearchFilter scopes search intent queries.
type SearchFilter struct {
	HotelID      string
	City         string
	LookbackDays int
}

// SignalStore provides read-only access to historical bookings and searches.
type SignalStore interface {
	FetchBookingSignals(ctx context.Context, f BookingFilter) ([]models.BookingRecord, error)
	FetchSearchSignals(ctx context.Context, f SearchFilter) ([]models.SearchRecord, error)
	FetchHistoricalPerformance(ctx context.Context, hotelID string, months int) (models.HotelPerformance, error)
	// FetchTopHotels ranks hotels of a city by success rate then booking volume.
	FetchTopHotels(ctx context.Context, city string, months, limit int) ([]models.HotelPerformance, error)
	FetchSearchVolume(ctx context.Context, hotelID string, days int) (int, error)
	// FetchOccupancy returns the sold share of bookings for a calendar month, ok=false when unknown.
	FetchOccupancy(ctx context.Context, hotelID string, month time.Month) (float64, bool, error)
	// FetchPriceOutcomes returns (price, sold) pairs for elasticity estimation.
	FetchPriceOutcomes(ctx context.Context, hotelID string, timeframeDays int) ([]models.PriceOutcome, error)
	Health(ctx context.Context) error
	Close() error
}

// CompetitorStore serves competitor price snapshots over a rolling window.
type CompetitorStore interface {
	FetchCompetitorSnapshot(ctx context.Context, hotelID string, checkIn, checkOut time.Time) (models.CompetitorSnapshot, error)
	Health(ctx context.Context) error
	Close() error
}

// LivePriceSource queries the supplier search service. A nil price means no availability.
type LivePriceSource interface {
	FetchLivePrice(ctx context.Context, hotelID string, checkIn, checkOut time.Time, adults int) (*models.LivePrice, error)
}

// Publisher hands scan results and decisions to downstream consumers.
type Publisher interface {
	PublishOpportunities(ctx context.Context, opps []models.Opportunity) error
	PublishDecision(ctx context.Context, scope models.Scope, d models.Decision) error
	Close() error
}

type Metrics interface {
	RecordAgentRun(agent string, success bool, seconds float64)
	RecordDecision(signal, strength, risk string)
	RecordPrediction(risk string, confidence float64)
	RecordOpportunities(city string, n int)
	RecordUpstreamError(source string)
	RecordLatency(op string, seconds float64)
}
