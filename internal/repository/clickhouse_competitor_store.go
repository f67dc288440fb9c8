package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RoomArb/internal/domain/models"
	domrepo "RoomArb/internal/domain/repository"
	pkgch "RoomArb/pkg/clickhouse"
	applogger "RoomArb/pkg/logger"
)

// CompetitorWindow is how far back competitor prices are aggregated.
const CompetitorWindow = 7 * 24 * time.Hour

// CompetitorSchema creates the competitor price table when missing.
var CompetitorSchema = []string{`
        CREATE TABLE IF NOT EXISTS competitor_prices (
            hotel_id      String,
            competitor_id String,
            check_in      Date,
            check_out     Date,
            price         Float64,
            observed_at   DateTime
        ) ENGINE = MergeTree
        ORDER BY (hotel_id, observed_at)
        TTL observed_at + INTERVAL 90 DAY`,
}

// CHCompetitorStore implements CompetitorStore backed by ClickHouse.
type CHCompetitorStore struct {
	db  *sql.DB
	now func() time.Time
	l   *applogger.Logger
}

func NewCHCompetitorStore(ch *pkgch.Client) *CHCompetitorStore {
	return &CHCompetitorStore{db: ch.DB(), now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHCompetitorStore) SetLogger(l *applogger.Logger) { s.l = l }

// SetClock overrides the clock anchoring the rolling window.
func (s *CHCompetitorStore) SetClock(now func() time.Time) { s.now = now }

var _ domrepo.CompetitorStore = (*CHCompetitorStore)(nil)

// FetchCompetitorSnapshot aggregates prices observed in the last week for stays
// overlapping [checkIn, checkOut). An empty window yields a zero snapshot.
func (s *CHCompetitorStore) FetchCompetitorSnapshot(ctx context.Context, hotelID string, checkIn, checkOut time.Time) (models.CompetitorSnapshot, error) {
	start := time.Now()
	const q = `
        SELECT
            if(count() = 0, 0, avg(price)) AS avg_price,
            if(count() = 0, 0, min(price)) AS min_price,
            if(count() = 0, 0, max(price)) AS max_price,
            uniqExact(competitor_id)       AS competitors
        FROM competitor_prices
        WHERE hotel_id = ? AND observed_at >= ? AND check_in < ? AND check_out > ?
    `
	from := s.now().UTC().Add(-CompetitorWindow)

	var (
		snap models.CompetitorSnapshot
		n    uint64
	)
	err := s.db.QueryRowContext(ctx, q, hotelID, from, checkOut.UTC(), checkIn.UTC()).
		Scan(&snap.Avg, &snap.Min, &snap.Max, &n)
	if err != nil {
		s.l.Error("clickhouse competitor_snapshot query error",
			applogger.String("hotel_id", hotelID),
			applogger.Error(err),
		)
		return models.CompetitorSnapshot{}, fmt.Errorf("competitor snapshot: %w", err)
	}
	snap.CompetitorCount = int(n)
	s.l.Debug("clickhouse competitor_snapshot ok",
		applogger.String("hotel_id", hotelID),
		applogger.Int("competitors", snap.CompetitorCount),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return snap, nil
}

func (s *CHCompetitorStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHCompetitorStore) Close() error {
	return s.db.Close()
}
