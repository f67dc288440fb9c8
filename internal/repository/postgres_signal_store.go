package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"RoomArb/internal/domain/models"
	domrepo "RoomArb/internal/domain/repository"
	applogger "RoomArb/pkg/logger"
	pkgpg "RoomArb/pkg/postgres"
)

// minTopHotelBookings keeps hotels with too little history out of candidate lists.
const minTopHotelBookings = 5

type bookingRow struct {
	ID                 string          `db:"id"`
	HotelID            string          `db:"hotel_id"`
	HotelName          string          `db:"hotel_name"`
	City               string          `db:"city"`
	Source             sql.NullString  `db:"source"`
	Price              float64         `db:"price"`
	ListPrice          sql.NullFloat64 `db:"list_price"`
	Sold               bool            `db:"sold"`
	Active             bool            `db:"active"`
	Pushed             bool            `db:"pushed"`
	CancellationPolicy sql.NullString  `db:"cancellation_policy"`
	InsertedAt         time.Time       `db:"inserted_at"`
	CheckIn            time.Time       `db:"check_in"`
	CheckOut           time.Time       `db:"check_out"`
}

func (r bookingRow) model() models.BookingRecord {
	return models.BookingRecord{
		ID:                 r.ID,
		HotelID:            r.HotelID,
		HotelName:          r.HotelName,
		City:               r.City,
		Source:             r.Source.String,
		Price:              r.Price,
		ListPrice:          r.ListPrice.Float64,
		Sold:               r.Sold,
		Active:             r.Active,
		Pushed:             r.Pushed,
		CancellationPolicy: r.CancellationPolicy.String,
		InsertedAt:         r.InsertedAt.UTC(),
		CheckIn:            r.CheckIn.UTC(),
		CheckOut:           r.CheckOut.UTC(),
	}
}

type searchRow struct {
	HotelID   string          `db:"hotel_id"`
	HotelName string          `db:"hotel_name"`
	City      string          `db:"city"`
	StayFrom  time.Time       `db:"stay_from"`
	StayTo    time.Time       `db:"stay_to"`
	Price     sql.NullFloat64 `db:"price"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// PGSignalStore implements SignalStore over the bookings and search_logs tables.
type PGSignalStore struct {
	db      *sqlx.DB
	timeout time.Duration
	now     func() time.Time
	l       *applogger.Logger
}

type PGOption func(*PGSignalStore)

// WithQueryTimeout bounds every query issued by the store.
func WithQueryTimeout(d time.Duration) PGOption {
	return func(s *PGSignalStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithPGLogger(l *applogger.Logger) PGOption {
	return func(s *PGSignalStore) { s.l = l }
}

// WithPGClock overrides the clock used to turn windows into absolute bounds.
func WithPGClock(now func() time.Time) PGOption {
	return func(s *PGSignalStore) { s.now = now }
}

func NewPGSignalStore(pg *pkgpg.Client, opts ...PGOption) *PGSignalStore {
	s := &PGSignalStore{
		db:      pg.DB(),
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domrepo.SignalStore = (*PGSignalStore)(nil)

// where accumulates AND conditions with positional placeholders.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

func (s *PGSignalStore) FetchBookingSignals(ctx context.Context, f domrepo.BookingFilter) ([]models.BookingRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()

	var w where
	if f.HotelID != "" {
		w.add("b.hotel_id = $%d", f.HotelID)
	}
	if f.City != "" {
		w.add("h.city = $%d", f.City)
	}
	if !f.From.IsZero() {
		w.add("b.inserted_at >= $%d", f.From.UTC())
	}
	q := `
        SELECT b.id, b.hotel_id, h.name AS hotel_name, h.city, b.source, b.price, b.list_price,
               b.sold, b.active, b.pushed, b.cancellation_policy, b.inserted_at, b.check_in, b.check_out
        FROM bookings b
        JOIN hotels h ON h.id = b.hotel_id
        ` + w.String() + `
        ORDER BY b.inserted_at ASC, b.id ASC`

	var rows []bookingRow
	if err := s.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		s.logErr("postgres fetch_bookings error", err, applogger.String("hotel_id", f.HotelID), applogger.String("city", f.City))
		return nil, fmt.Errorf("fetch bookings: %w", err)
	}
	out := make([]models.BookingRecord, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	s.l.Debug("postgres fetch_bookings ok",
		applogger.String("hotel_id", f.HotelID),
		applogger.String("city", f.City),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *PGSignalStore) FetchSearchSignals(ctx context.Context, f domrepo.SearchFilter) ([]models.SearchRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var w where
	if f.HotelID != "" {
		w.add("sl.hotel_id = $%d", f.HotelID)
	}
	if f.City != "" {
		w.add("h.city = $%d", f.City)
	}
	days := domrepo.NormalizeLookbackDays(f.LookbackDays)
	w.add("sl.updated_at >= $%d", s.since(days))
	q := `
        SELECT sl.hotel_id, h.name AS hotel_name, h.city, sl.stay_from, sl.stay_to, sl.price, sl.updated_at
        FROM search_logs sl
        JOIN hotels h ON h.id = sl.hotel_id
        ` + w.String() + `
        ORDER BY sl.updated_at ASC`

	var rows []searchRow
	if err := s.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		s.logErr("postgres fetch_searches error", err, applogger.String("hotel_id", f.HotelID), applogger.String("city", f.City))
		return nil, fmt.Errorf("fetch searches: %w", err)
	}
	out := make([]models.SearchRecord, len(rows))
	for i, r := range rows {
		out[i] = models.SearchRecord{
			HotelID:   r.HotelID,
			HotelName: r.HotelName,
			City:      r.City,
			StayFrom:  r.StayFrom.UTC(),
			StayTo:    r.StayTo.UTC(),
			Price:     r.Price.Float64,
			UpdatedAt: r.UpdatedAt.UTC(),
		}
	}
	return out, nil
}

const performanceSelect = `
        SELECT b.hotel_id, h.name AS hotel_name, h.city,
               COUNT(*) AS booking_count,
               COUNT(*) FILTER (WHERE b.sold) AS sold_count,
               COALESCE(AVG(CASE WHEN b.sold THEN 1.0 ELSE 0.0 END), 0) AS success_rate,
               COALESCE(AVG(b.price), 0) AS avg_price,
               COALESCE(STDDEV_POP(b.price), 0) AS price_std_dev,
               COALESCE(AVG(CASE WHEN b.sold AND b.price > 0 AND b.sold_price > 0
                                 THEN (b.sold_price - b.price) / b.price * 100 END), 0) AS avg_margin_pct,
               COALESCE(AVG(CASE WHEN b.cancelled THEN 1.0 ELSE 0.0 END), 0) AS cancellation_rate
        FROM bookings b
        JOIN hotels h ON h.id = b.hotel_id`

// FetchHistoricalPerformance returns a zero-count record when the hotel has no history.
func (s *PGSignalStore) FetchHistoricalPerformance(ctx context.Context, hotelID string, months int) (models.HotelPerformance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	months = domrepo.NormalizeMonths(months)
	q := performanceSelect + `
        WHERE b.hotel_id = $1 AND b.inserted_at >= $2
        GROUP BY b.hotel_id, h.name, h.city`

	var perf models.HotelPerformance
	err := s.db.GetContext(ctx, &perf, q, hotelID, s.sinceMonths(months))
	if errors.Is(err, sql.ErrNoRows) {
		return models.HotelPerformance{HotelID: hotelID}, nil
	}
	if err != nil {
		s.logErr("postgres historical_performance error", err, applogger.String("hotel_id", hotelID))
		return models.HotelPerformance{}, fmt.Errorf("historical performance: %w", err)
	}
	return perf, nil
}

func (s *PGSignalStore) FetchTopHotels(ctx context.Context, city string, months, limit int) ([]models.HotelPerformance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	months = domrepo.NormalizeMonths(months)
	if limit <= 0 {
		limit = 30
	}
	q := performanceSelect + `
        WHERE h.city = $1 AND b.inserted_at >= $2
        GROUP BY b.hotel_id, h.name, h.city
        HAVING COUNT(*) >= $3
        ORDER BY success_rate DESC, booking_count DESC, b.hotel_id ASC
        LIMIT $4`

	var out []models.HotelPerformance
	if err := s.db.SelectContext(ctx, &out, q, city, s.sinceMonths(months), minTopHotelBookings, limit); err != nil {
		s.logErr("postgres top_hotels error", err, applogger.String("city", city))
		return nil, fmt.Errorf("top hotels: %w", err)
	}
	return out, nil
}

func (s *PGSignalStore) FetchSearchVolume(ctx context.Context, hotelID string, days int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if days <= 0 {
		days = domrepo.DefaultSearchDays
	}
	var n int
	const q = `SELECT COUNT(*) FROM search_logs WHERE hotel_id = $1 AND updated_at >= $2`
	if err := s.db.GetContext(ctx, &n, q, hotelID, s.since(days)); err != nil {
		s.logErr("postgres search_volume error", err, applogger.String("hotel_id", hotelID))
		return 0, fmt.Errorf("search volume: %w", err)
	}
	return n, nil
}

func (s *PGSignalStore) FetchOccupancy(ctx context.Context, hotelID string, month time.Month) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row struct {
		Total int `db:"total"`
		Sold  int `db:"sold"`
	}
	const q = `
        SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE sold) AS sold
        FROM bookings
        WHERE hotel_id = $1 AND EXTRACT(MONTH FROM check_in) = $2`
	if err := s.db.GetContext(ctx, &row, q, hotelID, int(month)); err != nil {
		s.logErr("postgres occupancy error", err, applogger.String("hotel_id", hotelID))
		return 0, false, fmt.Errorf("occupancy: %w", err)
	}
	if row.Total == 0 {
		return 0, false, nil
	}
	return float64(row.Sold) / float64(row.Total), true, nil
}

func (s *PGSignalStore) FetchPriceOutcomes(ctx context.Context, hotelID string, timeframeDays int) ([]models.PriceOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if timeframeDays <= 0 {
		timeframeDays = domrepo.DefaultElasticityWindow
	}
	const q = `
        SELECT price, sold
        FROM bookings
        WHERE hotel_id = $1 AND inserted_at >= $2 AND price > 0
        ORDER BY price ASC`
	var out []models.PriceOutcome
	if err := s.db.SelectContext(ctx, &out, q, hotelID, s.since(timeframeDays)); err != nil {
		s.logErr("postgres price_outcomes error", err, applogger.String("hotel_id", hotelID))
		return nil, fmt.Errorf("price outcomes: %w", err)
	}
	return out, nil
}

func (s *PGSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PGSignalStore) Close() error {
	return s.db.Close()
}

func (s *PGSignalStore) since(days int) time.Time {
	return s.now().UTC().AddDate(0, 0, -days)
}

func (s *PGSignalStore) sinceMonths(months int) time.Time {
	return s.now().UTC().AddDate(0, -months, 0)
}

func (s *PGSignalStore) logErr(msg string, err error, fields ...applogger.Field) {
	s.l.Error(msg, append(fields, applogger.Error(err))...)
}
