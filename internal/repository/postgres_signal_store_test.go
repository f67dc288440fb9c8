package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domrepo "RoomArb/internal/domain/repository"
	pkgpg "RoomArb/pkg/postgres"
)

var pgNow = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

func newPGStore(t *testing.T) (*PGSignalStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := NewPGSignalStore(pkgpg.NewFromDB(db), WithPGClock(func() time.Time { return pgNow }))
	return store, mock
}

func TestPGFetchBookingSignals(t *testing.T) {
	store, mock := newPGStore(t)
	from := pgNow.AddDate(0, 0, -30)
	inserted := pgNow.AddDate(0, 0, -3)

	rows := sqlmock.NewRows([]string{
		"id", "hotel_id", "hotel_name", "city", "source", "price", "list_price",
		"sold", "active", "pushed", "cancellation_policy", "inserted_at", "check_in", "check_out",
	}).
		AddRow("b1", "h1", "Harbor", "Lisbon", "expedia", 120.0, 150.0, true, false, true, "flexible", inserted, pgNow, pgNow.AddDate(0, 0, 2)).
		AddRow("b2", "h1", "Harbor", "Lisbon", nil, 90.0, nil, false, true, false, nil, inserted, pgNow, pgNow.AddDate(0, 0, 1))

	mock.ExpectQuery(`FROM bookings b\s+JOIN hotels h ON h.id = b.hotel_id\s+WHERE b.hotel_id = \$1 AND h.city = \$2 AND b.inserted_at >= \$3`).
		WithArgs("h1", "Lisbon", from).
		WillReturnRows(rows)

	out, err := store.FetchBookingSignals(context.Background(), domrepo.BookingFilter{HotelID: "h1", City: "Lisbon", From: from})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "expedia", out[0].Source)
	assert.Equal(t, 150.0, out[0].ListPrice)
	assert.True(t, out[0].Sold)
	assert.Equal(t, "", out[1].Source)
	assert.Equal(t, 0.0, out[1].ListPrice)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFetchBookingSignalsNoFilter(t *testing.T) {
	store, mock := newPGStore(t)
	mock.ExpectQuery(`JOIN hotels h ON h.id = b.hotel_id\s+ORDER BY`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	out, err := store.FetchBookingSignals(context.Background(), domrepo.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFetchSearchSignalsUsesLookback(t *testing.T) {
	store, mock := newPGStore(t)
	rows := sqlmock.NewRows([]string{"hotel_id", "hotel_name", "city", "stay_from", "stay_to", "price", "updated_at"}).
		AddRow("h1", "Harbor", "Lisbon", pgNow, pgNow.AddDate(0, 0, 1), 110.0, pgNow.Add(-time.Hour))

	mock.ExpectQuery(`FROM search_logs sl`).
		WithArgs("Lisbon", pgNow.AddDate(0, 0, -14)).
		WillReturnRows(rows)

	out, err := store.FetchSearchSignals(context.Background(), domrepo.SearchFilter{City: "Lisbon", LookbackDays: 14})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 110.0, out[0].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFetchHistoricalPerformance(t *testing.T) {
	store, mock := newPGStore(t)
	cols := []string{"hotel_id", "hotel_name", "city", "booking_count", "sold_count", "success_rate",
		"avg_price", "price_std_dev", "avg_margin_pct", "cancellation_rate"}

	mock.ExpectQuery(`WHERE b.hotel_id = \$1 AND b.inserted_at >= \$2`).
		WithArgs("h1", pgNow.AddDate(0, -6, 0)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("h1", "Harbor", "Lisbon", 40, 30, 0.75, 180.0, 22.5, 14.0, 0.05))

	perf, err := store.FetchHistoricalPerformance(context.Background(), "h1", 0)
	require.NoError(t, err)
	assert.Equal(t, 40, perf.BookingCount)
	assert.Equal(t, 0.75, perf.SuccessRate)
	assert.Equal(t, 22.5, perf.PriceStdDev)

	mock.ExpectQuery(`WHERE b.hotel_id = \$1`).WillReturnError(sql.ErrNoRows)
	empty, err := store.FetchHistoricalPerformance(context.Background(), "h9", 3)
	require.NoError(t, err)
	assert.Equal(t, "h9", empty.HotelID)
	assert.Zero(t, empty.BookingCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFetchTopHotels(t *testing.T) {
	store, mock := newPGStore(t)
	cols := []string{"hotel_id", "hotel_name", "city", "booking_count", "sold_count", "success_rate",
		"avg_price", "price_std_dev", "avg_margin_pct", "cancellation_rate"}

	mock.ExpectQuery(`HAVING COUNT\(\*\) >= \$3\s+ORDER BY success_rate DESC, booking_count DESC`).
		WithArgs("Porto", pgNow.AddDate(0, -12, 0), minTopHotelBookings, 30).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("h1", "A", "Porto", 20, 18, 0.9, 100.0, 5.0, 12.0, 0.0).
			AddRow("h2", "B", "Porto", 50, 40, 0.8, 90.0, 8.0, 10.0, 0.1))

	out, err := store.FetchTopHotels(context.Background(), "Porto", 12, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "h1", out[0].HotelID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFetchTopHotelsError(t *testing.T) {
	store, mock := newPGStore(t)
	mock.ExpectQuery(`HAVING`).WillReturnError(errors.New("connection reset"))

	_, err := store.FetchTopHotels(context.Background(), "Porto", 6, 10)
	assert.ErrorContains(t, err, "top hotels: connection reset")
}

func TestPGFetchSearchVolume(t *testing.T) {
	store, mock := newPGStore(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM search_logs`).
		WithArgs("h1", pgNow.AddDate(0, 0, -domrepo.DefaultSearchDays)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := store.FetchSearchVolume(context.Background(), "h1", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFetchOccupancy(t *testing.T) {
	store, mock := newPGStore(t)
	mock.ExpectQuery(`EXTRACT\(MONTH FROM check_in\) = \$2`).
		WithArgs("h1", 7).
		WillReturnRows(sqlmock.NewRows([]string{"total", "sold"}).AddRow(8, 6))
	mock.ExpectQuery(`EXTRACT\(MONTH FROM check_in\)`).
		WithArgs("h1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"total", "sold"}).AddRow(0, 0))

	occ, ok, err := store.FetchOccupancy(context.Background(), "h1", time.July)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.75, occ, 1e-9)

	_, ok, err = store.FetchOccupancy(context.Background(), "h1", time.January)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFetchPriceOutcomes(t *testing.T) {
	store, mock := newPGStore(t)
	mock.ExpectQuery(`SELECT price, sold\s+FROM bookings`).
		WithArgs("h1", pgNow.AddDate(0, 0, -domrepo.DefaultElasticityWindow)).
		WillReturnRows(sqlmock.NewRows([]string{"price", "sold"}).AddRow(80.0, true).AddRow(120.0, false))

	out, err := store.FetchPriceOutcomes(context.Background(), "h1", 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].Sold)
	assert.Equal(t, 120.0, out[1].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}
