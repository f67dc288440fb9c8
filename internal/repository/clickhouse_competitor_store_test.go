package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgch "RoomArb/pkg/clickhouse"
)

func newCHStore(t *testing.T) (*CHCompetitorStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewCHCompetitorStore(pkgch.NewFromDB(db))
	s.SetClock(func() time.Time { return pgNow })
	return s, mock
}

func TestCHCompetitorSnapshot(t *testing.T) {
	store, mock := newCHStore(t)
	in := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	out := in.AddDate(0, 0, 2)

	mock.ExpectQuery(`FROM competitor_prices`).
		WithArgs("h1", pgNow.Add(-CompetitorWindow), out, in).
		WillReturnRows(sqlmock.NewRows([]string{"avg_price", "min_price", "max_price", "competitors"}).
			AddRow(140.0, 110.0, 180.0, uint64(4)))

	snap, err := store.FetchCompetitorSnapshot(context.Background(), "h1", in, out)
	require.NoError(t, err)
	assert.Equal(t, 140.0, snap.Avg)
	assert.Equal(t, 110.0, snap.Min)
	assert.Equal(t, 180.0, snap.Max)
	assert.Equal(t, 4, snap.CompetitorCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHCompetitorSnapshotError(t *testing.T) {
	store, mock := newCHStore(t)
	mock.ExpectQuery(`FROM competitor_prices`).WillReturnError(errors.New("code: 60"))

	_, err := store.FetchCompetitorSnapshot(context.Background(), "h1", pgNow, pgNow.AddDate(0, 0, 1))
	assert.ErrorContains(t, err, "competitor snapshot: code: 60")
}
