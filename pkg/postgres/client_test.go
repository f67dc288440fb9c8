package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresDSN(t *testing.T) {
	_, err := NewClient()
	assert.EqualError(t, err, "postgres dsn is required")
}

func TestHealthPings(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	c := NewFromDB(db)

	mock.ExpectPing()
	assert.NoError(t, c.Health(context.Background()))

	mock.ExpectClose()
	assert.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
