package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestWaitReady_RetriesUntilPing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	db := &DB{Pool: mock}

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing()

	require.NoError(t, db.WaitReady(context.Background(), time.Millisecond))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitReady_GivesUpWithContext(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	db := &DB{Pool: mock}

	ctx, cancel := context.WithCancel(context.Background())
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	cancel()

	err = db.WaitReady(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorContains(t, err, "connection refused")
}
