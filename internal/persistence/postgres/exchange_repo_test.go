package postgres

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestExchangeRepoGetByCodeFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExchangeRepo(db, time.Second)

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "code"}).AddRow(id, "BINANCE")
	mock.ExpectQuery(`SELECT id, code FROM exchanges WHERE code = \$1`).
		WithArgs(domain.VenueBinance).
		WillReturnRows(rows)

	v, err := repo.GetByCode(context.Background(), domain.VenueBinance)
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, id, v.ID)
	require.Equal(t, domain.VenueBinance, v.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExchangeRepoGetByCodeNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExchangeRepo(db, time.Second)

	mock.ExpectQuery(`SELECT id, code FROM exchanges WHERE code = \$1`).
		WithArgs(domain.VenueMEXC).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}))

	v, err := repo.GetByCode(context.Background(), domain.VenueMEXC)
	require.NoError(t, err)
	require.Nil(t, v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepoHasAnyForVenue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryRepo(db, time.Second)

	venueID := uuid.New()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM history WHERE venue_id = \$1\)`).
		WithArgs(venueID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.HasAnyForVenue(context.Background(), venueID)
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
