package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/persistence"
)

// exchangeRepo implements persistence.ExchangeRepo. Venue rows are seeded
// externally at startup and never deleted by the engine; this repo only
// reads, except at seed time.
type exchangeRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewExchangeRepo(db *sqlx.DB, timeout time.Duration) persistence.ExchangeRepo {
	return &exchangeRepo{db: db, timeout: timeout}
}

func (r *exchangeRepo) GetByCode(ctx context.Context, code domain.VenueCode) (*domain.Venue, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var v domain.Venue
	err := r.db.GetContext(ctx, &v, `SELECT id, code FROM exchanges WHERE code = $1`, code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: GetByCode: %w", err)
	}
	return &v, nil
}

func (r *exchangeRepo) Add(ctx context.Context, v *domain.Venue) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO exchanges (id, code) VALUES ($1, $2)`, v.ID, v.Code)
	if err != nil {
		return fmt.Errorf("postgres: Add: %w", err)
	}
	return nil
}

// Save is a no-op for exchangeRepo: Add commits immediately, there being no
// batching to flush at seed time.
func (r *exchangeRepo) Save(ctx context.Context) error { return nil }
