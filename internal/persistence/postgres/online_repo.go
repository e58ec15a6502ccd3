package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/persistence"
)

// onlineRepo implements persistence.OnlineRepo. AddRange/UpdateRange write
// through the transaction carried on ctx by a prior UnitOfWork.Begin; reads
// run directly against the pool since they never need read-your-writes
// isolation beyond what a single SELECT provides.
type onlineRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewOnlineRepo(db *sqlx.DB, timeout time.Duration, _ *unitOfWork) persistence.OnlineRepo {
	return &onlineRepo{db: db, timeout: timeout}
}

func (r *onlineRepo) GetByFilter(ctx context.Context, filter persistence.OnlineFilter, page persistence.Page) ([]domain.OnlineRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, venue_id, symbol, name, rate, open_interest, ts_rate, fetched_at
		FROM online
		WHERE ($1 = '' OR symbol = $1) AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR venue_id = $2)
		ORDER BY symbol
		OFFSET $3 LIMIT $4`

	var rows []domain.OnlineRecord
	if err := r.db.SelectContext(ctx, &rows, query, filter.Symbol, filter.VenueID, offsetFor(page), limitFor(page)); err != nil {
		return nil, fmt.Errorf("postgres: GetByFilter: %w", err)
	}
	return rows, nil
}

func (r *onlineRepo) GetLatestSymbolFundingRates(ctx context.Context, page persistence.Page) ([]domain.OnlineRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, venue_id, symbol, name, rate, open_interest, ts_rate, fetched_at
		FROM online
		ORDER BY ts_rate DESC
		OFFSET $1 LIMIT $2`

	var rows []domain.OnlineRecord
	if err := r.db.SelectContext(ctx, &rows, query, offsetFor(page), limitFor(page)); err != nil {
		return nil, fmt.Errorf("postgres: GetLatestSymbolFundingRates: %w", err)
	}
	return rows, nil
}

func (r *onlineRepo) GetUniqueSymbolsCount(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(DISTINCT symbol) FROM online`); err != nil {
		return 0, fmt.Errorf("postgres: GetUniqueSymbolsCount: %w", err)
	}
	return count, nil
}

func (r *onlineRepo) GetCountByFilter(ctx context.Context, filter persistence.OnlineFilter) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	query := `SELECT COUNT(*) FROM online WHERE ($1 = '' OR symbol = $1) AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR venue_id = $2)`
	if err := r.db.GetContext(ctx, &count, query, filter.Symbol, filter.VenueID); err != nil {
		return 0, fmt.Errorf("postgres: GetCountByFilter: %w", err)
	}
	return count, nil
}

func (r *onlineRepo) ByNameForVenue(ctx context.Context, venueID uuid.UUID) (map[string]domain.OnlineRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []domain.OnlineRecord
	query := `SELECT id, venue_id, symbol, name, rate, open_interest, ts_rate, fetched_at FROM online WHERE venue_id = $1`
	if err := r.db.SelectContext(ctx, &rows, query, venueID); err != nil {
		return nil, fmt.Errorf("postgres: ByNameForVenue: %w", err)
	}

	out := make(map[string]domain.OnlineRecord, len(rows))
	for _, row := range rows {
		out[row.Name] = row
	}
	return out, nil
}

// AddRange inserts rows within the transaction UnitOfWork.Begin placed on
// ctx. It does not commit; UnitOfWork.Save does.
func (r *onlineRepo) AddRange(ctx context.Context, rows []domain.OnlineRecord) error {
	if len(rows) == 0 {
		return nil
	}
	tx, ok := txFromContext(ctx)
	if !ok {
		return fmt.Errorf("postgres: AddRange called without a transaction; call UnitOfWork.Begin first")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO online (id, venue_id, symbol, name, rate, open_interest, ts_rate, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("postgres: AddRange prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.ID, row.VenueID, row.Symbol, row.Name,
			row.Rate.String(), row.OpenInterest.String(), row.TsRate, row.FetchedAt); err != nil {
			return fmt.Errorf("postgres: AddRange insert %s: %w", row.Name, err)
		}
	}
	return nil
}

// UpdateRange updates rows by id, preserving each row's id as required by
// spec.md §3.1's OnlineRecord invariant, within the same transaction.
func (r *onlineRepo) UpdateRange(ctx context.Context, rows []domain.OnlineRecord) error {
	if len(rows) == 0 {
		return nil
	}
	tx, ok := txFromContext(ctx)
	if !ok {
		return fmt.Errorf("postgres: UpdateRange called without a transaction; call UnitOfWork.Begin first")
	}

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE online SET rate = $2, open_interest = $3, ts_rate = $4, fetched_at = $5
		WHERE id = $1`)
	if err != nil {
		return fmt.Errorf("postgres: UpdateRange prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.ID, row.Rate.String(), row.OpenInterest.String(), row.TsRate, row.FetchedAt); err != nil {
			return fmt.Errorf("postgres: UpdateRange update %s: %w", row.Name, err)
		}
	}
	return nil
}
