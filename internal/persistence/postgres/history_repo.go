package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/persistence"
)

// historyCopyBatchSize is the maximum number of rows staged per pq.CopyIn
// call, per spec.md §6.1's "batches of <=10000, streaming, bulk-copy
// timeout disabled" requirement.
const historyCopyBatchSize = 10_000

// historyRepo implements persistence.HistoryRepo. Grounded on
// sawpanic-cryptorun's internal/persistence/postgres/trades_repo.go
// transaction-plus-prepared-statement shape, adapted to pq.CopyIn staging
// for the bulk-insert path spec.md §6.1 requires.
type historyRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewHistoryRepo(db *sqlx.DB, timeout time.Duration) persistence.HistoryRepo {
	return &historyRepo{db: db, timeout: timeout}
}

func (r *historyRepo) GetLatestSymbolRates(ctx context.Context, filter persistence.HistoryFilter, page persistence.Page) ([]domain.HistoryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	groupCols := "symbol"
	if filter.GroupByVenue {
		groupCols = "symbol, venue_id"
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT ON (%s) id, venue_id, symbol, name, interval_hours, rate, open_interest, ts_rate, fetched_at
		FROM history
		WHERE ($1 = '' OR symbol = $1) AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR venue_id = $2)
		ORDER BY %s, ts_rate DESC
		OFFSET $3 LIMIT $4`, groupCols, groupCols)

	var rows []domain.HistoryRecord
	if err := r.db.SelectContext(ctx, &rows, query, filter.Symbol, filter.VenueID, offsetFor(page), limitFor(page)); err != nil {
		return nil, fmt.Errorf("postgres: GetLatestSymbolRates: %w", err)
	}
	return rows, nil
}

func (r *historyRepo) GetByFilter(ctx context.Context, filter persistence.HistoryFilter, page persistence.Page) ([]domain.HistoryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, venue_id, symbol, name, interval_hours, rate, open_interest, ts_rate, fetched_at
		FROM history
		WHERE ($1 = '' OR symbol = $1) AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR venue_id = $2)
		ORDER BY ts_rate DESC
		OFFSET $3 LIMIT $4`

	var rows []domain.HistoryRecord
	if err := r.db.SelectContext(ctx, &rows, query, filter.Symbol, filter.VenueID, offsetFor(page), limitFor(page)); err != nil {
		return nil, fmt.Errorf("postgres: GetByFilter: %w", err)
	}
	return rows, nil
}

func (r *historyRepo) GetUniqueSymbolsCount(ctx context.Context, filter persistence.HistoryFilter) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	query := `SELECT COUNT(DISTINCT symbol) FROM history WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR venue_id = $1)`
	if err := r.db.GetContext(ctx, &count, query, filter.VenueID); err != nil {
		return 0, fmt.Errorf("postgres: GetUniqueSymbolsCount: %w", err)
	}
	return count, nil
}

func (r *historyRepo) GetCountByFilter(ctx context.Context, filter persistence.HistoryFilter) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	query := `SELECT COUNT(*) FROM history WHERE ($1 = '' OR symbol = $1) AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR venue_id = $2)`
	if err := r.db.GetContext(ctx, &count, query, filter.Symbol, filter.VenueID); err != nil {
		return 0, fmt.Errorf("postgres: GetCountByFilter: %w", err)
	}
	return count, nil
}

// BulkInsert stages rows through pq.CopyIn in chunks of at most
// historyCopyBatchSize, one statement per chunk, each wrapped in its own
// transaction so a mid-stream failure does not require undoing prior
// chunks' already-durable rows.
func (r *historyRepo) BulkInsert(ctx context.Context, rows []domain.HistoryRecord) error {
	if len(rows) == 0 {
		return nil
	}

	for start := 0; start < len(rows); start += historyCopyBatchSize {
		end := start + historyCopyBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := r.copyChunk(ctx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *historyRepo) copyChunk(ctx context.Context, rows []domain.HistoryRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: BulkInsert begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("history",
		"id", "venue_id", "symbol", "name", "interval_hours", "rate", "open_interest", "ts_rate", "fetched_at"))
	if err != nil {
		return fmt.Errorf("postgres: BulkInsert prepare copy: %w", err)
	}

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.ID, row.VenueID, row.Symbol, row.Name, row.IntervalHours,
			row.Rate.String(), row.OpenInterest.String(), row.TsRate, row.FetchedAt); err != nil {
			stmt.Close()
			return fmt.Errorf("postgres: BulkInsert stage row: %w", err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("postgres: BulkInsert flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("postgres: BulkInsert close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: BulkInsert commit: %w", err)
	}
	return nil
}

func (r *historyRepo) LatestForVenue(ctx context.Context, venueID uuid.UUID) (map[string]domain.HistoryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT DISTINCT ON (name) id, venue_id, symbol, name, interval_hours, rate, open_interest, ts_rate, fetched_at
		FROM history
		WHERE venue_id = $1
		ORDER BY name, ts_rate DESC`

	var rows []domain.HistoryRecord
	if err := r.db.SelectContext(ctx, &rows, query, venueID); err != nil {
		return nil, fmt.Errorf("postgres: LatestForVenue: %w", err)
	}

	out := make(map[string]domain.HistoryRecord, len(rows))
	for _, row := range rows {
		out[row.Name] = row
	}
	return out, nil
}

func (r *historyRepo) HasAnyForVenue(ctx context.Context, venueID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM history WHERE venue_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, venueID); err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("postgres: HasAnyForVenue: %w", err)
	}
	return exists, nil
}

func offsetFor(p persistence.Page) int {
	if p.Number <= 0 || p.Size <= 0 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

func limitFor(p persistence.Page) int {
	if p.Size <= 0 {
		return 1_000_000
	}
	return p.Size
}
