// Package persistence defines the storage contract the sync pipelines
// depend on (spec.md §6.1). Postgres implementations live in the postgres
// subpackage; the pipelines themselves only ever see these interfaces.
package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
)

// Page bounds a paginated query. A zero Size means no page size; the
// Postgres repos then cap the query at 1,000,000 rows.
type Page struct {
	Number int
	Size   int
}

// HistoryFilter narrows history queries. Zero values mean "no filter on
// this field".
type HistoryFilter struct {
	VenueID  uuid.UUID
	Symbol   string
	GroupByVenue bool
}

// OnlineFilter narrows online queries.
type OnlineFilter struct {
	VenueID uuid.UUID
	Symbol  string
}

// ExchangeRepo manages the Venue catalog, seeded externally at startup; the
// engine only ever reads from it, except at seed time.
type ExchangeRepo interface {
	GetByCode(ctx context.Context, code domain.VenueCode) (*domain.Venue, error)
	Add(ctx context.Context, v *domain.Venue) error
	Save(ctx context.Context) error
}

// HistoryRepo is the append-only HistoryRecord store.
type HistoryRepo interface {
	// GetLatestSymbolRates returns, for each unique symbol (or symbol×venue
	// when filter.GroupByVenue is set), the row with the maximum ts_rate.
	GetLatestSymbolRates(ctx context.Context, filter HistoryFilter, page Page) ([]domain.HistoryRecord, error)
	GetByFilter(ctx context.Context, filter HistoryFilter, page Page) ([]domain.HistoryRecord, error)
	GetUniqueSymbolsCount(ctx context.Context, filter HistoryFilter) (int, error)
	GetCountByFilter(ctx context.Context, filter HistoryFilter) (int, error)

	// BulkInsert writes rows via staged bulk-copy, batching internally at
	// <=10000 rows per copy. It does not require a following UnitOfWork.Save.
	BulkInsert(ctx context.Context, rows []domain.HistoryRecord) error

	// LatestForVenue returns, for every raw symbol name of venueID, its most
	// recent HistoryRecord, keyed by that raw name. Used by the incremental
	// sync state machine to decide
	// SkipFresh/FillGap/AppendOne per symbol.
	LatestForVenue(ctx context.Context, venueID uuid.UUID) (map[string]domain.HistoryRecord, error)

	// HasAnyForVenue reports whether venueID has at least one HistoryRecord,
	// the cold-start/incremental trigger condition in spec.md §4.2.
	HasAnyForVenue(ctx context.Context, venueID uuid.UUID) (bool, error)
}

// OnlineRepo is the latest-snapshot-per-(symbol,venue) store.
type OnlineRepo interface {
	GetByFilter(ctx context.Context, filter OnlineFilter, page Page) ([]domain.OnlineRecord, error)
	GetLatestSymbolFundingRates(ctx context.Context, page Page) ([]domain.OnlineRecord, error)
	GetUniqueSymbolsCount(ctx context.Context) (int, error)
	GetCountByFilter(ctx context.Context, filter OnlineFilter) (int, error)

	// ByNameForVenue returns existing OnlineRecords for venueID keyed by raw
	// name, for the online pipeline's create-vs-update decision.
	ByNameForVenue(ctx context.Context, venueID uuid.UUID) (map[string]domain.OnlineRecord, error)

	AddRange(ctx context.Context, rows []domain.OnlineRecord) error
	UpdateRange(ctx context.Context, rows []domain.OnlineRecord) error
}

// UnitOfWork commits the writes queued by a repo's AddRange/UpdateRange
// calls atomically. One Begin, then one Save, per online job run, per
// spec.md §4.3. Begin returns a derived context that OnlineRepo
// implementations recognize and write through; callers must pass that
// derived context to every subsequent AddRange/UpdateRange/Save/Rollback
// call in the same job run.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Save(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository aggregates the three repos plus the unit of work, the
// dependency a sync pipeline is constructed with. Grounded on
// sawpanic-cryptorun's internal/persistence/interfaces.go Repository
// aggregate shape.
type Repository struct {
	Exchanges ExchangeRepo
	History   HistoryRepo
	Online    OnlineRepo
	UoW       UnitOfWork
}
