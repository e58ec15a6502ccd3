// Package adapter bridges each venue's native REST client to the capability
// set the sync pipelines depend on. One VenueAdapter implementation per
// venue; the pipeline never branches on venue code, only on the adapter's
// declared parallelism/batch/page settings.
package adapter

import (
	"context"
	"time"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
)

// VenueAdapter is the capability set a sync pipeline needs from a venue.
// Grounded on the DerivProvider shape (sawpanic-cryptorun
// internal/providers/derivs/interface.go): a small, venue-agnostic surface
// that hides every transport/pagination/rate-limit detail behind it.
type VenueAdapter interface {
	// Code identifies the venue this adapter speaks for.
	Code() domain.VenueCode

	// ListActivePerpetuals returns active linear perpetual symbols with any
	// funding-interval metadata the venue exposes up front.
	ListActivePerpetuals(ctx context.Context) ([]domain.SymbolPair, error)

	// ListHistory lazily paginates the venue's funding history for symbol,
	// honoring the venue's pagination direction and inter-page delay.
	// startTime is nil when the caller has no lower bound.
	ListHistory(ctx context.Context, symbol string, startTime *time.Time) ([]domain.FundingObservation, error)

	// Latest returns the single most recent funding observation for symbol,
	// or nil if the venue has none.
	Latest(ctx context.Context, symbol string) (*domain.FundingObservation, error)

	// MaxNumbersOfParallelism bounds concurrent per-symbol work within one
	// batch, per spec.md §4.1's table.
	MaxNumbersOfParallelism() int

	// BatchSizeForHistory is the number of symbols processed per cold-start
	// backfill batch.
	BatchSizeForHistory() int

	// PacingDelay returns the delay to apply between history batches, given
	// the row count the batch just produced. A zero return means no pacing.
	PacingDelay(batchRows int) time.Duration
}

// OnlineParallelism is implemented by adapters whose online (latest-snapshot)
// concurrency differs from their history concurrency — currently only MEXC
// (3 for history, 2 for online per spec.md §4.1). Pipelines that need the
// online bound type-assert for this interface and fall back to
// MaxNumbersOfParallelism otherwise.
type OnlineParallelism interface {
	MaxNumbersOfParallelismOnline() int
}

// ParallelismForOnline returns a's online concurrency bound, honoring
// OnlineParallelism when the adapter implements it.
func ParallelismForOnline(a VenueAdapter) int {
	if op, ok := a.(OnlineParallelism); ok {
		return op.MaxNumbersOfParallelismOnline()
	}
	return a.MaxNumbersOfParallelism()
}
