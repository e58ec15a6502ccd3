// Package sync implements the history and online pipelines: the two
// procedures that bring local storage into alignment with a venue's
// published funding data (spec.md §4.2, §4.3). Each pipeline instance is
// constructed once per job execution and owns its own semaphore, per
// spec.md §9's re-architecture guidance.
package sync

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/adapter"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/kernel"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/persistence"
)

// HistoryPipeline brings one venue's HistoryRecord set into alignment with
// the venue's published history, without gaps and without duplicate
// ingestion (spec.md §4.2).
type HistoryPipeline struct {
	adapter adapter.VenueAdapter
	repo    *persistence.Repository
	sem     *kernel.Semaphore
}

// NewHistoryPipeline constructs a pipeline bound to one venue job execution.
// The semaphore is built eagerly here, not lazily on first use, and is
// private to this instance.
func NewHistoryPipeline(a adapter.VenueAdapter, repo *persistence.Repository) *HistoryPipeline {
	return &HistoryPipeline{
		adapter: a,
		repo:    repo,
		sem:     kernel.NewSemaphore(a.MaxNumbersOfParallelism()),
	}
}

// Run executes one job tick for this pipeline's venue: cold-start backfill
// if no HistoryRecord exists yet, incremental sync otherwise.
func (p *HistoryPipeline) Run(ctx context.Context) error {
	venue, err := p.repo.Exchanges.GetByCode(ctx, p.adapter.Code())
	if err != nil {
		return err
	}
	if venue == nil {
		log.Warn().Str("venue", string(p.adapter.Code())).Msg("history job: no exchange row for venue, skipping")
		return nil
	}

	hasHistory, err := p.repo.History.HasAnyForVenue(ctx, venue.ID)
	if err != nil {
		return &domain.DatabaseError{Op: "HasAnyForVenue", Err: err}
	}

	if !hasHistory {
		return p.coldStart(ctx, venue)
	}
	return p.incremental(ctx, venue)
}

// coldStart fetches the entire available history for every symbol the
// adapter reports, in batches of BatchSizeForHistory, symbols within a
// batch running in parallel bounded by MaxNumbersOfParallelism. No DTOs are
// returned; rows flow straight to storage.
func (p *HistoryPipeline) coldStart(ctx context.Context, venue *domain.Venue) error {
	symbols, err := p.adapter.ListActivePerpetuals(ctx)
	if err != nil {
		return err
	}

	fetchedAt := nowMs()
	batchSize := p.adapter.BatchSizeForHistory()

	for start := 0; start < len(symbols); start += batchSize {
		end := start + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		rows := p.fetchBatchConcurrently(ctx, venue, batch, nil, fetchedAt)
		if err := p.insertBatch(ctx, rows); err != nil {
			return err
		}

		if d := p.adapter.PacingDelay(len(rows)); d > 0 {
			if err := kernel.Sleep(ctx, d); err != nil {
				return err
			}
		}
	}

	return nil
}

// incremental runs the per-symbol state machine of spec.md §4.5: Skip /
// FillGap / AppendOne for symbols with prior history, FullBackfill for
// symbols seen for the first time since the last sync.
func (p *HistoryPipeline) incremental(ctx context.Context, venue *domain.Venue) error {
	symbols, err := p.adapter.ListActivePerpetuals(ctx)
	if err != nil {
		return err
	}

	latest, err := p.repo.History.LatestForVenue(ctx, venue.ID)
	if err != nil {
		return &domain.DatabaseError{Op: "LatestForVenue", Err: err}
	}

	fetchedAt := nowMs()
	batchSize := p.adapter.BatchSizeForHistory()

	for start := 0; start < len(symbols); start += batchSize {
		end := start + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		var rows []domain.HistoryRecord
		for _, pair := range batch {
			name := symbolName(pair)
			if name == "" {
				continue
			}

			last, known := latest[name]
			if !known {
				// New symbol since the last sync: full backfill, same
				// procedure as cold-start, for this symbol only.
				rows = append(rows, p.fetchBatchConcurrently(ctx, venue, []domain.SymbolPair{pair}, nil, fetchedAt)...)
				continue
			}

			// Existing is a terminal transition: exactly one of
			// Skip/FillGap/AppendOne fires, FullBackfill never fires here.
			intervalHours := last.IntervalHours
			intervalMs := int64(intervalHours) * int64(time.Hour/time.Millisecond)
			now := nowMs()

			switch {
			case last.TsRate+intervalMs > now:
				// SkipFresh: next funding event is not yet due.
				continue
			case now-2*intervalMs > last.TsRate:
				// FillGap: fetch every missed observation.
				from := time.UnixMilli(last.TsRate + 1)
				rows = append(rows, p.fetchBatchConcurrently(ctx, venue, []domain.SymbolPair{pair}, &from, fetchedAt)...)
			default:
				// AppendOne: fetch only the latest observation.
				obs, err := p.adapter.Latest(ctx, name)
				if err != nil {
					log.Error().Err(err).Str("venue", string(venue.Code)).Str("symbol", name).Msg("history job: AppendOne fetch failed")
					continue
				}
				if row, ok := buildRow(venue.ID, pair, *obs, fetchedAt); ok {
					rows = append(rows, row)
				}
			}
		}

		if len(rows) == 0 {
			continue
		}
		if err := p.insertBatch(ctx, rows); err != nil {
			return err
		}

		if d := p.adapter.PacingDelay(len(rows)); d > 0 {
			if err := kernel.Sleep(ctx, d); err != nil {
				return err
			}
		}
	}

	return nil
}

// fetchBatchConcurrently runs ListHistory for each symbol in batch, bounded
// by the pipeline's semaphore, retried per kernel.Do. A single symbol's
// failure is logged and skipped; it never aborts the batch.
func (p *HistoryPipeline) fetchBatchConcurrently(ctx context.Context, venue *domain.Venue, batch []domain.SymbolPair, startTime *time.Time, fetchedAt int64) []domain.HistoryRecord {
	type result struct {
		rows []domain.HistoryRecord
	}

	results := make(chan result, len(batch))

	for _, pair := range batch {
		pair := pair
		go func() {
			if err := p.sem.Acquire(ctx); err != nil {
				results <- result{}
				return
			}
			defer p.sem.Release()

			name := symbolName(pair)
			if name == "" {
				results <- result{}
				return
			}

			st := startTime
			if st == nil {
				st = launchTimeOf(pair)
			}

			var observations []domain.FundingObservation
			err := kernel.Do(ctx, kernel.DefaultRetryable, func(ctx context.Context) error {
				obs, err := p.adapter.ListHistory(ctx, name, st)
				observations = obs
				return err
			})
			if err != nil {
				log.Error().Err(err).Str("venue", string(venue.Code)).Str("symbol", name).Msg("history job: ListHistory failed, skipping symbol")
				results <- result{}
				return
			}

			rows := make([]domain.HistoryRecord, 0, len(observations))
			for _, obs := range observations {
				if row, ok := buildRow(venue.ID, pair, obs, fetchedAt); ok {
					rows = append(rows, row)
				}
			}
			results <- result{rows: rows}
		}()
	}

	var all []domain.HistoryRecord
	for range batch {
		r := <-results
		all = append(all, r.rows...)
	}
	return all
}

func (p *HistoryPipeline) insertBatch(ctx context.Context, rows []domain.HistoryRecord) error {
	if len(rows) == 0 {
		return nil
	}
	if err := p.repo.History.BulkInsert(ctx, rows); err != nil {
		return &domain.DatabaseError{Op: "BulkInsert", Err: err}
	}
	return nil
}

