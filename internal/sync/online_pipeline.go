package sync

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/adapter"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/kernel"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/persistence"
)

// OnlinePipeline maintains one OnlineRecord per (symbol, venue), reflecting
// the most recent funding observation (spec.md §4.3).
type OnlinePipeline struct {
	adapter adapter.VenueAdapter
	repo    *persistence.Repository
	sem     *kernel.Semaphore
}

// NewOnlinePipeline constructs a pipeline bound to one venue job execution,
// using the adapter's online parallelism bound where it differs from its
// history bound (MEXC: 3 history / 2 online, per spec.md §4.1).
func NewOnlinePipeline(a adapter.VenueAdapter, repo *persistence.Repository) *OnlinePipeline {
	return &OnlinePipeline{
		adapter: a,
		repo:    repo,
		sem:     kernel.NewSemaphore(adapter.ParallelismForOnline(a)),
	}
}

// Run executes steps 1-7 of spec.md §4.3 for this pipeline's venue.
func (p *OnlinePipeline) Run(ctx context.Context) error {
	venue, err := p.repo.Exchanges.GetByCode(ctx, p.adapter.Code())
	if err != nil {
		return err
	}
	if venue == nil {
		log.Warn().Str("venue", string(p.adapter.Code())).Msg("online job: no exchange row for venue, skipping")
		return nil
	}

	existing, err := p.repo.Online.ByNameForVenue(ctx, venue.ID)
	if err != nil {
		return &domain.DatabaseError{Op: "ByNameForVenue", Err: err}
	}

	symbols, err := p.adapter.ListActivePerpetuals(ctx)
	if err != nil {
		log.Error().Err(err).Str("venue", string(venue.Code)).Msg("online job: ListActivePerpetuals failed")
		return nil
	}

	fetchedAt := nowMs()
	rows := p.fetchLatestConcurrently(ctx, venue, symbols, fetchedAt)

	creates, updates := p.bucketBySeenSymbol(venue.ID, rows, existing)

	if len(creates) == 0 && len(updates) == 0 {
		return nil
	}

	txCtx, err := p.repo.UoW.Begin(ctx)
	if err != nil {
		log.Error().Err(err).Str("venue", string(venue.Code)).Msg("online job: Begin failed")
		return nil
	}

	if len(creates) > 0 {
		if err := p.repo.Online.AddRange(txCtx, creates); err != nil {
			log.Error().Err(err).Str("venue", string(venue.Code)).Msg("online job: AddRange failed")
			_ = p.repo.UoW.Rollback(txCtx)
			return nil
		}
	}
	if len(updates) > 0 {
		if err := p.repo.Online.UpdateRange(txCtx, updates); err != nil {
			log.Error().Err(err).Str("venue", string(venue.Code)).Msg("online job: UpdateRange failed")
			_ = p.repo.UoW.Rollback(txCtx)
			return nil
		}
	}

	if err := p.repo.UoW.Save(txCtx); err != nil {
		log.Error().Err(err).Str("venue", string(venue.Code)).Msg("online job: Save failed")
		return nil
	}

	return nil
}

type onlineFetch struct {
	pair domain.SymbolPair
	obs  domain.FundingObservation
}

// fetchLatestConcurrently fetches Latest() for every symbol, bounded by the
// pipeline's online semaphore and retried per kernel.Do. A symbol whose
// fetch fails, or whose funding_time is zero-valued, is dropped.
func (p *OnlinePipeline) fetchLatestConcurrently(ctx context.Context, venue *domain.Venue, symbols []domain.SymbolPair, fetchedAt int64) []onlineFetch {
	type result struct {
		ok bool
		f  onlineFetch
	}

	results := make(chan result, len(symbols))

	for _, pair := range symbols {
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

			var obs *domain.FundingObservation
			err := kernel.Do(ctx, kernel.DefaultRetryable, func(ctx context.Context) error {
				o, err := p.adapter.Latest(ctx, name)
				obs = o
				return err
			})
			if err != nil {
				log.Error().Err(err).Str("venue", string(venue.Code)).Str("symbol", name).Msg("online job: Latest failed, skipping symbol")
				results <- result{}
				return
			}
			if obs == nil || obs.FundingTime == 0 {
				log.Warn().Str("venue", string(venue.Code)).Str("symbol", name).Msg("online job: zero-valued funding_time, skipping symbol")
				results <- result{}
				return
			}

			results <- result{ok: true, f: onlineFetch{pair: pair, obs: *obs}}
		}()
	}

	var all []onlineFetch
	for range symbols {
		r := <-results
		if r.ok {
			all = append(all, r.f)
		}
	}
	return all
}

// bucketBySeenSymbol builds the create/update row sets, preserving existing
// ids on update. It also resolves the normalized-symbol collision named in
// DESIGN.md's open-question decisions: if two raw names from this fetch
// normalize to the same symbol, the first processed wins and later ones are
// dropped with a logged ValidationError. A fetched name whose normalized
// symbol is already stored under a different name is dropped the same way,
// so the pipeline itself never violates the (symbol, venue_id) unique
// constraint.
func (p *OnlinePipeline) bucketBySeenSymbol(venueID uuid.UUID, fetched []onlineFetch, existing map[string]domain.OnlineRecord) (creates, updates []domain.OnlineRecord) {
	seenSymbols := make(map[string]struct{}, len(fetched))
	existingNameBySymbol := make(map[string]string, len(existing))
	for n, rec := range existing {
		existingNameBySymbol[rec.Symbol] = n
	}

	for _, f := range fetched {
		name := symbolName(f.pair)
		symbol := domain.Normalize(name)

		if owner, ok := existingNameBySymbol[symbol]; ok && owner != name {
			log.Warn().Err(&domain.ValidationError{Field: "symbol", Reason: "normalized symbol already stored under another name"}).
				Str("name", name).Str("symbol", symbol).Msg("online job: row dropped")
			continue
		}
		if _, dup := seenSymbols[symbol]; dup {
			log.Warn().Err(&domain.ValidationError{Field: "symbol", Reason: "duplicate normalized symbol within one job run"}).
				Str("name", name).Str("symbol", symbol).Msg("online job: row dropped")
			continue
		}
		seenSymbols[symbol] = struct{}{}

		if prior, ok := existing[name]; ok {
			updates = append(updates, domain.OnlineRecord{
				ID:           prior.ID,
				VenueID:      venueID,
				Symbol:       symbol,
				Name:         name,
				Rate:         decimal.NewFromFloat(f.obs.Rate),
				OpenInterest: prior.OpenInterest,
				TsRate:       f.obs.FundingTime,
				FetchedAt:    nowMs(),
			})
			continue
		}

		creates = append(creates, domain.OnlineRecord{
			ID:           uuid.New(),
			VenueID:      venueID,
			Symbol:       symbol,
			Name:         name,
			Rate:         decimal.NewFromFloat(f.obs.Rate),
			OpenInterest: decimal.Zero,
			TsRate:       f.obs.FundingTime,
			FetchedAt:    nowMs(),
		})
	}

	return creates, updates
}
