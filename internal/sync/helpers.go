package sync

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
)

// nowMs is the pipeline's single source of "current time", captured once
// per call site per spec.md §4.2's fetched_at rule.
func nowMs() int64 {
	return time.Now().UnixMilli()
}

// symbolName returns the raw venue symbol string a pipeline should use for
// adapter calls: funding_symbol takes precedence, falling back to
// exchange_symbol per spec.md §3.2.
func symbolName(pair domain.SymbolPair) string {
	if pair.FundingSymbol != nil {
		return pair.FundingSymbol.SymbolName
	}
	if pair.ExchangeSymbol != nil {
		return pair.ExchangeSymbol.SymbolName
	}
	return ""
}

// launchTimeOf resolves a symbol's preferred backfill start: funding
// symbol's launch_time first, exchange symbol's listing_date as fallback,
// nil (adapter default) otherwise.
func launchTimeOf(pair domain.SymbolPair) *time.Time {
	if pair.FundingSymbol != nil && pair.FundingSymbol.LaunchTime != nil {
		t := time.UnixMilli(*pair.FundingSymbol.LaunchTime)
		return &t
	}
	if pair.ExchangeSymbol != nil && pair.ExchangeSymbol.ListingDate != nil {
		t := time.UnixMilli(*pair.ExchangeSymbol.ListingDate)
		return &t
	}
	return nil
}

// intervalHoursOf resolves a row's interval per spec.md §4.2:
// funding_info.interval_hours, falling back to the observation's own
// interval_hours (MEXC reports it per-observation, not per-symbol). Returns
// ok=false when neither source has it.
func intervalHoursOf(pair domain.SymbolPair, obs domain.FundingObservation) (int, bool) {
	if pair.FundingSymbol != nil && pair.FundingSymbol.IntervalHours != nil {
		return *pair.FundingSymbol.IntervalHours, true
	}
	if obs.IntervalHours != nil {
		return *obs.IntervalHours, true
	}
	return 0, false
}

// buildRow constructs a HistoryRecord from a raw observation, per spec.md
// §4.2's row-construction rules. ok=false means the row failed validation
// (missing interval source or a zero-valued funding_time) and must be
// dropped, not inserted; the caller logs nothing further since the
// ValidationError below is the record of it.
func buildRow(venueID uuid.UUID, pair domain.SymbolPair, obs domain.FundingObservation, fetchedAt int64) (domain.HistoryRecord, bool) {
	name := symbolName(pair)

	if obs.FundingTime == 0 {
		log.Warn().Err(&domain.ValidationError{Field: "funding_time", Reason: "zero value"}).Str("symbol", name).Msg("history job: row dropped")
		return domain.HistoryRecord{}, false
	}

	interval, ok := intervalHoursOf(pair, obs)
	if !ok {
		log.Warn().Err(&domain.ValidationError{Field: "interval_hours", Reason: "absent on both symbol and observation"}).Str("symbol", name).Msg("history job: row dropped")
		return domain.HistoryRecord{}, false
	}

	return domain.HistoryRecord{
		ID:            uuid.New(),
		VenueID:       venueID,
		Symbol:        domain.Normalize(name),
		Name:          name,
		IntervalHours: interval,
		Rate:          decimal.NewFromFloat(obs.Rate),
		OpenInterest:  decimal.Zero,
		TsRate:        obs.FundingTime,
		FetchedAt:     fetchedAt,
	}, true
}
