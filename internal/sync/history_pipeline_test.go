package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/persistence"
)

// fakeAdapter is a hand-rolled adapter.VenueAdapter test double; the sync
// package tests the pipeline logic, not any real venue transport.
type fakeAdapter struct {
	code          domain.VenueCode
	parallelism   int
	batchSize     int
	symbols       []domain.SymbolPair
	history       map[string][]domain.FundingObservation
	latest        map[string]domain.FundingObservation
	historyCalls  []string
}

func (f *fakeAdapter) Code() domain.VenueCode { return f.code }

func (f *fakeAdapter) ListActivePerpetuals(ctx context.Context) ([]domain.SymbolPair, error) {
	return f.symbols, nil
}

func (f *fakeAdapter) ListHistory(ctx context.Context, symbol string, startTime *time.Time) ([]domain.FundingObservation, error) {
	f.historyCalls = append(f.historyCalls, symbol)
	var out []domain.FundingObservation
	for _, obs := range f.history[symbol] {
		if startTime != nil && obs.FundingTime < startTime.UnixMilli() {
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

func (f *fakeAdapter) Latest(ctx context.Context, symbol string) (*domain.FundingObservation, error) {
	if obs, ok := f.latest[symbol]; ok {
		return &obs, nil
	}
	return nil, &domain.EmptyResultError{Venue: string(f.code), Symbol: symbol}
}

func (f *fakeAdapter) MaxNumbersOfParallelism() int { return f.parallelism }
func (f *fakeAdapter) BatchSizeForHistory() int     { return f.batchSize }
func (f *fakeAdapter) PacingDelay(batchRows int) time.Duration { return 0 }

// fakeRepos is a minimal in-memory implementation of the repos the sync
// package depends on.
type fakeExchangeRepo struct {
	venues map[domain.VenueCode]*domain.Venue
}

func (r *fakeExchangeRepo) GetByCode(ctx context.Context, code domain.VenueCode) (*domain.Venue, error) {
	return r.venues[code], nil
}
func (r *fakeExchangeRepo) Add(ctx context.Context, v *domain.Venue) error { return nil }
func (r *fakeExchangeRepo) Save(ctx context.Context) error                { return nil }

type fakeHistoryRepo struct {
	hasAny   bool
	latest   map[string]domain.HistoryRecord
	inserted []domain.HistoryRecord
}

func (r *fakeHistoryRepo) GetLatestSymbolRates(ctx context.Context, filter persistence.HistoryFilter, page persistence.Page) ([]domain.HistoryRecord, error) {
	return nil, nil
}
func (r *fakeHistoryRepo) GetByFilter(ctx context.Context, filter persistence.HistoryFilter, page persistence.Page) ([]domain.HistoryRecord, error) {
	return nil, nil
}
func (r *fakeHistoryRepo) GetUniqueSymbolsCount(ctx context.Context, filter persistence.HistoryFilter) (int, error) {
	return 0, nil
}
func (r *fakeHistoryRepo) GetCountByFilter(ctx context.Context, filter persistence.HistoryFilter) (int, error) {
	return 0, nil
}
func (r *fakeHistoryRepo) BulkInsert(ctx context.Context, rows []domain.HistoryRecord) error {
	r.inserted = append(r.inserted, rows...)
	return nil
}
func (r *fakeHistoryRepo) LatestForVenue(ctx context.Context, venueID uuid.UUID) (map[string]domain.HistoryRecord, error) {
	return r.latest, nil
}
func (r *fakeHistoryRepo) HasAnyForVenue(ctx context.Context, venueID uuid.UUID) (bool, error) {
	return r.hasAny, nil
}

func newRepo(exch *fakeExchangeRepo, hist *fakeHistoryRepo) *persistence.Repository {
	return &persistence.Repository{Exchanges: exch, History: hist}
}

func mustHours(h int) *int { return &h }

// Scenario 1: cold-start Binance, one symbol, 3 past observations.
func TestColdStartInsertsAllObservations(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	interval := mustHours(8)

	a := &fakeAdapter{
		code:        domain.VenueBinance,
		parallelism: 1,
		batchSize:   10,
		symbols: []domain.SymbolPair{
			{FundingSymbol: &domain.FundingSymbolInfo{SymbolName: "BTCUSDT", IntervalHours: interval}},
		},
		history: map[string][]domain.FundingObservation{
			"BTCUSDT": {
				{Rate: 0.0001, FundingTime: t0},
				{Rate: 0.0002, FundingTime: t0 + 8*3600_000},
				{Rate: 0.0003, FundingTime: t0 + 16*3600_000},
			},
		},
	}

	venueID := uuid.New()
	exch := &fakeExchangeRepo{venues: map[domain.VenueCode]*domain.Venue{domain.VenueBinance: {ID: venueID, Code: domain.VenueBinance}}}
	hist := &fakeHistoryRepo{hasAny: false}
	repo := newRepo(exch, hist)

	p := NewHistoryPipeline(a, repo)
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, hist.inserted, 3)
	for _, row := range hist.inserted {
		assert.Equal(t, "BTCUSDT", row.Symbol)
		assert.Equal(t, "BTCUSDT", row.Name)
		assert.Equal(t, 8, row.IntervalHours)
		assert.Equal(t, venueID, row.VenueID)
	}
}

// Scenario 2: Bybit incremental, SkipFresh — now - last_ts = 30min, interval 4h.
func TestIncrementalSkipFreshInsertsNothing(t *testing.T) {
	now := time.Now()
	lastTs := now.Add(-30 * time.Minute).UnixMilli()

	a := &fakeAdapter{
		code:        domain.VenueBybit,
		parallelism: 10,
		batchSize:   50,
		symbols: []domain.SymbolPair{
			{FundingSymbol: &domain.FundingSymbolInfo{SymbolName: "ETHUSDT", IntervalHours: mustHours(4)}},
		},
	}

	venueID := uuid.New()
	exch := &fakeExchangeRepo{venues: map[domain.VenueCode]*domain.Venue{domain.VenueBybit: {ID: venueID, Code: domain.VenueBybit}}}
	hist := &fakeHistoryRepo{
		hasAny: true,
		latest: map[string]domain.HistoryRecord{
			"ETHUSDT": {Symbol: "ETHUSDT", Name: "ETHUSDT", IntervalHours: 4, TsRate: lastTs},
		},
	}
	repo := newRepo(exch, hist)

	p := NewHistoryPipeline(a, repo)
	require.NoError(t, p.Run(context.Background()))

	assert.Empty(t, hist.inserted)
	assert.Empty(t, a.historyCalls, "SkipFresh must not call ListHistory")
}

// Scenario 3: MEXC incremental, FillGap — gap of 20h with interval 8h,
// expects exactly 2 missed observations inserted.
func TestIncrementalFillGapInsertsMissedObservations(t *testing.T) {
	lastTs := time.Now().Add(-20 * time.Hour).UnixMilli()

	a := &fakeAdapter{
		code:        domain.VenueMEXC,
		parallelism: 3,
		batchSize:   30,
		symbols: []domain.SymbolPair{
			{FundingSymbol: &domain.FundingSymbolInfo{SymbolName: "BTC_USDT"}},
		},
		history: map[string][]domain.FundingObservation{
			"BTC_USDT": {
				{Rate: 0.0001, FundingTime: lastTs + 8*3600_000, IntervalHours: mustHours(8)},
				{Rate: 0.0002, FundingTime: lastTs + 16*3600_000, IntervalHours: mustHours(8)},
			},
		},
	}

	venueID := uuid.New()
	exch := &fakeExchangeRepo{venues: map[domain.VenueCode]*domain.Venue{domain.VenueMEXC: {ID: venueID, Code: domain.VenueMEXC}}}
	hist := &fakeHistoryRepo{
		hasAny: true,
		latest: map[string]domain.HistoryRecord{
			"BTC_USDT": {Symbol: "BTCUSDT", Name: "BTC_USDT", IntervalHours: 8, TsRate: lastTs},
		},
	}
	repo := newRepo(exch, hist)

	p := NewHistoryPipeline(a, repo)
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, hist.inserted, 2)
	for _, row := range hist.inserted {
		assert.Equal(t, "BTCUSDT", row.Symbol)
		assert.Equal(t, "BTC_USDT", row.Name)
		assert.Equal(t, 8, row.IntervalHours)
	}
}

// Boundary behavior: now - last.ts_rate just past one interval triggers
// AppendOne (fetch only the latest observation), not FillGap.
func TestIncrementalAppendOneUsesLatestWhenDue(t *testing.T) {
	lastTs := time.Now().Add(-9 * time.Hour).UnixMilli() // > interval, < 2*interval

	a := &fakeAdapter{
		code:        domain.VenueBybit,
		parallelism: 10,
		batchSize:   50,
		symbols: []domain.SymbolPair{
			{FundingSymbol: &domain.FundingSymbolInfo{SymbolName: "SOLUSDT", IntervalHours: mustHours(8)}},
		},
		latest: map[string]domain.FundingObservation{
			"SOLUSDT": {Rate: 0.0005, FundingTime: time.Now().UnixMilli()},
		},
	}

	venueID := uuid.New()
	exch := &fakeExchangeRepo{venues: map[domain.VenueCode]*domain.Venue{domain.VenueBybit: {ID: venueID, Code: domain.VenueBybit}}}
	hist := &fakeHistoryRepo{
		hasAny: true,
		latest: map[string]domain.HistoryRecord{
			"SOLUSDT": {Symbol: "SOLUSDT", Name: "SOLUSDT", IntervalHours: 8, TsRate: lastTs},
		},
	}
	repo := newRepo(exch, hist)

	p := NewHistoryPipeline(a, repo)
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, hist.inserted, 1)
	assert.Equal(t, "SOLUSDT", hist.inserted[0].Symbol)
}

func TestNewSymbolSinceLastSyncFullBackfills(t *testing.T) {
	t0 := time.Now().Add(-48 * time.Hour).UnixMilli()

	a := &fakeAdapter{
		code:        domain.VenueHyperliquid,
		parallelism: 1,
		batchSize:   30,
		symbols: []domain.SymbolPair{
			{FundingSymbol: &domain.FundingSymbolInfo{SymbolName: "NEWCOIN", IntervalHours: mustHours(1)}},
		},
		history: map[string][]domain.FundingObservation{
			"NEWCOIN": {
				{Rate: 0.0001, FundingTime: t0},
				{Rate: 0.0002, FundingTime: t0 + 3600_000},
			},
		},
	}

	venueID := uuid.New()
	exch := &fakeExchangeRepo{venues: map[domain.VenueCode]*domain.Venue{domain.VenueHyperliquid: {ID: venueID, Code: domain.VenueHyperliquid}}}
	// hasAny=true (incremental mode) but NEWCOIN has no prior row: full backfill for this symbol only.
	hist := &fakeHistoryRepo{hasAny: true, latest: map[string]domain.HistoryRecord{}}
	repo := newRepo(exch, hist)

	p := NewHistoryPipeline(a, repo)
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, hist.inserted, 2)
}

func TestBuildRowDropsZeroFundingTime(t *testing.T) {
	pair := domain.SymbolPair{FundingSymbol: &domain.FundingSymbolInfo{SymbolName: "XYZ", IntervalHours: mustHours(8)}}
	_, ok := buildRow(uuid.New(), pair, domain.FundingObservation{Rate: 1, FundingTime: 0}, time.Now().UnixMilli())
	assert.False(t, ok)
}

func TestBuildRowDropsMissingInterval(t *testing.T) {
	pair := domain.SymbolPair{FundingSymbol: &domain.FundingSymbolInfo{SymbolName: "XYZ"}}
	_, ok := buildRow(uuid.New(), pair, domain.FundingObservation{Rate: 1, FundingTime: time.Now().UnixMilli()}, time.Now().UnixMilli())
	assert.False(t, ok)
}

func TestBuildRowFallsBackToObservationInterval(t *testing.T) {
	pair := domain.SymbolPair{FundingSymbol: &domain.FundingSymbolInfo{SymbolName: "XYZ"}}
	row, ok := buildRow(uuid.New(), pair, domain.FundingObservation{Rate: 1, FundingTime: time.Now().UnixMilli(), IntervalHours: mustHours(8)}, time.Now().UnixMilli())
	require.True(t, ok)
	assert.Equal(t, 8, row.IntervalHours)
	assert.True(t, row.Rate.Equal(decimal.NewFromFloat(1)))
}
