package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/persistence"
)

type fakeExchangeRepo struct {
	byCode map[domain.VenueCode]*domain.Venue
}

func (r *fakeExchangeRepo) GetByCode(ctx context.Context, code domain.VenueCode) (*domain.Venue, error) {
	return r.byCode[code], nil
}
func (r *fakeExchangeRepo) Add(ctx context.Context, v *domain.Venue) error { return nil }
func (r *fakeExchangeRepo) Save(ctx context.Context) error                { return nil }

type fakeHistoryRepo struct {
	rows []domain.HistoryRecord
}

func (r *fakeHistoryRepo) GetLatestSymbolRates(ctx context.Context, filter persistence.HistoryFilter, page persistence.Page) ([]domain.HistoryRecord, error) {
	return nil, nil
}
func (r *fakeHistoryRepo) GetByFilter(ctx context.Context, filter persistence.HistoryFilter, page persistence.Page) ([]domain.HistoryRecord, error) {
	return r.rows, nil
}
func (r *fakeHistoryRepo) GetUniqueSymbolsCount(ctx context.Context, filter persistence.HistoryFilter) (int, error) {
	return 0, nil
}
func (r *fakeHistoryRepo) GetCountByFilter(ctx context.Context, filter persistence.HistoryFilter) (int, error) {
	return len(r.rows), nil
}
func (r *fakeHistoryRepo) BulkInsert(ctx context.Context, rows []domain.HistoryRecord) error {
	return nil
}
func (r *fakeHistoryRepo) LatestForVenue(ctx context.Context, venueID uuid.UUID) (map[string]domain.HistoryRecord, error) {
	return nil, nil
}
func (r *fakeHistoryRepo) HasAnyForVenue(ctx context.Context, venueID uuid.UUID) (bool, error) {
	return len(r.rows) > 0, nil
}

type fakeOnlineRepoAPI struct {
	rows []domain.OnlineRecord
}

func (r *fakeOnlineRepoAPI) GetByFilter(ctx context.Context, filter persistence.OnlineFilter, page persistence.Page) ([]domain.OnlineRecord, error) {
	return r.rows, nil
}
func (r *fakeOnlineRepoAPI) GetLatestSymbolFundingRates(ctx context.Context, page persistence.Page) ([]domain.OnlineRecord, error) {
	return nil, nil
}
func (r *fakeOnlineRepoAPI) GetUniqueSymbolsCount(ctx context.Context) (int, error) { return 0, nil }
func (r *fakeOnlineRepoAPI) GetCountByFilter(ctx context.Context, filter persistence.OnlineFilter) (int, error) {
	return len(r.rows), nil
}
func (r *fakeOnlineRepoAPI) ByNameForVenue(ctx context.Context, venueID uuid.UUID) (map[string]domain.OnlineRecord, error) {
	return nil, nil
}
func (r *fakeOnlineRepoAPI) AddRange(ctx context.Context, rows []domain.OnlineRecord) error {
	return nil
}
func (r *fakeOnlineRepoAPI) UpdateRange(ctx context.Context, rows []domain.OnlineRecord) error {
	return nil
}

type fakeUoWAPI struct{}

func (fakeUoWAPI) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (fakeUoWAPI) Save(ctx context.Context) error                     { return nil }
func (fakeUoWAPI) Rollback(ctx context.Context) error                 { return nil }

func newTestServer(venueID uuid.UUID, history []domain.HistoryRecord, online []domain.OnlineRecord) *Server {
	repo := &persistence.Repository{
		Exchanges: &fakeExchangeRepo{byCode: map[domain.VenueCode]*domain.Venue{
			domain.VenueBinance: {ID: venueID, Code: domain.VenueBinance},
		}},
		History: &fakeHistoryRepo{rows: history},
		Online:  &fakeOnlineRepoAPI{rows: online},
		UoW:     fakeUoWAPI{},
	}
	return NewServer(DefaultConfig(), repo, prometheus.NewRegistry())
}

func TestHealthReturnsOK(t *testing.T) {
	s := newTestServer(uuid.New(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHistoryReturnsRecordsForKnownVenue(t *testing.T) {
	venueID := uuid.New()
	rows := []domain.HistoryRecord{{VenueID: venueID, Symbol: "BTCUSDT"}}
	s := newTestServer(venueID, rows, nil)

	req := httptest.NewRequest(http.MethodGet, "/venues/BINANCE/history", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp historyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Len(t, resp.Records, 1)
}

func TestHistoryReturns404ForUnknownVenue(t *testing.T) {
	s := newTestServer(uuid.New(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/venues/NOPE/history", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOnlineReturnsRecordsForKnownVenue(t *testing.T) {
	venueID := uuid.New()
	rows := []domain.OnlineRecord{{VenueID: venueID, Name: "BTCUSDT"}}
	s := newTestServer(venueID, nil, rows)

	req := httptest.NewRequest(http.MethodGet, "/venues/BINANCE/online?page=1&size=10", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp onlineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 10, resp.Size)
}

func TestNotFoundForUnknownRoute(t *testing.T) {
	s := newTestServer(uuid.New(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
