package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/persistence"
)

type handlers struct {
	repo *persistence.Repository
}

func newHandlers(repo *persistence.Repository) *handlers {
	return &handlers{repo: repo}
}

// errorResponse mirrors the teacher's standardized error envelope.
type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	h.writeJSON(w, status, errorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		RequestID: id,
		Timestamp: time.Now().UTC(),
	})
}

// Health reports liveness only; it does not ping Postgres or Redis, since
// spec.md scopes this surface as a thin read-only query layer, not a
// readiness probe for the sync engine's dependencies.
func (h *handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "the requested endpoint does not exist")
}

type historyResponse struct {
	Symbol  string               `json:"symbol,omitempty"`
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	Size    int                  `json:"size"`
	Records []domain.HistoryRecord `json:"records"`
}

// History handles GET /venues/{code}/history?symbol=&page=&size=
func (h *handlers) History(w http.ResponseWriter, r *http.Request) {
	code := domain.VenueCode(mux.Vars(r)["code"])
	venue, err := h.repo.Exchanges.GetByCode(r.Context(), code)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	if venue == nil {
		h.writeError(w, r, http.StatusNotFound, "unknown venue code")
		return
	}

	page := parsePage(r)
	filter := persistence.HistoryFilter{VenueID: venue.ID, Symbol: r.URL.Query().Get("symbol")}

	records, err := h.repo.History.GetByFilter(r.Context(), filter, page)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "query failed")
		return
	}
	total, err := h.repo.History.GetCountByFilter(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "count failed")
		return
	}

	h.writeJSON(w, http.StatusOK, historyResponse{
		Symbol:  filter.Symbol,
		Total:   total,
		Page:    page.Number,
		Size:    page.Size,
		Records: records,
	})
}

type onlineResponse struct {
	Symbol  string               `json:"symbol,omitempty"`
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	Size    int                  `json:"size"`
	Records []domain.OnlineRecord `json:"records"`
}

// Online handles GET /venues/{code}/online?symbol=&page=&size=
func (h *handlers) Online(w http.ResponseWriter, r *http.Request) {
	code := domain.VenueCode(mux.Vars(r)["code"])
	venue, err := h.repo.Exchanges.GetByCode(r.Context(), code)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	if venue == nil {
		h.writeError(w, r, http.StatusNotFound, "unknown venue code")
		return
	}

	page := parsePage(r)
	filter := persistence.OnlineFilter{VenueID: venue.ID, Symbol: r.URL.Query().Get("symbol")}

	records, err := h.repo.Online.GetByFilter(r.Context(), filter, page)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "query failed")
		return
	}
	total, err := h.repo.Online.GetCountByFilter(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "count failed")
		return
	}

	h.writeJSON(w, http.StatusOK, onlineResponse{
		Symbol:  filter.Symbol,
		Total:   total,
		Page:    page.Number,
		Size:    page.Size,
		Records: records,
	})
}

func parsePage(r *http.Request) persistence.Page {
	number := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			number = parsed
		}
	}
	size := 100
	if v := r.URL.Query().Get("size"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1000 {
			size = parsed
		}
	}
	return persistence.Page{Number: number, Size: size}
}
