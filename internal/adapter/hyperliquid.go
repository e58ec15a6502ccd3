package adapter

import (
	"context"
	"time"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
)

const (
	hyperliquidParallelism = 1
	hyperliquidBatchSize   = 30
	hyperliquidInterPage   = 700 * time.Millisecond
	hyperliquidIntervalHours = 1
)

// hyperliquidDefaultStart is the venue's treated-as-absent start time,
// 2000-01-01T00:00:00Z, per spec.md §4.1.
var hyperliquidDefaultStart = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Hyperliquid implements VenueAdapter against Hyperliquid's info API. Every
// returned symbol is perpetual with a constant 1h funding interval; history
// paginates forward with a 700ms inter-page delay and has no page-limit
// parameter beyond the client's default.
type Hyperliquid struct {
	t *transport
}

func NewHyperliquid(baseURL string) *Hyperliquid {
	if baseURL == "" {
		baseURL = "https://api.hyperliquid.xyz"
	}
	return &Hyperliquid{
		t: newTransport(transportConfig{
			Venue:          domain.VenueHyperliquid,
			BaseURL:        baseURL,
			Timeout:        10 * time.Second,
			RatePerSecond:  5,
			Burst:          10,
			BreakerTimeout: 30 * time.Second,
		}),
	}
}

func (h *Hyperliquid) Code() domain.VenueCode { return domain.VenueHyperliquid }

func (h *Hyperliquid) MaxNumbersOfParallelism() int { return hyperliquidParallelism }

func (h *Hyperliquid) BatchSizeForHistory() int { return hyperliquidBatchSize }

func (h *Hyperliquid) PacingDelay(batchRows int) time.Duration {
	return time.Duration(batchRows/10) * time.Millisecond
}

type hyperliquidUniverseAsset struct {
	Name string `json:"name"`
}

type hyperliquidMetaResponse struct {
	Universe []hyperliquidUniverseAsset `json:"universe"`
}

type hyperliquidFundingEntry struct {
	Coin        string `json:"coin"`
	FundingRate string `json:"fundingRate"`
	Time        int64  `json:"time"`
}

func (h *Hyperliquid) ListActivePerpetuals(ctx context.Context) ([]domain.SymbolPair, error) {
	body := map[string]string{"type": "meta"}
	var resp hyperliquidMetaResponse
	if err := h.postJSON(ctx, "/info", body, &resp); err != nil {
		return nil, err
	}

	interval := hyperliquidIntervalHours
	pairs := make([]domain.SymbolPair, 0, len(resp.Universe))
	for _, a := range resp.Universe {
		pairs = append(pairs, domain.SymbolPair{
			FundingSymbol: &domain.FundingSymbolInfo{SymbolName: a.Name, IntervalHours: &interval},
		})
	}
	return pairs, nil
}

// ListHistory pages forward from startTime (defaulting to 2000-01-01),
// sleeping 700ms between pages, stopping once a page's latest timestamp
// reaches "now".
func (h *Hyperliquid) ListHistory(ctx context.Context, symbol string, startTime *time.Time) ([]domain.FundingObservation, error) {
	start := hyperliquidDefaultStart
	if startTime != nil {
		start = *startTime
	}

	var all []domain.FundingObservation
	cursor := start.UnixMilli()
	nowMs := time.Now().UnixMilli()

	for cursor < nowMs {
		body := map[string]interface{}{
			"type":      "fundingHistory",
			"coin":      symbol,
			"startTime": cursor,
		}

		var page []hyperliquidFundingEntry
		if err := h.postJSON(ctx, "/info", body, &page); err != nil {
			return all, err
		}
		if len(page) == 0 {
			break
		}

		for _, e := range page {
			rate, _ := parseDecimalFloat(e.FundingRate)
			all = append(all, domain.FundingObservation{Rate: rate, FundingTime: e.Time})
		}

		lastTs := page[len(page)-1].Time
		if lastTs <= cursor {
			break
		}
		cursor = lastTs + 1

		if err := kernelSleep(ctx, hyperliquidInterPage); err != nil {
			return all, err
		}
	}

	return all, nil
}

func (h *Hyperliquid) Latest(ctx context.Context, symbol string) (*domain.FundingObservation, error) {
	body := map[string]interface{}{
		"type":      "fundingHistory",
		"coin":      symbol,
		"startTime": time.Now().Add(-24 * time.Hour).UnixMilli(),
	}

	var page []hyperliquidFundingEntry
	if err := h.postJSON(ctx, "/info", body, &page); err != nil {
		return nil, err
	}
	if len(page) == 0 {
		return nil, &domain.EmptyResultError{Venue: string(domain.VenueHyperliquid), Symbol: symbol}
	}

	last := page[len(page)-1]
	rate, _ := parseDecimalFloat(last.FundingRate)
	return &domain.FundingObservation{Rate: rate, FundingTime: last.Time}, nil
}

// postJSON issues a rate-limited, circuit-broken POST — Hyperliquid's info
// API is POST-only, unlike the other three venues' GET-based REST surfaces.
func (h *Hyperliquid) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	return h.t.postJSON(ctx, path, body, out)
}
