package adapter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
)

const (
	mexcHistoryParallelism = 3
	mexcOnlineParallelism  = 2
	mexcBatchSize          = 30
	mexcPageLimit          = 1000
	mexcInterPage          = 500 * time.Millisecond
)

// MEXC implements VenueAdapter against MEXC's contract API. The symbol
// catalog carries no interval metadata: interval is only known per
// observation, read off each funding-history record. History is
// page-number based (a batch stops once page >= total_pages); the venue
// returns newest-first, so the adapter sorts ascending before returning,
// per spec.md §4.1.
type MEXC struct {
	t *transport
}

func NewMEXC(baseURL string) *MEXC {
	if baseURL == "" {
		baseURL = "https://contract.mexc.com"
	}
	return &MEXC{
		t: newTransport(transportConfig{
			Venue:          domain.VenueMEXC,
			BaseURL:        baseURL,
			Timeout:        10 * time.Second,
			RatePerSecond:  10,
			Burst:          20,
			BreakerTimeout: 30 * time.Second,
		}),
	}
}

func (m *MEXC) Code() domain.VenueCode { return domain.VenueMEXC }

func (m *MEXC) MaxNumbersOfParallelism() int { return mexcHistoryParallelism }

func (m *MEXC) MaxNumbersOfParallelismOnline() int { return mexcOnlineParallelism }

func (m *MEXC) BatchSizeForHistory() int { return mexcBatchSize }

func (m *MEXC) PacingDelay(batchRows int) time.Duration {
	return time.Duration(batchRows/10) * time.Millisecond
}

type mexcContractDetail struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"displayName"`
}

type mexcContractDetailResponse struct {
	Data []mexcContractDetail `json:"data"`
}

type mexcFundingEntry struct {
	Symbol        string `json:"symbol"`
	FundingRate   string `json:"fundingRate"`
	SettleTime    int64  `json:"settleTime"`
	IntervalHours int    `json:"collectCycle"`
}

type mexcFundingHistoryResponse struct {
	Data struct {
		ResultList []mexcFundingEntry `json:"resultList"`
		TotalPage  int                `json:"totalPage"`
	} `json:"data"`
}

func (m *MEXC) ListActivePerpetuals(ctx context.Context) ([]domain.SymbolPair, error) {
	var resp mexcContractDetailResponse
	if err := m.t.getJSON(ctx, "/api/v1/contract/detail", &resp); err != nil {
		return nil, err
	}

	pairs := make([]domain.SymbolPair, 0, len(resp.Data))
	for _, d := range resp.Data {
		pairs = append(pairs, domain.SymbolPair{
			FundingSymbol: &domain.FundingSymbolInfo{SymbolName: d.Symbol},
		})
	}
	return pairs, nil
}

// ListHistory walks pages 1..N until page >= total_pages, then sorts the
// accumulated (newest-first per page) rows ascending.
func (m *MEXC) ListHistory(ctx context.Context, symbol string, startTime *time.Time) ([]domain.FundingObservation, error) {
	var all []domain.FundingObservation
	page := 1

	for {
		path := fmt.Sprintf("/api/v1/contract/funding_rate/history?symbol=%s&page_num=%d&page_size=%d", symbol, page, mexcPageLimit)

		var resp mexcFundingHistoryResponse
		if err := m.t.getJSON(ctx, path, &resp); err != nil {
			return all, err
		}

		for _, e := range resp.Data.ResultList {
			if startTime != nil && e.SettleTime < startTime.UnixMilli() {
				continue
			}
			hours := e.IntervalHours
			all = append(all, domain.FundingObservation{
				Rate:          mustParseFloat(e.FundingRate),
				FundingTime:   e.SettleTime,
				IntervalHours: &hours,
			})
		}

		if page >= resp.Data.TotalPage || len(resp.Data.ResultList) == 0 {
			break
		}
		page++

		if err := kernelSleep(ctx, mexcInterPage); err != nil {
			return all, err
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].FundingTime < all[j].FundingTime })
	return all, nil
}

func (m *MEXC) Latest(ctx context.Context, symbol string) (*domain.FundingObservation, error) {
	path := fmt.Sprintf("/api/v1/contract/funding_rate/history?symbol=%s&page_num=1&page_size=1", symbol)
	var resp mexcFundingHistoryResponse
	if err := m.t.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.ResultList) == 0 {
		return nil, &domain.EmptyResultError{Venue: string(domain.VenueMEXC), Symbol: symbol}
	}
	e := resp.Data.ResultList[0]
	hours := e.IntervalHours
	return &domain.FundingObservation{Rate: mustParseFloat(e.FundingRate), FundingTime: e.SettleTime, IntervalHours: &hours}, nil
}

func mustParseFloat(s string) float64 {
	v, err := parseDecimalFloat(s)
	if err != nil {
		return 0
	}
	return v
}
