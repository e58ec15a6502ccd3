package adapter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
)

const (
	bybitParallelism = 10
	bybitBatchSize   = 50
	bybitPageLimit   = 200

	bybitStatusTrading  = "Trading"
	bybitContractLinear = "LinearPerpetual"
)

// Bybit implements VenueAdapter against Bybit's linear-perpetual category.
// History paginates backward by end_time until the earliest record returned
// is at or before the requested start_time; the adapter re-sorts ascending
// before returning, per spec.md §4.1.
type Bybit struct {
	t *transport
}

func NewBybit(baseURL string) *Bybit {
	if baseURL == "" {
		baseURL = "https://api.bybit.com"
	}
	return &Bybit{
		t: newTransport(transportConfig{
			Venue:          domain.VenueBybit,
			BaseURL:        baseURL,
			Timeout:        10 * time.Second,
			RatePerSecond:  20,
			Burst:          40,
			BreakerTimeout: 30 * time.Second,
		}),
	}
}

func (b *Bybit) Code() domain.VenueCode { return domain.VenueBybit }

func (b *Bybit) MaxNumbersOfParallelism() int { return bybitParallelism }

func (b *Bybit) BatchSizeForHistory() int { return bybitBatchSize }

func (b *Bybit) PacingDelay(batchRows int) time.Duration {
	return time.Duration(batchRows/10) * time.Millisecond
}

type bybitInstrument struct {
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	ContractType  string `json:"contractType"`
	LaunchTime    string `json:"launchTime"`
	FundingInterval int  `json:"fundingInterval"` // minutes
}

type bybitInstrumentsResult struct {
	Result struct {
		List []bybitInstrument `json:"list"`
	} `json:"result"`
}

type bybitFundingEntry struct {
	Symbol      string `json:"symbol"`
	FundingRate string `json:"fundingRate"`
	FundingRateTimestamp string `json:"fundingRateTimestamp"`
}

type bybitFundingHistoryResult struct {
	Result struct {
		List []bybitFundingEntry `json:"list"`
	} `json:"result"`
}

func (b *Bybit) ListActivePerpetuals(ctx context.Context) ([]domain.SymbolPair, error) {
	var resp bybitInstrumentsResult
	if err := b.t.getJSON(ctx, "/v5/market/instruments-info?category=linear", &resp); err != nil {
		return nil, err
	}

	pairs := make([]domain.SymbolPair, 0, len(resp.Result.List))
	for _, ins := range resp.Result.List {
		if ins.ContractType != bybitContractLinear {
			continue
		}
		if ins.Status != bybitStatusTrading {
			continue
		}

		hours := ins.FundingInterval / 60
		if hours <= 0 {
			hours = 8
		}

		var launch *int64
		if ms, err := parseInt64(ins.LaunchTime); err == nil && ms > 0 {
			launch = &ms
		}

		pairs = append(pairs, domain.SymbolPair{
			ExchangeSymbol: &domain.ExchangeSymbolInfo{SymbolName: ins.Symbol, ListingDate: launch},
			FundingSymbol:  &domain.FundingSymbolInfo{SymbolName: ins.Symbol, IntervalHours: &hours, LaunchTime: launch},
		})
	}

	return pairs, nil
}

// ListHistory pages backward by end_time starting from "now" until a page's
// oldest record is at or before startTime (or the page is short, signalling
// the venue has no more history), then sorts ascending.
func (b *Bybit) ListHistory(ctx context.Context, symbol string, startTime *time.Time) ([]domain.FundingObservation, error) {
	var all []domain.FundingObservation
	cursorEnd := time.Now().UnixMilli()
	var floor int64
	if startTime != nil {
		floor = startTime.UnixMilli()
	}

	for {
		path := fmt.Sprintf("/v5/market/funding/history?category=linear&symbol=%s&endTime=%d&limit=%d", symbol, cursorEnd, bybitPageLimit)

		var resp bybitFundingHistoryResult
		if err := b.t.getJSON(ctx, path, &resp); err != nil {
			return all, err
		}
		if len(resp.Result.List) == 0 {
			break
		}

		oldestTs := int64(0)
		for i, e := range resp.Result.List {
			ts, _ := parseInt64(e.FundingRateTimestamp)
			if i == 0 || ts < oldestTs {
				oldestTs = ts
			}
			if ts < floor {
				continue
			}
			rate, _ := parseDecimalFloat(e.FundingRate)
			all = append(all, domain.FundingObservation{Rate: rate, FundingTime: ts})
		}

		if len(resp.Result.List) < bybitPageLimit || oldestTs <= floor {
			break
		}

		cursorEnd = oldestTs - 1
	}

	sort.Slice(all, func(i, j int) bool { return all[i].FundingTime < all[j].FundingTime })
	return all, nil
}

func (b *Bybit) Latest(ctx context.Context, symbol string) (*domain.FundingObservation, error) {
	path := fmt.Sprintf("/v5/market/funding/history?category=linear&symbol=%s&limit=1", symbol)
	var resp bybitFundingHistoryResult
	if err := b.t.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result.List) == 0 {
		return nil, &domain.EmptyResultError{Venue: string(domain.VenueBybit), Symbol: symbol}
	}
	e := resp.Result.List[0]
	ts, _ := parseInt64(e.FundingRateTimestamp)
	rate, _ := parseDecimalFloat(e.FundingRate)
	return &domain.FundingObservation{Rate: rate, FundingTime: ts}, nil
}
