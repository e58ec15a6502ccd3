package adapter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
)

const (
	binanceParallelism = 1
	binanceBatchSize   = 10
	binancePageLimit   = 1000
	binanceInterPage   = 400 * time.Millisecond

	binanceStatusTrading    = "TRADING"
	binanceContractPerpetual = "PERPETUAL"
)

// Binance implements VenueAdapter against Binance USD-M futures. Symbol
// catalog is the union of the funding-info endpoint and exchange-info
// filtered to (Status=TRADING, ContractType=PERPETUAL); symbols present only
// in exchange-info have their interval inferred from the two most recent
// funding rates, per spec.md §4.1.
type Binance struct {
	t *transport
}

// NewBinance constructs a Binance adapter against baseURL (an empty baseURL
// defaults to the production futures API).
func NewBinance(baseURL string) *Binance {
	if baseURL == "" {
		baseURL = "https://fapi.binance.com"
	}
	return &Binance{
		t: newTransport(transportConfig{
			Venue:          domain.VenueBinance,
			BaseURL:        baseURL,
			Timeout:        10 * time.Second,
			RatePerSecond:  10,
			Burst:          20,
			BreakerTimeout: 30 * time.Second,
		}),
	}
}

func (b *Binance) Code() domain.VenueCode { return domain.VenueBinance }

func (b *Binance) MaxNumbersOfParallelism() int { return binanceParallelism }

func (b *Binance) BatchSizeForHistory() int { return binanceBatchSize }

func (b *Binance) PacingDelay(batchRows int) time.Duration {
	return time.Duration(batchRows/10) * time.Millisecond
}

type binanceFundingInfoEntry struct {
	Symbol               string `json:"symbol"`
	FundingIntervalHours int    `json:"fundingIntervalHours"`
}

type binanceExchangeInfo struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		Status       string `json:"status"`
		ContractType string `json:"contractType"`
		OnboardDate  int64  `json:"onboardDate"`
	} `json:"symbols"`
}

type binanceFundingRateEntry struct {
	Symbol      string `json:"symbol"`
	FundingRate string `json:"fundingRate"`
	FundingTime int64  `json:"fundingTime"`
}

// ListActivePerpetuals unions the funding-info and exchange-info catalogs.
// Symbols only visible via exchange-info have their interval inferred from
// the delta between their two most recent funding rates; an interval outside
// 1..24h is rejected and the symbol is skipped.
func (b *Binance) ListActivePerpetuals(ctx context.Context) ([]domain.SymbolPair, error) {
	var fundingInfo []binanceFundingInfoEntry
	if err := b.t.getJSON(ctx, "/fapi/v1/fundingInfo", &fundingInfo); err != nil {
		return nil, err
	}

	var exchangeInfo binanceExchangeInfo
	if err := b.t.getJSON(ctx, "/fapi/v1/exchangeInfo", &exchangeInfo); err != nil {
		return nil, err
	}

	byFunding := make(map[string]binanceFundingInfoEntry, len(fundingInfo))
	for _, f := range fundingInfo {
		byFunding[f.Symbol] = f
	}

	seen := make(map[string]struct{}, len(exchangeInfo.Symbols))
	pairs := make([]domain.SymbolPair, 0, len(exchangeInfo.Symbols))
	for _, s := range exchangeInfo.Symbols {
		if s.Status != binanceStatusTrading || s.ContractType != binanceContractPerpetual {
			continue
		}
		seen[s.Symbol] = struct{}{}

		listingDate := s.OnboardDate
		exch := &domain.ExchangeSymbolInfo{SymbolName: s.Symbol, ListingDate: &listingDate}

		if fi, ok := byFunding[s.Symbol]; ok {
			hours := fi.FundingIntervalHours
			pairs = append(pairs, domain.SymbolPair{
				ExchangeSymbol: exch,
				FundingSymbol:  &domain.FundingSymbolInfo{SymbolName: s.Symbol, IntervalHours: &hours, LaunchTime: &listingDate},
			})
			continue
		}

		inferred, err := b.inferInterval(ctx, s.Symbol)
		if err != nil {
			continue
		}
		pairs = append(pairs, domain.SymbolPair{
			ExchangeSymbol: exch,
			FundingSymbol:  &domain.FundingSymbolInfo{SymbolName: s.Symbol, IntervalHours: &inferred, LaunchTime: &listingDate},
		})
	}

	// Funding-info symbols outside the filtered exchange-info set.
	for _, f := range fundingInfo {
		if _, ok := seen[f.Symbol]; ok {
			continue
		}
		seen[f.Symbol] = struct{}{}
		hours := f.FundingIntervalHours
		pairs = append(pairs, domain.SymbolPair{
			FundingSymbol: &domain.FundingSymbolInfo{SymbolName: f.Symbol, IntervalHours: &hours},
		})
	}

	return pairs, nil
}

// inferInterval derives a symbol's funding interval from the time delta
// between its two most recent funding rates. Only deltas in [1h, 24h] are
// accepted.
func (b *Binance) inferInterval(ctx context.Context, symbol string) (int, error) {
	var rates []binanceFundingRateEntry
	path := fmt.Sprintf("/fapi/v1/fundingRate?symbol=%s&limit=2", symbol)
	if err := b.t.getJSON(ctx, path, &rates); err != nil {
		return 0, err
	}
	if len(rates) < 2 {
		return 0, &domain.EmptyResultError{Venue: string(domain.VenueBinance), Symbol: symbol}
	}

	delta := rates[len(rates)-1].FundingTime - rates[len(rates)-2].FundingTime
	hours := int(time.Duration(delta) * time.Millisecond / time.Hour)
	if hours < 1 || hours > 24 {
		return 0, &domain.ValidationError{Field: "interval_hours", Reason: fmt.Sprintf("inferred %dh out of range for %s", hours, symbol)}
	}
	return hours, nil
}

// ListHistory paginates forward by start_time, sleeping 400ms between pages.
func (b *Binance) ListHistory(ctx context.Context, symbol string, startTime *time.Time) ([]domain.FundingObservation, error) {
	var all []domain.FundingObservation
	cursor := int64(0)
	if startTime != nil {
		cursor = startTime.UnixMilli()
	}

	for {
		path := fmt.Sprintf("/fapi/v1/fundingRate?symbol=%s&limit=%d", symbol, binancePageLimit)
		if cursor > 0 {
			path += fmt.Sprintf("&startTime=%d", cursor)
		}

		var page []binanceFundingRateEntry
		if err := b.t.getJSON(ctx, path, &page); err != nil {
			return all, err
		}
		if len(page) == 0 {
			break
		}

		for _, r := range page {
			all = append(all, toFundingObservation(r))
		}

		if len(page) < binancePageLimit {
			break
		}

		cursor = page[len(page)-1].FundingTime + 1

		if err := kernelSleep(ctx, binanceInterPage); err != nil {
			return all, err
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].FundingTime < all[j].FundingTime })
	return all, nil
}

func (b *Binance) Latest(ctx context.Context, symbol string) (*domain.FundingObservation, error) {
	var rates []binanceFundingRateEntry
	path := fmt.Sprintf("/fapi/v1/fundingRate?symbol=%s&limit=1", symbol)
	if err := b.t.getJSON(ctx, path, &rates); err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, &domain.EmptyResultError{Venue: string(domain.VenueBinance), Symbol: symbol}
	}
	obs := toFundingObservation(rates[0])
	return &obs, nil
}

func toFundingObservation(r binanceFundingRateEntry) domain.FundingObservation {
	rate, err := parseDecimalFloat(r.FundingRate)
	if err != nil {
		rate = 0
	}
	return domain.FundingObservation{Rate: rate, FundingTime: r.FundingTime}
}
