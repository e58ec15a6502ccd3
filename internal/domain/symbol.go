package domain

import "strings"

// Normalize produces the engine's canonical symbol key: uppercase, with
// underscores and hyphens removed. normalize(normalize(s)) == normalize(s).
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ToUpper(s)
}

// SymbolPair is a venue's view of one tradeable symbol. Either side may be
// absent depending on which venue endpoint produced it; the pipeline reads
// FundingSymbol for identity/interval/launch and falls back to
// ExchangeSymbol for listing date.
type SymbolPair struct {
	ExchangeSymbol *ExchangeSymbolInfo
	FundingSymbol  *FundingSymbolInfo
}

// FundingObservation is a single funding event as reported by a venue. The
// interval is only populated when the venue reports it per-observation
// (MEXC).
type FundingObservation struct {
	Rate          float64
	FundingTime   int64 // epoch ms; zero value means "absent"
	IntervalHours *int
}

// FundingSymbolInfo is a pure projection of a venue's funding-info object.
type FundingSymbolInfo struct {
	SymbolName    string
	IntervalHours *int
	LaunchTime    *int64 // epoch ms
}

// ExchangeSymbolInfo is a pure projection of a venue's exchange-info object.
type ExchangeSymbolInfo struct {
	SymbolName  string
	ListingDate *int64 // epoch ms
}
