package domain

import "github.com/google/uuid"

// VenueCode enumerates the trading venues the engine ingests from.
type VenueCode string

const (
	VenueBinance     VenueCode = "BINANCE"
	VenueBybit       VenueCode = "BYBIT"
	VenueHyperliquid VenueCode = "HYPERLIQUID"
	VenueMEXC        VenueCode = "MEXC"
)

// Valid reports whether code is one of the four supported venues.
func (c VenueCode) Valid() bool {
	switch c {
	case VenueBinance, VenueBybit, VenueHyperliquid, VenueMEXC:
		return true
	default:
		return false
	}
}

// Venue represents a trading venue row. Rows are seeded externally at
// startup and are never created or deleted by the sync engine.
type Venue struct {
	ID   uuid.UUID `db:"id"`
	Code VenueCode `db:"code"`
}
