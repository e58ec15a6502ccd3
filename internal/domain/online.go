package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OnlineRecord is the latest funding observation for a (symbol, venue) pair.
// Updates preserve the row's id; at most one row exists per (symbol, venue_id)
// and per (name, venue_id).
type OnlineRecord struct {
	ID           uuid.UUID       `db:"id"`
	VenueID      uuid.UUID       `db:"venue_id"`
	Symbol       string          `db:"symbol"`
	Name         string          `db:"name"`
	Rate         decimal.Decimal `db:"rate"`
	OpenInterest decimal.Decimal `db:"open_interest"`
	TsRate       int64           `db:"ts_rate"`
	FetchedAt    int64           `db:"fetched_at"`
}
