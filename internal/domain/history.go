package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HistoryRecord is one append-only funding observation.
type HistoryRecord struct {
	ID            uuid.UUID       `db:"id"`
	VenueID       uuid.UUID       `db:"venue_id"`
	Symbol        string          `db:"symbol"` // normalized
	Name          string          `db:"name"`   // raw venue string
	IntervalHours int             `db:"interval_hours"`
	Rate          decimal.Decimal `db:"rate"`
	OpenInterest  decimal.Decimal `db:"open_interest"`
	TsRate        int64           `db:"ts_rate"`    // epoch ms
	FetchedAt     int64           `db:"fetched_at"` // epoch ms
}
