package adapter

import (
	"context"
	"strconv"
	"time"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/kernel"
)

// kernelSleep delegates to kernel.Sleep so every adapter's inter-page delay
// is cancellation-aware in the same way the pipeline's own pacing is.
func kernelSleep(ctx context.Context, d time.Duration) error {
	return kernel.Sleep(ctx, d)
}

// parseDecimalFloat parses a venue's string-encoded decimal into a float64.
// Venues serialize funding rates as JSON strings to avoid floating-point
// round-tripping surprises on their side; the pipeline re-derives an
// arbitrary-precision decimal.Decimal from this value before persisting.
func parseDecimalFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseInt64 parses a venue's string-encoded epoch-millisecond timestamp.
func parseInt64(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
