package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
)

// transport bundles the per-adapter HTTP client together with the
// circuit-breaker and rate-limiter safety net sitting beneath the pipeline's
// own retry/pacing rules. Grounded on the cache-check -> rate-limit-wait ->
// circuit-breaker-call construction in
// sawpanic-cryptorun/internal/provider/binance_provider.go, but using real
// library implementations (sony/gobreaker, golang.org/x/time/rate) in place
// of the teacher's hand-rolled CircuitBreaker/RateLimiter.
type transport struct {
	venue   domain.VenueCode
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	baseURL string
}

// transportConfig carries the per-venue tunables a transport needs.
type transportConfig struct {
	Venue          domain.VenueCode
	BaseURL        string
	Timeout        time.Duration
	RatePerSecond  float64
	Burst          int
	BreakerTimeout time.Duration
}

func newTransport(cfg transportConfig) *transport {
	st := gobreaker.Settings{
		Name:        string(cfg.Venue),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &transport{
		venue:   cfg.Venue,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(st),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		baseURL: cfg.BaseURL,
	}
}

// getJSON rate-limits, circuit-breaks and issues a GET request, decoding the
// JSON body into out. A non-2xx response surfaces as a domain.VenueAPIError.
func (t *transport) getJSON(ctx context.Context, path string, out interface{}) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := t.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
		if err != nil {
			return nil, err
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &domain.VenueAPIError{
				Venue: string(t.venue),
				Op:    path,
				Err:   fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)),
			}
		}

		if len(body) == 0 {
			return nil, &domain.EmptyResultError{Venue: string(t.venue), Symbol: path}
		}

		if err := json.Unmarshal(body, out); err != nil {
			return nil, &domain.VenueAPIError{Venue: string(t.venue), Op: path, Err: err}
		}

		return nil, nil
	})

	return err
}

// postJSON rate-limits, circuit-breaks and issues a POST with a JSON body,
// decoding the JSON response into out. Used by venues whose REST surface is
// POST-only (Hyperliquid's /info endpoint).
func (t *transport) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	_, err = t.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &domain.VenueAPIError{
				Venue: string(t.venue),
				Op:    path,
				Err:   fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)),
			}
		}

		if len(respBody) == 0 {
			return nil, &domain.EmptyResultError{Venue: string(t.venue), Symbol: path}
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, &domain.VenueAPIError{Venue: string(t.venue), Op: path, Err: err}
		}

		return nil, nil
	})

	return err
}
