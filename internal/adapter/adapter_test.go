package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParallelismForOnlineUsesOverrideWhenPresent(t *testing.T) {
	m := NewMEXC("")
	if got := ParallelismForOnline(m); got != mexcOnlineParallelism {
		t.Errorf("ParallelismForOnline(MEXC) = %d, want %d", got, mexcOnlineParallelism)
	}
}

func TestParallelismForOnlineFallsBackToHistory(t *testing.T) {
	b := NewBinance("")
	if got := ParallelismForOnline(b); got != binanceParallelism {
		t.Errorf("ParallelismForOnline(Binance) = %d, want %d", got, binanceParallelism)
	}
}

func TestBinanceInferIntervalBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		deltaMs  int64
		wantErr  bool
		wantHours int
	}{
		{"one hour exactly", int64(time.Hour / time.Millisecond), false, 1},
		{"twenty four hours exactly", int64(24 * time.Hour / time.Millisecond), false, 24},
		{"under one hour rejected", int64(30 * time.Minute / time.Millisecond), true, 0},
		{"over twenty four hours rejected", int64(25 * time.Hour / time.Millisecond), true, 0},
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `[{"symbol":"NEWUSDT","fundingRate":"0.0001","fundingTime":%d},{"symbol":"NEWUSDT","fundingRate":"0.0001","fundingTime":%d}]`,
				base, base+c.deltaMs)
		}))
		hours, err := NewBinance(srv.URL).inferInterval(context.Background(), "NEWUSDT")
		srv.Close()
		valid := err == nil
		if valid == c.wantErr {
			t.Errorf("%s: delta %dms -> %dh, valid=%v, want invalid=%v", c.name, c.deltaMs, hours, valid, c.wantErr)
		}
		if !c.wantErr && hours != c.wantHours {
			t.Errorf("%s: got %dh, want %dh", c.name, hours, c.wantHours)
		}
	}
}

func TestHyperliquidDefaultStartIsMillennium(t *testing.T) {
	want := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if !hyperliquidDefaultStart.Equal(want) {
		t.Errorf("hyperliquidDefaultStart = %v, want %v", hyperliquidDefaultStart, want)
	}
}
