package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/stretchr/testify/assert"
)

type stubBars struct {
	series map[string]domain.Series
	err    map[string]error
}

func (s *stubBars) Bars(_ context.Context, symbol string, _, _ time.Duration) (domain.Series, error) {
	if err := s.err[symbol]; err != nil {
		return nil, err
	}
	return s.series[symbol], nil
}

func series(closes ...float64) domain.Series {
	start := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	out := make(domain.Series, len(closes))
	for i, c := range closes {
		out[i] = domain.PriceBar{
			Time: start.Add(time.Duration(i) * 5 * time.Minute),
			Open: c, High: c, Low: c, Close: c, Volume: 1000,
		}
	}
	return out
}

func rising(n int) domain.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return series(closes...)
}

func falling(n int) domain.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	return series(closes...)
}

func newGuard(bars *stubBars, symbols ...string) *RegimeGuard {
	return NewRegimeGuard(bars, symbols, 20, 5*time.Minute, 3*time.Hour, time.Second)
}

func TestRegimeGuard_AllBullishIsSafe(t *testing.T) {
	bars := &stubBars{series: map[string]domain.Series{
		"SPY": rising(40),
		"XLK": rising(40),
	}}

	state := newGuard(bars, "SPY", "XLK").Refresh(context.Background())
	assert.True(t, state.Safe)
	assert.Len(t, state.Guardians, 2)
}

func TestRegimeGuard_OneBearishVetoes(t *testing.T) {
	bars := &stubBars{series: map[string]domain.Series{
		"SPY": rising(40),
		"XLK": falling(40),
	}}

	state := newGuard(bars, "SPY", "XLK").Refresh(context.Background())
	assert.False(t, state.Safe)
	assert.True(t, state.Guardians[0].Bullish)
	assert.False(t, state.Guardians[1].Bullish)
	assert.Equal(t, "below ema", state.Guardians[1].Reason)
}

func TestRegimeGuard_ShortHistoryFailsClosed(t *testing.T) {
	bars := &stubBars{series: map[string]domain.Series{
		"SPY": rising(40),
		"XLK": rising(5), // fewer bars than the EMA period
	}}

	state := newGuard(bars, "SPY", "XLK").Refresh(context.Background())
	assert.False(t, state.Safe)
	assert.Equal(t, "short history", state.Guardians[1].Reason)
}

func TestRegimeGuard_FetchErrorFailsClosed(t *testing.T) {
	bars := &stubBars{
		series: map[string]domain.Series{"SPY": rising(40)},
		err:    map[string]error{"XLK": errors.New("gateway down")},
	}

	state := newGuard(bars, "SPY", "XLK").Refresh(context.Background())
	assert.False(t, state.Safe)
	assert.Contains(t, state.Guardians[1].Reason, "fetch failed")
}

func TestLastEMA(t *testing.T) {
	// Constant series: the EMA is the constant.
	assert.InDelta(t, 50, lastEMA([]float64{50, 50, 50, 50}, 3), 1e-9)

	// Seeded with the first value; k = 2/(n+1) = 0.5 for n=3,
	// so [10, 20] gives 20*0.5 + 10*0.5 = 15.
	assert.InDelta(t, 15, lastEMA([]float64{10, 20}, 3), 1e-9)
}
