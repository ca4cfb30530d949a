package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/ports"
)

// GuardianStatus is the per-instrument detail behind a guard decision.
type GuardianStatus struct {
	Symbol  string
	Close   float64
	EMA     float64
	Bullish bool
	Reason  string // why this guardian failed, if it did
}

// GuardState is the market regime verdict for one scan cycle. Recomputed
// every cycle, shared across all symbols in that cycle, never persisted.
type GuardState struct {
	Safe      bool
	Guardians []GuardianStatus
}

// RegimeGuard checks a fixed set of guardian instruments at a coarser
// resolution than the trading decisions. Safe means every guardian closed
// above its EMA; one weak instrument vetoes all entries. Missing or short
// data fails the guard closed — a deliberate fail-safe, not an error.
type RegimeGuard struct {
	bars      ports.BarProvider
	symbols   []string
	emaPeriod int
	interval  time.Duration
	lookback  time.Duration
	timeout   time.Duration
}

func NewRegimeGuard(bars ports.BarProvider, symbols []string, emaPeriod int, interval, lookback, timeout time.Duration) *RegimeGuard {
	return &RegimeGuard{
		bars:      bars,
		symbols:   symbols,
		emaPeriod: emaPeriod,
		interval:  interval,
		lookback:  lookback,
		timeout:   timeout,
	}
}

// Refresh fetches each guardian's trend and ANDs the verdicts.
func (g *RegimeGuard) Refresh(ctx context.Context) GuardState {
	state := GuardState{Safe: true}

	for _, symbol := range g.symbols {
		status := g.check(ctx, symbol)
		state.Guardians = append(state.Guardians, status)
		if !status.Bullish {
			state.Safe = false
		}
	}

	if !state.Safe {
		for _, gs := range state.Guardians {
			if !gs.Bullish {
				slog.Debug("guard: veto", "guardian", gs.Symbol, "reason", gs.Reason,
					"close", gs.Close, "ema", gs.EMA)
			}
		}
	}
	return state
}

func (g *RegimeGuard) check(ctx context.Context, symbol string) GuardianStatus {
	fetchCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	series, err := g.bars.Bars(fetchCtx, symbol, g.interval, g.lookback)
	if err != nil {
		return GuardianStatus{Symbol: symbol, Reason: "fetch failed: " + err.Error()}
	}
	if len(series) < g.emaPeriod {
		return GuardianStatus{Symbol: symbol, Reason: "short history"}
	}

	closes := series.Closes()
	ema := lastEMA(closes, g.emaPeriod)
	last := closes[len(closes)-1]

	status := GuardianStatus{Symbol: symbol, Close: last, EMA: ema, Bullish: last > ema}
	if !status.Bullish {
		status.Reason = "below ema"
	}
	return status
}

// lastEMA returns the final value of an n-period EMA seeded with the first
// close (pandas ewm adjust=False semantics, matching the training pipeline).
func lastEMA(closes []float64, n int) float64 {
	k := 2.0 / (float64(n) + 1)
	ema := closes[0]
	for _, c := range closes[1:] {
		ema = c*k + ema*(1-k)
	}
	return ema
}

func (s GuardState) String() string {
	if s.Safe {
		return "safe"
	}
	return "unsafe"
}
