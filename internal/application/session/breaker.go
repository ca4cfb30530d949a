package session

// CircuitBreaker halts the run when the session's equity drawdown exceeds
// the configured fraction of the baseline. The baseline is fixed on the
// first successful connection and never re-armed: reconnects within a run
// keep measuring against the same morning equity, and a breach is terminal.
type CircuitBreaker struct {
	maxLossFraction float64

	armed     bool
	baseline  float64
	lossLimit float64 // negative
	tripped   bool
}

func NewCircuitBreaker(maxLossFraction float64) *CircuitBreaker {
	return &CircuitBreaker{maxLossFraction: maxLossFraction}
}

// Arm fixes the baseline equity and the loss limit. Only the first call of
// a run has any effect.
func (cb *CircuitBreaker) Arm(equity float64) {
	if cb.armed {
		return
	}
	cb.armed = true
	cb.baseline = equity
	cb.lossLimit = -(equity * cb.maxLossFraction)
}

func (cb *CircuitBreaker) Armed() bool { return cb.armed }

func (cb *CircuitBreaker) Baseline() float64 { return cb.baseline }

// LossLimit is the (negative) daily P&L below which the run stops.
func (cb *CircuitBreaker) LossLimit() float64 { return cb.lossLimit }

// Check compares current equity against the baseline. Once tripped it stays
// tripped regardless of any later equity recovery.
func (cb *CircuitBreaker) Check(currentEquity float64) (dailyPnL float64, tripped bool) {
	if !cb.armed {
		return 0, false
	}
	dailyPnL = currentEquity - cb.baseline
	if dailyPnL < cb.lossLimit {
		cb.tripped = true
	}
	return dailyPnL, cb.tripped
}

func (cb *CircuitBreaker) Tripped() bool { return cb.tripped }
