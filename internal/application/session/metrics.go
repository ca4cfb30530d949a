package session

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_cycles_total",
			Help: "Scan cycles executed",
		},
	)

	mtxDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_decisions_total",
			Help: "Entry gate evaluations by terminal stage",
		},
		[]string{"stage"},
	)

	mtxOrders = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Bracket orders submitted",
		},
	)

	mtxFills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_fills_total",
			Help: "Executions received from the venue",
		},
		[]string{"side"}, // BUY|SELL
	)

	mtxEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_equity_usd",
			Help: "Latest account equity snapshot",
		},
	)

	mtxGuardSafe = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_guard_safe",
			Help: "Regime guard verdict this cycle (1 safe, 0 unsafe)",
		},
	)

	mtxBreakerTripped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_circuit_breaker_tripped",
			Help: "Whether the daily loss circuit breaker has tripped",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxCycles, mtxDecisions, mtxOrders, mtxFills)
	prometheus.MustRegister(mtxEquity, mtxGuardSafe, mtxBreakerTripped)
}
