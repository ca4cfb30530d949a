package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/alejandrodnm/sniperbot/internal/ports"
)

// How many scan cycles between ownership resyncs against venue truth.
const resyncEvery = 5

// State is the controller's lifecycle phase. Transitions only happen inside
// Run; everything else just reads it.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateIdle
	StateScanning
	StateClosed
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateClosed:
		return "closed"
	case StateFatal:
		return "fatal"
	}
	return "unknown"
}

// errBreakerTripped aborts the run after reconciliation; it is the only
// terminal error a cycle can produce.
var errBreakerTripped = errors.New("session: circuit breaker tripped")

// Config is the controller's session shape. Durations and hours come from
// the YAML config; Location is the session timezone (exchange local time).
type Config struct {
	Symbols          []string
	Tick             time.Duration
	Cooldown         time.Duration
	StartHour        int
	EndHour          int
	Location         *time.Location
	ReconnectBackoff time.Duration
}

// Controller owns the trading session: one broker connection, one ledger,
// one position map. It is single-threaded by construction — fills are only
// consumed between scan bodies, never concurrently with them, so no state
// here needs a mutex.
type Controller struct {
	cfg     Config
	broker  ports.Broker
	guard   *RegimeGuard
	gate    *EntryGate
	builder *BracketBuilder
	breaker *CircuitBreaker
	store   ports.Storage
	notify  ports.Notifier

	ledger    *domain.Ledger
	positions map[string]domain.TrackedPosition
	lastTrade map[string]time.Time
	reported  map[string]bool // day -> reconciled this run

	fills  <-chan domain.Fill // nil once the stream is lost
	state  State
	cycles int

	now func() time.Time // test hook
}

func NewController(cfg Config, broker ports.Broker, guard *RegimeGuard, gate *EntryGate,
	builder *BracketBuilder, breaker *CircuitBreaker, store ports.Storage, notify ports.Notifier) *Controller {
	return &Controller{
		cfg:       cfg,
		broker:    broker,
		guard:     guard,
		gate:      gate,
		builder:   builder,
		breaker:   breaker,
		store:     store,
		notify:    notify,
		ledger:    domain.NewLedger(),
		positions: make(map[string]domain.TrackedPosition),
		lastTrade: make(map[string]time.Time),
		reported:  make(map[string]bool),
		state:     StateDisconnected,
		now:       time.Now,
	}
}

// State returns the current lifecycle phase.
func (c *Controller) State() State { return c.state }

// Run drives the session until the context is cancelled or the circuit
// breaker trips. The window closing is not an exit: the day is reconciled
// and the controller idles, still consuming fills, until the next session
// day opens. Reconciliation runs on every exit path too, but writes at most
// once per day.
func (c *Controller) Run(ctx context.Context) error {
	slog.Info("session: starting", "symbols", c.cfg.Symbols, "tick", c.cfg.Tick)

	for {
		if ctx.Err() != nil {
			c.shutdown(context.Background(), "shutdown requested")
			return nil
		}

		switch c.state {
		case StateDisconnected:
			c.connect(ctx)

		case StateIdle:
			c.idle(ctx)

		case StateScanning:
			if err := c.scan(ctx); err != nil {
				c.state = StateFatal
				c.shutdown(context.Background(), "circuit breaker")
				return err
			}

		case StateClosed:
			c.closedWait(ctx)
		}
	}
}

// connect establishes the broker session with backoff. The breaker arms on
// the first successful connect of the run and keeps its baseline across
// reconnects.
func (c *Controller) connect(ctx context.Context) {
	c.state = StateConnecting

	if err := c.broker.Connect(ctx); err != nil {
		slog.Warn("session: connect failed, retrying",
			"err", err, "backoff", c.cfg.ReconnectBackoff)
		c.state = StateDisconnected
		c.sleep(ctx, c.cfg.ReconnectBackoff)
		return
	}

	c.fills = c.broker.Fills()

	equity := c.broker.Equity(ctx)
	mtxEquity.Set(equity)
	if !c.breaker.Armed() {
		c.breaker.Arm(equity)
		slog.Info("session: breaker armed",
			"baseline", fmt.Sprintf("%.2f", c.breaker.Baseline()),
			"loss_limit", fmt.Sprintf("%.2f", c.breaker.LossLimit()))
	}

	if err := c.notify.SessionEvent(ctx, "Connected",
		fmt.Sprintf("equity %.2f, watching %d symbols", equity, len(c.cfg.Symbols))); err != nil {
		slog.Warn("session: notify failed", "err", err)
	}
	c.state = StateIdle
}

// closedWait idles out the rest of a reconciled day, still consuming fills,
// and hands control back to Idle once a new session day begins. The breaker
// baseline and the reported-day map survive into the next day.
func (c *Controller) closedWait(ctx context.Context) {
	day := c.now().In(c.cfg.Location).Format("2006-01-02")
	if !c.reported[day] {
		slog.Info("session: new day", "day", day)
		c.state = StateIdle
		return
	}
	if c.wait(ctx, c.cfg.Tick) == errStreamLost {
		c.state = StateDisconnected
	}
}

// idle waits for the trading window, still consuming fills so late
// executions from a previous window land in the ledger.
func (c *Controller) idle(ctx context.Context) {
	if c.inWindow(c.now()) {
		slog.Info("session: trading window open")
		c.state = StateScanning
		return
	}
	if c.wait(ctx, c.cfg.Tick) == errStreamLost {
		c.state = StateDisconnected
	}
}

// scan runs cycles at the configured tick until the window closes, the
// stream drops, or the breaker trips.
func (c *Controller) scan(ctx context.Context) error {
	for c.state == StateScanning {
		if ctx.Err() != nil {
			return nil
		}
		if !c.inWindow(c.now()) {
			slog.Info("session: trading window closed")
			c.reconcile(ctx)
			c.state = StateClosed
			return nil
		}

		if err := c.runCycle(ctx); err != nil {
			return err
		}

		if c.wait(ctx, c.cfg.Tick) == errStreamLost {
			slog.Warn("session: fill stream lost, reconnecting")
			c.state = StateDisconnected
		}
	}
	return nil
}

// runCycle is one scan body: fills → equity/breaker → guard → per-symbol
// gate and placement. A single symbol failing never stops the others.
func (c *Controller) runCycle(ctx context.Context) error {
	c.cycles++
	mtxCycles.Inc()
	c.drainFills(ctx)

	equity := c.broker.Equity(ctx)
	mtxEquity.Set(equity)

	dailyPnL, tripped := c.breaker.Check(equity)
	if tripped {
		mtxBreakerTripped.Set(1)
		detail := fmt.Sprintf("daily pnl %.2f below limit %.2f (baseline %.2f)",
			dailyPnL, c.breaker.LossLimit(), c.breaker.Baseline())
		slog.Error("session: circuit breaker tripped", "detail", detail)
		if err := c.notify.Critical(ctx, "CIRCUIT BREAKER", detail); err != nil {
			slog.Warn("session: notify failed", "err", err)
		}
		c.reconcile(ctx)
		return errBreakerTripped
	}

	if c.cycles%resyncEvery == 0 {
		c.resyncPositions(ctx)
	}

	guardState := c.guard.Refresh(ctx)
	if guardState.Safe {
		mtxGuardSafe.Set(1)
	} else {
		mtxGuardSafe.Set(0)
	}
	slog.Debug("session: cycle", "n", c.cycles, "equity", equity,
		"daily_pnl", fmt.Sprintf("%.2f", dailyPnL), "guard", guardState.String())

	for _, symbol := range c.cfg.Symbols {
		c.evaluateSymbol(ctx, symbol, equity, guardState)
	}
	return nil
}

func (c *Controller) evaluateSymbol(ctx context.Context, symbol string, equity float64, guardState GuardState) {
	_, owned := c.positions[symbol]
	sig, decision := c.gate.Evaluate(ctx, symbol, GateContext{
		Now:       c.now(),
		Owned:     owned,
		LastTrade: c.lastTrade[symbol],
		GuardSafe: guardState.Safe,
	})

	mtxDecisions.WithLabelValues(decision.Stage).Inc()
	if err := c.store.SaveDecision(ctx, decision); err != nil {
		slog.Warn("session: save decision failed", "symbol", symbol, "err", err)
	}
	if !decision.Admitted {
		return
	}

	order, err := c.builder.Build(sig, equity)
	if err != nil {
		slog.Info("session: signal dropped at sizing", "symbol", symbol, "err", err)
		return
	}

	if err := c.broker.PlaceBracket(ctx, order); err != nil {
		slog.Error("session: bracket rejected", "symbol", symbol, "err", err)
		return
	}
	mtxOrders.Inc()

	c.positions[symbol] = domain.TrackedPosition{
		Symbol:     symbol,
		Quantity:   order.Quantity,
		EntryPrice: sig.Price,
		OrderIDs:   [3]string{order.Legs[0].ID, order.Legs[1].ID, order.Legs[2].ID},
		OpenedAt:   c.now(),
	}
	c.lastTrade[symbol] = c.now()

	slog.Info("session: bracket placed", "symbol", symbol,
		"qty", order.Quantity, "prob", fmt.Sprintf("%.3f", sig.Probability),
		"limit", order.Legs[0].LimitPrice)
	if err := c.notify.Signal(ctx, sig, order.Quantity); err != nil {
		slog.Warn("session: notify failed", "err", err)
	}
}

// errStreamLost signals the fill channel closed underneath us.
var errStreamLost = errors.New("session: fill stream closed")

// drainFills applies every fill already queued, without blocking.
func (c *Controller) drainFills(ctx context.Context) {
	for {
		if c.fills == nil {
			return
		}
		select {
		case f, ok := <-c.fills:
			if !ok {
				c.fills = nil
				return
			}
			c.applyFill(ctx, f)
		default:
			return
		}
	}
}

// wait blocks until the tick elapses, applying fills as they arrive. Returns
// errStreamLost when the fill channel closes; a nil channel just means we
// already know and only the timer can fire.
func (c *Controller) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			return nil
		case f, ok := <-c.fills:
			if !ok {
				c.fills = nil
				return errStreamLost
			}
			c.applyFill(ctx, f)
		}
	}
}

// applyFill is the single place executions enter controller state. Order of
// arrival is preserved: the ledger's FIFO matching depends on it.
func (c *Controller) applyFill(ctx context.Context, f domain.Fill) {
	unmatched := c.ledger.Apply(f)
	mtxFills.WithLabelValues(string(f.Side)).Inc()

	// Every execution restarts the symbol's cooldown clock, buys and partial
	// sells included.
	c.lastTrade[f.Symbol] = f.Time

	slog.Info("session: fill", "symbol", f.Symbol, "side", f.Side,
		"qty", f.Quantity, "price", f.Price)

	if err := c.store.SaveFill(ctx, f); err != nil {
		slog.Warn("session: save fill failed", "symbol", f.Symbol, "err", err)
	}
	if err := c.notify.Fill(ctx, f); err != nil {
		slog.Warn("session: notify failed", "err", err)
	}

	if unmatched > 0 {
		detail := fmt.Sprintf("sell of %.0f %s had %.0f shares with no matching lot — ledger and venue diverged",
			f.Quantity, f.Symbol, unmatched)
		slog.Error("session: unmatched sell", "symbol", f.Symbol, "unmatched", unmatched)
		if err := c.notify.Critical(ctx, "UNMATCHED SELL", detail); err != nil {
			slog.Warn("session: notify failed", "err", err)
		}
	}

	// A sell that empties the book releases the symbol for re-entry.
	if f.Side == domain.SideSell && c.ledger.OpenQuantity(f.Symbol) == 0 {
		delete(c.positions, f.Symbol)
	}
}

// resyncPositions reconciles the ownership map against venue truth. The
// venue wins: a symbol the venue says is flat gets released even if we never
// saw the exit fill.
func (c *Controller) resyncPositions(ctx context.Context) {
	venue, err := c.broker.Positions(ctx)
	if err != nil {
		slog.Warn("session: position resync failed", "err", err)
		return
	}

	for symbol := range c.positions {
		if venue[symbol] == 0 {
			slog.Warn("session: venue reports flat, releasing symbol", "symbol", symbol)
			delete(c.positions, symbol)
			c.lastTrade[symbol] = c.now()
		}
	}
	for symbol, qty := range venue {
		if qty > 0 {
			if _, ok := c.positions[symbol]; !ok {
				slog.Warn("session: venue reports untracked position", "symbol", symbol, "qty", qty)
				c.positions[symbol] = domain.TrackedPosition{
					Symbol: symbol, Quantity: int(qty), OpenedAt: c.now(),
				}
			}
		}
	}
}

// reconcile builds and persists the end-of-day report. Guarded twice: an
// in-memory day marker for this run, and the storage layer's own
// once-per-day insert, so breaker-then-shutdown still writes exactly once.
func (c *Controller) reconcile(ctx context.Context) {
	c.drainFills(ctx)

	day := c.now().In(c.cfg.Location).Format("2006-01-02")
	if c.reported[day] {
		return
	}
	c.reported[day] = true

	rep := domain.DayReport{
		Day:           day,
		AccountEquity: c.broker.Equity(ctx),
		TotalRealized: c.ledger.TotalRealized(),
		Symbols:       c.ledger.Snapshot(),
		Executions:    c.ledger.FillLog(),
	}

	created, err := c.store.SaveDayReport(ctx, rep)
	if err != nil {
		slog.Error("session: save day report failed", "day", day, "err", err)
	}
	if !created && err == nil {
		slog.Info("session: day report already written", "day", day)
		return
	}

	slog.Info("session: day reconciled", "day", day,
		"realized", fmt.Sprintf("%.2f", rep.TotalRealized), "fills", len(rep.Executions))
	if err := c.notify.DailyReport(ctx, rep); err != nil {
		slog.Warn("session: notify failed", "err", err)
	}
}

// shutdown is the shared exit path for cancellation, window close and fatal
// stops. Uses a fresh context — the run context is usually dead here.
func (c *Controller) shutdown(ctx context.Context, reason string) {
	c.reconcile(ctx)

	if err := c.notify.SessionEvent(ctx, "Session closed", reason); err != nil {
		slog.Warn("session: notify failed", "err", err)
	}
	if err := c.broker.Close(); err != nil {
		slog.Warn("session: broker close failed", "err", err)
	}
	slog.Info("session: stopped", "reason", reason, "cycles", c.cycles)
}

func (c *Controller) inWindow(t time.Time) bool {
	h := t.In(c.cfg.Location).Hour()
	return h >= c.cfg.StartHour && h < c.cfg.EndHour
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
