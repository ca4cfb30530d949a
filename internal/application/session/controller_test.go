package session

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	equity    float64
	fills     chan domain.Fill
	placed    []domain.BracketOrder
	positions map[string]float64
	closed    bool
}

func (b *fakeBroker) Connect(context.Context) error { return nil }
func (b *fakeBroker) Close() error                  { b.closed = true; return nil }
func (b *fakeBroker) Equity(context.Context) float64 {
	return b.equity
}
func (b *fakeBroker) PlaceBracket(_ context.Context, o domain.BracketOrder) error {
	b.placed = append(b.placed, o)
	return nil
}
func (b *fakeBroker) Positions(context.Context) (map[string]float64, error) {
	return b.positions, nil
}
func (b *fakeBroker) Fills() <-chan domain.Fill { return b.fills }

type fakeStorage struct {
	decisions []domain.Decision
	fills     []domain.Fill
	days      map[string]bool
}

func (s *fakeStorage) SaveLabels(context.Context, string, []domain.BarrierOutcome) error { return nil }
func (s *fakeStorage) SaveDecision(_ context.Context, d domain.Decision) error {
	s.decisions = append(s.decisions, d)
	return nil
}
func (s *fakeStorage) SaveFill(_ context.Context, f domain.Fill) error {
	s.fills = append(s.fills, f)
	return nil
}
func (s *fakeStorage) SaveDayReport(_ context.Context, rep domain.DayReport) (bool, error) {
	if s.days == nil {
		s.days = make(map[string]bool)
	}
	if s.days[rep.Day] {
		return false, nil
	}
	s.days[rep.Day] = true
	return true, nil
}
func (s *fakeStorage) Close() error { return nil }

type fakeNotifier struct {
	events    int
	signals   int
	fills     int
	criticals []string
	reports   []domain.DayReport
}

func (n *fakeNotifier) SessionEvent(context.Context, string, string) error {
	n.events++
	return nil
}
func (n *fakeNotifier) Signal(context.Context, domain.Signal, int) error {
	n.signals++
	return nil
}
func (n *fakeNotifier) Fill(context.Context, domain.Fill) error {
	n.fills++
	return nil
}
func (n *fakeNotifier) Critical(_ context.Context, title, _ string) error {
	n.criticals = append(n.criticals, title)
	return nil
}
func (n *fakeNotifier) DailyReport(_ context.Context, rep domain.DayReport) error {
	n.reports = append(n.reports, rep)
	return nil
}

var sessionNow = time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

type fixture struct {
	c      *Controller
	broker *fakeBroker
	store  *fakeStorage
	notify *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	broker := &fakeBroker{
		equity:    200000,
		fills:     make(chan domain.Fill, 16),
		positions: map[string]float64{},
	}
	store := &fakeStorage{}
	notify := &fakeNotifier{}

	bars := &stubBars{series: map[string]domain.Series{
		"SPY": rising(40),
		"XLK": rising(40),
	}}
	guard := newGuard(bars, "SPY", "XLK")

	feats := &stubFeatures{row: domain.FeatureRow{RSI14: 55}, price: 41.25}
	model := &stubModel{trained: map[string]bool{"PSTG": true}, prob: 0.61}
	gate := NewEntryGate(feats, model, 0.55, 75, 30*time.Minute)

	breaker := NewCircuitBreaker(0.03)
	breaker.Arm(200000)

	c := NewController(Config{
		Symbols:          []string{"PSTG"},
		Tick:             time.Minute,
		Cooldown:         30 * time.Minute,
		StartHour:        10,
		EndHour:          16,
		Location:         time.UTC,
		ReconnectBackoff: time.Millisecond,
	}, broker, guard, gate, testBuilder(), breaker, store, notify)
	c.fills = broker.fills
	c.now = func() time.Time { return sessionNow }

	return &fixture{c: c, broker: broker, store: store, notify: notify}
}

func TestController_CycleAdmitsAndPlaces(t *testing.T) {
	fx := newFixture(t)

	require.NoError(t, fx.c.runCycle(context.Background()))

	require.Len(t, fx.broker.placed, 1)
	order := fx.broker.placed[0]
	assert.Equal(t, "PSTG", order.Symbol)
	assert.Equal(t, 484, order.Quantity) // floor(200000*0.10 / 41.25)

	pos, owned := fx.c.positions["PSTG"]
	require.True(t, owned)
	assert.Equal(t, 484, pos.Quantity)
	assert.Equal(t, 1, fx.notify.signals)

	require.Len(t, fx.store.decisions, 1)
	assert.Equal(t, StageAdmitted, fx.store.decisions[0].Stage)
}

func TestController_OwnedSymbolNotReentered(t *testing.T) {
	fx := newFixture(t)

	require.NoError(t, fx.c.runCycle(context.Background()))
	require.Len(t, fx.broker.placed, 1)

	// Position still open next cycle: the gate stops at ownership.
	require.NoError(t, fx.c.runCycle(context.Background()))
	assert.Len(t, fx.broker.placed, 1)
	assert.Equal(t, StageOwned, fx.store.decisions[1].Stage)
}

func TestController_FillsApplyBeforeGate(t *testing.T) {
	fx := newFixture(t)

	// Open a position, then queue the round trip before the next cycle.
	require.NoError(t, fx.c.runCycle(context.Background()))
	fx.broker.fills <- domain.Fill{
		Symbol: "PSTG", Side: domain.SideBuy, Quantity: 484, Price: 41.30,
		Time: sessionNow.Add(-20 * time.Minute),
	}
	fx.broker.fills <- domain.Fill{
		Symbol: "PSTG", Side: domain.SideSell, Quantity: 484, Price: 43.00,
		Time: sessionNow.Add(-10 * time.Minute),
	}

	require.NoError(t, fx.c.runCycle(context.Background()))

	// The exit released the symbol before the gate ran, so the rejection is
	// the cooldown, not ownership.
	_, owned := fx.c.positions["PSTG"]
	assert.False(t, owned)
	assert.Equal(t, StageCooldown, fx.store.decisions[1].Stage)

	assert.InDelta(t, 484*(43.00-41.30), fx.c.ledger.RealizedPnL("PSTG"), 1e-6)
	assert.Len(t, fx.store.fills, 2)
	assert.Equal(t, 2, fx.notify.fills)
}

func TestController_BreakerTripReconcilesAndStops(t *testing.T) {
	fx := newFixture(t)
	fx.broker.equity = 193500 // -6500 against a -6000 limit

	err := fx.c.runCycle(context.Background())
	require.ErrorIs(t, err, errBreakerTripped)

	assert.Contains(t, fx.notify.criticals, "CIRCUIT BREAKER")
	require.Len(t, fx.notify.reports, 1)
	assert.Equal(t, "2025-06-02", fx.notify.reports[0].Day)

	// No orders went out on the fatal cycle.
	assert.Empty(t, fx.broker.placed)

	// The shutdown path must not write a second report for the same day.
	fx.c.shutdown(context.Background(), "circuit breaker")
	assert.Len(t, fx.notify.reports, 1)
	assert.True(t, fx.broker.closed)
}

func TestController_ReconcileOncePerDay(t *testing.T) {
	fx := newFixture(t)

	fx.c.reconcile(context.Background())
	fx.c.reconcile(context.Background())

	assert.Len(t, fx.notify.reports, 1)
	assert.Len(t, fx.store.days, 1)
}

func TestController_UnmatchedSellIsCritical(t *testing.T) {
	fx := newFixture(t)

	fx.c.applyFill(context.Background(), domain.Fill{
		Symbol: "WDC", Side: domain.SideSell, Quantity: 80, Price: 62.00,
		Time: sessionNow,
	})

	assert.Contains(t, fx.notify.criticals, "UNMATCHED SELL")
	// The fill is still recorded; flagging never drops data.
	assert.Len(t, fx.store.fills, 1)
}

func TestController_ResyncReleasesVenueFlatSymbol(t *testing.T) {
	fx := newFixture(t)

	require.NoError(t, fx.c.runCycle(context.Background()))
	require.Contains(t, fx.c.positions, "PSTG")

	// Venue says flat (exit fill was missed). Jump to a resync cycle.
	fx.c.cycles = resyncEvery - 1
	require.NoError(t, fx.c.runCycle(context.Background()))

	assert.NotContains(t, fx.c.positions, "PSTG")
	// Released into cooldown, not straight back into an entry.
	last := fx.store.decisions[len(fx.store.decisions)-1]
	assert.Equal(t, StageCooldown, last.Stage)
}

func TestController_ClosedIdlesIntoNextDay(t *testing.T) {
	fx := newFixture(t)
	fx.c.cfg.Tick = time.Millisecond

	now := time.Date(2025, 6, 2, 16, 30, 0, 0, time.UTC)
	fx.c.now = func() time.Time { return now }
	fx.c.state = StateScanning

	// Past the close: the day reconciles and the run stays alive in Closed.
	require.NoError(t, fx.c.scan(context.Background()))
	assert.Equal(t, StateClosed, fx.c.State())
	require.Len(t, fx.notify.reports, 1)
	assert.False(t, fx.broker.closed)

	// Same evening: still closed, no second report.
	fx.c.closedWait(context.Background())
	assert.Equal(t, StateClosed, fx.c.State())
	assert.Len(t, fx.notify.reports, 1)

	// Next morning before the open: back to Idle, waiting for the window.
	now = time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	fx.c.closedWait(context.Background())
	assert.Equal(t, StateIdle, fx.c.State())
	fx.c.idle(context.Background())
	assert.Equal(t, StateIdle, fx.c.State())

	// Window open: scanning again with the same breaker baseline, and the
	// new day reconciles on its own key.
	now = time.Date(2025, 6, 3, 10, 30, 0, 0, time.UTC)
	fx.c.idle(context.Background())
	assert.Equal(t, StateScanning, fx.c.State())

	fx.c.reconcile(context.Background())
	require.Len(t, fx.notify.reports, 2)
	assert.Equal(t, "2025-06-03", fx.notify.reports[1].Day)
}

func TestController_EveryFillRestartsCooldown(t *testing.T) {
	fx := newFixture(t)

	buyTime := sessionNow.Add(-4 * time.Minute)
	fx.c.applyFill(context.Background(), domain.Fill{
		Symbol: "PSTG", Side: domain.SideBuy, Quantity: 120, Price: 41.25, Time: buyTime,
	})
	assert.Equal(t, buyTime, fx.c.lastTrade["PSTG"])

	// A partial sell leaves the book open but still restarts the clock.
	partialTime := sessionNow.Add(-2 * time.Minute)
	fx.c.applyFill(context.Background(), domain.Fill{
		Symbol: "PSTG", Side: domain.SideSell, Quantity: 50, Price: 41.80, Time: partialTime,
	})
	assert.Equal(t, partialTime, fx.c.lastTrade["PSTG"])
	assert.InDelta(t, 70, fx.c.ledger.OpenQuantity("PSTG"), 1e-9)
}

func TestController_StreamLossTriggersReconnect(t *testing.T) {
	fx := newFixture(t)
	close(fx.broker.fills)

	err := fx.c.wait(context.Background(), time.Minute)
	assert.ErrorIs(t, err, errStreamLost)
	assert.Nil(t, fx.c.fills)
}
