package domain_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

// minuteSeries builds a 1-minute series from close prices starting at t0.
func minuteSeries(closes ...float64) domain.Series {
	s := make(domain.Series, len(closes))
	for i, c := range closes {
		s[i] = domain.PriceBar{Time: t0.Add(time.Duration(i) * time.Minute), Close: c}
	}
	return s
}

func defaultBarriers() domain.BarrierConfig {
	return domain.BarrierConfig{StopFraction: 0.005, TargetFraction: 0.01, HorizonBars: 12}
}

func TestEvaluateBarriers_TargetFirst(t *testing.T) {
	// Monotonically rising, crosses +1% at the third forward bar, never
	// comes near the stop.
	series := minuteSeries(100, 100.2, 100.5, 101.2, 101.5, 102)

	out := domain.EvaluateBarriers(series, []time.Time{t0}, defaultBarriers())
	require.Len(t, out, 1)

	assert.Equal(t, 1, out[0].Label)
	assert.Equal(t, domain.ExitTarget, out[0].ExitKind)
	assert.Equal(t, series[3].Time, out[0].ExitTime) // first crossing bar
	assert.InDelta(t, 0.012, out[0].Return, 1e-9)
}

func TestEvaluateBarriers_DipThenTarget(t *testing.T) {
	// entry 100, path 100.2 → 99.6 → 101.2: the -0.4% dip never reaches the
	// stop, the 101.2 bar overshoots the +1% target → win with ret 1.2%.
	series := minuteSeries(100, 100.2, 99.6, 101.2, 100.9, 100.8)

	out := domain.EvaluateBarriers(series, []time.Time{t0}, defaultBarriers())
	require.Len(t, out, 1)

	assert.Equal(t, 1, out[0].Label)
	assert.Equal(t, series[3].Time, out[0].ExitTime)
	assert.InDelta(t, 0.012, out[0].Return, 1e-9)
}

func TestEvaluateBarriers_StopFirst(t *testing.T) {
	// Stop touched on the second forward bar, target only later: the earlier
	// touch wins and the label is 0 even though the path recovers.
	series := minuteSeries(100, 99.8, 99.4, 100.2, 101.5)

	out := domain.EvaluateBarriers(series, []time.Time{t0}, defaultBarriers())
	require.Len(t, out, 1)

	assert.Equal(t, 0, out[0].Label)
	assert.Equal(t, domain.ExitStop, out[0].ExitKind)
	assert.Equal(t, series[2].Time, out[0].ExitTime)
	assert.InDelta(t, -0.006, out[0].Return, 1e-9)
}

func TestEvaluateBarriers_TimeoutIsLoss(t *testing.T) {
	cfg := domain.BarrierConfig{StopFraction: 0.005, TargetFraction: 0.01, HorizonBars: 3}
	series := minuteSeries(100, 100.1, 100.2, 100.3, 100.4, 100.5)

	out := domain.EvaluateBarriers(series, []time.Time{t0}, cfg)
	require.Len(t, out, 1)

	assert.Equal(t, 0, out[0].Label)
	assert.Equal(t, domain.ExitTimeout, out[0].ExitKind)
	assert.Equal(t, series[3].Time, out[0].ExitTime) // vertical barrier bar
	assert.InDelta(t, 0.003, out[0].Return, 1e-9)
}

func TestEvaluateBarriers_HorizonPastEndOfData(t *testing.T) {
	// Horizon reaches past the series: the vertical barrier clamps to the
	// last available bar (implicit early timeout).
	series := minuteSeries(100, 100.1, 100.2)

	out := domain.EvaluateBarriers(series, []time.Time{t0}, defaultBarriers())
	require.Len(t, out, 1)

	assert.Equal(t, 0, out[0].Label)
	assert.Equal(t, domain.ExitTimeout, out[0].ExitKind)
	assert.Equal(t, series[2].Time, out[0].ExitTime)
}

func TestEvaluateBarriers_DropsUnlabelableEvents(t *testing.T) {
	series := minuteSeries(100, 100.5, 101.2)

	entries := []time.Time{
		t0.Add(30 * time.Second),   // not in the index
		series[len(series)-1].Time, // empty forward path
		t0,                         // labelable
	}

	out := domain.EvaluateBarriers(series, entries, defaultBarriers())
	require.Len(t, out, 1)
	assert.Equal(t, t0, out[0].EntryTime)
	assert.Equal(t, 1, out[0].Label)
}

func TestEvaluateBarriers_ExitWithinHorizon(t *testing.T) {
	// Every outcome's exit falls inside [entry, entry+horizon].
	series := minuteSeries(100, 99.2, 101.5, 100, 98, 103, 100.4, 100.2, 99.9, 100.1)
	entries := make([]time.Time, len(series))
	for i, b := range series {
		entries[i] = b.Time
	}

	cfg := domain.BarrierConfig{StopFraction: 0.005, TargetFraction: 0.01, HorizonBars: 4}
	out := domain.EvaluateBarriers(series, entries, cfg)
	require.NotEmpty(t, out)

	for _, o := range out {
		assert.False(t, o.ExitTime.Before(o.EntryTime), "exit before entry for %v", o.EntryTime)
		assert.False(t, o.ExitTime.After(o.EntryTime.Add(4*time.Minute)), "exit past horizon for %v", o.EntryTime)
	}
}
