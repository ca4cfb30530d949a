package features_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/adapters/features"
	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBars struct {
	series domain.Series
	err    error
	calls  int
}

func (f *fakeBars) Bars(_ context.Context, _ string, _, _ time.Duration) (domain.Series, error) {
	f.calls++
	return f.series, f.err
}

func flatSeries(n int, close float64) domain.Series {
	start := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	s := make(domain.Series, n)
	for i := range s {
		s[i] = domain.PriceBar{Time: start.Add(time.Duration(i) * time.Minute), Close: close, Volume: 100}
	}
	return s
}

func TestLatestRow_FlatSeries(t *testing.T) {
	src := features.NewSource(&fakeBars{series: flatSeries(60, 50)})

	row, price, err := src.LatestRow(context.Background(), "PSTG")
	require.NoError(t, err)

	assert.InDelta(t, 50.0, price, 1e-9)
	assert.Zero(t, row.Ret1)
	assert.Zero(t, row.Ret5)
	assert.Zero(t, row.Vol15m)
	assert.InDelta(t, 0.0, row.DistVWAP, 1e-9)
}

func TestLatestRow_RisingSeriesOverheats(t *testing.T) {
	series := flatSeries(60, 50)
	for i := range series {
		series[i].Close = 50 + float64(i)*0.2 // straight up → RSI pegged high
	}
	src := features.NewSource(&fakeBars{series: series})

	row, _, err := src.LatestRow(context.Background(), "WDC")
	require.NoError(t, err)

	assert.Greater(t, row.RSI14, 75.0)
	assert.Greater(t, row.Ret5, 0.0)
	assert.Greater(t, row.DistVWAP, 0.0)
}

func TestLatestRow_ShortHistoryFails(t *testing.T) {
	src := features.NewSource(&fakeBars{series: flatSeries(10, 50)})
	_, _, err := src.LatestRow(context.Background(), "STX")
	require.Error(t, err)
}

func TestLatestRow_ProviderErrorPropagates(t *testing.T) {
	src := features.NewSource(&fakeBars{err: errors.New("timeout")})
	_, _, err := src.LatestRow(context.Background(), "STX")
	require.Error(t, err)
}

func TestFeatureRow_VectorOrder(t *testing.T) {
	row := domain.FeatureRow{Ret1: 0.01, Ret5: 0.02, RSI14: 60, Vol15m: 0.003, DistVWAP: -0.001}
	v := row.Vector()
	require.Len(t, v, 5)
	assert.InDelta(t, 0.01, v[0], 1e-12)
	assert.InDelta(t, 0.6, v[2], 1e-12) // rsi scaled to 0–1
}
