// Package features computes the live feature row the classifier scores.
// The offline training pipeline produces the same columns from the same
// 1-minute bars; keep the two in lockstep or the probabilities stop meaning
// anything.
package features

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/alejandrodnm/sniperbot/internal/ports"
)

const (
	barInterval = time.Minute
	lookback    = 2 * time.Hour
	minBars     = 30 // rsi14 + vol15m need warm-up
	rsiPeriod   = 14
	volWindow   = 15
)

// Source implements ports.FeatureSource on top of a bar provider.
type Source struct {
	bars ports.BarProvider
}

func NewSource(bars ports.BarProvider) *Source {
	return &Source{bars: bars}
}

// LatestRow fetches recent 1-minute bars and computes the newest feature
// row plus the current price. Failures here are soft: the gate skips the
// symbol for the cycle and tries again on the next one.
func (s *Source) LatestRow(ctx context.Context, symbol string) (domain.FeatureRow, float64, error) {
	series, err := s.bars.Bars(ctx, symbol, barInterval, lookback)
	if err != nil {
		return domain.FeatureRow{}, 0, fmt.Errorf("features.LatestRow: %s: %w", symbol, err)
	}
	if len(series) < minBars {
		return domain.FeatureRow{}, 0, fmt.Errorf("features.LatestRow: %s: only %d bars, need %d",
			symbol, len(series), minBars)
	}

	closes := series.Closes()
	last := len(closes) - 1
	price := series.LastClose()
	if price <= 0 {
		return domain.FeatureRow{}, 0, fmt.Errorf("features.LatestRow: %s: bad last close", symbol)
	}

	row := domain.FeatureRow{
		Ret1:     closes[last]/closes[last-1] - 1,
		Ret5:     closes[last]/closes[last-5] - 1,
		RSI14:    lastRSI(closes, rsiPeriod),
		Vol15m:   returnStdev(closes, volWindow),
		DistVWAP: price/rollingVWAP(series) - 1,
	}
	return row, price, nil
}

// lastRSI returns the final value of an n-period RSI with Wilder smoothing.
func lastRSI(closes []float64, n int) float64 {
	var gain, loss float64
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if i <= n {
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
			if i == n {
				gain /= float64(n)
				loss /= float64(n)
			}
			continue
		}
		// Wilder smoothing
		if d > 0 {
			gain = (gain*float64(n-1) + d) / float64(n)
			loss = (loss * float64(n-1)) / float64(n)
		} else {
			gain = (gain * float64(n-1)) / float64(n)
			loss = (loss*float64(n-1) - d) / float64(n)
		}
	}
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

// returnStdev is the standard deviation of 1-bar returns over the last n bars.
func returnStdev(closes []float64, n int) float64 {
	if len(closes) < n+1 {
		return 0
	}
	rets := make([]float64, 0, n)
	for i := len(closes) - n; i < len(closes); i++ {
		rets = append(rets, closes[i]/closes[i-1]-1)
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var variance float64
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets))
	return math.Sqrt(variance)
}

// rollingVWAP is the volume-weighted average close over the whole fetched
// window. Falls back to a plain average when volume is missing.
func rollingVWAP(series domain.Series) float64 {
	var pv, vol float64
	for _, b := range series {
		pv += b.Close * b.Volume
		vol += b.Volume
	}
	if vol <= 0 {
		var sum float64
		for _, b := range series {
			sum += b.Close
		}
		return sum / float64(len(series))
	}
	return pv / vol
}
