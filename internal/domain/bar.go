package domain

import "time"

// PriceBar is one OHLCV bar. Bars arrive oldest-first and are never mutated
// once appended to a Series.
type PriceBar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is an ordered, append-only sequence of bars for one symbol.
type Series []PriceBar

// Closes returns the close prices aligned to the series.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// LastClose returns the most recent close, or 0 on an empty series.
func (s Series) LastClose() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Close
}

// IndexOf returns the position of the bar stamped exactly t, or -1.
func (s Series) IndexOf(t time.Time) int {
	for i, b := range s {
		if b.Time.Equal(t) {
			return i
		}
		if b.Time.After(t) {
			return -1
		}
	}
	return -1
}
