package domain

import "time"

// BarrierConfig is the shared exit geometry: profit target and stop loss as
// fractions of the entry price, plus a time stop measured in bars. The live
// bracket orders and the offline labels are built from the same numbers, so
// a trained probability keeps its meaning in production.
type BarrierConfig struct {
	StopFraction   float64 // e.g. 0.005 → exit at -0.5%
	TargetFraction float64 // e.g. 0.01 → exit at +1%
	HorizonBars    int     // vertical barrier, in bars after entry
}

// ExitKind says which of the three racing exits fired first.
type ExitKind string

const (
	ExitTarget  ExitKind = "target"
	ExitStop    ExitKind = "stop"
	ExitTimeout ExitKind = "timeout"
)

// BarrierOutcome is the label for one entry: did the target or the stop get
// touched first within the horizon, and what return was actually realized at
// the exit bar (which may overshoot the nominal barrier).
type BarrierOutcome struct {
	EntryTime  time.Time
	EntryPrice float64
	Label      int // 1 = target first, 0 = stop or timeout
	Return     float64
	ExitTime   time.Time
	ExitKind   ExitKind
}

// EvaluateBarriers labels each entry timestamp against the price series.
//
// For every entry it walks the forward path strictly after the entry bar, up
// to HorizonBars ahead (clamped to the end of the series), and finds the
// first bar whose return vs the entry close reaches +TargetFraction and the
// first that reaches -StopFraction. The earlier touch wins; if both touch on
// the same bar the stop wins. No touch at all is a timeout, scored as a loss
// with the exit at the vertical barrier.
//
// Entries whose timestamp is not present in the series, or whose forward
// path is empty, are dropped rather than labeled.
func EvaluateBarriers(series Series, entries []time.Time, cfg BarrierConfig) []BarrierOutcome {
	out := make([]BarrierOutcome, 0, len(entries))

	for _, entryTime := range entries {
		entryIdx := series.IndexOf(entryTime)
		if entryIdx < 0 {
			continue
		}
		entryPrice := series[entryIdx].Close
		if entryPrice <= 0 {
			continue
		}

		verticalIdx := entryIdx + cfg.HorizonBars
		if verticalIdx >= len(series) {
			verticalIdx = len(series) - 1
		}
		path := series[entryIdx+1 : verticalIdx+1]
		if len(path) == 0 {
			continue
		}

		firstTarget := -1
		firstStop := -1
		for i, bar := range path {
			ret := bar.Close/entryPrice - 1
			if firstTarget < 0 && ret >= cfg.TargetFraction {
				firstTarget = i
			}
			if firstStop < 0 && ret <= -cfg.StopFraction {
				firstStop = i
			}
			if firstTarget >= 0 && firstStop >= 0 {
				break
			}
		}

		// Timeout defaults; a touch overrides.
		exitIdx := len(path) - 1
		label := 0
		kind := ExitTimeout

		switch {
		case firstTarget >= 0 && firstStop >= 0:
			// Both touched: strictly earlier target wins, ties go to the stop.
			if firstTarget < firstStop {
				exitIdx, label, kind = firstTarget, 1, ExitTarget
			} else {
				exitIdx, label, kind = firstStop, 0, ExitStop
			}
		case firstTarget >= 0:
			exitIdx, label, kind = firstTarget, 1, ExitTarget
		case firstStop >= 0:
			exitIdx, label, kind = firstStop, 0, ExitStop
		}

		exitBar := path[exitIdx]
		out = append(out, BarrierOutcome{
			EntryTime:  entryTime,
			EntryPrice: entryPrice,
			Label:      label,
			Return:     exitBar.Close/entryPrice - 1,
			ExitTime:   exitBar.Time,
			ExitKind:   kind,
		})
	}

	return out
}
