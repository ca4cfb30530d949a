package domain

import "time"

// Signal is an entry admitted by the gate, carrying what the bracket builder
// needs: the model's probability and the price it was computed against.
type Signal struct {
	Symbol      string
	Probability float64
	Price       float64
	Time        time.Time
}

// LegKind identifies one of the three linked bracket instructions.
type LegKind string

const (
	LegEntry  LegKind = "entry"
	LegTarget LegKind = "target"
	LegStop   LegKind = "stop"
)

// BracketLeg is one instruction of a bracket order. The entry is the parent;
// both exits carry ParentID and only activate after the parent fills.
// One-cancels-other between the exits is the venue's job, not modeled here.
type BracketLeg struct {
	ID              string
	ParentID        string // empty on the parent itself
	Kind            LegKind
	Side            FillSide
	Quantity        int
	LimitPrice      float64 // entry and target legs
	TrailingPercent float64 // stop leg only
	Transmit        bool    // last leg transmits the whole bracket
}

// BracketOrder is the linked entry/target/stop triple for one admitted signal.
type BracketOrder struct {
	Symbol   string
	ParentID string
	Quantity int
	Legs     [3]BracketLeg
}

// TrackedPosition is the controller's record of a live entry. At most one
// exists per symbol; it is destroyed on full exit.
type TrackedPosition struct {
	Symbol     string
	Quantity   int
	EntryPrice float64
	OrderIDs   [3]string
	OpenedAt   time.Time
}

// Decision is one entry-gate evaluation, persisted for the per-decision log.
type Decision struct {
	Time        time.Time
	Symbol      string
	Stage       string // gate stage that rejected, or "admitted"
	Admitted    bool
	Probability float64
	Price       float64
}

// FeatureRow is the latest live feature vector for one symbol.
type FeatureRow struct {
	Ret1     float64 // 1-bar return
	Ret5     float64 // 5-bar return
	RSI14    float64 // 0–100, the overheat filter reads this
	Vol15m   float64 // stdev of 1-bar returns over 15 bars
	DistVWAP float64 // close / rolling VWAP - 1
}

// Vector returns the row in the fixed order the classifier was trained on.
func (r FeatureRow) Vector() []float64 {
	return []float64{r.Ret1, r.Ret5, r.RSI14 / 100.0, r.Vol15m, r.DistVWAP}
}

// DayReport is the end-of-day reconciliation artifact: per-symbol realized
// P&L and open quantity plus the chronological execution log. Written once
// per day, never rewritten within the same run.
type DayReport struct {
	Day           string // YYYY-MM-DD in the session timezone
	AccountEquity float64
	TotalRealized float64
	Symbols       []SymbolPnL
	Executions    []Fill
}
