package domain

import (
	"sort"
	"time"
)

// FillSide is the direction of an execution.
type FillSide string

const (
	SideBuy  FillSide = "BUY"
	SideSell FillSide = "SELL"
)

// Fill is one execution reported by the venue. Fills must be applied to the
// ledger in true execution order; realized P&L is order-sensitive.
type Fill struct {
	Symbol   string
	Side     FillSide
	Quantity float64
	Price    float64
	Time     time.Time
	OrderID  string // venue/client order id, reporting only
}

// Lot is an open purchase batch awaiting sale, consumed oldest-first.
type Lot struct {
	Quantity float64
	Price    float64
}

// SymbolPnL is the per-symbol snapshot the end-of-day report is built from.
type SymbolPnL struct {
	Symbol         string
	RealizedPnL    float64
	OpenQuantity   float64
	Lots           []Lot
	UnmatchedSells float64
}

type ledgerBook struct {
	lots      []Lot
	realized  float64
	unmatched float64
}

// Ledger matches sell fills against open lots FIFO and accumulates realized
// P&L per symbol. It is not safe for concurrent use; the session controller
// is the single writer.
type Ledger struct {
	books map[string]*ledgerBook
	log   []Fill
}

func NewLedger() *Ledger {
	return &Ledger{books: make(map[string]*ledgerBook)}
}

// Apply consumes one fill. Buys append a lot; sells consume lots from the
// head, realizing qty×(sellPrice−lotPrice) per consumed unit. The returned
// value is the sell quantity that found no open lot to match — zero in a
// healthy stream. A non-zero value means tracked ownership and venue truth
// have diverged and must be surfaced by the caller, not ignored.
func (l *Ledger) Apply(f Fill) (unmatched float64) {
	book := l.books[f.Symbol]
	if book == nil {
		book = &ledgerBook{}
		l.books[f.Symbol] = book
	}
	l.log = append(l.log, f)

	if f.Side == SideBuy {
		book.lots = append(book.lots, Lot{Quantity: f.Quantity, Price: f.Price})
		return 0
	}

	remaining := f.Quantity
	for remaining > 0 && len(book.lots) > 0 {
		lot := book.lots[0]
		if lot.Quantity <= remaining {
			book.realized += lot.Quantity * (f.Price - lot.Price)
			remaining -= lot.Quantity
			book.lots = book.lots[1:]
		} else {
			book.realized += remaining * (f.Price - lot.Price)
			book.lots[0].Quantity = lot.Quantity - remaining
			remaining = 0
		}
	}

	book.unmatched += remaining
	return remaining
}

// RealizedPnL returns the accumulated realized P&L for a symbol.
func (l *Ledger) RealizedPnL(symbol string) float64 {
	if b := l.books[symbol]; b != nil {
		return b.realized
	}
	return 0
}

// OpenQuantity returns the total unsold lot quantity for a symbol.
func (l *Ledger) OpenQuantity(symbol string) float64 {
	b := l.books[symbol]
	if b == nil {
		return 0
	}
	var total float64
	for _, lot := range b.lots {
		total += lot.Quantity
	}
	return total
}

// UnmatchedSells returns the sell quantity that could not be matched against
// any open lot for a symbol.
func (l *Ledger) UnmatchedSells(symbol string) float64 {
	if b := l.books[symbol]; b != nil {
		return b.unmatched
	}
	return 0
}

// FillLog returns the chronological fill log. Reporting only — decisions
// never read it.
func (l *Ledger) FillLog() []Fill {
	out := make([]Fill, len(l.log))
	copy(out, l.log)
	return out
}

// Snapshot returns per-symbol state sorted by symbol.
func (l *Ledger) Snapshot() []SymbolPnL {
	out := make([]SymbolPnL, 0, len(l.books))
	for symbol, b := range l.books {
		lots := make([]Lot, len(b.lots))
		copy(lots, b.lots)
		var open float64
		for _, lot := range lots {
			open += lot.Quantity
		}
		out = append(out, SymbolPnL{
			Symbol:         symbol,
			RealizedPnL:    b.realized,
			OpenQuantity:   open,
			Lots:           lots,
			UnmatchedSells: b.unmatched,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// TotalRealized sums realized P&L across all symbols.
func (l *Ledger) TotalRealized() float64 {
	var total float64
	for _, b := range l.books {
		total += b.realized
	}
	return total
}
