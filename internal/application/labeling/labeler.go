package labeling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/alejandrodnm/sniperbot/internal/ports"
)

const barInterval = time.Minute

// Summary is the per-symbol result of one labeling run.
type Summary struct {
	Symbol  string
	Events  int // entry candidates considered
	Labeled int // outcomes retained
	Wins    int
	Dropped int // candidates with no usable forward path
}

// WinRate returns the fraction of retained labels that hit the target.
func (s Summary) WinRate() float64 {
	if s.Labeled == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Labeled)
}

// Labeler runs the offline triple-barrier pass: fetch history, label every
// bar as an entry candidate, replace the symbol's stored labels. The exit
// geometry is the same BarrierConfig the live brackets are built from.
type Labeler struct {
	bars     ports.BarProvider
	store    ports.Storage
	cfg      domain.BarrierConfig
	lookback time.Duration
}

func NewLabeler(bars ports.BarProvider, store ports.Storage, cfg domain.BarrierConfig, lookback time.Duration) *Labeler {
	return &Labeler{bars: bars, store: store, cfg: cfg, lookback: lookback}
}

// Run labels every symbol. One symbol failing does not stop the rest; the
// error returned is the last per-symbol failure, if any.
func (l *Labeler) Run(ctx context.Context, symbols []string) ([]Summary, error) {
	summaries := make([]Summary, 0, len(symbols))
	var lastErr error

	for _, symbol := range symbols {
		sum, err := l.runSymbol(ctx, symbol)
		if err != nil {
			slog.Error("labeling: symbol failed", "symbol", symbol, "err", err)
			lastErr = err
			continue
		}
		summaries = append(summaries, sum)
		slog.Info("labeling: symbol done",
			"symbol", symbol, "events", sum.Events, "labeled", sum.Labeled,
			"wins", sum.Wins, "dropped", sum.Dropped,
			"win_rate", fmt.Sprintf("%.3f", sum.WinRate()))
	}
	return summaries, lastErr
}

func (l *Labeler) runSymbol(ctx context.Context, symbol string) (Summary, error) {
	series, err := l.bars.Bars(ctx, symbol, barInterval, l.lookback)
	if err != nil {
		return Summary{}, fmt.Errorf("labeling.runSymbol %s: fetch bars: %w", symbol, err)
	}
	if len(series) == 0 {
		return Summary{}, fmt.Errorf("labeling.runSymbol %s: no history", symbol)
	}

	// Every bar is an entry candidate; the barrier pass drops the ones near
	// the end of the data with nothing ahead of them.
	entries := make([]time.Time, len(series))
	for i, bar := range series {
		entries[i] = bar.Time
	}

	outcomes := domain.EvaluateBarriers(series, entries, l.cfg)

	if err := l.store.SaveLabels(ctx, symbol, outcomes); err != nil {
		return Summary{}, fmt.Errorf("labeling.runSymbol %s: persist: %w", symbol, err)
	}

	sum := Summary{
		Symbol:  symbol,
		Events:  len(entries),
		Labeled: len(outcomes),
		Dropped: len(entries) - len(outcomes),
	}
	for _, o := range outcomes {
		if o.Label == 1 {
			sum.Wins++
		}
	}
	return sum, nil
}
