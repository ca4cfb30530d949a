package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/alejandrodnm/sniperbot/internal/ports"
)

// Gate stages in evaluation order. A symbol stops at the first stage that
// rejects it; the stage name is what gets persisted and counted.
const (
	StageOwned      = "owned"
	StageRegime     = "regime"
	StageCooldown   = "cooldown"
	StageModel      = "model"
	StageFeatures   = "features"
	StageOverheat   = "overheat"
	StageConfidence = "confidence"
	StageAdmitted   = "admitted"
)

// EntryGate runs the per-symbol admission pipeline. Cheap checks go first so
// the gate only computes features and scores the model for symbols that are
// actually candidates this cycle.
type EntryGate struct {
	features  ports.FeatureSource
	model     ports.Classifier
	threshold float64 // minimum model probability
	rsiCeil   float64 // overheat filter on RSI-14
	cooldown  time.Duration
}

func NewEntryGate(features ports.FeatureSource, model ports.Classifier, threshold, rsiCeil float64, cooldown time.Duration) *EntryGate {
	return &EntryGate{
		features:  features,
		model:     model,
		threshold: threshold,
		rsiCeil:   rsiCeil,
		cooldown:  cooldown,
	}
}

// GateContext is the controller-owned state the gate reads but never mutates.
type GateContext struct {
	Now       time.Time
	Owned     bool      // a tracked position for this symbol already exists
	LastTrade time.Time // zero if the symbol never traded this run
	GuardSafe bool
}

// Evaluate runs the pipeline for one symbol. The returned Decision always has
// a stage; the Signal is only meaningful when Decision.Admitted is true.
func (g *EntryGate) Evaluate(ctx context.Context, symbol string, gc GateContext) (domain.Signal, domain.Decision) {
	d := domain.Decision{Time: gc.Now, Symbol: symbol}

	if gc.Owned {
		d.Stage = StageOwned
		return domain.Signal{}, d
	}
	if !gc.GuardSafe {
		d.Stage = StageRegime
		return domain.Signal{}, d
	}
	if !gc.LastTrade.IsZero() && gc.Now.Sub(gc.LastTrade) < g.cooldown {
		d.Stage = StageCooldown
		return domain.Signal{}, d
	}
	if !g.model.Has(symbol) {
		d.Stage = StageModel
		return domain.Signal{}, d
	}

	row, price, err := g.features.LatestRow(ctx, symbol)
	if err != nil {
		slog.Debug("gate: features unavailable", "symbol", symbol, "err", err)
		d.Stage = StageFeatures
		return domain.Signal{}, d
	}
	d.Price = price

	if row.RSI14 > g.rsiCeil {
		d.Stage = StageOverheat
		return domain.Signal{}, d
	}

	prob, err := g.model.Probability(symbol, row)
	if err != nil {
		slog.Warn("gate: model scoring failed", "symbol", symbol, "err", err)
		d.Stage = StageModel
		return domain.Signal{}, d
	}
	d.Probability = prob

	if prob < g.threshold {
		d.Stage = StageConfidence
		return domain.Signal{}, d
	}

	d.Stage = StageAdmitted
	d.Admitted = true
	return domain.Signal{
		Symbol:      symbol,
		Probability: prob,
		Price:       price,
		Time:        gc.Now,
	}, d
}
