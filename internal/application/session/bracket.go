package session

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/google/uuid"
)

// BracketBuilder turns an admitted signal into the linked entry/target/stop
// triple. Sizing is a fixed fraction of current equity, floored to whole
// shares; a signal that can't afford one share is dropped here, not at the
// venue.
type BracketBuilder struct {
	positionFraction float64 // of equity per entry
	entryPremium     float64 // limit = price * (1 + premium)
	targetFraction   float64
	trailingPercent  float64 // e.g. 0.8 means a 0.8% trail
}

func NewBracketBuilder(positionFraction, entryPremium, targetFraction, trailingPercent float64) *BracketBuilder {
	return &BracketBuilder{
		positionFraction: positionFraction,
		entryPremium:     entryPremium,
		targetFraction:   targetFraction,
		trailingPercent:  trailingPercent,
	}
}

// Size returns the whole-share quantity for the given equity and price, or
// an error when no valid size exists.
func (b *BracketBuilder) Size(equity, price float64) (int, error) {
	if price <= 0 {
		return 0, fmt.Errorf("session.Size: invalid price %.4f", price)
	}
	qty := int(math.Floor(equity * b.positionFraction / price))
	if qty < 1 {
		return 0, fmt.Errorf("session.Size: equity %.2f buys zero shares at %.2f", equity, price)
	}
	return qty, nil
}

// Build assembles the bracket for an admitted signal. Only the last leg
// carries Transmit — the venue holds the first two until the triple is
// complete, so a partial submission never leaves a naked order working.
func (b *BracketBuilder) Build(sig domain.Signal, equity float64) (domain.BracketOrder, error) {
	qty, err := b.Size(equity, sig.Price)
	if err != nil {
		return domain.BracketOrder{}, fmt.Errorf("session.Build %s: %w", sig.Symbol, err)
	}

	parentID := uuid.NewString()
	entry := domain.BracketLeg{
		ID:         parentID,
		Kind:       domain.LegEntry,
		Side:       domain.SideBuy,
		Quantity:   qty,
		LimitPrice: round2(sig.Price * (1 + b.entryPremium)),
	}
	target := domain.BracketLeg{
		ID:         uuid.NewString(),
		ParentID:   parentID,
		Kind:       domain.LegTarget,
		Side:       domain.SideSell,
		Quantity:   qty,
		LimitPrice: round2(sig.Price * (1 + b.targetFraction)),
	}
	stop := domain.BracketLeg{
		ID:              uuid.NewString(),
		ParentID:        parentID,
		Kind:            domain.LegStop,
		Side:            domain.SideSell,
		Quantity:        qty,
		TrailingPercent: b.trailingPercent,
		Transmit:        true,
	}

	return domain.BracketOrder{
		Symbol:   sig.Symbol,
		ParentID: parentID,
		Quantity: qty,
		Legs:     [3]domain.BracketLeg{entry, target, stop},
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
