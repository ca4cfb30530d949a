package ports

import (
	"context"

	"github.com/alejandrodnm/sniperbot/internal/domain"
)

// FeatureSource computes the latest live feature row for a symbol from
// recent bars. It may fail per symbol per cycle; that is a soft rejection,
// not a controller fault.
type FeatureSource interface {
	LatestRow(ctx context.Context, symbol string) (domain.FeatureRow, float64, error)
}

// Classifier is the trained model: feature row in, probability in [0,1] out.
// The model itself is a black box; only availability and the score matter.
type Classifier interface {
	// Has reports whether a trained model exists for the symbol.
	Has(symbol string) bool

	// Probability scores the row with the symbol's model.
	Probability(symbol string, row domain.FeatureRow) (float64, error)
}
