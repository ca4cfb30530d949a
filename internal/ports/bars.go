package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/domain"
)

// BarProvider serves ordered historical bars for a symbol.
type BarProvider interface {
	// Bars returns up to lookback of history at the given bar interval,
	// oldest first. The request carries a bounded timeout via ctx; callers
	// decide whether a timeout is a fault or a fail-closed condition.
	Bars(ctx context.Context, symbol string, interval, lookback time.Duration) (domain.Series, error)
}
