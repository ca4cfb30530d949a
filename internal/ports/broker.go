package ports

import (
	"context"

	"github.com/alejandrodnm/sniperbot/internal/domain"
)

// Broker is the single exclusively-owned venue connection of a run.
type Broker interface {
	// Connect establishes the session and starts the fill stream. It must
	// fully tear down any previous session first.
	Connect(ctx context.Context) error

	// Close releases the connection. Safe to call more than once.
	Close() error

	// Equity returns current account equity. Implementations fall back to a
	// documented constant when the venue query fails, so callers always get
	// a usable number.
	Equity(ctx context.Context) float64

	// PlaceBracket submits the linked entry/target/stop triple.
	PlaceBracket(ctx context.Context, order domain.BracketOrder) error

	// Positions returns venue-truth open quantity per symbol, used to resync
	// the ownership map.
	Positions(ctx context.Context) (map[string]float64, error)

	// Fills is the asynchronous execution stream. The channel closes when
	// the connection drops; the controller serializes consumption relative
	// to its scan body.
	Fills() <-chan domain.Fill
}
