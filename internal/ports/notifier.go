package ports

import (
	"context"

	"github.com/alejandrodnm/sniperbot/internal/domain"
)

// Notifier delivers trading events to the user. Errors are logged by the
// caller and never interrupt the session.
type Notifier interface {
	// SessionEvent announces lifecycle milestones (connected, window open,
	// shutdown).
	SessionEvent(ctx context.Context, title, detail string) error

	// Signal announces an admitted entry about to be submitted.
	Signal(ctx context.Context, sig domain.Signal, quantity int) error

	// Fill announces one execution.
	Fill(ctx context.Context, f domain.Fill) error

	// Critical announces faults that need human eyes: breaker trips,
	// ledger/venue divergence, repeated connection loss.
	Critical(ctx context.Context, title, detail string) error

	// DailyReport presents the end-of-day reconciliation.
	DailyReport(ctx context.Context, rep domain.DayReport) error
}
