package notify

import (
	"context"
	"errors"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/alejandrodnm/sniperbot/internal/ports"
)

// Multi reparte cada evento a varios notificadores. Los errores se juntan;
// el caller los loguea y sigue.
type Multi struct {
	targets []ports.Notifier
}

func NewMulti(targets ...ports.Notifier) *Multi {
	return &Multi{targets: targets}
}

func (m *Multi) each(fn func(ports.Notifier) error) error {
	var errs []error
	for _, t := range m.targets {
		if err := fn(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) SessionEvent(ctx context.Context, title, detail string) error {
	return m.each(func(n ports.Notifier) error { return n.SessionEvent(ctx, title, detail) })
}

func (m *Multi) Signal(ctx context.Context, sig domain.Signal, quantity int) error {
	return m.each(func(n ports.Notifier) error { return n.Signal(ctx, sig, quantity) })
}

func (m *Multi) Fill(ctx context.Context, f domain.Fill) error {
	return m.each(func(n ports.Notifier) error { return n.Fill(ctx, f) })
}

func (m *Multi) Critical(ctx context.Context, title, detail string) error {
	return m.each(func(n ports.Notifier) error { return n.Critical(ctx, title, detail) })
}

func (m *Multi) DailyReport(ctx context.Context, rep domain.DayReport) error {
	return m.each(func(n ports.Notifier) error { return n.DailyReport(ctx, rep) })
}
