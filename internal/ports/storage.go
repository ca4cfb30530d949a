package ports

import (
	"context"

	"github.com/alejandrodnm/sniperbot/internal/domain"
)

// Storage persiste etiquetas offline, decisiones, fills y reportes de fin de
// día. Un error de persistencia se loguea y el loop continúa — la DB nunca
// detiene la sesión.
type Storage interface {
	// SaveLabels reemplaza las etiquetas triple-barrier de un símbolo.
	SaveLabels(ctx context.Context, symbol string, outcomes []domain.BarrierOutcome) error

	// SaveDecision registra una evaluación del entry gate.
	SaveDecision(ctx context.Context, d domain.Decision) error

	// SaveFill registra una ejecución reportada por el venue.
	SaveFill(ctx context.Context, f domain.Fill) error

	// SaveDayReport persiste el reporte de fin de día. Devuelve false si ya
	// existe un reporte para ese día — el guard de idempotencia.
	SaveDayReport(ctx context.Context, rep domain.DayReport) (bool, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
