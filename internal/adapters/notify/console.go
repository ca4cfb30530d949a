package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier escribiendo líneas compactas por evento
// y una tabla para el reporte de fin de día.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

func (c *Console) stamp() string {
	return time.Now().Format("15:04:05")
}

// SessionEvent imprime un hito de la sesión.
func (c *Console) SessionEvent(_ context.Context, title, detail string) error {
	fmt.Fprintf(c.out, "[%s] %s — %s\n", c.stamp(), title, detail)
	return nil
}

// Signal imprime una entrada admitida antes de mandarla al venue.
func (c *Console) Signal(_ context.Context, sig domain.Signal, quantity int) error {
	fmt.Fprintf(c.out, "[%s] SIGNAL %s p=%.1f%% -> BUY %d @ $%.2f\n",
		c.stamp(), sig.Symbol, sig.Probability*100, quantity, sig.Price)
	return nil
}

// Fill imprime una ejecución.
func (c *Console) Fill(_ context.Context, f domain.Fill) error {
	fmt.Fprintf(c.out, "[%s] FILL %s %s %.0f @ $%.2f\n",
		c.stamp(), f.Symbol, f.Side, f.Quantity, f.Price)
	return nil
}

// Critical imprime un evento que requiere atención.
func (c *Console) Critical(_ context.Context, title, detail string) error {
	fmt.Fprintf(c.out, "[%s] !! %s — %s\n", c.stamp(), title, detail)
	return nil
}

// DailyReport imprime la tabla de reconciliación de fin de día: P&L
// realizado y posición abierta por símbolo, más el log de ejecuciones.
func (c *Console) DailyReport(_ context.Context, rep domain.DayReport) error {
	fmt.Fprintf(c.out, "\n=== TRADING SUMMARY %s ===\n", rep.Day)
	fmt.Fprintf(c.out, "Ending equity: $%.2f\n", rep.AccountEquity)

	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Realized PnL", "Open Qty", "Unmatched")
	for _, s := range rep.Symbols {
		openLabel := "-"
		if s.OpenQuantity > 0 {
			openLabel = fmt.Sprintf("%.0f sh", s.OpenQuantity)
		}
		unmatchedLabel := "-"
		if s.UnmatchedSells > 0 {
			unmatchedLabel = fmt.Sprintf("%.0f !!", s.UnmatchedSells)
		}
		table.Append(
			s.Symbol,
			fmt.Sprintf("$%.2f", s.RealizedPnL),
			openLabel,
			unmatchedLabel,
		)
	}
	table.Append("TOTAL", fmt.Sprintf("$%.2f", rep.TotalRealized), "", "")
	table.Render()

	if len(rep.Executions) > 0 {
		fmt.Fprintln(c.out, "Execution log:")
		for _, f := range rep.Executions {
			fmt.Fprintf(c.out, "  %s  %-6s %-4s %6.0f @ $%.2f\n",
				f.Time.Format("15:04:05"), f.Symbol, f.Side, f.Quantity, f.Price)
		}
	}
	return nil
}
