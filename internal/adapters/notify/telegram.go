package notify

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram implementa ports.Notifier mandando mensajes a un chat fijo.
// Pensado para los eventos que importan lejos de la terminal: señales,
// fills, breaker y el cierre del día.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

// NewTelegram crea el notificador con el token del bot y el chat destino.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) send(format string, args ...any) error {
	_, err := t.bot.Send(tgbot.NewMessage(t.chatID, fmt.Sprintf(format, args...)))
	return err
}

func (t *Telegram) SessionEvent(_ context.Context, title, detail string) error {
	return t.send("🟢 %s\n%s", title, detail)
}

func (t *Telegram) Signal(_ context.Context, sig domain.Signal, quantity int) error {
	return t.send("🚀 SIGNAL %s (%.1f%%)\nBUY %d @ $%.2f",
		sig.Symbol, sig.Probability*100, quantity, sig.Price)
}

func (t *Telegram) Fill(_ context.Context, f domain.Fill) error {
	icon := "📈"
	if f.Side == domain.SideSell {
		icon = "📉"
	}
	return t.send("%s FILL %s %s %.0f @ $%.2f", icon, f.Symbol, f.Side, f.Quantity, f.Price)
}

func (t *Telegram) Critical(_ context.Context, title, detail string) error {
	return t.send("🛑 %s\n%s", title, detail)
}

func (t *Telegram) DailyReport(_ context.Context, rep domain.DayReport) error {
	msg := fmt.Sprintf("🏁 Day %s complete\nRealized P&L: $%.2f\nEquity: $%.2f",
		rep.Day, rep.TotalRealized, rep.AccountEquity)
	for _, s := range rep.Symbols {
		msg += fmt.Sprintf("\n%s: $%.2f (open %.0f)", s.Symbol, s.RealizedPnL, s.OpenQuantity)
	}
	return t.send("%s", msg)
}
