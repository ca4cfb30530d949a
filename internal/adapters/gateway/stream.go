package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/gorilla/websocket"
)

// fillStream reads execution events off the bridge websocket and forwards
// them, in arrival order, onto a single channel. It never reorders and never
// drops: the session controller is the sole consumer and drains between scan
// iterations, so a buffered channel is enough.
type fillStream struct {
	conn *websocket.Conn
	out  chan<- domain.Fill

	closeOnce sync.Once
	done      chan struct{}
}

type fillMsg struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"` // BUY | SELL
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Time     int64   `json:"time"` // unix seconds
	OrderID  string  `json:"order_id"`
}

func openFillStream(ctx context.Context, wsURL string, out chan<- domain.Fill) (*fillStream, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	s := &fillStream{
		conn: conn,
		out:  out,
		done: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// readLoop decodes fills until the connection drops, then closes the output
// channel. A closed channel is the controller's disconnect signal.
func (s *fillStream) readLoop() {
	defer close(s.out)

	for {
		var msg fillMsg
		if err := s.conn.ReadJSON(&msg); err != nil {
			select {
			case <-s.done:
				// deliberate close, not a fault
			default:
				slog.Warn("gateway: fill stream dropped", "err", err)
			}
			return
		}

		var side domain.FillSide
		switch msg.Side {
		case string(domain.SideBuy):
			side = domain.SideBuy
		case string(domain.SideSell):
			side = domain.SideSell
		default:
			// A fill we can't classify must not reach the ledger; a phantom
			// buy would corrupt realized P&L.
			slog.Warn("gateway: dropping fill with unknown side",
				"side", msg.Side, "symbol", msg.Symbol, "order_id", msg.OrderID)
			continue
		}

		s.out <- domain.Fill{
			Symbol:   msg.Symbol,
			Side:     side,
			Quantity: msg.Quantity,
			Price:    msg.Price,
			Time:     time.Unix(msg.Time, 0).UTC(),
			OrderID:  msg.OrderID,
		}
	}
}

func (s *fillStream) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
