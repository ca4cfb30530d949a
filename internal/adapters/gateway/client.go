// Package gateway talks to the local broker bridge sidecar that fronts the
// real venue session (historical bars, account state, bracket submission,
// execution stream). The bridge keeps venue auth out of this process; we
// speak plain JSON over HTTP plus one websocket for fills.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/domain"
	"golang.org/x/time/rate"
)

const (
	// Historical bars are the hot endpoint: guard + features every cycle.
	// Keep well under the bridge's pacing limit.
	barsRatePerSec = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is the HTTP side of the bridge connection. The websocket fill
// stream lives in stream.go; Connect wires both.
type Client struct {
	http           *http.Client
	base           string
	wsURL          string
	fallbackEquity float64
	barsLimiter    *rate.Limiter

	mu     sync.Mutex
	stream *fillStream
	fills  chan domain.Fill
}

// New creates a Client against the given bridge base URL.
func New(base, wsURL string, fallbackEquity float64) *Client {
	return &Client{
		http:           &http.Client{Timeout: 15 * time.Second},
		base:           base,
		wsURL:          wsURL,
		fallbackEquity: fallbackEquity,
		barsLimiter:    rate.NewLimiter(barsRatePerSec, 5),
	}
}

// Connect checks bridge health and opens the fill stream. Any previous
// stream is torn down first — the connection is exclusively owned and
// reconnects never stack.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		c.stream.close()
		c.stream = nil
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, c.base+"/health", &health); err != nil {
		return fmt.Errorf("gateway.Connect: health: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("gateway.Connect: bridge not ready: %q", health.Status)
	}

	c.fills = make(chan domain.Fill, 256)
	stream, err := openFillStream(ctx, c.wsURL, c.fills)
	if err != nil {
		return fmt.Errorf("gateway.Connect: fill stream: %w", err)
	}
	c.stream = stream

	slog.Info("gateway connected", "base", c.base)
	return nil
}

// Close tears down the fill stream. The HTTP client is stateless.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		c.stream.close()
		c.stream = nil
	}
	return nil
}

// Fills returns the execution stream channel for the current connection.
// The channel closes when the websocket drops.
func (c *Client) Fills() <-chan domain.Fill {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fills
}

type barDTO struct {
	Time   int64   `json:"t"` // unix seconds
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

// Bars fetches ordered history for a symbol. Implements ports.BarProvider.
func (c *Client) Bars(ctx context.Context, symbol string, interval, lookback time.Duration) (domain.Series, error) {
	if err := c.barsLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gateway.Bars: rate limiter: %w", err)
	}

	u := fmt.Sprintf("%s/bars?symbol=%s&interval=%d&lookback=%d",
		c.base, url.QueryEscape(symbol),
		int(interval.Seconds()), int(lookback.Seconds()))

	var dtos []barDTO
	if err := c.getWithRetry(ctx, u, &dtos); err != nil {
		return nil, fmt.Errorf("gateway.Bars: %s: %w", symbol, err)
	}

	series := make(domain.Series, len(dtos))
	for i, d := range dtos {
		series[i] = domain.PriceBar{
			Time:   time.Unix(d.Time, 0).UTC(),
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: d.Volume,
		}
	}
	return series, nil
}

// Equity returns net liquidation value. On any failure it logs and returns
// the configured fallback so risk math always has a number to work with.
func (c *Client) Equity(ctx context.Context) float64 {
	var out struct {
		Equity float64 `json:"equity"`
	}
	if err := c.get(ctx, c.base+"/account/equity", &out); err != nil {
		slog.Warn("gateway: equity query failed, using fallback",
			"fallback", c.fallbackEquity, "err", err)
		return c.fallbackEquity
	}
	if out.Equity <= 0 {
		return c.fallbackEquity
	}
	return out.Equity
}

type bracketLegDTO struct {
	ID              string  `json:"id"`
	ParentID        string  `json:"parent_id,omitempty"`
	Kind            string  `json:"kind"`
	Side            string  `json:"side"`
	Quantity        int     `json:"quantity"`
	LimitPrice      float64 `json:"limit_price,omitempty"`
	TrailingPercent float64 `json:"trailing_percent,omitempty"`
	Transmit        bool    `json:"transmit"`
}

// PlaceBracket submits the three linked legs in one request. The bridge
// forwards them parent-first; the exits only go live after the parent fills.
func (c *Client) PlaceBracket(ctx context.Context, order domain.BracketOrder) error {
	legs := make([]bracketLegDTO, 0, len(order.Legs))
	for _, leg := range order.Legs {
		legs = append(legs, bracketLegDTO{
			ID:              leg.ID,
			ParentID:        leg.ParentID,
			Kind:            string(leg.Kind),
			Side:            string(leg.Side),
			Quantity:        leg.Quantity,
			LimitPrice:      leg.LimitPrice,
			TrailingPercent: leg.TrailingPercent,
			Transmit:        leg.Transmit,
		})
	}

	body := struct {
		Symbol   string          `json:"symbol"`
		ParentID string          `json:"parent_id"`
		Legs     []bracketLegDTO `json:"legs"`
	}{Symbol: order.Symbol, ParentID: order.ParentID, Legs: legs}

	var out struct {
		Accepted bool   `json:"accepted"`
		Reason   string `json:"reason"`
	}
	if err := c.post(ctx, c.base+"/orders/bracket", body, &out); err != nil {
		return fmt.Errorf("gateway.PlaceBracket: %s: %w", order.Symbol, err)
	}
	if !out.Accepted {
		return fmt.Errorf("gateway.PlaceBracket: %s: rejected by bridge: %s", order.Symbol, out.Reason)
	}
	return nil
}

// Positions returns venue-truth open quantity per symbol.
func (c *Client) Positions(ctx context.Context) (map[string]float64, error) {
	var dtos []struct {
		Symbol   string  `json:"symbol"`
		Quantity float64 `json:"quantity"`
	}
	if err := c.get(ctx, c.base+"/positions", &dtos); err != nil {
		return nil, fmt.Errorf("gateway.Positions: %w", err)
	}
	out := make(map[string]float64, len(dtos))
	for _, d := range dtos {
		if d.Quantity > 0 {
			out[d.Symbol] = d.Quantity
		}
	}
	return out, nil
}

// get does a single GET and decodes JSON. No retries — callers that can
// tolerate staleness handle failure themselves.
func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// post does a single JSON POST and decodes the response. Order submission is
// deliberately not retried — a timeout after the bridge accepted the order
// would double-submit.
func (c *Client) post(ctx context.Context, u string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(rb))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// getWithRetry retries idempotent GETs with exponential backoff on transport
// errors, 429 and 5xx.
func (c *Client) getWithRetry(ctx context.Context, u string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("gateway: retrying", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(b))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff, respecting the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
