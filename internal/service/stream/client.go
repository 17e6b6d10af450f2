package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"RiskLens/internal/domain/models"
	applogger "RiskLens/pkg/logger"
)

// Client reads trade prints from a Finnhub-compatible WebSocket feed.
type Client struct {
	url            string
	token          string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	dialer         *websocket.Dialer
	l              *applogger.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// Option configures Client.
type Option func(*Client)

// WithReconnectDelay sets the pause between reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithPingInterval sets the keepalive period.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.l = l
		}
	}
}

// New creates a feed client for symbols. token is appended as a query parameter when set.
func New(feedURL, token string, symbols []string, opts ...Option) *Client {
	c := &Client{
		url:            feedURL,
		token:          token,
		symbols:        symbols,
		reconnectDelay: 5 * time.Second,
		pingInterval:   30 * time.Second,
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		l:              applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the feed and subscribes to every symbol.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("stream url: %w", err)
	}
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	for _, s := range c.symbols {
		if err := conn.WriteJSON(map[string]string{"type": "subscribe", "symbol": s}); err != nil {
			_ = conn.Close()
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.l.Info("stream connected", applogger.String("host", u.Host), applogger.Strings("symbols", c.symbols))
	return nil
}

type wireTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wireMessage struct {
	Type string      `json:"type"`
	Data []wireTrade `json:"data"`
	Msg  string      `json:"msg"`
}

// Run streams trades into out until ctx is done, reconnecting after read failures.
// out is not closed.
func (c *Client) Run(ctx context.Context, out chan<- models.Trade) error {
	for {
		if err := c.Connect(ctx); err != nil {
			c.l.Warn("stream connect failed", applogger.Error(err), applogger.Duration("retry_in", c.reconnectDelay))
		} else {
			err = c.read(ctx, out)
			_ = c.Close()
			if ctx.Err() != nil {
				return nil
			}
			c.l.Warn("stream disconnected", applogger.Error(err), applogger.Duration("retry_in", c.reconnectDelay))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) read(ctx context.Context, out chan<- models.Trade) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("stream not connected")
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				c.mu.Unlock()
				if err != nil {
					c.l.Debug("stream ping failed", applogger.Error(err))
				}
			}
		}
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("stream read: %w", err)
		}
		trades, err := decodeTrades(b)
		if err != nil {
			c.l.Debug("stream frame skipped", applogger.Error(err))
			continue
		}
		for _, t := range trades {
			select {
			case out <- t:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// decodeTrades turns a feed frame into trades; frames other than trade batches yield none.
func decodeTrades(b []byte) ([]models.Trade, error) {
	var m wireMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	switch m.Type {
	case "trade":
	case "error":
		return nil, fmt.Errorf("feed error: %s", m.Msg)
	default:
		return nil, nil
	}
	out := make([]models.Trade, 0, len(m.Data))
	for _, d := range m.Data {
		out = append(out, models.Trade{
			Symbol: strings.ToUpper(d.S),
			Time:   time.UnixMilli(d.T).UTC(),
			Price:  d.P,
			Volume: d.V,
		})
	}
	return out, nil
}

// Close closes the current connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
