package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pump-vision/internal/observability"
)

// ClientConfig configures WebSocket client behavior.
type ClientConfig struct {
	// ReconnectDelay is the base delay; attempt n waits n*ReconnectDelay.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts bounds consecutive failed reconnects before the
	// client gives up and reports Disconnected.
	MaxReconnectAttempts int
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
	// WriteTimeout is the per-message write deadline.
	WriteTimeout time.Duration
	// Metrics counts reconnect attempts. Nil disables instrumentation.
	Metrics *observability.Metrics
}

// DefaultClientConfig returns default WebSocket configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:       5 * time.Second,
		MaxReconnectAttempts: 5,
		PingInterval:         30 * time.Second,
		ReadTimeout:          60 * time.Second,
		WriteTimeout:         10 * time.Second,
	}
}

// subscribeMessages are sent after every (re)connect.
var subscribeMessages = []map[string]any{
	{"method": "subscribeNewToken"},
	{"method": "subscribeTokenTrades"},
}

// Client maintains the stream connection and hands raw frames to a channel.
// On transport errors it reconnects with a linearly growing delay up to
// MaxReconnectAttempts, then closes the frame channel and reports
// Disconnected.
type Client struct {
	endpoint string
	config   ClientConfig

	conn   *websocket.Conn
	connMu sync.Mutex

	frames    chan []byte
	connected atomic.Bool
	closed    atomic.Bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewClient creates a client for the endpoint. Run must be called to
// connect.
func NewClient(endpoint string, config *ClientConfig) *Client {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}
	return &Client{
		endpoint: endpoint,
		config:   cfg,
		frames:   make(chan []byte, 256),
		done:     make(chan struct{}),
	}
}

// Frames returns the raw message channel. It is closed when the client
// shuts down or exhausts its reconnect budget.
func (c *Client) Frames() <-chan []byte {
	return c.frames
}

// Connected reports current transport liveness.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run connects and pumps frames until ctx is cancelled, Close is called,
// or the reconnect budget is exhausted.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.frames)

	attempt := 0
	for {
		if err := c.connect(ctx); err != nil {
			attempt++
			if attempt > c.config.MaxReconnectAttempts {
				c.connected.Store(false)
				return fmt.Errorf("reconnect budget exhausted after %d attempts: %w", attempt-1, err)
			}
			if c.config.Metrics != nil {
				c.config.Metrics.WSReconnects.Inc()
			}
			delay := time.Duration(attempt) * c.config.ReconnectDelay
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			case <-c.done:
				return nil
			}
		}

		attempt = 0
		c.connected.Store(true)

		pingCtx, stopPing := context.WithCancel(ctx)
		c.wg.Add(1)
		go c.pingLoop(pingCtx)

		_ = c.readLoop(ctx)
		stopPing()
		c.connected.Store(false)
		c.closeConn()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.closed.Load() {
			return nil
		}
		// Transport error; fall through to reconnect. The dial-failure
		// branch owns the attempt counting.
		attempt = 0
		if c.config.Metrics != nil {
			c.config.Metrics.WSReconnects.Inc()
		}
		select {
		case <-time.After(c.config.ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		}
	}
}

// connect dials the endpoint and resubscribes.
func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	for _, msg := range subscribeMessages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal subscribe: %w", err)
		}
		if err := c.write(websocket.TextMessage, data); err != nil {
			c.closeConn()
			return fmt.Errorf("send subscribe: %w", err)
		}
	}
	return nil
}

// readLoop pumps frames into the channel until the connection breaks.
func (c *Client) readLoop(ctx context.Context) error {
	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return fmt.Errorf("connection closed")
		}

		if c.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		select {
		case c.frames <- data:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		}
	}
}

// pingLoop keeps the connection alive.
func (c *Client) pingLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}

// write sends one frame under the connection mutex.
func (c *Client) write(messageType int, data []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return c.conn.WriteMessage(messageType, data)
}

// closeConn tears down the current connection.
func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close shuts the client down: ping loop, reconnect timers and socket stop
// as a unit.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.done)
	c.closeConn()
	c.wg.Wait()
}
