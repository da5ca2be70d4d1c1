// Package feed connects to the upstream event gateway over WebSocket and turns
// its frames into raw events for the pipeline.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"avm-dex-stream/internal/classify"
	"avm-dex-stream/internal/domain"
)

// Config configures the upstream feed client.
type Config struct {
	// URL is the gateway WebSocket endpoint.
	URL string
	// Protocols filters the subscription; empty subscribes to all.
	Protocols []domain.DEXProtocol
	// States filters the subscription; empty subscribes to both.
	States []domain.TxState

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	HandshakeTimeout  time.Duration

	// Buffer is the event channel capacity; bursts beyond it apply
	// backpressure to the reader.
	Buffer int

	// OnReconnect is called once per reconnect attempt.
	OnReconnect func()
	// OnDecodeError is called for each frame that fails to decode.
	OnDecodeError func()
}

func (c *Config) applyDefaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 1 * time.Second
	}
	if c.MaxReconnectDelay <= 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.Buffer <= 0 {
		c.Buffer = 10000
	}
}

// subscribeRequest is the gateway subscription envelope.
type subscribeRequest struct {
	Op        string               `json:"op"`
	Protocols []domain.DEXProtocol `json:"protocols,omitempty"`
	States    []domain.TxState     `json:"states,omitempty"`
	FromRound uint64               `json:"from_round,omitempty"`
	ToRound   uint64               `json:"to_round,omitempty"`
}

// Client maintains one gateway connection with automatic reconnect and
// resubscription. Received frames are decoded and delivered on Events.
type Client struct {
	cfg Config
	log zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	closed       atomic.Bool
	reconnecting atomic.Bool

	out  chan classify.RawEvent
	done chan struct{}
	wg   sync.WaitGroup
}

// Connect dials the gateway, subscribes and starts the read and ping loops.
func Connect(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	cfg.applyDefaults()

	c := &Client{
		cfg:  cfg,
		log:  log.With().Str("component", "feed").Logger(),
		out:  make(chan classify.RawEvent, cfg.Buffer),
		done: make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	if err := c.subscribe(); err != nil {
		c.closeConn()
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// Events is the decoded event stream. It is closed when the client closes.
func (c *Client) Events() <-chan classify.RawEvent {
	return c.out
}

// Close shuts the connection down and waits for the loops to exit.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.out)
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

func (c *Client) subscribe() error {
	req := subscribeRequest{
		Op:        "subscribe",
		Protocols: c.cfg.Protocols,
		States:    c.cfg.States,
	}
	return c.writeJSON(req)
}

func (c *Client) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	delay := c.cfg.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(delay)
			}

			delay *= 2
			if delay > c.cfg.MaxReconnectDelay {
				delay = c.cfg.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		delay = c.cfg.ReconnectDelay

		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message []byte) {
	var ev classify.RawEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		c.log.Warn().Err(err).Msg("drop undecodable frame")
		if c.cfg.OnDecodeError != nil {
			c.cfg.OnDecodeError()
		}
		return
	}
	if ev.ID.TxID == "" {
		// Control frames (subscription acks, heartbeats) have no identity.
		return
	}

	select {
	case c.out <- ev:
	case <-c.done:
	}
}

func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	c.log.Warn().Dur("delay", delay).Msg("upstream connection lost, reconnecting")
	if c.cfg.OnReconnect != nil {
		c.cfg.OnReconnect()
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.log.Error().Err(err).Msg("reconnect failed")
		return
	}
	if err := c.subscribe(); err != nil {
		c.log.Error().Err(err).Msg("resubscribe failed")
		c.closeConn()
		return
	}

	c.log.Info().Msg("upstream connection restored")
}

func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			if conn != nil {
				conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.log.Debug().Err(err).Msg("ping failed")
				}
			}
			c.connMu.Unlock()
		}
	}
}
