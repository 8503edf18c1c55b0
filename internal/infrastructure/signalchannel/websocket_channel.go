package signalchannel

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"telecall/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options configures the relay connection for one call.
type Options struct {
	URL              string
	Token            string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	ReceiveBuffer    int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.HandshakeTimeout == 0 {
		out.HandshakeTimeout = 10 * time.Second
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = 10 * time.Second
	}
	if out.PingInterval == 0 {
		out.PingInterval = 30 * time.Second
	}
	if out.PongTimeout == 0 {
		out.PongTimeout = 60 * time.Second
	}
	if out.ReceiveBuffer == 0 {
		out.ReceiveBuffer = 32
	}
	return out
}

// WebSocketChannel is the client side of the relay protocol. One
// channel serves one call; reconnecting means a fresh channel.
type WebSocketChannel struct {
	opts   Options
	logger *zap.SugaredLogger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	recv chan domain.SignalMessage
	done chan struct{}
}

func NewWebSocketChannel(opts Options, logger *zap.SugaredLogger) *WebSocketChannel {
	o := opts.withDefaults()
	return &WebSocketChannel{
		opts:   o,
		logger: logger,
		recv:   make(chan domain.SignalMessage, o.ReceiveBuffer),
		done:   make(chan struct{}),
	}
}

// Connect dials the relay and starts the read and ping loops. It must
// be called exactly once before Send or Receive are used.
func (c *WebSocketChannel) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.HandshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	conn, resp, err := dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial relay: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial relay: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return domain.ErrChannelClosed
	}
	c.conn = conn
	c.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
		return nil
	})

	go c.readPump(conn)
	go c.pingLoop(conn)

	c.logger.Infow("connected to relay", "url", c.opts.URL)
	return nil
}

// Send marshals and writes one message. Writes are serialized because
// gorilla connections allow only one concurrent writer.
func (c *WebSocketChannel) Send(msg domain.SignalMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.conn == nil {
		return domain.ErrChannelClosed
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Receive exposes incoming messages. The channel is closed when the
// connection drops or Close is called.
func (c *WebSocketChannel) Receive() <-chan domain.SignalMessage {
	return c.recv
}

// Close shuts the connection down. Safe to call multiple times and
// before Connect.
func (c *WebSocketChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.done)

	if conn == nil {
		// Never connected; the read pump will not run, so the receive
		// channel is closed here.
		close(c.recv)
		return nil
	}

	deadline := time.Now().Add(c.opts.WriteTimeout)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

func (c *WebSocketChannel) readPump(conn *websocket.Conn) {
	defer close(c.recv)

	for {
		var msg domain.SignalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.logger.Warnw("relay connection lost", "error", err)
				}
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))

		select {
		case c.recv <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *WebSocketChannel) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			closed := c.closed
			if !closed {
				conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.mu.Unlock()
					c.logger.Warnw("ping failed", "error", err)
					return
				}
			}
			c.mu.Unlock()
			if closed {
				return
			}
		case <-c.done:
			return
		}
	}
}
