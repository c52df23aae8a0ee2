package websocket

import (
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendChSize   = 1024
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second

	// log one of every dropLogEvery dropped messages
	dropLogEvery = 100
)

// connection owns the socket to the viewer. writeLoop is its only writer.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	closed bool

	wsURL  string
	secret string

	hello          []byte
	initialBackoff time.Duration
	dropped        atomic.Uint64

	logger zerolog.Logger
}

func newConnection(logger zerolog.Logger) *connection {
	return &connection{
		sendCh:         make(chan []byte, sendChSize),
		done:           make(chan struct{}),
		initialBackoff: time.Second,
		logger:         logger,
	}
}

// dial connects to the viewer and starts the read and write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop(conn)

	return nil
}

// dialOnce dials the viewer once, passing the secret as a query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh. A failed write triggers a reconnect; the message
// that failed is not retried.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}
			if err := write(conn, data); err != nil {
				c.logger.Warn().Err(err).Msg("WebSocket write error")
				c.reconnect()
			}
		}
	}
}

func write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readLoop drains incoming messages so control frames are processed. When
// the peer goes away it closes the conn so the next write reconnects.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.mu.Lock()
			current := c.conn == conn
			c.mu.Unlock()
			if current {
				c.logger.Warn().Err(err).Msg("WebSocket read error")
				_ = conn.Close()
			}
			return
		}
		c.logger.Trace().Str("raw", string(message)).Msg("Viewer message ignored")
	}
}

// reconnect redials with exponential backoff, replays the session_start
// message and starts a read loop for the new conn. Only writeLoop calls it.
func (c *connection) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := c.initialBackoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info().Int("attempt", attempt).Dur("backoff", backoff).Msg("Reconnecting to WebSocket")
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Reconnect dial failed")
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		hello := c.hello
		c.mu.Unlock()

		if hello != nil {
			if err := write(conn, hello); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to replay session_start after reconnect")
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info().Int("attempt", attempt).Msg("WebSocket reconnected")
		go c.readLoop(conn)
		return
	}

	c.logger.Error().Int("maxAttempts", maxReconnect).Msg("WebSocket reconnect failed after max attempts")
}

// send queues data for the write loop without blocking. It returns false
// when the queue is full and the message was dropped.
func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		if n := c.dropped.Add(1); n%dropLogEvery == 1 {
			c.logger.Warn().Uint64("dropped", n).Msg("Viewer too slow, dropping messages")
		}
		return false
	}
}

// setHello sets the message replayed after every reconnect.
func (c *connection) setHello(data []byte) {
	c.mu.Lock()
	c.hello = data
	c.mu.Unlock()
}

// close sends a close frame and stops both loops. Safe to call twice.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
