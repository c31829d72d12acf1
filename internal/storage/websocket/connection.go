package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/sentry/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	sendChSize     = 10_000
	ackChSize      = 16
	maxReconnect   = 10
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	writeWait      = 10 * time.Second
	ackTimeout     = 10 * time.Second
)

// connection manages a WebSocket connection with a single write goroutine
// per dialed socket.
type connection struct {
	mu           sync.Mutex
	conn         *ws.Conn
	connStop     chan struct{} // closed when conn is replaced
	reconnecting bool
	sendCh       chan []byte
	ackCh        chan streaming.AckMessage
	done         chan struct{} // closed on shutdown
	closed       bool
	dropped      atomic.Uint64

	wsURL   string
	secret  string
	backoff time.Duration

	// Cached start_session message for reconnect replay.
	cachedStart []byte

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:  make(chan []byte, sendChSize),
		ackCh:   make(chan streaming.AckMessage, ackChSize),
		done:    make(chan struct{}),
		backoff: initialBackoff,
		logger:  logger,
	}
}

// dial connects to the server and starts the socket's read and write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

// dialOnce dials once with the secret as a query parameter.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// attach makes conn the live socket. It returns false, closing conn, when
// the connection has already shut down.
func (c *connection) attach(conn *ws.Conn) bool {
	stop := make(chan struct{})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}
	c.conn = conn
	c.connStop = stop
	c.mu.Unlock()

	go c.writeLoop(conn, stop)
	go c.readLoop(conn, stop)
	return true
}

// detach stops the live socket's loops and closes it.
func (c *connection) detach() {
	if c.connStop != nil {
		close(c.connStop)
		c.connStop = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func writeFrame(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// fail schedules a reconnect unless stop says the socket was replaced or the
// connection is shutting down.
func (c *connection) fail(stop chan struct{}) {
	select {
	case <-c.done:
	case <-stop:
	default:
		go c.reconnect()
	}
}

// writeLoop is the only writer of data frames on conn.
func (c *connection) writeLoop(conn *ws.Conn, stop chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.sendCh:
			if err := writeFrame(conn, data); err != nil {
				c.logger.Warn("WebSocket write failed", "error", err)
				c.fail(stop)
				return
			}
		}
	}
}

// readLoop routes acks to ackCh and ignores anything else.
func (c *connection) readLoop(conn *ws.Conn, stop chan struct{}) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug("WebSocket read loop ended", "error", err)
			c.fail(stop)
			return
		}

		var ack streaming.AckMessage
		if json.Unmarshal(message, &ack) != nil || ack.Type != streaming.TypeAck {
			continue
		}
		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	return min(2*d, maxBackoff)
}

// reconnect redials with exponential backoff. A new socket first receives
// the cached start_session frame, then takes over the send queue.
func (c *connection) reconnect() {
	c.mu.Lock()
	if c.closed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.detach()
	cached := c.cachedStart
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	for attempt, backoff := 1, c.backoff; attempt <= maxReconnect; attempt, backoff = attempt+1, nextBackoff(backoff) {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect failed", "attempt", attempt, "backoff", backoff, "error", err)
			continue
		}
		if cached != nil {
			if err := writeFrame(conn, cached); err != nil {
				c.logger.Warn("start_session replay failed", "attempt", attempt, "error", err)
				_ = conn.Close()
				continue
			}
		}
		if c.attach(conn) {
			c.logger.Info("WebSocket reconnected", "attempt", attempt)
		}
		return
	}

	c.logger.Error("WebSocket reconnect gave up", "attempts", maxReconnect)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.dropped.Add(1)
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// sendAndWait sends data and blocks until the server acknowledges with a
// matching ack message or the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
			// Not our ack, keep waiting.
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
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
