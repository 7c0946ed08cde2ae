package policy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/hlynr/interceptor/pkg/streaming"
)

const (
	sendChSize   = 1024
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 5 * time.Second
)

// connection manages a WebSocket connection to the policy server with
// a single write goroutine. Inbound envelopes are routed to onMessage
// from the read goroutine.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL string
	token string

	// Cached hello message for reconnect replay.
	cachedHello []byte

	onMessage func(streaming.Envelope)
	logger    *slog.Logger
}

func newConnection(onMessage func(streaming.Envelope), logger *slog.Logger) *connection {
	return &connection{
		sendCh:    make(chan []byte, sendChSize),
		done:      make(chan struct{}),
		onMessage: onMessage,
		logger:    logger,
	}
}

// dial connects to the policy server and starts the read/write loops.
func (c *connection) dial(rawURL, token string) error {
	c.wsURL = rawURL
	c.token = token

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	return nil
}

// dialOnce performs a single WebSocket dial with the token query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid policy URL: %w", err)
	}
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("policy dial failed: %w", err)
	}
	return conn, nil
}

// setHello caches the session hello for replay after a reconnect.
func (c *connection) setHello(data []byte) {
	c.mu.Lock()
	c.cachedHello = data
	c.mu.Unlock()
}

// writeLoop drains sendCh and writes frames to the WebSocket. Only one
// writeLoop runs at a time; it returns on error or shutdown.
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

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Policy SetWriteDeadline error", "error", err)
				go c.reconnect()
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("Policy write error", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

// readLoop reads envelopes from the server and hands them to the
// message callback.
func (c *connection) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("Policy read error", "error", err)
			go c.reconnect()
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Malformed policy message dropped", "raw", string(message))
			continue
		}
		if c.onMessage != nil {
			c.onMessage(env)
		}
	}
}

// reconnect re-establishes the connection with exponential backoff. On
// success it replays the cached hello and restarts the loops.
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

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.logger.Info("Reconnecting to policy server", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Policy reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		cached := c.cachedHello
		c.mu.Unlock()

		// Replay hello so the server knows which session resumed.
		if cached != nil {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set deadline for hello replay", "error", err)
				_ = conn.Close()
				continue
			}
			if err := conn.WriteMessage(ws.TextMessage, cached); err != nil {
				c.logger.Warn("Failed to replay hello after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("Policy server reconnected", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop()
		return
	}

	c.logger.Error("Policy reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send pushes a frame to the write loop. Non-blocking; drops if the
// channel is full, since a missed observation is recoverable.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("Policy send channel full, dropping frame")
	}
}

// close sends a close frame and shuts down all goroutines.
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
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
