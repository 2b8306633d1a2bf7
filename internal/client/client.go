// Package client implements the meeting client's side of the
// signaling channel: the websocket connection with reconnect, and the
// typed event handler.
package client

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meetmesh/meetmesh/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// Transport drops are retried with a bounded linear backoff
	// before the channel gives up for good.
	maxReconnectAttempts = 5
	reconnectDelay       = time.Second
)

// Channel manages the WebSocket connection to the signaling server.
type Channel struct {
	serverURL string

	mu   sync.Mutex
	conn *websocket.Conn

	incoming    chan *signaling.Message
	outgoing    chan *signaling.Message
	reconnected chan struct{}
	done        chan struct{}
	closed      bool
}

// NewChannel creates a new signaling channel for the given server URL.
func NewChannel(serverURL string) *Channel {
	return &Channel{
		serverURL:   serverURL,
		incoming:    make(chan *signaling.Message, 32),
		outgoing:    make(chan *signaling.Message, 32),
		reconnected: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the pumps.
func (c *Channel) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.setConn(conn)

	go c.readPump()
	go c.writePump()

	return nil
}

func (c *Channel) setConn(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Channel) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Channel) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// readPump reads messages from the connection, reconnecting with
// bounded retries when the transport drops.
func (c *Channel) readPump() {
	defer close(c.incoming)

	for {
		conn := c.current()

		var msg signaling.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if c.isClosed() {
				return
			}
			if !c.reconnect() {
				return
			}
			continue
		}

		c.incoming <- &msg
	}
}

// reconnect redials the server with linear backoff. On success the
// session is notified so it can re-join its rooms; the server treated
// the drop as a disconnect and cleaned up.
func (c *Channel) reconnect() bool {
	c.current().Close()

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		select {
		case <-c.done:
			return false
		case <-time.After(time.Duration(attempt) * reconnectDelay):
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.serverURL, nil)
		if err != nil {
			slog.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		c.setConn(conn)
		select {
		case c.reconnected <- struct{}{}:
		default:
		}
		slog.Info("signaling channel reconnected", "attempt", attempt)
		return true
	}
	return false
}

// writePump writes outbound messages and sends periodic pings.
func (c *Channel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.current().Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			conn := c.current()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message); err != nil {
				// The read side owns reconnects; this message is
				// lost. Best-effort relay.
				slog.Warn("signaling write failed", "error", err)
			}

		case <-ticker.C:
			conn := c.current()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.PingMessage, nil)

		case <-c.done:
			conn := c.current()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// SendMessage queues a message for the server.
func (c *Channel) SendMessage(msg *signaling.Message) {
	select {
	case c.outgoing <- msg:
	case <-c.done:
	}
}

// Incoming returns the channel of inbound messages. It is closed when
// the connection is gone for good.
func (c *Channel) Incoming() <-chan *signaling.Message {
	return c.incoming
}

// Reconnected signals each successful transport reconnect.
func (c *Channel) Reconnected() <-chan struct{} {
	return c.reconnected
}

// Close tears the channel down. Safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
