package network

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendQueueSize = 256
	writeTimeout  = 10 * time.Second
)

// ErrSendQueueFull is returned when a client stops draining its outbound
// queue; the connection is dropped rather than blocking the caller.
var ErrSendQueueFull = errors.New("send queue full, connection dropped")

// ErrConnectionClosed is returned by SendMessage after Shutdown.
var ErrConnectionClosed = errors.New("connection closed")

// Connection wraps a WebSocket connection with a buffered outbound queue.
// One writer goroutine (WritePump) drains the queue; the read loop runs on
// the connection's own goroutine.
type Connection struct {
	ws *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewConnection creates a new connection wrapper.
func NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
	}
}

// RemoteAddr returns the peer's network address as a string.
func (c *Connection) RemoteAddr() string {
	if addr := c.ws.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// SetReadTimeout arms a deadline for the next reads; zero clears it.
// Used during the login handshake, which is the only phase with a timeout.
func (c *Connection) SetReadTimeout(d time.Duration) {
	if d <= 0 {
		_ = c.ws.SetReadDeadline(time.Time{})
		return
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(d))
}

// Close tears down the underlying socket, unblocking both pumps.
func (c *Connection) Close() {
	_ = c.ws.Close()
}

// Shutdown stops accepting outbound messages and lets WritePump drain what
// is already queued before closing the socket. Safe to call more than once.
func (c *Connection) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// MessageHandler receives each inbound frame from ReadPump.
type MessageHandler interface {
	HandleMessage(conn *Connection, message []byte)
}

// ReadPump reads frames from the socket and hands them to h one at a time.
// It returns when the connection fails, times out, or is closed; frames are
// handled synchronously, so a single connection has no internal concurrency.
func (c *Connection) ReadPump(h MessageHandler) {
	defer c.ws.Close()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("network: read error: %v", err)
			}
			return
		}
		h.HandleMessage(c, message)
	}
}

// WritePump drains the send queue onto the socket.
func (c *Connection) WritePump() {
	defer c.ws.Close()

	for message := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
}

// SendMessage marshals msg and queues it for delivery.
func (c *Connection) SendMessage(msg any) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- raw:
		return nil
	default:
		c.ws.Close()
		return ErrSendQueueFull
	}
}
