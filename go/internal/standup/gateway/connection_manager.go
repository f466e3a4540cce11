package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrSendBufferFull   = errors.New("connection send buffer full")
	ErrConnectionClosed = errors.New("connection closed")
)

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	ValidateTimeout time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		ValidateTimeout: 10 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			// the activity runs inside the Discord client's proxied iframe
			return true
		},
	}
}

// Connection is one participant's WebSocket. Send and close are only called
// from the hub goroutine; the pumps own the socket reads and writes.
type Connection struct {
	id         string
	instanceID string
	conn       *websocket.Conn
	send       chan []byte
	hub        *Hub
	config     ConnectionConfig
	closed     bool
	opened     time.Time
}

func newConnection(conn *websocket.Conn, instanceID string, hub *Hub, config ConnectionConfig) *Connection {
	size := config.SendBufferSize
	if size <= 0 {
		size = 256
	}
	return &Connection{
		id:         uuid.New().String(),
		instanceID: instanceID,
		conn:       conn,
		send:       make(chan []byte, size),
		hub:        hub,
		config:     config,
		opened:     time.Now(),
	}
}

// ID returns the connection id
func (c *Connection) ID() string {
	return c.id
}

// Uptime is how long the socket has been connected as of now
func (c *Connection) Uptime(now time.Time) time.Duration {
	return now.Sub(c.opened)
}

// InstanceID returns the session this connection belongs to
func (c *Connection) InstanceID() string {
	return c.instanceID
}

// Send queues data for the write pump without blocking. A full buffer means
// the client is slow or dead, so the socket is closed and the read pump detaches it.
func (c *Connection) Send(data []byte) error {
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		log.Warn().
			Str("connection_id", c.id).
			Str("instance_id", c.instanceID).
			Msg("connection send buffer full, closing connection")
		c.conn.Close()
		return ErrSendBufferFull
	}
}

// close stops the write pump; safe to call more than once
func (c *Connection) close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump forwards client messages to the hub in the order they arrive and
// detaches the connection when the socket closes.
func (c *Connection) readPump() {
	defer func() {
		c.hub.Detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		if !c.hub.Deliver(c, message) {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
}
