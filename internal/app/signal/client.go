package signal

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"signalhub/internal/pkg/errs"
	"signalhub/internal/pkg/logx"
	"signalhub/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	// Session descriptions with many candidates run to a few KB.
	maxMessageSize = 64 * 1024

	// sendBuffer is the number of outbound frames queued per connection.
	sendBuffer = 256
)

// Client is one WebSocket connection. It reads frames into the hub and writes
// the frames the hub delivers to it.
type Client struct {
	hub *Hub

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// handle identifies this connection to the hub and to peers.
	handle string

	// sessionID is the verified session carried over from a previous connection, if any.
	sessionID string

	// limiter bounds the rate of inbound frames.
	limiter *rate.Limiter

	// mu guards closed and sends on send.
	mu     sync.Mutex
	closed bool
	send   chan []byte

	logger zerolog.Logger
}

// NewClient wraps conn. Inbound frames are limited to r per second with burst b.
func NewClient(hub *Hub, conn *websocket.Conn, sessionID string, r rate.Limit, b int) *Client {
	handle := randx.UUID()

	return &Client{
		hub:       hub,
		conn:      conn,
		handle:    handle,
		sessionID: sessionID,
		limiter:   rate.NewLimiter(r, b),
		send:      make(chan []byte, sendBuffer),
		logger:    logx.Component("client").With().Str("socket_id", handle).Logger(),
	}
}

// Handle returns the connection handle.
func (c *Client) Handle() string {
	return c.handle
}

// Deliver queues frame for writing without blocking.
func (c *Client) Deliver(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping frame")
		return false
	}
}

// Close ends the write queue. WritePump sends a close frame and exits once it drains.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Serve registers the client with the hub and runs both pumps, returning when the
// connection is gone.
func (c *Client) Serve() error {
	if err := c.hub.Register(c.handle, c.sessionID, c); err != nil {
		c.logger.Warn().Err(err).Msg("Hub refused connection.")
		if closeErr := c.conn.Close(); closeErr != nil {
			c.logger.Error().Err(closeErr).Msg("Client connection close error")
		}
		return err
	}

	go c.WritePump()
	c.ReadPump()

	return nil
}

// ReadPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), rate limiting and frame parsing, and unregisters from
// the hub when the connection ends.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		if !c.processInboundMessage(messageBytes) {
			break
		}
	}
}

// cleanupOnDisconnect tells the hub the connection is gone and closes the socket.
func (c *Client) cleanupOnDisconnect() {
	c.hub.Unregister(c.handle)

	if err := c.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// processInboundMessage parses one frame and hands it to the hub. It returns false once
// the hub has stopped.
func (c *Client) processInboundMessage(messageBytes []byte) bool {
	if !c.limiter.Allow() {
		c.SendError(errs.NewError(errs.ErrRateLimitExceeded))
		return true
	}

	frame, err := DecodeFrame(messageBytes)
	if err != nil {
		c.logger.Warn().Err(err).Int("message_size", len(messageBytes)).Msg("Client sent invalid frame")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return true
	}

	if err := c.hub.Submit(c.handle, frame); err != nil {
		if errors.Is(err, ErrHubStopped) {
			return false
		}
		c.SendError(err)
	}

	return true
}

// SendError queues an error event for this connection.
func (c *Client) SendError(err error) {
	if frame := ErrorFrame(err); frame != nil {
		c.Deliver(frame)
	}
}

// WritePump writes queued frames to the WebSocket connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one frame, or a close frame once the queue is closed.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
