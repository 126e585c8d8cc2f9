package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lorrc/support-engine/internal/core/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// Outbound buffer per connection.
	sendBufferSize = 256
)

// Client is a middleman between one websocket connection and the hub. It
// carries the (userId, role) pair established by the auth layer during the
// handshake.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound events.
	send chan domain.Event

	// Identity resolved before the connection reached the hub.
	UserID uuid.UUID
	Role   domain.Role

	// channels holds explicit subscriptions, guarded by mu.
	channels map[string]bool
	mu       sync.RWMutex

	// sendMu and closed guard the send channel against enqueue-after-close.
	sendMu sync.RWMutex
	closed bool

	logger *slog.Logger
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, role domain.Role, logger *slog.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan domain.Event, sendBufferSize),
		UserID:   userID,
		Role:     role,
		channels: make(map[string]bool),
		logger:   logger.With("user_id", userID.String(), "role", string(role)),
	}
}

// enqueue attempts a non-blocking send to the client's buffer. It returns
// false when the buffer is full or the channel is already closed; the caller
// decides what that means for the client.
func (c *Client) enqueue(event domain.Event) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// CloseSend closes the send channel exactly once.
func (c *Client) CloseSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) addChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = true
}

func (c *Client) removeChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, channel)
}

// Channels returns a copy of the client's explicit subscriptions.
func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	channels := make([]string, 0, len(c.channels))
	for channel := range c.channels {
		channels = append(channels, channel)
	}
	return channels
}

// ReadPump pumps control messages from the websocket connection. It blocks
// waiting on the peer without holding up any other connection, and tears the
// client down on transport close. Runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump pumps events from the hub to the websocket connection and keeps
// the transport alive with periodic pings. Runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.writeJSON(event); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// writeJSON writes one event as a JSON text message.
func (c *Client) writeJSON(event domain.Event) error {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(w).Encode(event); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// --- Incoming Message Handling ---

// ClientMessage is the structure for control messages sent by the client.
type ClientMessage struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// handleIncomingMessage processes control messages received from the client.
func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		return
	}

	switch msg.Type {
	case "ping":
		// Application-level keep-alive, echo the client's timestamp back.
		c.sendPong(msg.Timestamp)

	case "subscribe":
		if msg.Channel == "" {
			c.logger.Warn("subscribe without channel")
			return
		}
		c.hub.subscribe(c, msg.Channel)

	case "unsubscribe":
		if msg.Channel == "" {
			return
		}
		c.hub.unsubscribe(c, msg.Channel)

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

func (c *Client) sendPong(echoed json.RawMessage) {
	event := domain.Event{Type: domain.EventPong}
	if len(echoed) > 0 {
		event.Data = map[string]json.RawMessage{"timestamp": echoed}
	}
	if !c.enqueue(event) {
		c.logger.Debug("send buffer full, dropping pong")
	}
}
