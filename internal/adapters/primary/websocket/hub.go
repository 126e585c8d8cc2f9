package websocket

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/lorrc/support-engine/internal/core/domain"
	"github.com/lorrc/support-engine/internal/core/ports"
)

// Hub is the in-memory connection registry. It indexes every live client by
// owning user and by role and fans events out to them. Delivery is
// best-effort: a client whose send buffer is full is treated as dead and
// removed, so one slow peer never stalls delivery to the rest.
type Hub struct {
	// clients maps user IDs to their active connections.
	// A single user can have multiple connections (multiple tabs/devices).
	clients map[uuid.UUID]map[*Client]bool

	// roles maps each role to the connections registered under it.
	roles map[domain.Role]map[*Client]bool

	// channels tracks explicit subscription channels per client. Events are
	// fanned out by user and role only; subscriptions are protocol
	// bookkeeping surfaced through Stats.
	channels map[string]map[*Client]bool

	// mu protects the three registry maps.
	mu sync.RWMutex

	logger *slog.Logger
}

// Ensure Hub implements the NotificationGateway interface.
var _ ports.NotificationGateway = (*Hub)(nil)

// NewHub creates a new WebSocket hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:  make(map[uuid.UUID]map[*Client]bool),
		roles:    make(map[domain.Role]map[*Client]bool),
		channels: make(map[string]map[*Client]bool),
		logger:   logger.With("component", "websocket_hub"),
	}
}

// Connect registers a client under its user and role and acknowledges the
// connection on the wire.
func (h *Hub) Connect(client *Client) {
	h.mu.Lock()
	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true

	if h.roles[client.Role] == nil {
		h.roles[client.Role] = make(map[*Client]bool)
	}
	h.roles[client.Role][client] = true
	total := len(h.clients[client.UserID])
	h.mu.Unlock()

	client.enqueue(domain.Event{Type: domain.EventConnected})

	h.logger.Info("client connected",
		"user_id", client.UserID,
		"role", client.Role,
		"user_connections", total,
	)
}

// Disconnect removes a client from every index and closes its send channel.
// Safe to call more than once for the same client.
func (h *Hub) Disconnect(client *Client) {
	h.mu.Lock()

	if userClients, ok := h.clients[client.UserID]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.clients, client.UserID)
		}
	}

	if roleClients, ok := h.roles[client.Role]; ok {
		delete(roleClients, client)
		if len(roleClients) == 0 {
			delete(h.roles, client.Role)
		}
	}

	for _, channel := range client.Channels() {
		if subscribers, ok := h.channels[channel]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.channels, channel)
			}
		}
	}

	h.mu.Unlock()

	client.CloseSend()

	h.logger.Info("client disconnected", "user_id", client.UserID)
}

// SendToUser delivers an event to every connection owned by the user.
func (h *Hub) SendToUser(userID uuid.UUID, event domain.Event) {
	h.mu.RLock()
	targets := collectClients(h.clients[userID])
	h.mu.RUnlock()

	h.deliver(targets, event)
}

// SendToRole delivers an event to every connection registered under the role.
func (h *Hub) SendToRole(role domain.Role, event domain.Event) {
	h.mu.RLock()
	targets := collectClients(h.roles[role])
	h.mu.RUnlock()

	h.deliver(targets, event)
}

// Broadcast delivers an event to every connected client regardless of role.
func (h *Hub) Broadcast(event domain.Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, userClients := range h.clients {
		for client := range userClients {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	h.deliver(targets, event)
}

// deliver queues the event on each target. A client that cannot accept the
// event is removed from the registry; delivery to the remaining targets
// continues unaffected.
func (h *Hub) deliver(targets []*Client, event domain.Event) {
	for _, client := range targets {
		if !client.enqueue(event) {
			h.logger.Warn("client send buffer full, disconnecting",
				"user_id", client.UserID,
				"event_type", event.Type,
			)
			h.Disconnect(client)
		}
	}
}

// subscribe adds a client to a channel.
func (h *Hub) subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][client] = true
	client.addChannel(channel)

	h.logger.Debug("client subscribed",
		"user_id", client.UserID,
		"channel", channel,
	)
}

// unsubscribe removes a client from a channel.
func (h *Hub) unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
	client.removeChannel(channel)
}

// Stats describes the current registry occupancy.
type Stats struct {
	Connections int            `json:"connections"`
	Users       int            `json:"users"`
	ByRole      map[string]int `json:"byRole"`
	Channels    int            `json:"channels"`
}

// Stats returns a snapshot of the registry occupancy.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{
		Users:    len(h.clients),
		ByRole:   make(map[string]int, len(h.roles)),
		Channels: len(h.channels),
	}
	for _, userClients := range h.clients {
		stats.Connections += len(userClients)
	}
	for role, roleClients := range h.roles {
		stats.ByRole[string(role)] = len(roleClients)
	}
	return stats
}

// IsUserConnected reports whether a user has any active connection.
func (h *Hub) IsUserConnected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.clients[userID]
	return ok && len(clients) > 0
}

func collectClients(set map[*Client]bool) []*Client {
	if len(set) == 0 {
		return nil
	}
	clients := make([]*Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	return clients
}
