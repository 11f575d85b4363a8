package ws

import (
	"context"
	"encoding/json"
	"sync"

	"zapline/backend/pkg/logger"
)

// PresenceTracker is notified as users connect and disconnect. A user with
// multiple connections stays online until the last one goes away.
type PresenceTracker interface {
	Online(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
}

// Hub owns the connection registry: which clients exist, which rooms they
// have joined, and which clients belong to each user. All maps are guarded
// by a single mutex; the hub never blocks on client I/O because outbound
// writes only enqueue onto buffered channels.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]bool
	rooms       map[string]map[*Client]bool
	clientRooms map[*Client]map[string]bool
	userClients map[string]map[*Client]bool

	presence PresenceTracker
	metrics  *Metrics
	log      *logger.Logger
}

func NewHub(presence PresenceTracker, metrics *Metrics, log *logger.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
		clientRooms: make(map[*Client]map[string]bool),
		userClients: make(map[string]map[*Client]bool),
		presence:    presence,
		metrics:     metrics,
		log:         log,
	}
}

// Register adds a client to the registry.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	if h.userClients[client.UserID] == nil {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true
	firstConnection := len(h.userClients[client.UserID]) == 1
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	if h.presence != nil && firstConnection {
		if err := h.presence.Online(context.Background(), client.UserID); err != nil {
			h.log.Warn("presence update failed", "user_id", client.UserID, "error", err)
		}
	}
	h.log.Info("client connected", "user_id", client.UserID)
}

// Unregister removes a client from the registry and every room it joined,
// and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)

	for room := range h.clientRooms[client] {
		delete(h.rooms[room], client)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.clientRooms, client)

	delete(h.userClients[client.UserID], client)
	lastConnection := len(h.userClients[client.UserID]) == 0
	if lastConnection {
		delete(h.userClients, client.UserID)
	}
	h.mu.Unlock()

	client.closeSend()

	h.metrics.ConnectionClosed()
	if h.presence != nil && lastConnection {
		if err := h.presence.Offline(context.Background(), client.UserID); err != nil {
			h.log.Warn("presence update failed", "user_id", client.UserID, "error", err)
		}
	}
	h.log.Info("client disconnected", "user_id", client.UserID)
}

// Join subscribes the client to a room.
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	if h.clientRooms[client] == nil {
		h.clientRooms[client] = make(map[string]bool)
	}
	h.clientRooms[client][room] = true
}

// Leave unsubscribes the client from a room.
func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], client)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	delete(h.clientRooms[client], room)
}

// BroadcastRoom sends an event to every client joined to the room.
func (h *Hub) BroadcastRoom(room string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("event marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.deliver(client, payload)
	}
}

// NotifyUsers sends an event to every connection of the given users,
// regardless of room membership.
func (h *Hub) NotifyUsers(userIDs []string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("event marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	var targets []*Client
	seen := make(map[*Client]bool)
	for _, userID := range userIDs {
		for client := range h.userClients[userID] {
			if !seen[client] {
				seen[client] = true
				targets = append(targets, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.deliver(client, payload)
	}
}

// SendTo sends an event to a single client.
func (h *Hub) SendTo(client *Client, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("event marshal failed", "error", err)
		return
	}
	h.deliver(client, payload)
}

// deliver enqueues the payload without blocking. A client that cannot keep
// up loses the event and gets disconnected so it can resync on reconnect.
func (h *Hub) deliver(client *Client, payload []byte) {
	if client.enqueue(payload) == enqueueFull {
		h.metrics.EventDropped()
		h.log.Warn("send buffer full, disconnecting client", "user_id", client.UserID)
		h.Unregister(client)
	}
}

// InRoom reports whether the client is currently joined to the room.
func (h *Hub) InRoom(client *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientRooms[client][room]
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every registered client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.Unregister(client)
	}
}
