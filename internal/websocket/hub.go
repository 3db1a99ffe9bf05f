package websocket

import (
	"sync"

	"tutor-match/internal/events"
)

// Hub tracks live clients and the realtime groups they are joined to.
// Every operation is synchronous; callers never wait on a run loop.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// groups maps group name to the set of joined clients
	groups map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client and joins it to its own user group.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.join(client, events.UserGroup(client.UserID))
}

// Unregister is the disconnect path: the client leaves every group and its send queue closes.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for _, group := range client.Groups() {
		h.leave(client, group)
	}
	delete(h.clients, client.ID)
	client.closeSend()
}

func (h *Hub) Join(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	h.join(client, group)
}

func (h *Hub) Leave(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(client, group)
}

// Broadcast enqueues payload for every member of group and returns how many accepted it.
// Members with a full queue miss the frame; they recover through history on reconnect.
func (h *Hub) Broadcast(group string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.groups[group] {
		if c.SendMessage(payload) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}

func (h *Hub) join(client *Client, group string) {
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[client] = struct{}{}

	client.mu.Lock()
	client.groups[group] = struct{}{}
	client.mu.Unlock()
}

func (h *Hub) leave(client *Client, group string) {
	if members, ok := h.groups[group]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}

	client.mu.Lock()
	delete(client.groups, group)
	client.mu.Unlock()
}
