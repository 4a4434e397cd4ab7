package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub manages all active WebSocket clients, keyed by username. A user has
// at most one connection; a new connection replaces the old one.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the Hub's main event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if prev, ok := h.clients[client.username]; ok {
				close(prev.done)
			}
			h.clients[client.username] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("ws hub: %s connected (%d total)", client.username, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client.username] == client {
				delete(h.clients, client.username)
				close(client.done)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("ws hub: %s disconnected (%d total)", client.username, total)
		}
	}
}

// SendToUser delivers an event to a user's connection, if any. Events are
// dropped when the client's buffer is full.
func (h *Hub) SendToUser(username string, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return
	}

	h.mu.RLock()
	client, ok := h.clients[username]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case client.send <- data:
	default:
	}
}

// IsOnline reports whether the user has an active connection.
func (h *Hub) IsOnline(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[username]
	return ok
}
