// Package ws is the WebSocket transport adapter: it upgrades authenticated
// requests, relays chat messages between connections in the same chat, and
// supervises each connection against the session store for its lifetime.
package ws

import (
	"context"
	"log/slog"
)

type envelope struct {
	chatID string
	data   []byte
}

// Hub routes messages between clients grouped by chat ID. All membership
// mutation happens on the Run goroutine, so the maps need no locks.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope

	chats  map[string]map[*Client]struct{}
	logger *slog.Logger
}

// NewHub creates a hub. Call Run before registering clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 64),
		chats:      make(map[string]map[*Client]struct{}),
		logger:     logger,
	}
}

// Run processes membership changes and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			members, ok := h.chats[c.chatID]
			if !ok {
				members = make(map[*Client]struct{})
				h.chats[c.chatID] = members
			}
			members[c] = struct{}{}
			h.logger.Debug("client joined chat",
				"chat_id", c.chatID, "connection_id", c.id, "members", len(members))

		case c := <-h.unregister:
			if members, ok := h.chats[c.chatID]; ok {
				if _, present := members[c]; present {
					delete(members, c)
					close(c.send)
					if len(members) == 0 {
						delete(h.chats, c.chatID)
					}
				}
			}

		case env := <-h.broadcast:
			for c := range h.chats[env.chatID] {
				select {
				case c.send <- env.data:
				default:
					// Slow consumer: drop it rather than stall the chat.
					delete(h.chats[env.chatID], c)
					close(c.send)
				}
			}
		}
	}
}

// Register adds a client to its chat.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a client from its chat and closes its send channel.
// Safe to call for a client that was already removed.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Broadcast delivers data to every client in the chat.
func (h *Hub) Broadcast(chatID string, data []byte) {
	h.broadcast <- envelope{chatID: chatID, data: data}
}
