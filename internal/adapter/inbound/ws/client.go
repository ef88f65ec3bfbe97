package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second
	// pongWait is how long the peer may stay silent before the read side
	// gives up. Pings go out at pingPeriod to keep a healthy peer inside it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize caps inbound chat messages.
	maxMessageSize = 4096
	// sendBuffer is the per-client outbound queue. A client that falls this
	// far behind is dropped by the hub.
	sendBuffer = 32
)

// Message is the chat payload relayed between clients.
type Message struct {
	ChatID   string    `json:"chat_id"`
	SenderID string    `json:"sender_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// Client is one live WebSocket connection. The read pump runs on the
// handler goroutine, the write pump and supervisor on their own; cancel
// tears all three down.
type Client struct {
	id        string
	subjectID string
	sessionID string
	chatID    string

	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	cancel context.CancelFunc
	logger *slog.Logger
}

func newClient(conn *websocket.Conn, hub *Hub, subjectID, sessionID, chatID string, cancel context.CancelFunc, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:        id,
		subjectID: subjectID,
		sessionID: sessionID,
		chatID:    chatID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		hub:       hub,
		cancel:    cancel,
		logger:    logger.With("connection_id", id, "subject_id", subjectID),
	}
}

// closeWith sends a close frame with the given code and closes the socket.
// Control writes are safe concurrently with the write pump.
func (c *Client) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("close frame write failed", "error", err)
	}
	_ = c.conn.Close()
}

// readPump relays inbound text messages to the client's chat until the peer
// disconnects or the connection is torn down. Blocks; run it on the handler
// goroutine.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Debug("read error", "error", err)
			}
			return
		}

		msg := Message{
			ChatID:   c.chatID,
			SenderID: c.subjectID,
			Body:     string(raw),
			SentAt:   time.Now().UTC(),
		}
		data, err := json.Marshal(msg)
		if err != nil {
			c.logger.Error("message encode failed", "error", err)
			continue
		}
		c.hub.Broadcast(c.chatID, data)
	}
}

// writePump forwards hub messages to the peer and keeps the connection
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub dropped us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
