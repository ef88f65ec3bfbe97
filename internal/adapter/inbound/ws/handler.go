package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chat-gate/chatgate/internal/domain/gate"
)

// DefaultChatID is joined when the request names no chat.
const DefaultChatID = "general"

// Config holds the WebSocket handler settings.
type Config struct {
	// LivenessInterval is how often each connection's session is rechecked.
	// Default: DefaultLivenessInterval.
	LivenessInterval time.Duration
	// CheckOrigin overrides the upgrader's origin policy. Nil keeps the
	// library's same-origin default.
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades authenticated requests to WebSocket connections and
// wires each one to the hub and a session supervisor.
type Handler struct {
	gate     *gate.Gate
	hub      *Hub
	registry *Registry
	metrics  *Metrics
	upgrader websocket.Upgrader
	cfg      Config
	logger   *slog.Logger
}

// NewHandler creates the upgrade handler.
func NewHandler(g *gate.Gate, hub *Hub, registry *Registry, metrics *Metrics, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		gate:     g,
		hub:      hub,
		registry: registry,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// ServeHTTP authenticates, upgrades, and runs the connection. Blocks for
// the connection's lifetime, one goroutine per connection, as the server
// gives each request its own.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	decision := h.gate.Authenticate(r.Context(), r)
	h.metrics.AuthDecisions.WithLabelValues(string(decision.Reason)).Inc()
	if !decision.Accepted {
		http.Error(w, string(decision.Reason), decision.Reason.HTTPStatus())
		return
	}

	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		chatID = DefaultChatID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Debug("upgrade failed", "error", err)
		return
	}

	// The connection context outlives the request context, which the server
	// cancels when this handler returns the hijacked connection.
	ctx, cancel := context.WithCancel(context.Background())
	client := newClient(conn, h.hub, decision.SubjectID, decision.SessionID, chatID, cancel, h.logger)
	sup := NewSupervisor(client, h.gate.Sessions(), h.cfg.LivenessInterval, h.metrics, h.logger)

	h.registry.Add(client.id, cancel)
	h.hub.Register(client)
	h.metrics.ActiveConnections.Inc()
	h.logger.Info("connection established",
		"connection_id", client.id, "subject_id", decision.SubjectID, "chat_id", chatID)

	defer func() {
		h.registry.Remove(client.id)
		h.metrics.ActiveConnections.Dec()
	}()

	go client.writePump()
	go sup.Run(ctx)
	client.readPump()
}
