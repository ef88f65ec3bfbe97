package http

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the full HTTP surface. The WebSocket upgrade handler
// is mounted as-is; everything after the upgrade lives in the ws adapter.
func NewRouter(auth *AuthHandler, wsHandler http.Handler, reg *prometheus.Registry, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", auth.Register)
	mux.HandleFunc("POST /login", auth.Login)
	mux.HandleFunc("POST /logout", auth.Logout)
	mux.Handle("GET /ws", wsHandler)
	mux.HandleFunc("GET /healthz", Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return requestLogging(mux, logger)
}

// requestLogging logs one line per request at debug level. The WebSocket
// endpoint is skipped: its line would only appear at disconnect.
func requestLogging(next http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			logger.Debug("http request", "method", r.Method, "path", r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
