package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/chat-gate/chatgate/internal/adapter/inbound/http"
	"github.com/chat-gate/chatgate/internal/adapter/inbound/ws"
	"github.com/chat-gate/chatgate/internal/adapter/outbound/memory"
	"github.com/chat-gate/chatgate/internal/adapter/outbound/redisstore"
	"github.com/chat-gate/chatgate/internal/adapter/outbound/sqlite"
	"github.com/chat-gate/chatgate/internal/config"
	"github.com/chat-gate/chatgate/internal/domain/gate"
	"github.com/chat-gate/chatgate/internal/domain/session"
	"github.com/chat-gate/chatgate/internal/domain/token"
	"github.com/chat-gate/chatgate/internal/domain/user"
	"github.com/chat-gate/chatgate/internal/service"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway server",
	Long: `Start the chatgate server.

The server exposes:
  POST /register   create an account
  POST /login      verify credentials, mint a bearer token
  POST /logout     revoke a session
  GET  /ws         authenticated WebSocket upgrade (token in
                   Authorization header or ?token= query parameter)
  GET  /healthz    liveness probe
  GET  /metrics    Prometheus metrics

Examples:
  # Start with config file settings
  chatgate start

  # Start in development mode (debug logging, in-memory stores)
  chatgate start --dev

  # Start with a specific config file
  chatgate --config /path/to/config.yaml start`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, dev secret, trace export)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDefaults()
	if cfg.DevMode {
		cfg.SetDevDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C hard-kills.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// Trace export to stdout in dev mode only; in production the default
	// no-op provider keeps gate spans free.
	if cfg.DevMode {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	wsMetrics := ws.NewMetrics(promReg)

	// Session store: memory by default, Redis when configured.
	var sessions session.Store
	switch cfg.Session.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		defer func() { _ = client.Close() }()
		sessions = redisstore.NewSessionStore(client)
		logger.Info("session store: redis", "addr", cfg.Redis.Addr)
	default:
		memStore := memory.NewSessionStoreWithConfig(cfg.Session.GetSweepInterval(), logger)
		memStore.SetSweepCounter(wsMetrics.SessionsSwept)
		memStore.StartSweeper(ctx)
		defer memStore.Stop()
		sessions = memStore
		logger.Info("session store: memory", "sweep_interval", cfg.Session.SweepInterval)
	}

	// User store: SQLite when a path is configured, memory otherwise.
	var users user.Store
	if cfg.Users.SQLitePath != "" {
		sqlStore, err := sqlite.Open(cfg.Users.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open user database: %w", err)
		}
		defer func() { _ = sqlStore.Close() }()
		users = sqlStore
		logger.Info("user store: sqlite", "path", cfg.Users.SQLitePath)
	} else {
		if !cfg.DevMode {
			logger.Warn("users.sqlite_path not set, accounts will not survive restarts")
		}
		users = memory.NewUserStore()
		logger.Info("user store: memory")
	}

	tokenCfg := token.Config{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.Issuer,
		Leeway: cfg.Auth.GetLeeway(),
		TTL:    cfg.Auth.GetTokenTTL(),
	}
	verifier := token.NewVerifier(tokenCfg)
	issuer := token.NewIssuer(tokenCfg)

	authGate := gate.New(verifier, sessions, gate.Config{
		SessionTTL:  cfg.Session.GetTTL(),
		AuthTimeout: cfg.Auth.GetTimeout(),
	}, logger)
	authService := service.NewAuthService(users, sessions, issuer, cfg.Session.GetTTL(), logger)

	hub := ws.NewHub(logger)
	go hub.Run(ctx)
	registry := ws.NewRegistry()
	wsHandler := ws.NewHandler(authGate, hub, registry, wsMetrics, ws.Config{
		LivenessInterval: cfg.Session.GetLivenessInterval(),
	}, logger)

	router := http.NewRouter(http.NewAuthHandler(authService, logger), wsHandler, promReg, logger)
	server := &stdhttp.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chatgate listening", "addr", cfg.Server.HTTPAddr, "dev_mode", cfg.DevMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	registry.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown", "error", err)
		_ = server.Close()
	}
	logger.Info("shutdown complete")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
