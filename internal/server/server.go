// Package server exposes order building and signing over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/alanyoungcy/limitorder/internal/crypto"
	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/server/handler"
	"github.com/alanyoungcy/limitorder/internal/server/middleware"
	"github.com/alanyoungcy/limitorder/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKeys     []string            // empty disables API key auth
	HMAC        *crypto.RequestAuth // nil disables request signing
	RateLimit   int
	RateWindow  time.Duration

	// TrustedProxies may set X-Forwarded-For for rate limiting.
	TrustedProxies []netip.Prefix
}

// Handlers aggregates the HTTP handlers the server registers. Audit is
// optional and only routed when an audit store is configured.
type Handlers struct {
	Health *handler.HealthHandler
	Orders *handler.OrderHandler
	Audit  *handler.AuditHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer registers routes and wraps them in the middleware chain.
// limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("POST /api/orders/limit", handlers.Orders.SignLimitOrder)
	mux.HandleFunc("POST /api/orders/limit/prepare", handlers.Orders.PrepareLimitOrder)
	mux.HandleFunc("POST /api/orders/rfq", handlers.Orders.SignRFQOrder)
	mux.HandleFunc("POST /api/orders/rfq/prepare", handlers.Orders.PrepareRFQOrder)
	mux.HandleFunc("POST /api/orders/verify", handlers.Orders.VerifySignature)
	mux.HandleFunc("GET /api/orders/recent", handlers.Orders.RecentOrders)

	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, cfg.TrustedProxies, logger)(h)
	}
	h = middleware.Auth(cfg.APIKeys, cfg.HMAC)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.RequestID()(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{httpServer: srv, handler: h, logger: logger}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the ctx deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
