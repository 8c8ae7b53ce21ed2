package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/limitorder/internal/crypto"
	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/server"
	"github.com/alanyoungcy/limitorder/internal/server/handler"
	"github.com/alanyoungcy/limitorder/internal/server/middleware"
	"github.com/alanyoungcy/limitorder/internal/server/ws"
)

const (
	shutdownTimeout = 10 * time.Second
	batchLockKey    = "batch"
	batchLockTTL    = 30 * time.Minute
)

// ServerMode runs the HTTP API and, when a signal bus exists, the WebSocket
// hub until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	wallet := deps.Orders.Wallet()
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.HealthChecks, wallet, a.logger),
		Orders: handler.NewOrderHandler(deps.Orders, a.logger),
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.Orders, a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{Wallet: wallet})
	}

	var hmacAuth *crypto.RequestAuth
	if a.cfg.Server.HMACSecret != "" {
		hmacAuth = &crypto.RequestAuth{
			Secret:  []byte(a.cfg.Server.HMACSecret),
			MaxSkew: a.cfg.Server.HMACMaxSkew.Duration,
		}
	}

	trusted, err := middleware.ParseTrustedProxies(a.cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKeys:     a.cfg.Server.APIKeys,
		HMAC:        hmacAuth,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,

		TrustedProxies: trusted,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	if hub != nil {
		g.Go(func() error { return hub.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// BatchMode signs every item of the configured input file and writes the
// results as NDJSON. Only one batch runs at a time when a lock manager is
// available.
func (a *App) BatchMode(ctx context.Context, deps *Dependencies) error {
	runID := uuid.NewString()
	logger := a.logger.With(slog.String("run_id", runID))
	logger.InfoContext(ctx, "starting batch mode", slog.String("input", a.cfg.Batch.InputPath))

	if deps.LockManager != nil {
		unlock, err := deps.LockManager.Acquire(ctx, batchLockKey, batchLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return fmt.Errorf("batch: another run is in progress: %w", err)
			}
			return fmt.Errorf("batch: acquire lock: %w", err)
		}
		defer unlock()
	}

	raw, err := os.ReadFile(a.cfg.Batch.InputPath)
	if err != nil {
		return fmt.Errorf("batch: read input: %w", err)
	}
	items, err := ParseBatch(raw)
	if err != nil {
		return err
	}

	started := time.Now().UTC()
	results, err := RunBatch(ctx, deps.Orders, items, a.cfg.Batch.Concurrency)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := WriteNDJSON(&buf, runID, results); err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if a.cfg.Batch.OutputPath != "" {
		f, err := os.Create(a.cfg.Batch.OutputPath)
		if err != nil {
			return fmt.Errorf("batch: create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if _, err := out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("batch: write output: %w", err)
	}

	if deps.BlobWriter != nil {
		key := BatchKey(started)
		if err := deps.BlobWriter.PutMultipart(ctx, key, bytes.NewReader(buf.Bytes()), 0); err != nil {
			return fmt.Errorf("batch: upload %s: %w", key, err)
		}
		logger.InfoContext(ctx, "batch uploaded", slog.String("key", key))
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	logger.InfoContext(ctx, "batch complete",
		slog.Int("items", len(results)),
		slog.Int("failed", failed),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}
