// Package server assembles the journal backend: document store, identity
// provider and the HTTP API in front of them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/dreamjournal/internal/server/config"
	"github.com/iudanet/dreamjournal/internal/server/handlers"
	"github.com/iudanet/dreamjournal/internal/server/jwt"
	"github.com/iudanet/dreamjournal/internal/server/metrics"
	"github.com/iudanet/dreamjournal/internal/server/middleware"
	"github.com/iudanet/dreamjournal/internal/server/storage"
	"github.com/iudanet/dreamjournal/internal/server/storage/sqlite"
)

// App holds the wired server components
type App struct {
	config  *config.Config
	logger  *slog.Logger
	store   *sqlite.Storage
	tokens  *jwt.Service
	metrics *metrics.Metrics
	version string
}

// NewApp opens the database and wires the components
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return &App{
		config:  cfg,
		logger:  logger,
		store:   store,
		tokens:  jwt.NewService([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		metrics: metrics.New(),
		version: version,
	}, nil
}

// Close releases the database
func (a *App) Close() error {
	return a.store.Close()
}

// Handler builds the HTTP API
func (a *App) Handler() http.Handler {
	return NewRouter(a.logger, a.store, a.tokens, a.metrics, a.config.AllowAnonymousWrites, a.version)
}

// NewRouter регистрирует маршруты API. Чтение журнала анонимное, запись
// требует identity, если не включен allowAnonymousWrites.
func NewRouter(
	logger *slog.Logger,
	store storage.Storage,
	tokens *jwt.Service,
	m *metrics.Metrics,
	allowAnonymousWrites bool,
	version string,
) http.Handler {
	health := handlers.NewHealthHandler(logger, store, version)
	auth := handlers.NewAuthHandler(logger, store, store, tokens, m)
	journal := handlers.NewJournalHandler(logger, store, m)

	requireAuth := middleware.AuthMiddleware(logger, tokens)
	writeAuth := requireAuth
	if allowAnonymousWrites {
		writeAuth = middleware.OptionalAuthMiddleware(logger, tokens)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", health.Health)
	mux.Handle("GET /metrics", m.Handler())

	mux.HandleFunc("POST /api/v1/auth/register", auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", auth.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", auth.Refresh)
	mux.Handle("POST /api/v1/auth/logout", requireAuth(http.HandlerFunc(auth.Logout)))
	mux.Handle("GET /api/v1/auth/me", requireAuth(http.HandlerFunc(auth.Me)))

	mux.HandleFunc("GET /api/v1/dreams", journal.List)
	mux.HandleFunc("GET /api/v1/dreams/{id}", journal.Get)
	mux.Handle("POST /api/v1/dreams", writeAuth(http.HandlerFunc(journal.CreateEntry)))
	mux.Handle("DELETE /api/v1/dreams/{id}", writeAuth(http.HandlerFunc(journal.DeleteEntry)))
	mux.Handle("POST /api/v1/dreams/{id}/comments", writeAuth(http.HandlerFunc(journal.CreateComment)))
	mux.Handle("DELETE /api/v1/dreams/{id}/comments/{commentID}", writeAuth(http.HandlerFunc(journal.DeleteComment)))

	return middleware.Chain(mux,
		middleware.LoggingMiddleware(logger, m, "/api/v1/health", "/metrics"),
		middleware.RecoveryMiddleware(logger),
	)
}

// Run слушает cfg.Addr до SIGINT/SIGTERM или отмены ctx
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.config.Addr, err)
	}

	return a.Serve(ctx, ln)
}

// Serve обслуживает HTTP на ln и корректно завершается при отмене ctx
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server",
			slog.String("addr", ln.Addr().String()),
			slog.String("version", a.version),
			slog.Bool("allow_anonymous_writes", a.config.AllowAnonymousWrites))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if a.config.TokenCleanupInterval > 0 {
		g.Go(func() error {
			a.cleanupExpiredTokens(gctx, a.config.TokenCleanupInterval)
			return nil
		})
	}

	return g.Wait()
}

// cleanupExpiredTokens периодически удаляет просроченные refresh token'ы
func (a *App) cleanupExpiredTokens(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.store.DeleteExpiredTokens(ctx)
			if err != nil {
				if ctx.Err() == nil {
					a.logger.Warn("failed to delete expired tokens", slog.Any("error", err))
				}
				continue
			}
			if n > 0 {
				a.logger.Info("expired refresh tokens deleted", slog.Int("count", n))
			}
		}
	}
}
