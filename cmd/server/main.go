package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/ajo/internal/auth"
	"github.com/mmynk/ajo/internal/config"
	"github.com/mmynk/ajo/internal/engine"
	"github.com/mmynk/ajo/internal/gateway"
	"github.com/mmynk/ajo/internal/lock"
	"github.com/mmynk/ajo/internal/metrics"
	"github.com/mmynk/ajo/internal/middleware"
	"github.com/mmynk/ajo/internal/service"
	"github.com/mmynk/ajo/internal/storage/sqlite"
	"github.com/mmynk/ajo/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.Database.Path)

	// Redis shares charge reservations between replicas; a single instance
	// can keep them in memory.
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Addr != "" {
		redisLocker, err := lock.NewRedisLocker(ctx, lock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Error("Failed to initialize Redis locker", "error", err)
			os.Exit(1)
		}
		defer redisLocker.Close()
		locker = redisLocker
		logger.Info("Redis locker initialized", "addr", cfg.Redis.Addr)
	} else {
		logger.Warn("Redis not configured, charge locks are local to this process")
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		SecretKey: cfg.Gateway.SecretKey,
		Timeout:   cfg.Engine.GatewayTimeout,
	})
	recorder := metrics.New()

	eng := engine.New(engine.Config{
		GatewayTimeout: cfg.Engine.GatewayTimeout,
		ChargeLockTTL:  cfg.Engine.ChargeLockTTL,
	}, store, gw, locker, recorder, logger)

	var jwtManager *auth.JWTManager
	if cfg.Auth.JWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	}
	var apiKeys *auth.APIKeyVerifier
	if cfg.Auth.APIKeyHash != "" {
		apiKeys = auth.NewAPIKeyVerifier(cfg.Auth.APIKeyHash)
	}
	authenticator := auth.NewCallerAuthenticator(jwtManager, apiKeys)

	mux := http.NewServeMux()

	// Register Connect services
	cyclePath, cycleHandler := service.NewCycleServiceHandler(
		service.NewCycleService(eng, logger),
		connect.WithInterceptors(
			middleware.RequireAuth(authenticator),
			middleware.LoggingInterceptor(logger),
			middleware.RequireRole(service.ProcedureRoles, auth.RoleScheduler),
		),
		connect.WithReadMaxBytes(int(cfg.Server.MaxBodySize)),
	)
	mux.Handle(cyclePath, cycleHandler)

	mux.Handle(service.WebhookPath, service.NewWebhookHandler(eng, cfg.Gateway.WebhookSecret, cfg.Server.MaxBodySize, logger))

	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, recorder.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	h2cHandler := h2c.NewHandler(loggingMiddleware(logger, mux), &http2.Server{})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h2cHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	}()

	logger.Info("Connect server starting", "address", addr, "env", cfg.Server.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		logger.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
