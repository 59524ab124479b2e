package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wayneblacklock/plundrr/internal/config"
	dbRedis "github.com/wayneblacklock/plundrr/internal/db/redis"
	"github.com/wayneblacklock/plundrr/internal/domain"
	"github.com/wayneblacklock/plundrr/internal/index"
	logpkg "github.com/wayneblacklock/plundrr/internal/logger"
	"github.com/wayneblacklock/plundrr/internal/metrics"
	criteriarepo "github.com/wayneblacklock/plundrr/internal/repository/criteria"
	ledgerrepo "github.com/wayneblacklock/plundrr/internal/repository/ledger"
	chiTransport "github.com/wayneblacklock/plundrr/internal/transport/chi"
	"github.com/wayneblacklock/plundrr/internal/transport/sink"
	engineuc "github.com/wayneblacklock/plundrr/internal/usecase/engine"
	healthuc "github.com/wayneblacklock/plundrr/internal/usecase/health"
	matcheruc "github.com/wayneblacklock/plundrr/internal/usecase/matcher"
	watcheruc "github.com/wayneblacklock/plundrr/internal/usecase/watcher"
	"github.com/wayneblacklock/plundrr/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting plundrr matching engine",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Int("workers", cfg.Engine.Workers),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register engine metrics explicitly (no init())
	metrics.RegisterEngineMetrics()

	// Core index structures — published snapshots, swapped atomically
	rules := index.NewRules()
	blocks := index.NewBlocklist()

	// Criteria store adapter + change feed
	critRepo := criteriarepo.New(store, logger)
	feed := criteriarepo.NewFeed(
		store,
		cfg.Criteria.Stream,
		int64(cfg.Criteria.BatchSize),
		time.Duration(cfg.Criteria.BlockSec)*time.Second,
	)

	// Dedup ledger. ttl_days < 0 means entries never expire.
	var ledgerTTL time.Duration
	if cfg.Ledger.TTLDays > 0 {
		ledgerTTL = time.Duration(cfg.Ledger.TTLDays) * 24 * time.Hour
	}
	ledger := ledgerrepo.New(store, ledgerTTL)

	// Notification sink
	var notifySink domain.NotificationSink
	switch cfg.Notify.Sink {
	case "log":
		notifySink = sink.NewLog(logger)
	default:
		notifySink = sink.NewStream(store, cfg.Notify.Stream)
	}

	// Use case services
	matcherSvc := matcheruc.New(rules, blocks)
	engineSvc := engineuc.New(
		matcherSvc, ledger, notifySink,
		cfg.Engine.Workers, cfg.Engine.QueueSize, logger,
	)
	watcherSvc := watcheruc.New(critRepo, feed, rules, blocks, logger).
		WithBackoff(
			time.Duration(cfg.Criteria.BackoffSec)*time.Second,
			time.Duration(cfg.Criteria.MaxBackoffSec)*time.Second,
		)
	healthSvc := healthuc.New(store, watcherSvc, engineSvc)

	// Background loops: criteria watcher and the evaluation worker pool
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		if err := watcherSvc.Run(runCtx); err != nil && runCtx.Err() == nil {
			logger.Error("criteria watcher stopped", zap.Error(err))
		}
	}()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engineSvc.Run(runCtx)
	}()

	// HTTP surface
	server := chiTransport.NewServer(engineSvc, healthSvc, engineStats{rules: rules, blocks: blocks}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Handle("/metrics", promhttp.Handler())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	// Stop intake first, then drain the workers.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	cancelRun()

	for _, done := range []<-chan struct{}{engineDone, watcherDone} {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout before workers drained")
		}
	}

	logger.Info("Server stopped gracefully")
}

// engineStats adapts the index structures to the transport stats surface.
type engineStats struct {
	rules  *index.Rules
	blocks *index.Blocklist
}

func (s engineStats) IndexedSearches() int { return s.rules.Len() }
func (s engineStats) BlockedPairs() int    { return s.blocks.Len() }

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
