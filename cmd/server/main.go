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

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/sity/internal/events"
	"github.com/yourorg/sity/internal/handler"
	"github.com/yourorg/sity/internal/infrastructure/logger"
	"github.com/yourorg/sity/internal/observability/metrics"
	"github.com/yourorg/sity/internal/observability/tracing"
	"github.com/yourorg/sity/internal/realtime"
	"github.com/yourorg/sity/internal/repository"
	"github.com/yourorg/sity/internal/security/audit"
	"github.com/yourorg/sity/internal/security/auth"
	"github.com/yourorg/sity/internal/security/middleware"
	"github.com/yourorg/sity/internal/security/ratelimit"
	"github.com/yourorg/sity/internal/service"
	"github.com/yourorg/sity/internal/worker"
	"github.com/yourorg/sity/pkg/config"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting Sity server",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.StoreBackend),
		slog.String("auth", cfg.AuthMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Error reporting and tracing
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			log.Error("sentry init failed", slog.String("error", err.Error()))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, "sity", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Connect the key-value store
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	// 5. Identity provider
	idp, err := newIdentityProvider(cfg, log)
	if err != nil {
		log.Error("failed to initialize identity provider", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Event fan-out: websocket feed plus optional broker
	hub := realtime.NewHub(log)
	go hub.Run(ctx)

	publishers := events.Multi{hub}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Warn("event broker unavailable, continuing without it", slog.String("error", err.Error()))
		} else {
			defer amqpPub.Close()
			publishers = append(publishers, amqpPub)
		}
	}

	// 7. Repositories and services
	users := repository.NewUserRepository(store, log)
	rides := repository.NewRideRepository(store, log)
	requests := repository.NewRequestRepository(store, log)
	auditLogger := audit.NewLogger(log)

	accountService := service.NewAccountService(users, idp, auditLogger, log, cfg)
	rideService := service.NewRideService(rides, users, publishers, auditLogger, log)
	requestService := service.NewRequestService(rides, requests, publishers, auditLogger, log)

	if cfg.DemoAccounts {
		if cfg.AuthMode == config.AuthLocal {
			n := accountService.SeedDemoAccounts(ctx, auth.DemoAccounts)
			log.Info("demo accounts seeded", slog.Int("created", n))
		} else {
			log.Warn("demo accounts flag ignored outside local auth mode")
		}
	}

	// 8. Setup HTTP routes
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	defer rateLimiter.Stop()

	mux := http.NewServeMux()
	handler.Router{
		Prefix:   cfg.APIPrefix,
		Health:   handler.NewHealthHandler(store, log),
		Accounts: handler.NewAccountHandler(accountService, log),
		Rides:    handler.NewRideHandler(rideService, log),
		Requests: handler.NewRequestHandler(requestService, log),
		Price:    handler.NewPriceHandler(log),
		Feed:     handler.NewRideFeedHandler(hub, cfg.CORSAllowedOrigins, log),
		Auth:     middleware.RequireAuth(idp, log),
		Limit:    middleware.RateLimit(rateLimiter, log),
		JSON:     middleware.ValidateJSONContentType(log),
	}.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Chain middleware: request ID -> CORS -> sentry -> tracing -> metrics -> routes
	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	rootHandler := middleware.RequestID(log)(
		middleware.CORS(cfg.CORSAllowedOrigins)(
			sentryHandler.Handle(
				otelhttp.NewHandler(metrics.HTTPMetricsMiddleware(mux), "sity"),
			),
		),
	)

	// 9. Start reconcile worker in background
	reconcileWorker := worker.NewReconcileWorker(rides, log, cfg.ReconcileInterval)
	go reconcileWorker.Start(ctx)

	// 10. Start HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           rootHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("api_prefix", cfg.APIPrefix),
		slog.Int("rate_limit_per_minute", cfg.RateLimitPerMinute),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop worker and hub
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}
