package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/restaurant-concierge/cmd/mainconfig"
	"github.com/wolfman30/restaurant-concierge/internal/api/router"
	"github.com/wolfman30/restaurant-concierge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/restaurant-concierge/internal/config"
	"github.com/wolfman30/restaurant-concierge/internal/observability/metrics"
	"github.com/wolfman30/restaurant-concierge/internal/webchat"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

func main() {
	// Local development reads a .env file; in production the env is already set.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting restaurant concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"restaurant", cfg.RestaurantName,
	)

	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	clients := mainconfig.NewClients(awsCfg, cfg)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	pool := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	sqlDB := bootstrap.BuildSQLDB(cfg.DatabaseURL, logger)
	if sqlDB != nil {
		defer sqlDB.Close()
	}

	metricsHandler, chatMetrics := setupMetrics()

	store, err := bootstrap.BuildKnowledgeStore(cfg, clients.Bedrock, logger)
	if err != nil {
		logger.Error("failed to open knowledge store", "error", err)
		os.Exit(1)
	}
	retriever := bootstrap.BuildRetriever(cfg, store, chatMetrics, logger)

	llm, model, err := bootstrap.BuildLLMClient(ctx, cfg, clients.Bedrock, logger)
	if err != nil {
		logger.Error("failed to configure LLM client", "error", err)
		os.Exit(1)
	}
	answerer := bootstrap.BuildAnswerer(cfg, llm, model, retriever, logger)

	finalizer := bootstrap.BuildFinalizer(cfg, bootstrap.FinalizerDeps{
		Calendar:    bootstrap.BuildCalendar(ctx, cfg, logger),
		Sink:        bootstrap.BuildRecordSink(ctx, cfg, pool, logger),
		Idempotency: bootstrap.BuildIdempotencyStore(redisClient, pool),
		Email:       bootstrap.BuildEmailSender(cfg, clients.SES, logger),
	}, logger)
	machine := bootstrap.BuildMachine(cfg, finalizer, logger)
	service := bootstrap.BuildConversationService(cfg, machine, answerer, chatMetrics, logger)

	chatHandler := webchat.NewHandler(service, logger)
	voiceHandler := bootstrap.BuildVoiceHandler(cfg, service, answerer,
		bootstrap.BuildCallStore(cfg, redisClient), sqlDB, chatMetrics, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Chat:               chatHandler,
		Voice:              voiceHandler,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	// WriteTimeout stays off so chat websockets are not cut mid-session.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers the chat metrics on a private registry together with
// the Go runtime collectors and returns the /metrics handler.
func setupMetrics() (http.Handler, *metrics.ChatMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewChatMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}
