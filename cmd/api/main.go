package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Adithyanmurthy/Loan-Chatbot/cmd/mainconfig"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/api/router"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/app/bootstrap"
	appconfig "github.com/Adithyanmurthy/Loan-Chatbot/internal/config"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/conversation"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/documents"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/observability/metrics"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/ops"
	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting loan-chatbot API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	convMetrics := metrics.NewConversationMetrics(registry)
	upstreamMetrics := metrics.NewUpstreamMetrics(registry)

	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Storage. Every backend degrades to an in-process fallback so the
	// service runs end to end with no infrastructure configured.
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	sessionStore := bootstrap.BuildSessionStore(redisClient, cfg.SessionTTL, logger)
	db := bootstrap.BuildPostgres(ctx, cfg, logger)
	loanRepo := bootstrap.BuildLoanRepository(db, logger)

	// Sanction letters.
	archive := bootstrap.BuildArchive(cfg, awsCfg, logger)
	documentService := bootstrap.BuildDocumentService(cfg, archive, logger, convMetrics)

	// Upstream data services and the conversation pipeline.
	upstreams := bootstrap.BuildUpstreamSources(cfg, logger, upstreamMetrics)
	jobStore := bootstrap.BuildJobStore(cfg, awsCfg, logger)

	orchestrator, err := bootstrap.BuildConversationService(cfg, awsCfg, bootstrap.ConversationDeps{
		Store:     sessionStore,
		Upstreams: upstreams,
		Apps:      loanRepo,
		Letters:   documentService,
		JobStore:  jobStore,
		Metrics:   convMetrics,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to build conversation service", "error", err)
		os.Exit(1)
	}

	// The typed-nil guard matters: a nil *JobStore stored in a JobRecorder
	// interface would not compare equal to nil inside the handler.
	var jobRecorder conversation.JobRecorder
	if jobStore != nil {
		jobRecorder = jobStore
	}
	chatHandler := conversation.NewHandler(orchestrator, sessionStore, jobRecorder, logger,
		conversation.WithUploadLimit(cfg.MaxUploadBytes))
	documentsHandler := documents.NewHandler(documentService, logger)

	var funnelRepo *ops.FunnelRepository
	var pgPool *pgxpool.Pool
	if db != nil {
		pgPool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("failed to open pgx pool, funnel reporting disabled", "error", err)
		} else {
			funnelRepo = ops.NewFunnelRepository(pgPool)
		}
	}
	opsHandler := ops.NewHandler(funnelRepo, sessionStore, registry, logger)

	routerCfg := &router.Config{
		Logger:             logger,
		ChatHandler:        chatHandler,
		DocumentsHandler:   documentsHandler,
		OpsHandler:         opsHandler,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: []string{cfg.AllowedOrigin},
		ReadyCheck: func(ctx context.Context) error {
			if redisClient != nil {
				if err := redisClient.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			if db != nil {
				if err := db.PingContext(ctx); err != nil {
					return fmt.Errorf("postgres: %w", err)
				}
			}
			return nil
		},
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
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
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator forced to shutdown", "error", err)
	}
	if pgPool != nil {
		pgPool.Close()
	}
	if db != nil {
		_ = db.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
