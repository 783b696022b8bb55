package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/smart-schedule/internal/app"
	"github.com/benvon/smart-schedule/internal/config"
	"github.com/benvon/smart-schedule/internal/logger"
	"github.com/benvon/smart-schedule/internal/middleware"
	"github.com/benvon/smart-schedule/internal/queue"
	"go.uber.org/zap"
)

const (
	serviceName = "smart-schedule"

	dlqSweepInterval = time.Hour
	dlqRetention     = 24 * time.Hour
	shutdownTimeout  = 30 * time.Second
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	if err := run(cfg, debugMode, zapLogger); err != nil {
		zapLogger.Fatal("server_failed", zap.Error(err))
	}
}

func run(cfg *config.Config, debugMode bool, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.Strings("frontend_origins", cfg.FrontendOrigins()),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.String("timezone", cfg.Timezone),
	)

	stopTracing, tracing := app.StartTracing(ctx, cfg, serviceName, zapLogger)
	defer stopTracing()

	deps, err := app.Open(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			zapLogger.Warn("failed_to_close_dependencies", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database",
		zap.String("dialect", string(deps.DB.Dialect)),
		zap.Bool("redis_enabled", deps.Redis != nil))

	s := services{deps: deps, tracing: tracing}

	// RabbitMQ is optional here; the worker requires it
	if cfg.RabbitMQURL != "" {
		s.queue, err = app.ConnectQueue(ctx, cfg.RabbitMQURL, app.DefaultConnectAttempts, zapLogger)
		if err != nil {
			return err
		}
		defer func() {
			if err := s.queue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	} else {
		zapLogger.Warn("rabbitmq_not_configured_background_jobs_disabled")
	}

	completer, err := app.NewCompleter(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Warn("failed_to_create_ai_provider_chat_disabled", zap.Error(err))
	} else if s.orchestrator, err = app.NewOrchestrator(cfg, deps, completer, zapLogger); err != nil {
		return err
	}

	router, err := newRouter(cfg, s, zapLogger)
	if err != nil {
		return err
	}

	// WriteTimeout outlasts the chat timeout so the JSON timeout body reaches the client
	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.ChatRequestTimeout + 15*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if s.queue != nil {
		startBackground(ctx, cfg, s.queue, zapLogger)
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	zapLogger.Info("server_exited")
	return nil
}

// startBackground runs the periodic cleanup enqueuer and the DLQ sweeper until ctx ends
func startBackground(ctx context.Context, cfg *config.Config, q *queue.RabbitMQQueue, zapLogger *zap.Logger) {
	loops := []struct {
		name  string
		start func(context.Context) error
	}{
		{"cleanup_enqueuer", queue.NewPeriodicEnqueuer(q, queue.JobTypeCleanup, cfg.CleanupInterval, zapLogger).Start},
		{"dlq_garbage_collector", queue.NewGarbageCollector(q, dlqSweepInterval, dlqRetention, zapLogger).Start},
	}
	for _, loop := range loops {
		go func() {
			if err := loop.start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("background_loop_stopped", zap.String("loop", loop.name), zap.Error(err))
			}
		}()
	}
	zapLogger.Info("background_loops_started",
		zap.Duration("cleanup_interval", cfg.CleanupInterval),
		zap.Duration("dlq_sweep_interval", dlqSweepInterval),
		zap.Duration("dlq_retention", dlqRetention))
}
