package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/benvon/smart-schedule/internal/app"
	"github.com/benvon/smart-schedule/internal/config"
	"github.com/benvon/smart-schedule/internal/logger"
	"github.com/benvon/smart-schedule/internal/queue"
	"github.com/benvon/smart-schedule/internal/workers"
	"go.uber.org/zap"
)

const serviceName = "smart-schedule-worker"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireQueue(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	if err := run(cfg, debugMode, zapLogger); err != nil {
		zapLogger.Fatal("worker_failed", zap.Error(err))
	}
}

func run(cfg *config.Config, debugMode bool, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	stopTracing, _ := app.StartTracing(ctx, cfg, serviceName, zapLogger)
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

	jobQueue, err := app.ConnectQueue(ctx, cfg.RabbitMQURL, app.DefaultConnectAttempts, zapLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	completer, err := app.NewCompleter(cfg, zapLogger, debugMode)
	if err != nil {
		return err
	}
	orchestrator, err := app.NewOrchestrator(cfg, deps, completer, zapLogger)
	if err != nil {
		return err
	}
	worker := workers.NewScheduleWorker(orchestrator.Synthesizer(), orchestrator.Cleaner(), jobQueue, zapLogger)

	messages, queueErrs, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		return err
	}
	zapLogger.Info("worker_started")

	consume(ctx, worker, messages, queueErrs, zapLogger)
	zapLogger.Info("worker_stopped")
	return nil
}

// jobProcessor is the part of ScheduleWorker the consume loop needs
type jobProcessor interface {
	ProcessJob(ctx context.Context, msg queue.MessageInterface) error
}

// consume processes deliveries one at a time until ctx ends or the delivery
// channel closes. Queue errors are logged and do not stop the loop.
func consume(ctx context.Context, worker jobProcessor, messages <-chan *queue.Message, queueErrs <-chan error, zapLogger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-queueErrs:
			if !ok {
				queueErrs = nil
				continue
			}
			zapLogger.Error("queue_error", zap.Error(err))
		case msg, ok := <-messages:
			if !ok {
				zapLogger.Info("message_channel_closed")
				return
			}
			if err := worker.ProcessJob(ctx, msg); err != nil {
				fields := []zap.Field{zap.Error(err)}
				if job := msg.GetJob(); job != nil {
					fields = append(fields,
						zap.String("job_id", job.ID.String()),
						zap.String("job_type", string(job.Type)))
				}
				zapLogger.Error("job_processing_failed", fields...)
			}
		}
	}
}
