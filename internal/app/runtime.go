package app

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-schedule/internal/config"
	"github.com/benvon/smart-schedule/internal/queue"
	"github.com/benvon/smart-schedule/internal/telemetry"
	"go.uber.org/zap"
)

const (
	// DefaultConnectAttempts covers a broker that starts alongside the service
	DefaultConnectAttempts = 10

	connectBaseDelay = 2 * time.Second
	connectMaxDelay  = 30 * time.Second
)

// connectDelay is the wait after failed attempt n, counted from zero
var connectDelay = func(n int) time.Duration {
	return min(connectBaseDelay<<min(n, 8), connectMaxDelay)
}

// ConnectQueue dials RabbitMQ, retrying with exponential backoff up to attempts
// times. It gives up early when ctx is done.
func ConnectQueue(ctx context.Context, url string, attempts int, logger *zap.Logger) (*queue.RabbitMQQueue, error) {
	attempts = max(attempts, 1)
	var lastErr error
	for n := range attempts {
		q, err := queue.NewRabbitMQQueue(url, logger)
		if err == nil {
			logger.Info("connected_to_rabbitmq", zap.Int("attempt", n+1))
			return q, nil
		}
		lastErr = err
		if n == attempts-1 {
			break
		}

		delay := connectDelay(n)
		logger.Warn("rabbitmq_connect_retrying",
			zap.Int("attempt", n+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq connect cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", attempts, lastErr)
}

// StartTracing installs tracing when OTEL is enabled and an endpoint is set.
// The returned stop func is never nil; enabled reports whether spans are exported.
func StartTracing(ctx context.Context, cfg *config.Config, service string, logger *zap.Logger) (stop func(), enabled bool) {
	enabled = cfg.OTELEnabled && cfg.OTELEndpoint != ""
	if cfg.OTELEnabled && !enabled {
		logger.Warn("otel_enabled_but_endpoint_not_configured")
	}

	shutdown, err := telemetry.Setup(ctx, enabled, service, cfg.OTELEndpoint)
	if err != nil {
		logger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		enabled = false
	} else if enabled {
		logger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}, enabled
}
