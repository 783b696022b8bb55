// Package app wires the planner and its backing stores from configuration.
// The server, worker and CLI share it so they build identical pipelines.
package app

import (
	"context"
	"fmt"

	"github.com/benvon/smart-schedule/internal/config"
	"github.com/benvon/smart-schedule/internal/conversation"
	"github.com/benvon/smart-schedule/internal/database"
	"github.com/benvon/smart-schedule/internal/planner"
	"github.com/benvon/smart-schedule/internal/services/ai"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps are the long-lived resources a process opens at startup
type Deps struct {
	DB       *database.DB
	Tasks    *database.TaskRepository
	Redis    redis.UniversalClient // nil when REDIS_URL is unset
	History  conversation.Store
	Progress *conversation.ProgressLog
	Policy   config.Policy
}

// Open connects to the database, runs migrations and opens Redis when configured.
// On error everything opened so far is closed.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Deps, error) {
	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	policy = policy.Merge(planner.DefaultPolicy())

	signals, err := conversation.NewComplexSignals(policy.ActionVerbs, policy.TimePattern, policy.MinComplexLength)
	if err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	deps := &Deps{
		DB:       db,
		Tasks:    database.NewTaskRepository(db),
		Progress: conversation.NewProgressLog(cfg.ChatMaxSessions, 0),
		Policy:   policy,
	}

	limits := conversation.Limits{
		MaxMessagesPerSession: cfg.ChatMaxMessagesPerSession,
		MaxSessions:           cfg.ChatMaxSessions,
	}
	if cfg.RedisURL == "" {
		deps.History = conversation.NewMemoryStore(limits, signals)
		return deps, nil
	}

	client, err := OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	deps.Redis = client
	deps.History = conversation.NewRedisStore(client, conversation.DefaultRedisPrefix, limits, signals, logger)
	return deps, nil
}

// OpenRedis parses a redis:// URL and pings the server
func OpenRedis(ctx context.Context, redisURL string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Close releases Redis and the database
func (d *Deps) Close() error {
	var redisErr error
	if d.Redis != nil {
		redisErr = d.Redis.Close()
	}
	if err := d.DB.Close(); err != nil {
		return err
	}
	return redisErr
}

// NewCompleter builds the configured completion provider
func NewCompleter(cfg *config.Config, logger *zap.Logger, debugMode bool) (ai.Completer, error) {
	registry := ai.NewDefaultRegistry()
	return registry.GetProvider(cfg.AIProvider, ai.ProviderConfig{
		APIKey:    cfg.AIAPIKey,
		BaseURL:   cfg.AIBaseURL,
		Model:     cfg.AIModel,
		JSONMode:  cfg.AIJSONMode,
		DebugMode: debugMode,
	}, logger)
}

// NewOrchestrator builds the planner over deps
func NewOrchestrator(cfg *config.Config, deps *Deps, completer ai.Completer, logger *zap.Logger) (*planner.Orchestrator, error) {
	return planner.New(completer, deps.Tasks, deps.History,
		planner.WithLogger(logger),
		planner.WithLocation(cfg.Location),
		planner.WithPolicy(deps.Policy),
		planner.WithProgressLog(deps.Progress),
		planner.WithHistoryLimit(cfg.ChatHistoryLimit),
	)
}
