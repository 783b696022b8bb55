package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // PLANNER_TIMEZONE must resolve in minimal images
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	AIProvider       string
	AIAPIKey         string
	AIModel          string
	AIBaseURL        string
	AIJSONMode       bool
	EnableHSTS       bool
	RedisURL         string
	RateLimit        string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string

	Timezone string
	Location *time.Location

	ChatMaxMessagesPerSession int
	ChatMaxSessions           int
	ChatHistoryLimit          int
	CleanupInterval           time.Duration
	PolicyFile                string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", "sqlite://smart-schedule.db"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		AIProvider:       getEnv("AI_PROVIDER", "openai"),
		AIAPIKey:         getEnv("AI_API_KEY", getEnv("OPENAI_API_KEY", os.Getenv("SILICONFLOW_API_KEY"))),
		AIModel:          getEnv("AI_MODEL", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", os.Getenv("SILICONFLOW_BASE_URL")),
		AIJSONMode:       getEnvBool("AI_JSON_MODE", true),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RedisURL:         getEnv("REDIS_URL", ""),
		RateLimit:        getEnv("RATE_LIMIT", "5-S"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		Timezone:                  getEnv("PLANNER_TIMEZONE", "Asia/Shanghai"),
		ChatMaxMessagesPerSession: getEnvInt("CHAT_MAX_MESSAGES_PER_SESSION", 100),
		ChatMaxSessions:           getEnvInt("CHAT_MAX_SESSIONS", 50),
		ChatHistoryLimit:          getEnvInt("CHAT_HISTORY_LIMIT", 20),
		PolicyFile:                getEnv("PLANNER_POLICY_FILE", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid PLANNER_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	interval, err := getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.CleanupInterval = interval

	if cfg.ChatMaxMessagesPerSession <= 0 || cfg.ChatMaxSessions <= 0 || cfg.ChatHistoryLimit <= 0 {
		return nil, fmt.Errorf("chat retention limits must be positive")
	}

	return cfg, nil
}

// RequireQueue returns an error when RabbitMQ is not configured
func (c *Config) RequireQueue() error {
	if c.RabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL is required for the worker")
	}
	return nil
}

// FrontendOrigins splits FRONTEND_URL into the allowed CORS origins
func (c *Config) FrontendOrigins() []string {
	return splitList(c.FrontendURL)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, value)
	}
	return d, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
