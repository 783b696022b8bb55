package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/benvon/smart-schedule/internal/app"
	"github.com/benvon/smart-schedule/internal/config"
	"github.com/benvon/smart-schedule/internal/handlers"
	"github.com/benvon/smart-schedule/internal/middleware"
	"github.com/benvon/smart-schedule/internal/planner"
	"github.com/benvon/smart-schedule/internal/queue"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

// version is reported by /version; release builds set it with -ldflags "-X main.version=..."
var version = "dev"

// services are what the HTTP routes are built over
type services struct {
	deps         *app.Deps
	orchestrator *planner.Orchestrator // nil leaves /api/v1/ai unregistered
	queue        *queue.RabbitMQQueue  // nil disables reschedule jobs
	tracing      bool
}

func (s services) enqueuer() queue.Enqueuer {
	if s.queue == nil {
		return nil
	}
	return s.queue
}

func (s services) healthChecks() map[string]handlers.Checker {
	checks := map[string]handlers.Checker{"database": s.deps.DB}
	if client := s.deps.Redis; client != nil {
		checks["redis"] = handlers.CheckFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	if s.queue != nil {
		checks["queue"] = s.queue
	}
	return checks
}

// newRouter assembles middleware and routes. Middleware registered first wraps
// outermost.
func newRouter(cfg *config.Config, s services, logger *zap.Logger) (*mux.Router, error) {
	rateLimit, err := middleware.RateLimit(s.deps.Redis, cfg.RateLimit, logger)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	if s.tracing {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(
		middleware.SecurityHeaders(cfg.EnableHSTS),
		middleware.CORS(cfg.FrontendOrigins(), logger),
		middleware.MaxRequestSize(middleware.DefaultMaxRequestSize),
		middleware.ContentType,
		middleware.RequestID,
		middleware.ErrorHandler(logger),
		middleware.Audit(logger),
		middleware.Logging(logger),
	)

	// Probes and metadata skip rate limiting
	r.HandleFunc("/healthz", handlers.NewHealthChecker(s.healthChecks()).HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/health", liveness).Methods(http.MethodGet)
	r.HandleFunc("/version", versionInfo).Methods(http.MethodGet)
	handlers.NewOpenAPIHandler().RegisterRoutes(r)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(rateLimit)

	tasks := api.PathPrefix("/tasks").Subrouter()
	tasks.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	cleaner := planner.NewCleaner(s.deps.Tasks, logger)
	handlers.NewTaskHandler(s.deps.Tasks, cleaner, s.enqueuer(), logger).RegisterRoutes(tasks)

	if s.orchestrator != nil {
		chat := api.PathPrefix("/ai").Subrouter()
		chat.Use(middleware.Timeout(middleware.ChatRequestTimeout))
		handlers.NewChatHandler(s.orchestrator, s.deps.History, s.deps.Progress, logger).RegisterRoutes(chat)
	}

	// Any OPTIONS request matches so the middleware chain (CORS) runs for preflights.
	// A MatcherFunc rather than Methods keeps unknown paths at 404 instead of 405.
	r.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
		return req.Method == http.MethodOptions
	}).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r, nil
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, map[string]string{"status": "healthy"})
}

func versionInfo(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, map[string]string{"version": version})
}

func writeStatus(w http.ResponseWriter, body map[string]string) {
	body["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
