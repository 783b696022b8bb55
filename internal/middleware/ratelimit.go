package middleware

import (
	"net/http"

	logpkg "github.com/benvon/smart-schedule/internal/logger"
	"github.com/benvon/smart-schedule/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const (
	// DefaultRate is the default limit in ulule format (5 requests per second)
	DefaultRate = "5-S"
	// RateLimitPrefix namespaces limiter keys in Redis
	RateLimitPrefix = "smart-schedule:ratelimit"
)

// RateLimit returns middleware that limits requests per client IP. Counters live in
// Redis when client is non-nil so replicas share one budget, else in process memory.
func RateLimit(client redis.UniversalClient, formatted string, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	if formatted == "" {
		formatted = DefaultRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}

	var store limiter.Store
	if client != nil {
		store, err = redisstore.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: RateLimitPrefix})
		if err != nil {
			return nil, err
		}
	} else {
		store = memorystore.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          RateLimitPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}

	instance := limiter.New(store, rate)
	keyGetter := func(r *http.Request) string {
		return request.ClientIP(r)
	}
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		respondErrorJSON(w, r, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded, please retry later", logger)
	}
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("rate_limit_store_failed",
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		respondErrorJSON(w, r, http.StatusServiceUnavailable, "Service Unavailable", "Rate limiter unavailable", logger)
	}

	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(keyGetter),
		stdlibmw.WithLimitReachedHandler(onLimit),
		stdlibmw.WithErrorHandler(onError),
	)
	return mw.Handler, nil
}
