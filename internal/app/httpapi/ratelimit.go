package httpapi

import (
	"errors"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/cobx-network/player_layer/pkg/logger"
)

// Default limits for the /v1 subtree. Generous enough for interactive
// clients; account provisioning is not a high-frequency operation.
const (
	defaultRequestsPerSecond = 50
	defaultBurst             = 100
)

var errRateLimited = errors.New("too many requests")

// rateLimiter throttles requests per client key.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

func newRateLimiter(requestsPerSecond, burst int, log *logger.Logger) *rateLimiter {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		log:      log,
	}
}

// clientKey buckets by credential when one is presented, else by peer
// address.
func clientKey(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	return r.RemoteAddr
}

func (rl *rateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[key]
	if !ok {
		// Unbounded client churn would leak limiters; reset wholesale past
		// a size no legitimate deployment reaches.
		if len(rl.limiters) > 10000 {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Handler returns the throttling middleware.
func (rl *rateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiterFor(clientKey(r)).Allow() {
			rl.log.WithField("path", r.URL.Path).
				WithField("method", r.Method).
				Warn("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
