package api

import (
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/wonny/rgm/pkg/logger"
	"github.com/wonny/rgm/pkg/redis"
)

// SubmitLimiter throttles scenario submissions.
// The in-process token bucket always applies. When a shared Redis limiter is set the
// same budget is also enforced across API instances.
type SubmitLimiter struct {
	local  *rate.Limiter
	shared *redis.RateLimiter
	limit  redis.RateLimitConfig
	logger *logger.Logger
}

// NewSubmitLimiter creates a limiter allowing perSecond submissions with the given burst
func NewSubmitLimiter(perSecond float64, burst int, log *logger.Logger) *SubmitLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &SubmitLimiter{
		local:  rate.NewLimiter(limit, burst),
		limit:  redis.ScenarioRateLimit(perSecond, burst),
		logger: log,
	}
}

// WithShared enables the distributed limiter
func (l *SubmitLimiter) WithShared(shared *redis.RateLimiter) *SubmitLimiter {
	l.shared = shared
	return l
}

// Middleware rejects requests over the limit with 429
func (l *SubmitLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.local.Allow() {
			tooManyRequests(w, 0)
			return
		}

		if l.shared != nil {
			allowed, remaining, err := l.shared.Allow(r.Context(), l.limit)
			if err != nil {
				// Redis 장애 시 로컬 리밋만 적용
				l.logger.WithError(err).Warn("Shared rate limit unavailable")
			} else {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
				if !allowed {
					tooManyRequests(w, l.limit.Window.Seconds())
					return
				}
			}
		}

		next.ServeHTTP(w, r)
	})
}

func tooManyRequests(w http.ResponseWriter, retryAfter float64) {
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter)))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"too many scenario submissions"}`))
}
