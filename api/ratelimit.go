package api

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimiter throttles expensive endpoints such as uploads.
type RateLimiter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimiter creates a token-bucket limiter shared by every caller.
func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Handler implements rate limiting middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow() {
			rl.logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			w.Header().Set("Retry-After", "1")
			writeProblem(w, r, newProblem(http.StatusTooManyRequests, "rate-limit-exceeded", "too many requests, retry shortly"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
