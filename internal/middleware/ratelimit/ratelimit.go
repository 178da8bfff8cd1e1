// Package ratelimit admits or throttles requests per client address before
// they reach abuse-sensitive handlers.
package rateLimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	resp "vidstream/internal/lib/api/response"
	"vidstream/internal/lib/clientip"
	"vidstream/internal/metrics"
	"vidstream/internal/ratelimit"

	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	RetryAfter int `json:"retry_after"`
}

// ByIP gates requests on the given limiter, keyed by client address.
// Throttled requests get 429 with a Retry-After hint in seconds.
func ByIP(log *slog.Logger, limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientip.FromRequest(r)

			allowed, retryAfter := limiter.Admit(key)
			if !allowed {
				retrySec := int(math.Ceil(retryAfter.Seconds()))
				if retrySec < 1 {
					retrySec = 1
				}

				log.Warn("request throttled",
					slog.String("ip", key),
					slog.Int("retry_after", retrySec),
				)
				metrics.IncThrottled()

				w.Header().Set("Retry-After", strconv.Itoa(retrySec))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, Response{
					Response:   resp.Error("too many requests, please try again later"),
					RetryAfter: retrySec,
				})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
