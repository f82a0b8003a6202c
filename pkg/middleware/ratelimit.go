package middleware

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit rejects requests with 429 once limiter runs out of tokens.
func RateLimit(handler http.Handler, limiter *rate.Limiter, logger *slog.Logger) http.Handler {
	if limiter == nil {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			if logger != nil {
				logger.LogAttrs(r.Context(), slog.LevelWarn, "Rate limit exceeded", slog.String("remote_addr", r.RemoteAddr), slog.String("path", r.URL.Path))
			}
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
