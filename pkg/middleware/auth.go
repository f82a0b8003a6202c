package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/niktheblak/web-common/pkg/auth"
)

// Authenticator rejects requests with 403 unless authenticator accepts their
// bearer token. A bare token without the scheme is accepted as well.
func Authenticator(handler http.Handler, authenticator auth.Authenticator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if err := authenticator.Authenticate(r.Context(), token); err != nil {
			if logger != nil {
				logger.LogAttrs(r.Context(), slog.LevelWarn, "Rejected request", slog.String("remote_addr", r.RemoteAddr), slog.String("method", r.Method), slog.String("path", r.URL.Path))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
