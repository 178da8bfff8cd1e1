// Package identity attaches the authenticated user to the request context.
package identity

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	resp "vidstream/internal/lib/api/response"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/models"

	"github.com/go-chi/render"
)

type contextKey struct{}

var userKey contextKey

// Verifier resolves an access token to an identity.
type Verifier interface {
	VerifyAccess(ctx context.Context, token string) (models.User, error)
}

// Require rejects requests without a valid access credential with a single
// generic unauthorized response.
func Require(log *slog.Logger, verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := verifier.VerifyAccess(r.Context(), tokenFromRequest(r))
			if err != nil {
				log.Debug("rejected unauthenticated request", sl.Err(err))

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("unauthorized"))

				return
			}

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), userKey, user),
			))
		})
	}
}

// Optional attaches the identity when a valid credential is present and
// proceeds as anonymous otherwise.
func Optional(log *slog.Logger, verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := verifier.VerifyAccess(r.Context(), token)
			if err != nil {
				log.Debug("soft auth failed, proceeding as anonymous", sl.Err(err))

				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), userKey, user),
			))
		})
	}
}

// FromContext returns the authenticated user attached by Require or Optional.
func FromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	return ""
}
