package refresh

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vidstream/internal/auth"
	"vidstream/internal/http_server/cookies"
	resp "vidstream/internal/lib/api/response"
	sl "vidstream/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Request struct {
	RefreshToken string `json:"refresh_token"`
}

type Response struct {
	resp.Response
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func New(
	log *slog.Logger,
	authService *auth.Auth,
	accessTTL, refreshTTL time.Duration,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		// The token arrives in the cookie for browser clients and in the
		// body for everything else.
		var req Request
		_ = render.DecodeJSON(r.Body, &req)

		token := req.RefreshToken
		if token == "" {
			if cookie, err := r.Cookie(cookies.RefreshName); err == nil {
				token = cookie.Value
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		pair, err := authService.Refresh(ctx, token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) || errors.Is(err, auth.ErrRefreshRevoked) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid credentials"))

				return
			}

			log.Error("failed to refresh tokens", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		log.Info("tokens refreshed successfully")

		cookies.Set(w, pair.AccessToken, pair.RefreshToken, accessTTL, refreshTTL)

		render.JSON(w, r, Response{
			Response:     resp.OK(),
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
	}
}
