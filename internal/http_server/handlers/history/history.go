package history

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"vidstream/internal/engagement"
	resp "vidstream/internal/lib/api/response"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/middleware/identity"
	"vidstream/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Videos []models.Video `json:"videos"`
}

func New(
	log *slog.Logger,
	engagementService *engagement.Engagement,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.history.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, ok := identity.FromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("unauthorized"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		videos, err := engagementService.WatchHistory(ctx, user.ID)
		if err != nil {
			log.Error("failed to fetch watch history", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Videos:   videos,
		})
	}
}
