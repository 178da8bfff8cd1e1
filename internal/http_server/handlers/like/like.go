package like

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"vidstream/internal/engagement"
	resp "vidstream/internal/lib/api/response"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/middleware/identity"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Liked bool `json:"liked"`
}

func New(
	log *slog.Logger,
	engagementService *engagement.Engagement,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.like.New"

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

		kind := engagement.LikeKind(chi.URLParam(r, "kind"))

		targetID, err := strconv.ParseInt(chi.URLParam(r, "targetID"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid target id"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		liked, err := engagementService.ToggleLike(ctx, user.ID, kind, targetID)
		if err != nil {
			switch {
			case errors.Is(err, engagement.ErrUnknownKind):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("unknown like kind"))
			case errors.Is(err, engagement.ErrNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("target does not exist"))
			default:
				log.Error("failed to toggle like", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		log.Info("like toggled", slog.Bool("liked", liked))

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Liked:    liked,
		})
	}
}
