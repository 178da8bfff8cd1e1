package watch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"vidstream/internal/engagement"
	resp "vidstream/internal/lib/api/response"
	"vidstream/internal/lib/clientip"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/middleware/identity"
	"vidstream/internal/models"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Video models.Video `json:"video"`
}

// New serves a video page fetch. Anyone may watch; authenticated viewers are
// counted by identity, anonymous viewers by address.
func New(
	log *slog.Logger,
	engagementService *engagement.Engagement,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.watch.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		videoID, err := strconv.ParseInt(chi.URLParam(r, "videoID"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid video id"))

			return
		}

		var viewerID *int64
		if user, ok := identity.FromContext(r.Context()); ok {
			viewerID = &user.ID
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		video, err := engagementService.Watch(ctx, videoID, viewerID, clientip.FromRequest(r))
		if err != nil {
			if errors.Is(err, engagement.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("video does not exist"))

				return
			}

			log.Error("failed to fetch video", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Video:    video,
		})
	}
}
