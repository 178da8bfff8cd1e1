package subscribe

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
	Subscribed  bool  `json:"subscribed"`
	Subscribers int64 `json:"subscribers"`
}

func New(
	log *slog.Logger,
	engagementService *engagement.Engagement,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.subscribe.New"

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

		channelID, err := strconv.ParseInt(chi.URLParam(r, "channelID"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid channel id"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		subscribed, err := engagementService.ToggleSubscribe(ctx, user.ID, channelID)
		if err != nil {
			switch {
			case errors.Is(err, engagement.ErrSelfSubscribe):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("cannot subscribe to your own channel"))
			case errors.Is(err, engagement.ErrNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("channel does not exist"))
			default:
				log.Error("failed to toggle subscription", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		// The count is informational; the toggle already succeeded.
		count, err := engagementService.SubscriberCount(ctx, channelID)
		if err != nil {
			log.Warn("failed to count subscribers", sl.Err(err))
		}

		log.Info("subscription toggled", slog.Bool("subscribed", subscribed))

		render.JSON(w, r, Response{
			Response:    resp.OK(),
			Subscribed:  subscribed,
			Subscribers: count,
		})
	}
}
