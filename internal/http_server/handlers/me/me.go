package me

import (
	"net/http"

	resp "vidstream/internal/lib/api/response"
	"vidstream/internal/middleware/identity"
	"vidstream/internal/models"

	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	User models.User `json:"user"`
}

func New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := identity.FromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("unauthorized"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			User:     user,
		})
	}
}
